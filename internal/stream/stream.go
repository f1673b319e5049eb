package stream

import "context"

// Message 是流上传输的统一消息结构。
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Partial bool   `json:"partial,omitempty"`
	TxHash  string `json:"transaction_hash,omitempty"`
}

// Message types exchanged over a stream.
const (
	TypeMessage  = "message"
	TypeProgress = "progress"
	TypeError    = "error"
)

// MessageStream 抽象一条与用户的双向消息通道。
type MessageStream interface {
	// Send 推送一条完整消息。
	Send(ctx context.Context, msg Message) error

	// SendPartial 推送一条中间进度消息，不终结本轮对话。
	SendPartial(ctx context.Context, msg Message) error

	// Receive 阻塞读取下一条用户输入。
	Receive(ctx context.Context) (string, error)

	// Close 关闭通道。
	Close() error
}

type notifierKey struct{}

// Notifier 在工具执行过程中上报中间进度。
type Notifier func(Message)

// WithNotifier 将进度回调注入上下文，供长耗时工具使用。
func WithNotifier(ctx context.Context, fn Notifier) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, notifierKey{}, fn)
}

// Notify 通过上下文中的回调上报进度；没有回调时静默忽略。
func Notify(ctx context.Context, msg Message) {
	if fn, ok := ctx.Value(notifierKey{}).(Notifier); ok && fn != nil {
		fn(msg)
	}
}
