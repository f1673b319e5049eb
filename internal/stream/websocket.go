package stream

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketStream 将一条 websocket 连接包装成消息流。
// gorilla 的连接要求同一时刻只有一个写者，这里用互斥锁串行化。
type WebSocketStream struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
}

// NewWebSocketStream 包装一条已建立的 websocket 连接。
func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

// Send 推送一条完整消息。
func (s *WebSocketStream) Send(_ context.Context, msg Message) error {
	msg.Partial = false
	return s.writeJSON(msg)
}

// SendPartial 推送一条进度消息。
func (s *WebSocketStream) SendPartial(_ context.Context, msg Message) error {
	msg.Partial = true
	return s.writeJSON(msg)
}

// Receive 阻塞读取下一条文本消息。
func (s *WebSocketStream) Receive(_ context.Context) (string, error) {
	var incoming struct {
		Message string `json:"message"`
	}
	if err := s.conn.ReadJSON(&incoming); err != nil {
		return "", err
	}
	return incoming.Message, nil
}

// Close 关闭底层连接。
func (s *WebSocketStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *WebSocketStream) writeJSON(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

var _ MessageStream = (*WebSocketStream)(nil)
