package memory

import (
	"context"
	"sync"

	"github.com/zer0-os/ZAI/internal/llm"
)

// defaultDepth 是单个会话保留的最近消息数量。
const defaultDepth = 20

// Archive 将消息落盘，供历史查询与审计使用。
type Archive interface {
	SaveMessage(ctx context.Context, sessionID string, msg llm.Message) error
	Messages(ctx context.Context, sessionID string, limit int) ([]llm.Message, error)
}

// Manager 维护每个会话的消息窗口。窗口之外的消息仅保留在归档中。
type Manager struct {
	depth   int
	archive Archive

	mu       sync.RWMutex
	sessions map[string][]llm.Message
}

// Option 定义可选配置。
type Option func(*Manager)

// WithArchive 为管理器附加持久化归档。
func WithArchive(archive Archive) Option {
	return func(m *Manager) {
		m.archive = archive
	}
}

// NewManager 创建消息管理器。depth 为每个会话保留的消息数量上限。
func NewManager(depth int, opts ...Option) *Manager {
	if depth <= 0 {
		depth = defaultDepth
	}
	m := &Manager{
		depth:    depth,
		sessions: make(map[string][]llm.Message),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Append 向会话追加一条消息，必要时裁剪窗口。
func (m *Manager) Append(ctx context.Context, sessionID string, msg llm.Message) error {
	m.mu.Lock()
	window := append(m.sessions[sessionID], msg)
	if len(window) > m.depth {
		window = window[len(window)-m.depth:]
		// 裁剪不能落在工具调用组中间：发起调用的 assistant 消息被
		// 裁掉后，开头残留的 tool 回复会被 Chat Completions 拒绝。
		for len(window) > 0 && window[0].Role == llm.RoleTool {
			window = window[1:]
		}
	}
	m.sessions[sessionID] = window
	m.mu.Unlock()

	if m.archive != nil && msg.Role != llm.RoleSystem {
		return m.archive.SaveMessage(ctx, sessionID, msg)
	}
	return nil
}

// History 返回会话当前窗口内的消息副本。
func (m *Manager) History(sessionID string) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	window := m.sessions[sessionID]
	out := make([]llm.Message, len(window))
	copy(out, window)
	return out
}

// Reset 清空会话窗口，归档不受影响。
func (m *Manager) Reset(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
