package api

import (
	"sync"

	"github.com/zer0-os/ZAI/internal/observability/metrics"
)

// defaultMaxConnections 限制同时在线的 websocket 会话数量。
const defaultMaxConnections = 1000

// ConnectionManager 统计在线的 websocket 会话并执行上限控制。
type ConnectionManager struct {
	mu     sync.Mutex
	active int
	limit  int
}

// NewConnectionManager 创建连接管理器。
func NewConnectionManager(limit int) *ConnectionManager {
	if limit <= 0 {
		limit = defaultMaxConnections
	}
	return &ConnectionManager{limit: limit}
}

// Acquire 尝试占用一个连接名额，超过上限时返回 false。
func (m *ConnectionManager) Acquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active >= m.limit {
		return false
	}
	m.active++
	metrics.SetActiveConnections(int64(m.active))
	return true
}

// Release 归还连接名额。
func (m *ConnectionManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active > 0 {
		m.active--
	}
	metrics.SetActiveConnections(int64(m.active))
}

// Active 返回当前在线会话数量。
func (m *ConnectionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
