package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zer0-os/ZAI/internal/llm"
	"github.com/zer0-os/ZAI/internal/memory"
)

// MessageRepository 将会话消息写入 MySQL，实现 memory.Archive。
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository 创建连接池并执行数据库迁移。
func NewMessageRepository(ctx context.Context, cfg Config) (*MessageRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &MessageRepository{db: db}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewMessageRepositoryWithDB 复用既有连接，适合与 TxStore 共享连接池。
func NewMessageRepositoryWithDB(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// SaveMessage 追加一条会话消息。
func (r *MessageRepository) SaveMessage(ctx context.Context, sessionID string, msg llm.Message) error {
	var toolCalls sql.NullString
	if len(msg.ToolCalls) > 0 {
		encoded, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("序列化工具调用失败: %w", err)
		}
		toolCalls = sql.NullString{String: string(encoded), Valid: true}
	}

	const stmt = `INSERT INTO messages (session_id, role, content, tool_calls, tool_call_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, stmt,
		sessionID, msg.Role, msg.Content, toolCalls, msg.ToolCallID, time.Now().Unix()); err != nil {
		return fmt.Errorf("写入会话消息失败: %w", err)
	}
	return nil
}

// Messages 按时间顺序返回会话最近的消息。
func (r *MessageRepository) Messages(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id FROM messages
         WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询会话消息失败: %w", err)
	}
	defer rows.Close()

	var reversed []llm.Message
	for rows.Next() {
		var (
			msg       llm.Message
			toolCalls sql.NullString
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCalls, &msg.ToolCallID); err != nil {
			return nil, fmt.Errorf("解析会话消息失败: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("解析工具调用失败: %w", err)
			}
		}
		reversed = append(reversed, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历会话消息失败: %w", err)
	}

	messages := make([]llm.Message, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		messages = append(messages, reversed[i])
	}
	return messages, nil
}

// Close 关闭底层数据库连接。
func (r *MessageRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// ensure interface compliance at compile time
var _ memory.Archive = (*MessageRepository)(nil)
