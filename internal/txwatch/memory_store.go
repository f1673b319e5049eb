package txwatch

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
)

// MemoryStore 以内存方式保存交易记录，主要用于测试与单机模式。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record 不能为空")
	}
	if record.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录 ID 不能为空")
	}
	if _, ok := m.records[record.ID]; ok {
		return ErrRecordConflict
	}
	now := time.Now().Unix()
	if record.CreatedAt == 0 {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	m.records[record.ID] = cloneRecord(record)
	return nil
}

// Get 返回记录。
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(record), nil
}

// Claim 将记录状态更新为确认中。
func (m *MemoryStore) Claim(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	switch record.Status {
	case StatusConfirmed:
		return cloneRecord(record), ErrRecordConfirmed
	case StatusChecking:
		return cloneRecord(record), ErrRecordConflict
	case StatusFailed:
		return cloneRecord(record), ErrRecordExhausted
	}
	if record.Attempts >= record.MaxRetries {
		record.Status = StatusFailed
		record.LastError = "confirmation retries exhausted"
		record.UpdatedAt = time.Now().Unix()
		return cloneRecord(record), ErrRecordExhausted
	}
	record.Status = StatusChecking
	record.Attempts++
	record.UpdatedAt = time.Now().Unix()
	return cloneRecord(record), nil
}

// MarkConfirmed 记录上链回执。
func (m *MemoryStore) MarkConfirmed(_ context.Context, id string, confirmation Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	record.Status = StatusConfirmed
	record.Confirmation = &confirmation
	record.LastError = ""
	record.UpdatedAt = time.Now().Unix()
	return nil
}

// MarkFailed 标记确认失败。terminal 为 false 时记录回到待确认状态等待重试。
func (m *MemoryStore) MarkFailed(_ context.Context, id string, lastError string, terminal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	if terminal {
		record.Status = StatusFailed
	} else {
		record.Status = StatusPending
	}
	record.LastError = lastError
	record.UpdatedAt = time.Now().Unix()
	return nil
}

// List 返回符合过滤条件的记录。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		if !matchesListFilters(record, opts) {
			continue
		}
		results = append(results, cloneRecord(record))
	}

	sort.Slice(results, func(i, j int) bool {
		if opts.Order == SortByUpdatedAsc {
			if results[i].UpdatedAt == results[j].UpdatedAt {
				return results[i].ID < results[j].ID
			}
			return results[i].UpdatedAt < results[j].UpdatedAt
		}
		if results[i].UpdatedAt == results[j].UpdatedAt {
			return results[i].ID < results[j].ID
		}
		return results[i].UpdatedAt > results[j].UpdatedAt
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的记录数量与更新时间范围。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (RecordStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := RecordStats{}
	for _, record := range m.records {
		if !matchesListFilters(record, opts) {
			continue
		}
		stats.Total++
		switch record.Status {
		case StatusPending:
			stats.Pending++
		case StatusChecking:
			stats.Checking++
		case StatusConfirmed:
			stats.Confirmed++
		case StatusFailed:
			stats.Failed++
		}
		if record.UpdatedAt > stats.NewestUpdatedAt {
			stats.NewestUpdatedAt = record.UpdatedAt
		}
		if stats.OldestUpdatedAt == 0 || (record.UpdatedAt != 0 && record.UpdatedAt < stats.OldestUpdatedAt) {
			stats.OldestUpdatedAt = record.UpdatedAt
		}
	}
	if stats.Total == 0 {
		stats.OldestUpdatedAt = 0
		stats.NewestUpdatedAt = 0
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

func cloneRecord(record *Record) *Record {
	clone := *record
	if record.Confirmation != nil {
		confirmationCopy := *record.Confirmation
		clone.Confirmation = &confirmationCopy
	}
	return &clone
}

func matchesListFilters(record *Record, opts ListOptions) bool {
	if len(opts.Statuses) > 0 {
		matched := false
		for _, status := range opts.Statuses {
			if record.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if opts.Kind != "" && record.Kind != opts.Kind {
		return false
	}
	if opts.UpdatedGTE > 0 && record.UpdatedAt < opts.UpdatedGTE {
		return false
	}
	return true
}

// ensure interface compliance at compile time
var _ Store = (*MemoryStore)(nil)
