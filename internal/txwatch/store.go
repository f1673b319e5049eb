package txwatch

import "context"

// Store 抽象了交易记录的持久化接口。
type Store interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Claim(ctx context.Context, id string) (*Record, error)
	MarkConfirmed(ctx context.Context, id string, confirmation Confirmation) error
	MarkFailed(ctx context.Context, id string, lastError string, terminal bool) error
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	Stats(ctx context.Context, opts ListOptions) (RecordStats, error)
	Close() error
}
