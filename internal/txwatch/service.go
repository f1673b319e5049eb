package txwatch

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
	"github.com/zer0-os/ZAI/pkg/logger"
)

// Service 负责交易记录的登记与查询。
type Service struct {
	store      Store
	producer   Producer
	chain      string
	maxRetries int
}

// NewService 构造交易记录服务。
func NewService(store Store, producer Producer, chain string, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = 30
	}
	return &Service{store: store, producer: producer, chain: chain, maxRetries: maxRetries}
}

// Watch 登记一笔已广播的交易并推送到确认队列。
func (s *Service) Watch(ctx context.Context, kind, txHash, from, to, token, amount string) error {
	if strings.TrimSpace(txHash) == "" {
		return xerrors.New(CodeTxValidation, "交易哈希不能为空")
	}
	if s.store == nil || s.producer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "交易记录服务未初始化")
	}
	if kind != KindTransfer && kind != KindSwap {
		kind = KindTransfer
	}

	record := &Record{
		ID:           uuid.NewString(),
		TxHash:       txHash,
		Kind:         kind,
		Chain:        s.chain,
		FromAddress:  from,
		ToAddress:    to,
		TokenAddress: token,
		Amount:       amount,
		Status:       StatusPending,
		Attempts:     0,
		MaxRetries:   s.maxRetries,
	}
	if err := s.store.Create(ctx, record); err != nil {
		if stdErrors.Is(err, ErrRecordConflict) {
			return nil
		}
		return err
	}
	if err := s.producer.Publish(ctx, record.ID); err != nil {
		logger.L().Error("记录入队失败", slog.Any("error", err), slog.String("record_id", record.ID))
		wrapped := xerrors.Wrap(CodeTxPublish, err, "发布记录到队列失败")
		_ = s.store.MarkFailed(ctx, record.ID, wrapped.Error(), true)
		return wrapped
	}
	logger.Audit().Info("交易记录入队",
		slog.String("record_id", record.ID),
		slog.String("tx_hash", txHash),
		slog.String("kind", kind),
		slog.String("chain", s.chain),
	)
	return nil
}

// Get 返回指定记录。
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "交易记录存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的记录列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Record, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "交易记录存储未初始化")
	}
	options := buildListOptions(opts)
	return s.store.List(ctx, options)
}

// Stats 返回符合过滤条件的记录统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (RecordStats, error) {
	if s.store == nil {
		return RecordStats{}, xerrors.New(xerrors.CodeInitializationFailure, "交易记录存储未初始化")
	}
	options := buildListOptions(opts)
	return s.store.Stats(ctx, options)
}

// Close 释放资源。
func (s *Service) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return err
		}
	}
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
