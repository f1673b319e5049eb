package txwatch

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
	"github.com/zer0-os/ZAI/internal/observability/alerting"
	"github.com/zer0-os/ZAI/internal/observability/metrics"
	"github.com/zer0-os/ZAI/internal/web3"
	"github.com/zer0-os/ZAI/pkg/logger"
)

// Watcher 从队列消费交易记录并轮询链上回执。
// 未上链的记录会被重新投递，直到确认或重试耗尽。
type Watcher struct {
	client       web3.Client
	store        Store
	consumer     Consumer
	producer     Producer
	workerCount  int
	pollInterval time.Duration
	logger       *slog.Logger
	alerter      alerting.Dispatcher
}

// WatcherOption 定义可选配置。
type WatcherOption func(*Watcher)

// WithWatcherLogger 指定日志输出。
func WithWatcherLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) WatcherOption {
	return func(w *Watcher) {
		if workers > 0 {
			w.workerCount = workers
		}
	}
}

// WithPollInterval 设置回执轮询间隔。
func WithPollInterval(interval time.Duration) WatcherOption {
	return func(w *Watcher) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) WatcherOption {
	return func(w *Watcher) {
		w.alerter = dispatcher
	}
}

// NewWatcher 构造 Watcher。
func NewWatcher(client web3.Client, store Store, consumer Consumer, producer Producer, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		client:       client,
		store:        store,
		consumer:     consumer,
		producer:     producer,
		workerCount:  1,
		pollInterval: 2 * time.Second,
		logger:       logger.Named("txwatch"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Start 启动确认循环，阻塞直到上下文取消。
func (w *Watcher) Start(ctx context.Context) error {
	if w.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置记录消费者")
	}
	return w.consumer.Consume(ctx, w.workerCount, w.handle)
}

func (w *Watcher) handle(ctx context.Context, recordID string) error {
	if w.store == nil || w.client == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "监听器未初始化")
	}
	record, err := w.store.Claim(ctx, recordID)
	if err != nil {
		if IsRecordError(err, CodeTxNotFound) || IsRecordError(err, CodeTxConfirmed) {
			w.logger.Debug("跳过记录", slog.String("record_id", recordID), slog.String("reason", err.Error()))
			return nil
		}
		if IsRecordError(err, CodeTxExhausted) {
			w.emitAlert(ctx, record, CodeTxExhausted, err)
			if record != nil {
				metrics.ObserveTransaction(record.Kind, string(StatusFailed))
			}
			return nil
		}
		logger.L().Error("领取记录失败", slog.Any("error", err), slog.String("record_id", recordID))
		return err
	}

	receipt, err := w.client.TransactionReceipt(ctx, common.HexToHash(record.TxHash))
	if err != nil {
		// requeue 统一负责回写待确认状态。
		reason := err.Error()
		if stdErrors.Is(err, gethcore.NotFound) {
			reason = "交易尚未上链"
		}
		return w.requeue(ctx, record, reason)
	}

	confirmation := Confirmation{
		GasUsed:  receipt.GasUsed,
		Reverted: receipt.Status != coretypes.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		confirmation.BlockNumber = receipt.BlockNumber.String()
	}
	if err := w.store.MarkConfirmed(ctx, record.ID, confirmation); err != nil {
		logger.L().Error("标记确认状态失败", slog.Any("error", err), slog.String("record_id", record.ID))
		return err
	}

	metrics.ObserveTransaction(record.Kind, string(StatusConfirmed))
	logger.Audit().Info("交易确认完成",
		slog.String("record_id", record.ID),
		slog.String("tx_hash", record.TxHash),
		slog.String("kind", record.Kind),
		slog.String("block", confirmation.BlockNumber),
		slog.Bool("reverted", confirmation.Reverted),
	)
	if confirmation.Reverted {
		w.emitAlert(ctx, record, CodeTxWatch, stdErrors.New("交易在链上回滚"))
	}
	return nil
}

// requeue 把尚未确认的记录放回队列，等待下一轮轮询。
func (w *Watcher) requeue(ctx context.Context, record *Record, reason string) error {
	if err := w.store.MarkFailed(ctx, record.ID, reason, false); err != nil &&
		!IsRecordError(err, CodeTxNotFound) {
		logger.L().Error("回写待确认状态出错", slog.Any("error", err), slog.String("record_id", record.ID))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.pollInterval):
	}
	if err := w.producer.Publish(ctx, record.ID); err != nil {
		return xerrors.Wrap(CodeTxPublish, err, "记录重新入队失败")
	}
	w.logger.Debug("记录重新入队",
		slog.String("record_id", record.ID),
		slog.Int("attempts", record.Attempts),
		slog.String("reason", reason))
	return nil
}

func (w *Watcher) emitAlert(ctx context.Context, record *Record, code xerrors.Code, cause error) {
	if w == nil || w.alerter == nil || record == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	message := attrs.Message
	if cause != nil {
		message = cause.Error()
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   attrs.Severity,
		TxHash:     record.TxHash,
		Kind:       record.Kind,
		Attempts:   record.Attempts,
		MaxRetries: record.MaxRetries,
		OccurredAt: time.Now(),
	}
	if err := w.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败",
			slog.Any("error", err),
			slog.String("tx_hash", record.TxHash),
		)
	}
}
