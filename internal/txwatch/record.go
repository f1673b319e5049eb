package txwatch

import (
	stdErrors "errors"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
)

// Status 表示交易记录在确认流程中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusChecking  Status = "checking"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Kind 区分记录对应的业务操作。
const (
	KindTransfer = "transfer"
	KindSwap     = "swap"
)

// Confirmation 保存交易上链后的回执摘要。
type Confirmation struct {
	BlockNumber string `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	Reverted    bool   `json:"reverted"`
}

// Record 描述一笔等待确认的链上交易。
type Record struct {
	ID           string        `json:"id"`
	TxHash       string        `json:"transaction_hash"`
	Kind         string        `json:"kind"`
	Chain        string        `json:"chain"`
	FromAddress  string        `json:"from_address"`
	ToAddress    string        `json:"to_address"`
	TokenAddress string        `json:"token_address,omitempty"`
	Amount       string        `json:"amount"`
	Status       Status        `json:"status"`
	Attempts     int           `json:"attempts"`
	MaxRetries   int           `json:"max_retries"`
	LastError    string        `json:"last_error,omitempty"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
	CreatedAt    int64         `json:"created_at"`
	UpdatedAt    int64         `json:"updated_at"`
}

var (
	// ErrRecordNotFound 表示指定的交易记录不存在。
	ErrRecordNotFound = xerrors.New(CodeTxNotFound, "transaction record not found")
	// ErrRecordConflict 表示记录在当前状态下无法进行所请求的操作。
	ErrRecordConflict = xerrors.New(CodeTxConflict, "transaction record conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrRecordConfirmed 表示记录已经确认完成。
	ErrRecordConfirmed = xerrors.New(CodeTxConfirmed, "transaction already confirmed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrRecordExhausted 表示记录的确认重试次数已经耗尽。
	ErrRecordExhausted = xerrors.New(CodeTxExhausted, "transaction confirmation retries exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeTxNotFound   xerrors.Code = "TX_NOT_FOUND"
	CodeTxConflict   xerrors.Code = "TX_CONFLICT"
	CodeTxConfirmed  xerrors.Code = "TX_CONFIRMED"
	CodeTxExhausted  xerrors.Code = "TX_RETRIES_EXHAUSTED"
	CodeTxValidation xerrors.Code = "TX_VALIDATION_FAILED"
	CodeTxPublish    xerrors.Code = "TX_PUBLISH_FAILED"
	CodeTxWatch      xerrors.Code = "TX_WATCH_FAILED"
)

func init() {
	xerrors.Register(CodeTxNotFound, xerrors.Attributes{
		Message:   "transaction record not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTxConflict, xerrors.Attributes{
		Message:   "transaction record conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTxConfirmed, xerrors.Attributes{
		Message:   "transaction already confirmed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTxExhausted, xerrors.Attributes{
		Message:   "transaction confirmation retries exhausted",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeTxValidation, xerrors.Attributes{
		Message:   "transaction record validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTxPublish, xerrors.Attributes{
		Message:   "failed to enqueue transaction record",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeTxWatch, xerrors.Attributes{
		Message:   "transaction confirmation failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
}

// IsRecordError 判断错误是否为指定的交易记录错误。
func IsRecordError(err error, target xerrors.Code) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, ErrRecordNotFound) {
		return target == CodeTxNotFound
	}
	if stdErrors.Is(err, ErrRecordConflict) {
		return target == CodeTxConflict
	}
	if stdErrors.Is(err, ErrRecordConfirmed) {
		return target == CodeTxConfirmed
	}
	if stdErrors.Is(err, ErrRecordExhausted) {
		return target == CodeTxExhausted
	}
	return false
}

// IsValidStatus 检查给定的记录状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusChecking, StatusConfirmed, StatusFailed:
		return true
	default:
		return false
	}
}
