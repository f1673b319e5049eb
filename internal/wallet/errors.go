package wallet

import (
	xerrors "github.com/zer0-os/ZAI/internal/errors"
)

var (
	// ErrWalletLocked 表示钱包未加载私钥，无法执行签名操作。
	ErrWalletLocked = xerrors.New(CodeWalletLocked, "wallet not initialized with private key")
	// ErrInvalidAddress 表示提供的地址不是合法的以太坊地址。
	ErrInvalidAddress = xerrors.New(CodeInvalidAddress, "invalid address")
	// ErrAdapterNotFound 表示请求的适配器命名空间未注册。
	ErrAdapterNotFound = xerrors.New(CodeAdapterNotFound, "adapter not found")
	// ErrAdapterConflict 表示适配器命名空间发生冲突。
	ErrAdapterConflict = xerrors.New(CodeAdapterConflict, "adapter namespace conflict")
)

const (
	CodeWalletLocked    xerrors.Code = "WALLET_LOCKED"
	CodeInvalidAddress  xerrors.Code = "INVALID_ADDRESS"
	CodeKeyLoadFailure  xerrors.Code = "KEY_LOAD_FAILED"
	CodeTransferFailure xerrors.Code = "TRANSFER_FAILED"
	CodeBalanceFailure  xerrors.Code = "BALANCE_QUERY_FAILED"
	CodeAdapterNotFound xerrors.Code = "ADAPTER_NOT_FOUND"
	CodeAdapterConflict xerrors.Code = "ADAPTER_CONFLICT"
)

func init() {
	xerrors.Register(CodeWalletLocked, xerrors.Attributes{
		Message:   "wallet not initialized with private key",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeInvalidAddress, xerrors.Attributes{
		Message:   "invalid address",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeKeyLoadFailure, xerrors.Attributes{
		Message:   "failed to load wallet key",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeTransferFailure, xerrors.Attributes{
		Message:   "transfer failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeBalanceFailure, xerrors.Attributes{
		Message:   "balance query failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodeAdapterNotFound, xerrors.Attributes{
		Message:   "adapter not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeAdapterConflict, xerrors.Attributes{
		Message:   "adapter namespace conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}
