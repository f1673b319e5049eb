package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
	"github.com/zer0-os/ZAI/internal/web3"
)

// ethTransferGas is the fixed gas cost of a plain value transfer.
const ethTransferGas = 21000

// ethDecimals is the precision of the native token.
const ethDecimals = 18

// StatusSuccess and StatusFailed describe the outcome of a mined transaction.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// TransferResult summarizes a mined transfer.
type TransferResult struct {
	TxHash string `json:"transaction_hash"`
	Status string `json:"status"`
}

// Adapter extends the wallet with protocol specific capabilities (swaps,
// bridges). Each adapter owns a unique namespace.
type Adapter interface {
	Namespace() string
}

// Wallet wraps a chain client and a local account key and provides the
// common operations the agent exposes: transfers, balance queries and
// adapter dispatch.
type Wallet struct {
	client web3.Client
	key    *ecdsa.PrivateKey
	addr   common.Address

	mu       sync.RWMutex
	adapters map[string]Adapter
	tracked  map[common.Address]struct{}
}

// New constructs a wallet around the given chain client. key may be nil,
// in which case the wallet is read-only and signing operations fail with
// ErrWalletLocked.
func New(client web3.Client, key *ecdsa.PrivateKey) *Wallet {
	w := &Wallet{
		client:   client,
		key:      key,
		adapters: make(map[string]Adapter),
		tracked:  make(map[common.Address]struct{}),
	}
	if key != nil {
		w.addr = crypto.PubkeyToAddress(key.PublicKey)
	}
	return w
}

// Client exposes the underlying chain client to adapters.
func (w *Wallet) Client() web3.Client {
	return w.client
}

// Address returns the account address used for deposits.
func (w *Wallet) Address() (common.Address, error) {
	if w.key == nil {
		return common.Address{}, ErrWalletLocked
	}
	return w.addr, nil
}

// AddAdapter registers a new adapter with the wallet.
func (w *Wallet) AddAdapter(adapter Adapter) error {
	if adapter == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "适配器不能为空")
	}
	namespace := adapter.Namespace()
	if namespace == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "适配器命名空间不能为空")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.adapters[namespace]; ok {
		return xerrors.Wrap(CodeAdapterConflict, ErrAdapterConflict, fmt.Sprintf("命名空间 %s 已注册", namespace))
	}
	w.adapters[namespace] = adapter
	return nil
}

// Adapter returns the adapter registered under the namespace.
func (w *Wallet) Adapter(namespace string) (Adapter, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	adapter, ok := w.adapters[namespace]
	if !ok {
		return nil, xerrors.Wrap(CodeAdapterNotFound, ErrAdapterNotFound, fmt.Sprintf("命名空间 %s 未注册", namespace))
	}
	return adapter, nil
}

// Adapters returns all registered adapters ordered by namespace.
func (w *Wallet) Adapters() []Adapter {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.adapters))
	for name := range w.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	adapters := make([]Adapter, 0, len(names))
	for _, name := range names {
		adapters = append(adapters, w.adapters[name])
	}
	return adapters
}

// TrackToken adds an ERC-20 contract to the balance watch list.
func (w *Wallet) TrackToken(address string) error {
	if !common.IsHexAddress(address) {
		return xerrors.Wrap(CodeInvalidAddress, ErrInvalidAddress, fmt.Sprintf("无效的代币地址: %s", address))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracked[common.HexToAddress(address)] = struct{}{}
	return nil
}

// TrackedTokens returns the watched token contract addresses.
func (w *Wallet) TrackedTokens() []common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	tokens := make([]common.Address, 0, len(w.tracked))
	for token := range w.tracked {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Hex() < tokens[j].Hex()
	})
	return tokens
}

// Transfer sends ETH or an ERC-20 token to another address. amount is a
// decimal string in token units; tokenAddress empty means native ETH.
// The call blocks until the transaction is mined.
func (w *Wallet) Transfer(ctx context.Context, toAddress, amount, tokenAddress string) (*TransferResult, error) {
	if w.key == nil {
		return nil, ErrWalletLocked
	}
	if !common.IsHexAddress(toAddress) {
		return nil, xerrors.Wrap(CodeInvalidAddress, ErrInvalidAddress, fmt.Sprintf("无效的收款地址: %s", toAddress))
	}
	to := common.HexToAddress(toAddress)

	nonce, err := w.client.PendingNonceAt(ctx, w.addr)
	if err != nil {
		return nil, xerrors.Wrap(CodeTransferFailure, err, "查询 nonce 失败")
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, xerrors.Wrap(CodeTransferFailure, err, "查询 gas price 失败")
	}

	var tx *coretypes.Transaction
	if tokenAddress != "" {
		if !common.IsHexAddress(tokenAddress) {
			return nil, xerrors.Wrap(CodeInvalidAddress, ErrInvalidAddress, fmt.Sprintf("无效的代币地址: %s", tokenAddress))
		}
		token := common.HexToAddress(tokenAddress)
		caller := erc20Caller{client: w.client, token: token}
		decimals, err := caller.decimals(ctx)
		if err != nil {
			return nil, xerrors.Wrap(CodeTransferFailure, err, "查询代币精度失败")
		}
		value, err := ToBaseUnits(amount, int(decimals))
		if err != nil {
			return nil, err
		}
		input, err := packTransfer(to, value)
		if err != nil {
			return nil, err
		}
		gas, err := w.client.EstimateGas(ctx, callMsg(w.addr, &token, nil, input))
		if err != nil {
			return nil, xerrors.Wrap(CodeTransferFailure, err, "估算代币转账 gas 失败")
		}
		tx = coretypes.NewTx(&coretypes.LegacyTx{
			Nonce:    nonce,
			To:       &token,
			Value:    big.NewInt(0),
			Gas:      gas,
			GasPrice: gasPrice,
			Data:     input,
		})
	} else {
		value, err := ToBaseUnits(amount, ethDecimals)
		if err != nil {
			return nil, err
		}
		tx = coretypes.NewTx(&coretypes.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Value:    value,
			Gas:      ethTransferGas,
			GasPrice: gasPrice,
		})
	}

	receipt, err := w.SendAndWait(ctx, tx)
	if err != nil {
		return nil, err
	}
	result := &TransferResult{
		TxHash: receipt.TxHash.Hex(),
		Status: StatusSuccess,
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		result.Status = StatusFailed
	}
	return result, nil
}

// SignTx signs a prepared transaction with the wallet key.
func (w *Wallet) SignTx(ctx context.Context, tx *coretypes.Transaction) (*coretypes.Transaction, error) {
	if w.key == nil {
		return nil, ErrWalletLocked
	}
	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, "获取链 ID 失败")
	}
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, xerrors.Wrap(CodeTransferFailure, err, "交易签名失败")
	}
	return signed, nil
}

// SendAndWait signs the transaction, broadcasts it and waits until mined.
func (w *Wallet) SendAndWait(ctx context.Context, tx *coretypes.Transaction) (*coretypes.Receipt, error) {
	signed, err := w.SignTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return nil, xerrors.Wrap(CodeTransferFailure, err, "广播交易失败")
	}
	receipt, err := w.client.WaitMined(ctx, signed.Hash())
	if err != nil {
		return nil, xerrors.Wrap(CodeTransferFailure, err, "等待交易上链失败")
	}
	return receipt, nil
}

// Balances returns the ETH balance plus all tracked ERC-20 balances,
// keyed by symbol and rendered in token units.
func (w *Wallet) Balances(ctx context.Context) (map[string]string, error) {
	if w.key == nil {
		return nil, ErrWalletLocked
	}

	ethBalance, err := w.client.BalanceAt(ctx, w.addr)
	if err != nil {
		return nil, xerrors.Wrap(CodeBalanceFailure, err, "查询 ETH 余额失败")
	}
	balances := map[string]string{
		"ETH": FromBaseUnits(ethBalance, ethDecimals),
	}

	for _, token := range w.TrackedTokens() {
		caller := erc20Caller{client: w.client, token: token}
		raw, err := caller.balanceOf(ctx, w.addr)
		if err != nil {
			return nil, xerrors.Wrap(CodeBalanceFailure, err, fmt.Sprintf("查询代币 %s 余额失败", token.Hex()))
		}
		symbol, err := caller.symbol(ctx)
		if err != nil {
			return nil, xerrors.Wrap(CodeBalanceFailure, err, fmt.Sprintf("查询代币 %s 符号失败", token.Hex()))
		}
		decimals, err := caller.decimals(ctx)
		if err != nil {
			return nil, xerrors.Wrap(CodeBalanceFailure, err, fmt.Sprintf("查询代币 %s 精度失败", token.Hex()))
		}
		balances[symbol] = FromBaseUnits(raw, int(decimals))
	}
	return balances, nil
}
