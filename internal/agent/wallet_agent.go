package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zer0-os/ZAI/internal/llm"
	"github.com/zer0-os/ZAI/internal/stream"
	"github.com/zer0-os/ZAI/internal/tokens"
	"github.com/zer0-os/ZAI/internal/wallet"
	"github.com/zer0-os/ZAI/internal/wallet/lifi"
)

// Wallet agent tool names.
const (
	walletAgentName   = "WalletAgent"
	toolTransferTo    = "transfer_to_wallet_agent"
	toolGetAddress    = "get_address"
	toolGetBalances   = "get_balances"
	toolTransfer      = "transfer"
	toolSwap          = "swap"
	transferKindLabel = "transfer"
	swapKindLabel     = "swap"
)

// TxRecorder 在交易广播后登记一条待确认记录。
type TxRecorder interface {
	Watch(ctx context.Context, kind, txHash, from, to, token, amount string) error
}

// WalletAgent 负责钱包相关操作：查询余额、转账和代币兑换。
type WalletAgent struct {
	wallet    *wallet.Wallet
	directory tokens.Resolver
	recorder  TxRecorder
}

// WalletAgentOption 定义钱包智能体的可选配置。
type WalletAgentOption func(*WalletAgent)

// WithTokenDirectory 提供符号到代币的静态目录。
func WithTokenDirectory(directory tokens.Resolver) WalletAgentOption {
	return func(a *WalletAgent) {
		a.directory = directory
	}
}

// WithTxRecorder 提供交易登记器，广播后的交易交由后台确认。
func WithTxRecorder(recorder TxRecorder) WalletAgentOption {
	return func(a *WalletAgent) {
		a.recorder = recorder
	}
}

// NewWalletAgent 创建钱包智能体。
func NewWalletAgent(w *wallet.Wallet, opts ...WalletAgentOption) *WalletAgent {
	a := &WalletAgent{wallet: w}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Name 实现 Agent。
func (a *WalletAgent) Name() string {
	return walletAgentName
}

// SystemPrompt 实现 Agent。
func (a *WalletAgent) SystemPrompt() string {
	return "You are a wallet agent that can perform operations on a wallet."
}

// TransferTool 实现 Agent。
func (a *WalletAgent) TransferTool() llm.Tool {
	return llm.Tool{
		Name: toolTransferTo,
		Description: "Transfer control to the wallet agent for handling wallet operations. " +
			"keywords: swap, balance, transfer, wallet, address. " +
			`examples: ["swap 0.1 ETH to USDC", "check my balance", "transfer 100 USDC to 0x..."]`,
		Parameters: objectSchema(nil, nil),
	}
}

// Tools 实现 Agent。
func (a *WalletAgent) Tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        toolGetAddress,
			Description: "Get the wallet's account address for receiving deposits.",
			Parameters:  objectSchema(nil, nil),
		},
		{
			Name:        toolGetBalances,
			Description: "Get the balance of all tokens in the wallet.",
			Parameters:  objectSchema(nil, nil),
		},
		{
			Name:        toolTransfer,
			Description: "Transfer tokens to a specified address. Blocks until the transaction is mined.",
			Parameters: objectSchema(
				[]string{"to_address", "amount"},
				map[string]any{
					"token_address": stringProperty("The address of the token to transfer. Leave empty for native ETH."),
					"to_address":    stringProperty("The recipient's address."),
					"amount":        stringProperty("The amount to transfer, in token units, as a decimal string."),
				},
			),
		},
		{
			Name:        toolSwap,
			Description: "Swap one token for another via the LiFi aggregator.",
			Parameters: objectSchema(
				[]string{"token_in", "token_out", "amount_in"},
				map[string]any{
					"token_in":  stringProperty("Symbol or address of the token to swap from."),
					"token_out": stringProperty("Symbol or address of the token to swap to."),
					"amount_in": stringProperty("The amount of input token to swap, in token units, as a decimal string."),
				},
			),
		},
	}
}

// Invoke 实现 Agent。
func (a *WalletAgent) Invoke(ctx context.Context, call llm.ToolCall) (string, error) {
	switch call.Function.Name {
	case toolGetAddress:
		return a.getAddress()
	case toolGetBalances:
		return a.getBalances(ctx)
	case toolTransfer:
		return a.transfer(ctx, call.Function.Arguments)
	case toolSwap:
		return a.swap(ctx, call.Function.Arguments)
	default:
		return "", ErrUnknownTool(call.Function.Name)
	}
}

func (a *WalletAgent) getAddress() (string, error) {
	addr, err := a.wallet.Address()
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

func (a *WalletAgent) getBalances(ctx context.Context) (string, error) {
	balances, err := a.wallet.Balances(ctx)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(balances)
	if err != nil {
		return "", fmt.Errorf("序列化余额失败: %w", err)
	}
	return string(encoded), nil
}

func (a *WalletAgent) transfer(ctx context.Context, rawArgs string) (string, error) {
	var args struct {
		TokenAddress string `json:"token_address"`
		ToAddress    string `json:"to_address"`
		Amount       string `json:"amount"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("解析转账参数失败: %w", err)
	}

	result, err := a.wallet.Transfer(ctx, args.ToAddress, args.Amount, args.TokenAddress)
	if err != nil {
		return "", err
	}
	a.record(ctx, transferKindLabel, result.TxHash, args.ToAddress, args.TokenAddress, args.Amount)

	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化转账结果失败: %w", err)
	}
	return string(encoded), nil
}

func (a *WalletAgent) swap(ctx context.Context, rawArgs string) (string, error) {
	var args struct {
		TokenIn  string `json:"token_in"`
		TokenOut string `json:"token_out"`
		AmountIn string `json:"amount_in"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("解析兑换参数失败: %w", err)
	}

	adapter, err := a.lifiAdapter()
	if err != nil {
		return "", err
	}
	chainID, err := a.wallet.Client().ChainID(ctx)
	if err != nil {
		return "", err
	}

	fromToken, err := a.resolveToken(ctx, adapter, chainID.Int64(), args.TokenIn)
	if err != nil {
		return "", err
	}
	toToken, err := a.resolveToken(ctx, adapter, chainID.Int64(), args.TokenOut)
	if err != nil {
		return "", err
	}

	quote, err := adapter.Quote(ctx, lifi.QuoteParams{
		FromChainID: chainID.Int64(),
		FromToken:   fromToken,
		ToToken:     toToken,
		Amount:      args.AmountIn,
	})
	if err != nil {
		return "", err
	}

	result, err := adapter.Swap(ctx, quote, func(update lifi.Update) {
		stream.Notify(ctx, stream.Message{
			Type:    stream.TypeProgress,
			Content: update.Message,
			TxHash:  update.TxHash,
		})
	})
	if err != nil {
		return "", err
	}
	a.record(ctx, swapKindLabel, result.TxHash, quote.TransactionRequest.To, fromToken.Address, args.AmountIn)

	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化兑换结果失败: %w", err)
	}
	return string(encoded), nil
}

// resolveToken 接受代币符号或地址：目录能解析的符号直接使用，
// 其余交给 LiFi 的 /token 接口查询。
func (a *WalletAgent) resolveToken(ctx context.Context, adapter *lifi.Adapter, chainID int64, value string) (lifi.TokenInfo, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return lifi.TokenInfo{}, fmt.Errorf("代币不能为空")
	}
	if a.directory != nil {
		if token, ok := a.directory.Resolve(value); ok && (token.ChainID == 0 || token.ChainID == chainID) {
			return lifi.TokenInfo{
				Address:  token.Address,
				Symbol:   token.Symbol,
				Decimals: token.Decimals,
				ChainID:  chainID,
				Name:     token.Name,
			}, nil
		}
	}
	info, err := adapter.TokenInfo(ctx, chainID, value)
	if err != nil {
		return lifi.TokenInfo{}, err
	}
	return *info, nil
}

func (a *WalletAgent) lifiAdapter() (*lifi.Adapter, error) {
	raw, err := a.wallet.Adapter(lifi.Namespace)
	if err != nil {
		return nil, err
	}
	adapter, ok := raw.(*lifi.Adapter)
	if !ok {
		return nil, fmt.Errorf("命名空间 %s 下注册的不是 LiFi 适配器", lifi.Namespace)
	}
	return adapter, nil
}

func (a *WalletAgent) record(ctx context.Context, kind, txHash, to, token, amount string) {
	if a.recorder == nil || txHash == "" {
		return
	}
	from := ""
	if addr, err := a.wallet.Address(); err == nil {
		from = addr.Hex()
	}
	// Bookkeeping only, a failure here must not fail the user's operation.
	_ = a.recorder.Watch(ctx, kind, txHash, from, to, token, amount)
}

var _ Agent = (*WalletAgent)(nil)
