package lifi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
	"github.com/zer0-os/ZAI/internal/wallet"
)

const (
	// Namespace identifies the adapter inside the wallet registry.
	Namespace = "lifi"

	defaultBaseURL  = "https://li.quest/v1"
	defaultSlippage = 0.5
	defaultTimeout  = 30 * time.Second
)

// CodeQuoteFailure 表示从 LiFi 获取报价或代币信息失败。
const CodeQuoteFailure xerrors.Code = "QUOTE_FAILED"

func init() {
	xerrors.Register(CodeQuoteFailure, xerrors.Attributes{
		Message:   "failed to fetch quote",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}

// Adapter 通过 LiFi 聚合器完成同链兑换与跨链桥接。
type Adapter struct {
	wallet     *wallet.Wallet
	baseURL    string
	slippage   float64
	httpClient *http.Client
}

// Option 定义可选的适配器配置。
type Option func(*Adapter)

// WithBaseURL 覆盖 LiFi API 地址，主要用于测试。
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		a.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithSlippage 设置报价允许的滑点百分比。
func WithSlippage(slippage float64) Option {
	return func(a *Adapter) {
		if slippage > 0 {
			a.slippage = slippage
		}
	}
}

// WithHTTPClient 覆盖 HTTP 客户端。
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// New 创建 LiFi 适配器。
func New(w *wallet.Wallet, opts ...Option) *Adapter {
	a := &Adapter{
		wallet:     w,
		baseURL:    defaultBaseURL,
		slippage:   defaultSlippage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Namespace 实现 wallet.Adapter。
func (a *Adapter) Namespace() string {
	return Namespace
}

// TokenInfo 查询指定链上代币的元信息（精度、符号等）。
func (a *Adapter) TokenInfo(ctx context.Context, chainID int64, token string) (*TokenInfo, error) {
	query := url.Values{}
	query.Set("chain", strconv.FormatInt(chainID, 10))
	query.Set("token", token)

	var info TokenInfo
	if err := a.getJSON(ctx, "/token", query, &info); err != nil {
		return nil, err
	}
	if info.Decimals <= 0 && !strings.EqualFold(info.Symbol, "ETH") {
		return nil, xerrors.New(CodeQuoteFailure, fmt.Sprintf("代币 %s 信息缺少精度", token))
	}
	return &info, nil
}

// Quote 向 LiFi 请求一笔兑换报价。
func (a *Adapter) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	from, err := a.wallet.Address()
	if err != nil {
		return nil, err
	}
	amount, err := wallet.ToBaseUnits(params.Amount, params.FromToken.Decimals)
	if err != nil {
		return nil, err
	}
	toChain := params.ToChainID
	if toChain == 0 {
		toChain = params.FromChainID
	}

	query := url.Values{}
	query.Set("fromChain", strconv.FormatInt(params.FromChainID, 10))
	query.Set("toChain", strconv.FormatInt(toChain, 10))
	query.Set("fromToken", params.FromToken.Address)
	query.Set("toToken", params.ToToken.Address)
	query.Set("fromAmount", amount.String())
	query.Set("fromAddress", from.Hex())
	query.Set("slippage", strconv.FormatFloat(a.slippage/100, 'f', -1, 64))

	var quote Quote
	if err := a.getJSON(ctx, "/quote", query, &quote); err != nil {
		return nil, err
	}
	if quote.Estimate.ToAmount == "" || len(quote.Estimate.GasCosts) == 0 {
		return nil, xerrors.New(CodeQuoteFailure, "LiFi 返回的报价不完整")
	}
	if quote.TransactionRequest.To == "" {
		return nil, xerrors.New(CodeQuoteFailure, "LiFi 报价缺少交易请求")
	}
	return &quote, nil
}

// Swap 依据报价构造 EIP-1559 交易并执行，进度通过 progress 回调上报。
func (a *Adapter) Swap(ctx context.Context, quote *Quote, progress func(Update)) (*wallet.TransferResult, error) {
	if quote == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "报价不能为空")
	}
	if progress == nil {
		progress = func(Update) {}
	}

	from, err := a.wallet.Address()
	if err != nil {
		return nil, err
	}

	request := quote.TransactionRequest
	if !common.IsHexAddress(request.To) {
		return nil, xerrors.New(CodeQuoteFailure, fmt.Sprintf("报价中的目标地址无效: %s", request.To))
	}
	to := common.HexToAddress(request.To)

	data, err := hexutil.Decode(request.Data)
	if err != nil {
		return nil, xerrors.Wrap(CodeQuoteFailure, err, "解析报价 calldata 失败")
	}
	value, err := parseQuantity(request.Value)
	if err != nil {
		return nil, xerrors.Wrap(CodeQuoteFailure, err, "解析报价金额失败")
	}

	gasCost := quote.Estimate.GasCosts[0]
	gasPrice, err := parseQuantity(gasCost.Price)
	if err != nil {
		return nil, xerrors.Wrap(CodeQuoteFailure, err, "解析报价 gas price 失败")
	}
	gasLimit, err := parseQuantity(gasCost.Estimate)
	if err != nil {
		return nil, xerrors.Wrap(CodeQuoteFailure, err, "解析报价 gas 估算失败")
	}
	// Tip set to 10% of the quoted price, mirroring the LiFi reference flow.
	tip := new(big.Int).Div(gasPrice, big.NewInt(10))

	nonce, err := a.wallet.Client().PendingNonceAt(ctx, from)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, "查询 nonce 失败")
	}

	tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   big.NewInt(request.ChainID),
		Nonce:     nonce,
		To:        &to,
		Value:     value,
		Gas:       gasLimit.Uint64(),
		GasFeeCap: gasPrice,
		GasTipCap: tip,
		Data:      data,
	})

	signed, err := a.wallet.SignTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := a.wallet.Client().SendTransaction(ctx, signed); err != nil {
		return nil, xerrors.Wrap(wallet.CodeTransferFailure, err, "广播兑换交易失败")
	}

	progress(Update{
		Status:  "pending",
		Message: "Transaction submitted, waiting for confirmation...",
		TxHash:  signed.Hash().Hex(),
	})

	receipt, err := a.wallet.Client().WaitMined(ctx, signed.Hash())
	if err != nil {
		return nil, xerrors.Wrap(wallet.CodeTransferFailure, err, "等待兑换交易上链失败")
	}

	result := &wallet.TransferResult{
		TxHash: receipt.TxHash.Hex(),
		Status: wallet.StatusSuccess,
	}
	message := "Transaction confirmed"
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		result.Status = wallet.StatusFailed
		message = "Transaction failed"
	}
	progress(Update{Status: result.Status, Message: message, TxHash: result.TxHash})
	return result, nil
}

func (a *Adapter) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return xerrors.Wrap(CodeQuoteFailure, err, "构建 LiFi 请求失败")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(CodeQuoteFailure, err, "请求 LiFi 失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return xerrors.New(CodeQuoteFailure,
			fmt.Sprintf("LiFi 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrap(CodeQuoteFailure, err, "解析 LiFi 响应失败")
	}
	return nil
}

// parseQuantity accepts both 0x-prefixed and decimal quantity strings,
// which the LiFi API mixes freely.
func parseQuantity(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return big.NewInt(0), nil
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		return hexutil.DecodeBig(raw)
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("无法解析数量: %s", raw)
	}
	return value, nil
}
