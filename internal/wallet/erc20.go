package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
	"github.com/zer0-os/ZAI/internal/web3"
)

const erc20ABIJSON = `[
  {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
  {"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
  {"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
  {"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("解析 ERC20 ABI 失败: %v", err))
	}
	erc20ABI = parsed
}

// erc20Caller bundles the read-only ERC-20 calls the wallet needs.
type erc20Caller struct {
	client web3.Client
	token  common.Address
}

func (c erc20Caller) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("编码 %s 调用失败", method))
	}
	output, err := c.client.CallContract(ctx, gethcore.CallMsg{To: &c.token, Data: input}, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, fmt.Sprintf("调用 %s 失败", method))
	}
	values, err := erc20ABI.Unpack(method, output)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, fmt.Sprintf("解码 %s 返回值失败", method))
	}
	return values, nil
}

func (c erc20Caller) balanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	values, err := c.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, xerrors.New(xerrors.CodeRPCFailure, "balanceOf 返回了意外类型")
	}
	return balance, nil
}

func (c erc20Caller) decimals(ctx context.Context) (uint8, error) {
	values, err := c.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, xerrors.New(xerrors.CodeRPCFailure, "decimals 返回了意外类型")
	}
	return decimals, nil
}

func (c erc20Caller) symbol(ctx context.Context) (string, error) {
	values, err := c.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := values[0].(string)
	if !ok {
		return "", xerrors.New(xerrors.CodeRPCFailure, "symbol 返回了意外类型")
	}
	return symbol, nil
}

func callMsg(from common.Address, to *common.Address, value *big.Int, data []byte) gethcore.CallMsg {
	return gethcore.CallMsg{From: from, To: to, Value: value, Data: data}
}

// packTransfer encodes an ERC-20 transfer(to, value) call.
func packTransfer(to common.Address, value *big.Int) ([]byte, error) {
	input, err := erc20ABI.Pack("transfer", to, value)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码 transfer 调用失败")
	}
	return input, nil
}
