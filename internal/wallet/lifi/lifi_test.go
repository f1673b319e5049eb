package lifi

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
	"github.com/zer0-os/ZAI/internal/wallet"
	"github.com/zer0-os/ZAI/internal/web3"
)

type fakeClient struct {
	chainID *big.Int
	sent    []*coretypes.Transaction
}

func (c *fakeClient) ChainID(context.Context) (*big.Int, error) { return c.chainID, nil }

func (c *fakeClient) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (c *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (c *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *fakeClient) EstimateGas(context.Context, gethcore.CallMsg) (uint64, error) {
	return 21_000, nil
}

func (c *fakeClient) CallContract(context.Context, gethcore.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (c *fakeClient) SendTransaction(_ context.Context, tx *coretypes.Transaction) error {
	c.sent = append(c.sent, tx)
	return nil
}

func (c *fakeClient) TransactionReceipt(context.Context, common.Hash) (*coretypes.Receipt, error) {
	return nil, gethcore.NotFound
}

func (c *fakeClient) WaitMined(_ context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	return &coretypes.Receipt{Status: coretypes.ReceiptStatusSuccessful, TxHash: txHash}, nil
}

func (c *fakeClient) FetchChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{}, nil
}

func (c *fakeClient) Close() {}

var _ web3.Client = (*fakeClient)(nil)

func newTestWallet(t *testing.T) (*wallet.Wallet, *fakeClient) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	client := &fakeClient{chainID: big.NewInt(1)}
	return wallet.New(client, key), client
}

func TestTokenInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("chain") != "1" || query.Get("token") != "USDC" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(TokenInfo{
			Address:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Symbol:   "USDC",
			Decimals: 6,
			ChainID:  1,
		})
	}))
	defer srv.Close()

	w, _ := newTestWallet(t)
	adapter := New(w, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	info, err := adapter.TokenInfo(context.Background(), 1, "USDC")
	if err != nil {
		t.Fatalf("token info: %v", err)
	}
	if info.Decimals != 6 || info.Symbol != "USDC" {
		t.Fatalf("unexpected token info: %+v", info)
	}
}

func TestTokenInfoMissingDecimals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(TokenInfo{Symbol: "BROKEN"})
	}))
	defer srv.Close()

	w, _ := newTestWallet(t)
	adapter := New(w, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	if _, err := adapter.TokenInfo(context.Background(), 1, "BROKEN"); xerrors.CodeOf(err) != CodeQuoteFailure {
		t.Fatalf("expected quote failure, got %v", err)
	}
}

func TestQuoteParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("fromChain") != "1" || query.Get("toChain") != "1" {
			t.Fatalf("unexpected chains: %s", r.URL.RawQuery)
		}
		// 1.5 USDC with 6 decimals.
		if query.Get("fromAmount") != "1500000" {
			t.Fatalf("unexpected fromAmount: %s", query.Get("fromAmount"))
		}
		// Default slippage 0.5% expressed as a fraction.
		if query.Get("slippage") != "0.005" {
			t.Fatalf("unexpected slippage: %s", query.Get("slippage"))
		}
		_ = json.NewEncoder(w).Encode(Quote{
			ID: "quote-1",
			Estimate: Estimate{
				ToAmount: "420000000000000000",
				GasCosts: []GasCost{{Price: "1000000000", Estimate: "250000"}},
			},
			TransactionRequest: TransactionRequest{
				To:      "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE",
				Data:    "0xdeadbeef",
				Value:   "0x0",
				ChainID: 1,
			},
		})
	}))
	defer srv.Close()

	w, _ := newTestWallet(t)
	adapter := New(w, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	quote, err := adapter.Quote(context.Background(), QuoteParams{
		FromChainID: 1,
		FromToken:   TokenInfo{Address: "0xusdc", Decimals: 6},
		ToToken:     TokenInfo{Address: "0xweth", Decimals: 18},
		Amount:      "1.5",
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.ID != "quote-1" {
		t.Fatalf("unexpected quote id: %s", quote.ID)
	}
}

func TestQuoteIncomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Quote{ID: "empty"})
	}))
	defer srv.Close()

	w, _ := newTestWallet(t)
	adapter := New(w, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	_, err := adapter.Quote(context.Background(), QuoteParams{
		FromChainID: 1,
		FromToken:   TokenInfo{Address: "0xusdc", Decimals: 6},
		ToToken:     TokenInfo{Address: "0xweth", Decimals: 18},
		Amount:      "1",
	})
	if xerrors.CodeOf(err) != CodeQuoteFailure {
		t.Fatalf("expected quote failure, got %v", err)
	}
}

func TestSwapBroadcastsDynamicFeeTx(t *testing.T) {
	w, client := newTestWallet(t)
	adapter := New(w)

	quote := &Quote{
		Estimate: Estimate{
			ToAmount: "1",
			GasCosts: []GasCost{{Price: "1000000000", Estimate: "250000"}},
		},
		TransactionRequest: TransactionRequest{
			To:      "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE",
			Data:    "0xdeadbeef",
			Value:   "12345",
			ChainID: 1,
		},
	}

	var updates []Update
	result, err := adapter.Swap(context.Background(), quote, func(u Update) {
		updates = append(updates, u)
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if result.Status != wallet.StatusSuccess {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected 1 broadcast tx, got %d", len(client.sent))
	}

	tx := client.sent[0]
	if tx.Type() != coretypes.DynamicFeeTxType {
		t.Fatalf("expected dynamic fee tx, got type %d", tx.Type())
	}
	if tx.Gas() != 250000 {
		t.Fatalf("unexpected gas limit: %d", tx.Gas())
	}
	if tx.GasFeeCap().String() != "1000000000" {
		t.Fatalf("unexpected fee cap: %s", tx.GasFeeCap())
	}
	// Tip is a tenth of the quoted gas price.
	if tx.GasTipCap().String() != "100000000" {
		t.Fatalf("unexpected tip cap: %s", tx.GasTipCap())
	}
	if tx.Value().String() != "12345" {
		t.Fatalf("unexpected value: %s", tx.Value())
	}

	if len(updates) != 2 {
		t.Fatalf("expected 2 progress updates, got %d", len(updates))
	}
	if updates[0].Status != "pending" || updates[1].Status != wallet.StatusSuccess {
		t.Fatalf("unexpected update sequence: %+v", updates)
	}
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "0"},
		{raw: "12345", want: "12345"},
		{raw: "0x3039", want: "12345"},
	}
	for _, tc := range cases {
		got, err := parseQuantity(tc.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if got.String() != tc.want {
			t.Fatalf("parse %q: got %s, want %s", tc.raw, got, tc.want)
		}
	}
	if _, err := parseQuantity("not-a-number"); err == nil {
		t.Fatal("expected error")
	}
}
