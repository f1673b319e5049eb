package zai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("unexpected body: %v", err)
		}
		if req.Message != "check my balance" {
			t.Fatalf("unexpected message: %q", req.Message)
		}
		_ = json.NewEncoder(w).Encode(ChatReply{SessionID: "s-1", Reply: "your balance is 1 ETH"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	reply, err := client.Chat(context.Background(), ChatRequest{Message: "check my balance"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.SessionID != "s-1" {
		t.Fatalf("unexpected session: %q", reply.SessionID)
	}
}

func TestAPIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			t.Fatalf("expected api key header, got %q", r.Header.Get("X-API-Key"))
		}
		_ = json.NewEncoder(w).Encode(WalletAddress{Address: "0xabc"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetAPIKey("secret")

	addr, err := client.Address(context.Background())
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if addr.Address != "0xabc" {
		t.Fatalf("unexpected address: %q", addr.Address)
	}
}

func TestTransactionsFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transactions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("limit") != "5" || query.Get("status") != "pending" || query.Get("kind") != "swap" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode([]Transaction{{ID: "r-1", Status: "pending", Kind: "swap"}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	records, err := client.Transactions(context.Background(), TransactionFilter{
		Limit:  5,
		Status: "pending",
		Kind:   "swap",
	})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(records) != 1 || records[0].ID != "r-1" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "未授权的请求", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Balances(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
}
