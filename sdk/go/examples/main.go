package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/zer0-os/ZAI/sdk/go/zai"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(zai.ChatReply{
			SessionID: "demo-session",
			Reply:     "Your wallet holds 1.25 ETH and 300 USDC.",
		})
	})
	mux.HandleFunc("/api/v1/wallet/address", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(zai.WalletAddress{
			Address: "0x1111111111111111111111111111111111111111",
		})
	})
	mux.HandleFunc("/api/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]zai.Transaction{{
			ID:     "demo-record",
			TxHash: "0xdeadbeef",
			Kind:   "swap",
			Status: "confirmed",
		}})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := zai.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addr, err := client.Address(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("wallet address: %s\n", addr.Address)

	reply, err := client.Chat(ctx, zai.ChatRequest{Message: "what is my balance?"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("agent reply (session=%s): %s\n", reply.SessionID, reply.Reply)

	records, err := client.Transactions(ctx, zai.TransactionFilter{Kind: "swap"})
	if err != nil {
		panic(err)
	}
	for _, record := range records {
		fmt.Printf("swap %s status=%s tx=%s\n", record.ID, record.Status, record.TxHash)
	}
}
