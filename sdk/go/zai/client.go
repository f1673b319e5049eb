package zai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the ZAI REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu     sync.RWMutex
	apiKey string
}

// ChatRequest represents the payload sent to the chat endpoint. SessionID may
// be empty, in which case the server allocates a new session.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatReply contains the agent's response and the session it belongs to.
type ChatReply struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// WalletAddress is the deposit address of the daemon's wallet.
type WalletAddress struct {
	Address string `json:"address"`
}

// Transaction mirrors a transaction record tracked by the daemon.
type Transaction struct {
	ID           string `json:"id"`
	TxHash       string `json:"tx_hash"`
	Kind         string `json:"kind"`
	Chain        string `json:"chain"`
	FromAddress  string `json:"from_address"`
	ToAddress    string `json:"to_address,omitempty"`
	TokenAddress string `json:"token_address,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts"`
	MaxRetries   int    `json:"max_retries"`
	LastError    string `json:"last_error,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// TransactionFilter narrows down the transaction listing.
type TransactionFilter struct {
	Limit  int
	Status string
	Kind   string
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("zai api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the ZAI API. When httpClient is nil, a
// default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAPIKey stores the key sent with subsequent requests. The daemon only
// checks it when auth mode is enabled.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

// APIKey returns the currently stored key.
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// Chat sends a message to the agent and returns its reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	var reply ChatReply
	if err := c.post(ctx, "/api/v1/chat", req, &reply); err != nil {
		return ChatReply{}, err
	}
	return reply, nil
}

// Address fetches the wallet deposit address.
func (c *Client) Address(ctx context.Context) (WalletAddress, error) {
	var addr WalletAddress
	if err := c.get(ctx, "/api/v1/wallet/address", &addr); err != nil {
		return WalletAddress{}, err
	}
	return addr, nil
}

// Balances returns the wallet's token balances keyed by symbol.
func (c *Client) Balances(ctx context.Context) (map[string]string, error) {
	balances := map[string]string{}
	if err := c.get(ctx, "/api/v1/wallet/balances", &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

// Transactions lists tracked transactions matching the filter.
func (c *Client) Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	query := url.Values{}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Kind != "" {
		query.Set("kind", filter.Kind)
	}
	endpoint := "/api/v1/transactions"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var records []Transaction
	if err := c.get(ctx, endpoint, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if key := c.APIKey(); key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
