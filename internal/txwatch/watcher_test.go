package txwatch

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
	"github.com/zer0-os/ZAI/internal/web3"
)

// fakeChainClient 在第 pendingRounds 次查询前返回 NotFound，之后返回回执。
// receiptErr 非空时，前 errRounds 次查询返回该错误，模拟节点瞬时故障。
type fakeChainClient struct {
	mu            sync.Mutex
	pendingRounds int
	errRounds     int
	receiptErr    error
	calls         int
	receipt       *coretypes.Receipt
}

func (c *fakeChainClient) TransactionReceipt(context.Context, common.Hash) (*coretypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.receiptErr != nil && c.calls <= c.errRounds {
		return nil, c.receiptErr
	}
	if c.calls <= c.errRounds+c.pendingRounds {
		return nil, gethcore.NotFound
	}
	if c.receipt != nil {
		return c.receipt, nil
	}
	return &coretypes.Receipt{Status: coretypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100), GasUsed: 21000}, nil
}

func (c *fakeChainClient) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (c *fakeChainClient) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (c *fakeChainClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, nil
}

func (c *fakeChainClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (c *fakeChainClient) EstimateGas(context.Context, gethcore.CallMsg) (uint64, error) {
	return 21000, nil
}

func (c *fakeChainClient) CallContract(context.Context, gethcore.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (c *fakeChainClient) SendTransaction(context.Context, *coretypes.Transaction) error { return nil }

func (c *fakeChainClient) WaitMined(context.Context, common.Hash) (*coretypes.Receipt, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeChainClient) FetchChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{}, nil
}

func (c *fakeChainClient) Close() {}

var _ web3.Client = (*fakeChainClient)(nil)

func waitForStatus(t *testing.T, store Store, id string, want Status) *Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, err := store.Get(context.Background(), id)
		if err == nil && record.Status == want {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	record, _ := store.Get(context.Background(), id)
	t.Fatalf("record %s never reached %s, last seen %+v", id, want, record)
	return nil
}

func TestWatcherConfirmsTransaction(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	client := &fakeChainClient{}

	service := NewService(store, queue, "sepolia", 5)
	watcher := NewWatcher(client, store, queue, queue, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Start(ctx) }()

	if err := service.Watch(ctx, KindTransfer, "0xabc", "0xfrom", "0xto", "", "1.5"); err != nil {
		t.Fatalf("watch: %v", err)
	}

	records, err := service.List(ctx, WithKind(KindTransfer))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	record := waitForStatus(t, store, records[0].ID, StatusConfirmed)
	if record.Confirmation == nil || record.Confirmation.BlockNumber != "100" {
		t.Fatalf("unexpected confirmation: %+v", record.Confirmation)
	}
	if record.Confirmation.Reverted {
		t.Fatal("unexpected reverted flag")
	}
}

func TestWatcherRequeuesUntilMined(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	client := &fakeChainClient{pendingRounds: 2}

	service := NewService(store, queue, "sepolia", 10)
	watcher := NewWatcher(client, store, queue, queue, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Start(ctx) }()

	if err := service.Watch(ctx, KindSwap, "0xdef", "0xfrom", "0xto", "0xtoken", "10"); err != nil {
		t.Fatalf("watch: %v", err)
	}

	records, _ := service.List(ctx)
	record := waitForStatus(t, store, records[0].ID, StatusConfirmed)
	if record.Attempts < 3 {
		t.Fatalf("expected at least 3 attempts, got %d", record.Attempts)
	}
}

func TestWatcherRetriesAfterReceiptError(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	client := &fakeChainClient{errRounds: 2, receiptErr: errors.New("rpc timeout")}

	service := NewService(store, queue, "sepolia", 10)
	watcher := NewWatcher(client, store, queue, queue, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Start(ctx) }()

	if err := service.Watch(ctx, KindTransfer, "0xerr", "0xfrom", "0xto", "", "1"); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// 瞬时 RPC 错误走重新入队路径，之后照常确认。
	records, _ := service.List(ctx)
	record := waitForStatus(t, store, records[0].ID, StatusConfirmed)
	if record.Attempts < 3 {
		t.Fatalf("expected at least 3 attempts, got %d", record.Attempts)
	}
}

func TestWatcherMarksRevertedTransaction(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	client := &fakeChainClient{receipt: &coretypes.Receipt{
		Status:      coretypes.ReceiptStatusFailed,
		BlockNumber: big.NewInt(200),
		GasUsed:     50000,
	}}

	service := NewService(store, queue, "sepolia", 5)
	watcher := NewWatcher(client, store, queue, queue, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Start(ctx) }()

	if err := service.Watch(ctx, KindTransfer, "0xbad", "0xfrom", "0xto", "", "1"); err != nil {
		t.Fatalf("watch: %v", err)
	}

	records, _ := service.List(ctx)
	record := waitForStatus(t, store, records[0].ID, StatusConfirmed)
	if record.Confirmation == nil || !record.Confirmation.Reverted {
		t.Fatalf("expected reverted confirmation, got %+v", record.Confirmation)
	}
}

type failingProducer struct{}

func (failingProducer) Publish(context.Context, string) error { return errors.New("broker down") }

func (failingProducer) Close() error { return nil }

func TestServiceMarksRecordFailedWhenPublishFails(t *testing.T) {
	store := NewMemoryStore()
	service := NewService(store, failingProducer{}, "sepolia", 5)
	ctx := context.Background()

	err := service.Watch(ctx, KindTransfer, "0xabc", "0xfrom", "0xto", "", "1")
	if xerrors.CodeOf(err) != CodeTxPublish {
		t.Fatalf("expected publish failure, got %v", err)
	}

	records, listErr := service.List(ctx, WithStatuses(StatusFailed))
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 failed record, got %d", len(records))
	}
}

func TestServiceRejectsEmptyHash(t *testing.T) {
	service := NewService(NewMemoryStore(), NewMemoryQueue(1), "sepolia", 5)
	if err := service.Watch(context.Background(), KindTransfer, "  ", "", "", "", ""); xerrors.CodeOf(err) != CodeTxValidation {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestMemoryQueueDelivers(t *testing.T) {
	queue := NewMemoryQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 4)
	go func() {
		_ = queue.Consume(ctx, 2, func(_ context.Context, recordID string) error {
			received <- recordID
			return nil
		})
	}()

	for _, id := range []string{"a", "b", "c"} {
		if err := queue.Publish(ctx, id); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case id := <-received:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 unique deliveries, got %d", len(seen))
	}
}
