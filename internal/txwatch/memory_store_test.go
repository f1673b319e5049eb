package txwatch

import (
	"context"
	"errors"
	"testing"
)

func newPendingRecord(id string) *Record {
	return &Record{
		ID:         id,
		TxHash:     "0x" + id,
		Kind:       KindTransfer,
		Chain:      "sepolia",
		Status:     StatusPending,
		MaxRetries: 3,
	}
}

func TestCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newPendingRecord("r1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, newPendingRecord("r1")); !errors.Is(err, ErrRecordConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	record, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != StatusPending || record.CreatedAt == 0 {
		t.Fatalf("unexpected record: %+v", record)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, newPendingRecord("r1"))

	record, err := store.Claim(ctx, "r1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if record.Status != StatusChecking || record.Attempts != 1 {
		t.Fatalf("unexpected claimed record: %+v", record)
	}

	// A second claim while checking is a conflict.
	if _, err := store.Claim(ctx, "r1"); !errors.Is(err, ErrRecordConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := store.MarkConfirmed(ctx, "r1", Confirmation{BlockNumber: "100", GasUsed: 21000}); err != nil {
		t.Fatalf("mark confirmed: %v", err)
	}
	if _, err := store.Claim(ctx, "r1"); !errors.Is(err, ErrRecordConfirmed) {
		t.Fatalf("expected confirmed, got %v", err)
	}

	record, err = store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Confirmation == nil || record.Confirmation.BlockNumber != "100" {
		t.Fatalf("unexpected confirmation: %+v", record.Confirmation)
	}
}

func TestClaimExhaustsRetries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, newPendingRecord("r1"))

	for i := 0; i < 3; i++ {
		if _, err := store.Claim(ctx, "r1"); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		// Requeue resets the record to pending.
		if err := store.MarkFailed(ctx, "r1", "not mined yet", false); err != nil {
			t.Fatalf("mark failed %d: %v", i, err)
		}
	}

	if _, err := store.Claim(ctx, "r1"); !errors.Is(err, ErrRecordExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}
	record, _ := store.Get(ctx, "r1")
	if record.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", record.Status)
	}
	// Once failed terminally the record stays exhausted.
	if _, err := store.Claim(ctx, "r1"); !errors.Is(err, ErrRecordExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}
}

func TestMarkFailedNonTerminalRestoresPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, newPendingRecord("r1"))
	_, _ = store.Claim(ctx, "r1")

	if err := store.MarkFailed(ctx, "r1", "transient rpc error", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	record, _ := store.Get(ctx, "r1")
	if record.Status != StatusPending {
		t.Fatalf("expected pending, got %s", record.Status)
	}
	if record.LastError != "transient rpc error" {
		t.Fatalf("unexpected last error: %q", record.LastError)
	}
}

func TestListFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	transfer := newPendingRecord("t1")
	swap := newPendingRecord("s1")
	swap.Kind = KindSwap
	_ = store.Create(ctx, transfer)
	_ = store.Create(ctx, swap)
	_, _ = store.Claim(ctx, "s1")

	swaps, err := store.List(ctx, ListOptions{Kind: KindSwap})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(swaps) != 1 || swaps[0].ID != "s1" {
		t.Fatalf("unexpected swaps: %+v", swaps)
	}

	checking, err := store.List(ctx, ListOptions{Statuses: []Status{StatusChecking}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(checking) != 1 || checking[0].ID != "s1" {
		t.Fatalf("unexpected checking records: %+v", checking)
	}

	limited, err := store.List(ctx, ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 record, got %d", len(limited))
	}
}

func TestStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Create(ctx, newPendingRecord("r1"))
	_ = store.Create(ctx, newPendingRecord("r2"))
	_, _ = store.Claim(ctx, "r2")
	_ = store.MarkConfirmed(ctx, "r2", Confirmation{BlockNumber: "1"})

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 1 || stats.Confirmed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
