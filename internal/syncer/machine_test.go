package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/tillpoint/go-pos-sync/internal/dynamock"
	"github.com/tillpoint/go-pos-sync/internal/orders"
)

const testTable = "pos_orders"

func newTestMachine(t *testing.T) (*Machine, *orders.Store, *dynamock.Client) {
	t.Helper()
	mock := dynamock.New()
	store := orders.NewStore(mock, testTable)
	return NewMachine(store), store, mock
}

func seedOrder(t *testing.T, mock *dynamock.Client, id, status string, attempts int) {
	t.Helper()
	o := orders.Order{
		OrderID:        id,
		Items:          []orders.Item{{ProductID: "p1", Name: "Mug", Quantity: 1, UnitPriceCents: 999}},
		SubtotalCents:  999,
		TotalCents:     999,
		Platform:       orders.PlatformShopify,
		Status:         status,
		Attempts:       attempts,
		IdempotencyKey: orders.IdempotencyKey(id),
		CreatedAt:      time.Now(),
	}
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		t.Fatalf("marshal order: %v", err)
	}
	mock.Seed(testTable, id, item)
}

func TestBegin_CountsTheAttempt(t *testing.T) {
	m, store, mock := newTestMachine(t)
	ctx := context.Background()
	seedOrder(t, mock, "o1", orders.StatusPending, 0)

	if err := m.Begin(ctx, "o1", orders.StatusPending); err != nil {
		t.Fatalf("begin: %v", err)
	}
	got, _ := store.Get(ctx, "o1")
	if got.Status != orders.StatusSyncing {
		t.Fatalf("status = %s, want %s", got.Status, orders.StatusSyncing)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.Attempts)
	}
}

func TestBegin_IsTheDispatchLock(t *testing.T) {
	m, _, mock := newTestMachine(t)
	ctx := context.Background()
	seedOrder(t, mock, "o1", orders.StatusPending, 0)

	if err := m.Begin(ctx, "o1", orders.StatusPending); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	// a racing caller observing the stale pending status loses
	err := m.Begin(ctx, "o1", orders.StatusPending)
	if !errors.Is(err, orders.ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}
}

func TestBegin_RejectsNonDispatchableStates(t *testing.T) {
	m, _, mock := newTestMachine(t)
	ctx := context.Background()
	seedOrder(t, mock, "o1", orders.StatusDraft, 0)

	for _, from := range []string{orders.StatusDraft, orders.StatusSyncing, orders.StatusSynced, orders.StatusDiscarded} {
		if err := m.Begin(ctx, "o1", from); !errors.Is(err, orders.ErrInvalidState) {
			t.Fatalf("Begin from %s: expected ErrInvalidState, got %v", from, err)
		}
	}
}

func TestComplete_RecordsRemoteOrderID(t *testing.T) {
	m, store, mock := newTestMachine(t)
	ctx := context.Background()
	seedOrder(t, mock, "o1", orders.StatusSyncing, 1)

	if err := m.Complete(ctx, "o1", "shopify-551"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := store.Get(ctx, "o1")
	if got.Status != orders.StatusSynced {
		t.Fatalf("status = %s, want %s", got.Status, orders.StatusSynced)
	}
	if got.RemoteOrderID != "shopify-551" {
		t.Fatalf("remote id = %s", got.RemoteOrderID)
	}
	if got.LastError != "" || got.ErrorKind != "" {
		t.Fatalf("failure fields not cleared: %+v", got)
	}
}

func TestFail_SchedulesBackoff(t *testing.T) {
	m, store, mock := newTestMachine(t)
	ctx := context.Background()
	seedOrder(t, mock, "o1", orders.StatusSyncing, 5)

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.nowFunc = func() time.Time { return frozen }

	if err := m.Fail(ctx, "o1", orders.ErrorKindRetryable, "dial tcp: timeout", 5); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := store.Get(ctx, "o1")
	if got.Status != orders.StatusFailed {
		t.Fatalf("status = %s, want %s", got.Status, orders.StatusFailed)
	}
	wantNext := frozen.Add(4 * time.Minute).Unix() // Backoff(5)
	if got.NextAttemptAt != wantNext {
		t.Fatalf("next_attempt_at = %d, want %d", got.NextAttemptAt, wantNext)
	}
	if got.LastError != "dial tcp: timeout" || got.ErrorKind != orders.ErrorKindRetryable {
		t.Fatalf("failure fields wrong: %+v", got)
	}
}

func TestNoRegressionFromTerminalStates(t *testing.T) {
	m, store, mock := newTestMachine(t)
	ctx := context.Background()
	seedOrder(t, mock, "done", orders.StatusSynced, 1)
	seedOrder(t, mock, "gone", orders.StatusDiscarded, 2)

	// every transition expecting a non-terminal prior status must bounce
	if err := store.TransitionSync(ctx, "done", orders.StatusPending, orders.SyncUpdate{Status: orders.StatusSyncing}); !errors.Is(err, orders.ErrStatusMismatch) {
		t.Fatalf("synced order re-claimed: %v", err)
	}
	if err := m.Discard(ctx, "done", "no"); !errors.Is(err, orders.ErrInvalidState) {
		t.Fatalf("synced order discarded: %v", err)
	}
	if err := m.Discard(ctx, "gone", "again"); !errors.Is(err, orders.ErrInvalidState) {
		t.Fatalf("discarded order re-discarded: %v", err)
	}
}

func TestDiscard_FromPendingAndFailed(t *testing.T) {
	m, store, mock := newTestMachine(t)
	ctx := context.Background()
	seedOrder(t, mock, "p", orders.StatusPending, 0)
	seedOrder(t, mock, "f", orders.StatusFailed, 3)

	for _, id := range []string{"p", "f"} {
		if err := m.Discard(ctx, id, "operator gave up"); err != nil {
			t.Fatalf("discard %s: %v", id, err)
		}
		got, _ := store.Get(ctx, id)
		if got.Status != orders.StatusDiscarded {
			t.Fatalf("%s status = %s, want %s", id, got.Status, orders.StatusDiscarded)
		}
		if got.DiscardReason != "operator gave up" {
			t.Fatalf("%s reason = %q", id, got.DiscardReason)
		}
	}
}

func TestDiscard_RejectsSyncingAndUnknown(t *testing.T) {
	m, _, mock := newTestMachine(t)
	ctx := context.Background()
	seedOrder(t, mock, "s", orders.StatusSyncing, 1)

	if err := m.Discard(ctx, "s", "nope"); !errors.Is(err, orders.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err := m.Discard(ctx, "missing", "nope"); !errors.Is(err, orders.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestRecoverInterrupted(t *testing.T) {
	m, store, mock := newTestMachine(t)
	ctx := context.Background()
	seedOrder(t, mock, "crashed", orders.StatusSyncing, 2)
	seedOrder(t, mock, "fine", orders.StatusPending, 0)

	if err := m.RecoverInterrupted(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}

	got, _ := store.Get(ctx, "crashed")
	if got.Status != orders.StatusFailed {
		t.Fatalf("crashed order status = %s, want %s", got.Status, orders.StatusFailed)
	}
	if got.LastError == "" {
		t.Fatalf("recovered order has no last error")
	}
	if got.ErrorKind != orders.ErrorKindRetryable {
		t.Fatalf("recovered order kind = %s", got.ErrorKind)
	}
	if got.Attempts != 2 {
		t.Fatalf("recovery must not count an attempt, got %d", got.Attempts)
	}

	untouched, _ := store.Get(ctx, "fine")
	if untouched.Status != orders.StatusPending {
		t.Fatalf("pending order touched by recovery: %s", untouched.Status)
	}
}
