// Package syncer owns the order sync lifecycle: the status state machine, the
// retry backoff, and the background scheduler that drives dispatch attempts.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tillpoint/go-pos-sync/internal/orders"
)

// interruptedReason is recorded on orders found mid-dispatch after a restart.
const interruptedReason = "dispatch interrupted by restart"

// Machine applies sync status transitions. Every transition goes through the
// store's conditional update path, so a transition that no longer matches the
// stored status is rejected (orders.ErrStatusMismatch) rather than applied.
type Machine struct {
	store   *orders.Store
	nowFunc func() time.Time
}

// NewMachine creates a Machine bound to a store.
func NewMachine(store *orders.Store) *Machine {
	return &Machine{
		store:   store,
		nowFunc: time.Now,
	}
}

// Begin claims an order for dispatch: {pending|failed} -> syncing, counting the
// attempt in the same atomic update. This CAS is the per-order lock: a second
// caller racing on the same order loses with ErrStatusMismatch and must not
// dispatch.
func (m *Machine) Begin(ctx context.Context, orderID, from string) error {
	if from != orders.StatusPending && from != orders.StatusFailed {
		return orders.ErrInvalidState
	}
	return m.store.TransitionSync(ctx, orderID, from, orders.SyncUpdate{
		Status:            orders.StatusSyncing,
		IncrementAttempts: true,
	})
}

// Complete finishes a successful dispatch: syncing -> synced, recording the
// platform's order id and clearing the failure fields.
func (m *Machine) Complete(ctx context.Context, orderID, remoteOrderID string) error {
	empty := ""
	return m.store.TransitionSync(ctx, orderID, orders.StatusSyncing, orders.SyncUpdate{
		Status:        orders.StatusSynced,
		RemoteOrderID: &remoteOrderID,
		LastError:     &empty,
		ErrorKind:     &empty,
	})
}

// Fail records a failed dispatch: syncing -> failed. attempts is the count
// including the attempt that just failed; the next eligible time is
// now + Backoff(attempts). Permanent failures land in failed too: invisible to
// the automatic tick but still manually retryable, so no order is ever
// silently dropped.
func (m *Machine) Fail(ctx context.Context, orderID, kind, reason string, attempts int) error {
	next := m.nowFunc().Add(Backoff(attempts)).Unix()
	return m.store.TransitionSync(ctx, orderID, orders.StatusSyncing, orders.SyncUpdate{
		Status:        orders.StatusFailed,
		NextAttemptAt: &next,
		LastError:     &reason,
		ErrorKind:     &kind,
	})
}

// Discard tombstones an order: {pending|failed} -> discarded. Discarded orders
// are never deleted; shift reports read them like any other status.
func (m *Machine) Discard(ctx context.Context, orderID, reason string) error {
	order, err := m.store.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return orders.ErrOrderNotFound
	}
	if order.Status != orders.StatusPending && order.Status != orders.StatusFailed {
		return orders.ErrInvalidState
	}
	err = m.store.TransitionSync(ctx, orderID, order.Status, orders.SyncUpdate{
		Status:        orders.StatusDiscarded,
		DiscardReason: &reason,
	})
	if errors.Is(err, orders.ErrStatusMismatch) {
		// the status moved between read and write; to the caller that is the
		// same illegal-transition answer
		return orders.ErrInvalidState
	}
	return err
}

// RecoverInterrupted reverts orders stranded in syncing by a crash to failed
// with a synthetic retryable error. Without this a crashed dispatch would be
// invisible to both retry and discard. Runs once before the scheduler starts
// ticking.
func (m *Machine) RecoverInterrupted(ctx context.Context) error {
	stranded, err := m.store.ListByStatus(ctx, orders.StatusSyncing)
	if err != nil {
		return fmt.Errorf("list syncing orders: %w", err)
	}
	for _, o := range stranded {
		now := m.nowFunc().Unix()
		reason := interruptedReason
		kind := orders.ErrorKindRetryable
		err := m.store.TransitionSync(ctx, o.OrderID, orders.StatusSyncing, orders.SyncUpdate{
			Status:        orders.StatusFailed,
			NextAttemptAt: &now,
			LastError:     &reason,
			ErrorKind:     &kind,
		})
		if err != nil && !errors.Is(err, orders.ErrStatusMismatch) {
			return fmt.Errorf("recover order %s: %w", o.OrderID, err)
		}
		log.Printf("[syncer] recovered interrupted order=%s", o.OrderID)
	}
	return nil
}
