// Package platform defines the dispatch boundary between the sync engine and the
// e-commerce backends an order can target. The engine depends only on the
// Dispatcher contract; each platform supplies its own implementation.
package platform

import (
	"context"

	"github.com/tillpoint/go-pos-sync/internal/orders"
)

// Outcome kinds
const (
	KindSuccess   = "success"
	KindRetryable = "retryable_failure"
	KindPermanent = "permanent_failure"
)

// Outcome is the result of one dispatch attempt. Retryable failures are eligible
// for automatic backoff retry; permanent ones wait for a manual retry.
type Outcome struct {
	Kind          string
	RemoteOrderID string
	Reason        string
}

// Success builds a successful outcome carrying the platform's order id.
func Success(remoteOrderID string) Outcome {
	return Outcome{Kind: KindSuccess, RemoteOrderID: remoteOrderID}
}

// Retryable builds a retryable failure outcome.
func Retryable(reason string) Outcome {
	return Outcome{Kind: KindRetryable, Reason: reason}
}

// Permanent builds a permanent failure outcome.
func Permanent(reason string) Outcome {
	return Outcome{Kind: KindPermanent, Reason: reason}
}

// Dispatcher delivers one order to a platform. Implementations must send the
// given idempotency key on every attempt (the same order always carries the
// same key) so a deduplicating platform collapses retries into one remote
// order. Dispatch never panics and never returns a Go error: every failure mode
// is expressed as an Outcome kind.
type Dispatcher interface {
	Dispatch(ctx context.Context, order orders.Order, idempotencyKey string) Outcome
}
