package platform

import (
	"context"

	"github.com/tillpoint/go-pos-sync/internal/orders"
)

// OfflineDispatcher is the no-op implementation for record-only orders. Offline
// orders complete straight to synced so this is normally never reached, but the
// registry keeps it so lookup is total.
type OfflineDispatcher struct{}

func (OfflineDispatcher) Dispatch(_ context.Context, order orders.Order, _ string) Outcome {
	return Success("offline-" + order.OrderID)
}
