// Package checkout turns a live cart into a frozen order and drives the payment
// sub-flow. It is the only writer of new order records.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tillpoint/go-pos-sync/internal/orders"
)

// ErrEmptyCart rejects a checkout with no items.
var ErrEmptyCart = errors.New("cart has no items")

// CartItem is one line of the live cart handed in by the UI layer.
type CartItem struct {
	ProductID      string
	Name           string
	SKU            string
	Quantity       int
	UnitPriceCents int64
}

// Cart is the input to StartCheckout. TaxRate is a fraction (0.08 = 8%);
// DiscountCents is an absolute discount already decided by the cashier.
type Cart struct {
	Items         []CartItem
	TaxRate       float64
	DiscountCents int64
	CustomerEmail string
	CustomerName  string
	CashierID     string
}

// CheckoutResult is returned by CompletePayment. OpenDrawer is true only for
// cash payments; the consuming UI drives the drawer peripheral, never this
// package.
type CheckoutResult struct {
	Success    bool
	OpenDrawer bool
}

// Coordinator converts carts into orders against the injected store.
type Coordinator struct {
	store   *orders.Store
	nowFunc func() time.Time
}

// NewCoordinator creates a Coordinator bound to a store.
func NewCoordinator(store *orders.Store) *Coordinator {
	return &Coordinator{
		store:   store,
		nowFunc: time.Now,
	}
}

// StartCheckout freezes the cart into a draft order and persists it, sync
// metadata included, in a single write. The order id exists before any payment
// step, so a payment failure never orphans sync state. Totals are computed here
// once and never recomputed: total = subtotal + tax - discount, in minor units.
func (c *Coordinator) StartCheckout(ctx context.Context, cart Cart, platform string) (*orders.Order, error) {
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]orders.Item, 0, len(cart.Items))
	var subtotal int64
	for _, it := range cart.Items {
		items = append(items, orders.Item{
			ProductID:      it.ProductID,
			Name:           it.Name,
			SKU:            it.SKU,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
		subtotal += int64(it.Quantity) * it.UnitPriceCents
	}
	tax := int64(math.Round(float64(subtotal) * cart.TaxRate))
	total := subtotal + tax - cart.DiscountCents

	orderID := uuid.NewString()
	order := orders.Order{
		OrderID:        orderID,
		Items:          items,
		SubtotalCents:  subtotal,
		TaxCents:       tax,
		DiscountCents:  cart.DiscountCents,
		TotalCents:     total,
		CustomerEmail:  cart.CustomerEmail,
		CustomerName:   cart.CustomerName,
		CashierID:      cart.CashierID,
		Platform:       platform,
		Status:         orders.StatusDraft,
		Attempts:       0,
		IdempotencyKey: orders.IdempotencyKey(orderID),
		CreatedAt:      c.nowFunc(),
	}

	if err := c.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist draft order: %w", err)
	}
	return &order, nil
}

// MarkPaymentProcessing sets the advisory payment-in-flight marker. It never
// touches the sync status; it exists so the UI can guard against re-entrancy.
func (c *Coordinator) MarkPaymentProcessing(ctx context.Context, orderID string) error {
	return c.store.SetPaymentState(ctx, orderID, orders.PaymentStateProcessing)
}

// CompletePayment attaches the payment method and makes the order eligible for
// dispatch: draft -> pending, or draft -> synced for record-only offline orders.
// Calling it again on an already completed order is a no-op success, which
// absorbs duplicate UI taps.
func (c *Coordinator) CompletePayment(ctx context.Context, orderID, paymentMethod string) (CheckoutResult, error) {
	order, err := c.store.Get(ctx, orderID)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return CheckoutResult{}, orders.ErrOrderNotFound
	}

	result := CheckoutResult{Success: true, OpenDrawer: paymentMethod == orders.PaymentCash}

	switch order.Status {
	case orders.StatusDraft:
		target := orders.StatusPending
		if order.Platform == orders.PlatformOffline {
			target = orders.StatusSynced
		}
		err := c.store.TransitionSync(ctx, orderID, orders.StatusDraft, orders.SyncUpdate{
			Status:        target,
			PaymentMethod: &paymentMethod,
		})
		if errors.Is(err, orders.ErrStatusMismatch) {
			// lost a race with another complete call; treat like the duplicate tap below
			return result, nil
		}
		if err != nil {
			return CheckoutResult{}, fmt.Errorf("complete payment: %w", err)
		}
		return result, nil
	case orders.StatusPending, orders.StatusSyncing, orders.StatusSynced:
		// duplicate tap
		return result, nil
	default:
		return CheckoutResult{}, orders.ErrInvalidState
	}
}
