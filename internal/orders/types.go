package orders

import (
	"time"

	"github.com/google/uuid"
)

// Sync statuses
const (
	StatusDraft     = "DRAFT"
	StatusPending   = "PENDING"
	StatusSyncing   = "SYNCING"
	StatusSynced    = "SYNCED"
	StatusFailed    = "FAILED"
	StatusDiscarded = "DISCARDED"
)

// Target platforms. PlatformOffline means record-only: the order is never dispatched.
const (
	PlatformShopify     = "shopify"
	PlatformWooCommerce = "woocommerce"
	PlatformBigCommerce = "bigcommerce"
	PlatformOffline     = "offline"
)

// Payment methods
const (
	PaymentCash         = "cash"
	PaymentCard         = "card"
	PaymentCardTerminal = "card_terminal"
)

// Error kinds recorded alongside last_error. Permanent failures are skipped by the
// scheduler tick and only re-attempted through a manual retry.
const (
	ErrorKindRetryable = "retryable"
	ErrorKindPermanent = "permanent"
)

// PaymentStateProcessing is the advisory marker set while a payment is in flight.
// It guards UI re-entrancy only and never affects the sync status.
const PaymentStateProcessing = "processing"

// Item is a single line of a sale. Prices are minor units (cents) so money math
// never touches floats.
type Item struct {
	ProductID      string `dynamodbav:"product_id" json:"product_id"`
	Name           string `dynamodbav:"name" json:"name"`
	SKU            string `dynamodbav:"sku,omitempty" json:"sku,omitempty"`
	Quantity       int    `dynamodbav:"quantity" json:"quantity"`
	UnitPriceCents int64  `dynamodbav:"unit_price_cents" json:"unit_price_cents"`
}

// Order is the single durable record per sale: the frozen sale facts plus the
// mutable sync bookkeeping. Everything the engine knows about an order is
// recoverable from this item.
type Order struct {
	OrderID       string `dynamodbav:"order_id" json:"order_id"` // PK
	Items         []Item `dynamodbav:"items" json:"items"`
	SubtotalCents int64  `dynamodbav:"subtotal_cents" json:"subtotal_cents"`
	TaxCents      int64  `dynamodbav:"tax_cents" json:"tax_cents"`
	DiscountCents int64  `dynamodbav:"discount_cents" json:"discount_cents"`
	TotalCents    int64  `dynamodbav:"total_cents" json:"total_cents"`
	PaymentMethod string `dynamodbav:"payment_method,omitempty" json:"payment_method,omitempty"`
	CustomerEmail string `dynamodbav:"customer_email,omitempty" json:"customer_email,omitempty"`
	CustomerName  string `dynamodbav:"customer_name,omitempty" json:"customer_name,omitempty"`
	CashierID     string `dynamodbav:"cashier_id,omitempty" json:"cashier_id,omitempty"`
	Platform      string `dynamodbav:"platform" json:"platform"`

	Status         string `dynamodbav:"status" json:"status"`
	Attempts       int    `dynamodbav:"attempts" json:"attempts"`
	NextAttemptAt  int64  `dynamodbav:"next_attempt_at" json:"next_attempt_at"` // epoch seconds; 0 = immediately
	LastError      string `dynamodbav:"last_error,omitempty" json:"last_error,omitempty"`
	ErrorKind      string `dynamodbav:"error_kind,omitempty" json:"error_kind,omitempty"`
	RemoteOrderID  string `dynamodbav:"remote_order_id,omitempty" json:"remote_order_id,omitempty"`
	IdempotencyKey string `dynamodbav:"idempotency_key" json:"idempotency_key"`
	PaymentState   string `dynamodbav:"payment_state,omitempty" json:"payment_state,omitempty"`
	DiscardReason  string `dynamodbav:"discard_reason,omitempty" json:"discard_reason,omitempty"`

	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// Terminal reports whether the status admits no further transitions.
func Terminal(status string) bool {
	return status == StatusSynced || status == StatusDiscarded
}

// idempotencyNamespace anchors the UUIDv5 derivation of idempotency keys.
var idempotencyNamespace = uuid.MustParse("9a1c5b76-3f02-4d8e-b1aa-6de62f8c04d7")

// IdempotencyKey derives the dispatch idempotency key for an order id. The same
// order always yields the same key, so every retry presents an identical token
// and a deduplicating platform never creates two remote orders for one sale.
func IdempotencyKey(orderID string) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(orderID)).String()
}
