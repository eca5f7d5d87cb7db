package validation

// CartItemRequest is a single cart line as submitted by the UI layer.
type CartItemRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	SKU            string `json:"sku,omitempty"`
	Quantity       int    `json:"quantity" validate:"required,min=1"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
}

// StartCheckoutRequest is the payload for POST /checkout.
type StartCheckoutRequest struct {
	Items         []CartItemRequest `json:"items" validate:"required,min=1,dive"`
	TaxRate       float64           `json:"tax_rate" validate:"gte=0,lte=1"`
	DiscountCents int64             `json:"discount_cents" validate:"gte=0"`
	Platform      string            `json:"platform" validate:"required,oneof=shopify woocommerce bigcommerce offline"`
	CustomerEmail string            `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CashierID     string            `json:"cashier_id,omitempty"`
}

// CompletePaymentRequest is the payload for POST /checkout/:id/complete.
type CompletePaymentRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash card card_terminal"`
}

// DiscardRequest is the payload for POST /sync/orders/:id/discard.
type DiscardRequest struct {
	Reason string `json:"reason" validate:"required"`
}
