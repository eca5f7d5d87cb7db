package validation

import "testing"

func validCheckout() StartCheckoutRequest {
	return StartCheckoutRequest{
		Items: []CartItemRequest{
			{ProductID: "p1", Name: "Mug", Quantity: 2, UnitPriceCents: 999},
		},
		TaxRate:  0.08,
		Platform: "shopify",
	}
}

func TestStartCheckoutRequest_Valid(t *testing.T) {
	v := New()
	if err := v.Struct(validCheckout()); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestStartCheckoutRequest_NoItems(t *testing.T) {
	v := New()
	req := validCheckout()
	req.Items = nil
	if err := v.Struct(req); err == nil {
		t.Fatalf("expected validation error for empty items")
	}
}

func TestStartCheckoutRequest_ZeroQuantity(t *testing.T) {
	v := New()
	req := validCheckout()
	req.Items[0].Quantity = 0
	if err := v.Struct(req); err == nil {
		t.Fatalf("expected validation error for zero quantity")
	}
}

func TestStartCheckoutRequest_UnknownPlatform(t *testing.T) {
	v := New()
	req := validCheckout()
	req.Platform = "etsy"
	if err := v.Struct(req); err == nil {
		t.Fatalf("expected validation error for unknown platform")
	}
}

func TestStartCheckoutRequest_DiscountExceedsTotal(t *testing.T) {
	v := New()
	req := validCheckout()
	// subtotal 1998 + tax 160 = 2158
	req.DiscountCents = 2200
	if err := v.Struct(req); err == nil {
		t.Fatalf("expected validation error for oversized discount")
	}

	req.DiscountCents = 2158
	if err := v.Struct(req); err != nil {
		t.Fatalf("discount equal to subtotal+tax should be allowed, got %v", err)
	}
}

func TestCompletePaymentRequest_Methods(t *testing.T) {
	v := New()
	for _, method := range []string{"cash", "card", "card_terminal"} {
		if err := v.Struct(CompletePaymentRequest{PaymentMethod: method}); err != nil {
			t.Fatalf("method %s should validate, got %v", method, err)
		}
	}
	if err := v.Struct(CompletePaymentRequest{PaymentMethod: "check"}); err == nil {
		t.Fatalf("expected validation error for unsupported method")
	}
}
