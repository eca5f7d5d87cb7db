package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// a discount larger than subtotal+tax would freeze a negative total
	v.RegisterStructValidation(startCheckoutStructValidation, StartCheckoutRequest{})

	return v
}

// startCheckoutStructValidation verifies the discount cannot exceed subtotal plus tax.
// All arithmetic is in cents, matching how the coordinator freezes totals.
func startCheckoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(StartCheckoutRequest)

	var subtotal int64
	for _, it := range req.Items {
		subtotal += int64(it.Quantity) * it.UnitPriceCents
	}
	tax := int64(float64(subtotal)*req.TaxRate + 0.5)

	if req.DiscountCents > subtotal+tax {
		sl.ReportError(req.DiscountCents, "discount_cents", "DiscountCents", "discount_exceeds_total",
			fmt.Sprintf("discount %d > subtotal+tax %d", req.DiscountCents, subtotal+tax))
	}
}
