package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tillpoint/go-pos-sync/internal/orders"
)

// RESTDispatcher delivers orders to a platform's JSON order-ingest endpoint.
// Shopify, WooCommerce and BigCommerce targets differ only in endpoint and
// credentials; the field mapping stays thin. Classification is structural:
// transport errors and 5xx/429 are retryable, any other 4xx is permanent.
type RESTDispatcher struct {
	Platform string
	URL      string
	APIKey   string
	Client   *http.Client
}

// NewRESTDispatcher returns a dispatcher for one platform endpoint.
func NewRESTDispatcher(platform, url, apiKey string, client *http.Client) *RESTDispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTDispatcher{Platform: platform, URL: url, APIKey: apiKey, Client: client}
}

type restOrderItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	SKU            string `json:"sku,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type restOrderRequest struct {
	ExternalID    string          `json:"external_id"`
	Items         []restOrderItem `json:"items"`
	SubtotalCents int64           `json:"subtotal_cents"`
	TaxCents      int64           `json:"tax_cents"`
	DiscountCents int64           `json:"discount_cents"`
	TotalCents    int64           `json:"total_cents"`
	PaymentMethod string          `json:"payment_method"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Source        string          `json:"source"`
}

type restOrderResponse struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Error   string `json:"error,omitempty"`
}

func (d *RESTDispatcher) Dispatch(ctx context.Context, order orders.Order, idempotencyKey string) Outcome {
	items := make([]restOrderItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, restOrderItem{
			ProductID:      it.ProductID,
			Name:           it.Name,
			SKU:            it.SKU,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	payload := restOrderRequest{
		ExternalID:    order.OrderID,
		Items:         items,
		SubtotalCents: order.SubtotalCents,
		TaxCents:      order.TaxCents,
		DiscountCents: order.DiscountCents,
		TotalCents:    order.TotalCents,
		PaymentMethod: order.PaymentMethod,
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		Source:        "pos",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Permanent(fmt.Sprintf("marshal order payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if d.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.APIKey)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		// transport failure or timeout; the order may have landed, the
		// idempotency key makes the retry safe
		return Retryable(fmt.Sprintf("%s request failed: %v", d.Platform, err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out restOrderResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return Retryable(fmt.Sprintf("%s returned unparseable success body: %v", d.Platform, err))
		}
		remoteID := out.ID
		if remoteID == "" {
			remoteID = out.OrderID
		}
		if remoteID == "" {
			return Retryable(fmt.Sprintf("%s success response missing order id", d.Platform))
		}
		return Success(remoteID)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Retryable(fmt.Sprintf("%s returned status %d: %s", d.Platform, resp.StatusCode, truncate(respBody)))
	default:
		return Permanent(fmt.Sprintf("%s rejected order: status %d: %s", d.Platform, resp.StatusCode, truncate(respBody)))
	}
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
