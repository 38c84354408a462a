package engine

import (
	"strings"
	"time"

	"notification-engine/internal/models"
)

// BuildVariables extracts the template variable map from an event payload.
// Every value is optional; missing fields render as empty strings.
func BuildVariables(evt models.EventContext, storeName string, now time.Time) map[string]string {
	data := evt.Data
	vars := map[string]string{
		"order_id":         lookupString(data, "id", "order_id", "order.id"),
		"order_number":     lookupString(data, "order_number", "reference", "number"),
		"order_amount":     lookupString(data, "total.amount", "total_amount", "amount"),
		"order_status":     lookupString(data, "status", "order.status"),
		"payment_method":   lookupString(data, "payment_method.name", "payment_method"),
		"order_link":       lookupString(data, "urls.admin", "order_link", "url"),
		"customer_name":    customerName(data),
		"customer_phone":   lookupString(data, "customer.mobile", "customer.phone", "customer_phone"),
		"product_name":     lookupString(data, "items.0.name", "product.name", "product_name"),
		"product_quantity": lookupString(data, "items.0.quantity", "product.quantity", "quantity"),
		"review_text":      lookupString(data, "content", "review.text", "text"),
		"review_rating":    lookupString(data, "rating", "review.rating"),
		"store_name":       storeName,
		"current_date":     now.Format("2006-01-02"),
		"current_time":     now.Format("15:04"),
	}
	return vars
}

// WithRecipient copies the variable map and adds the recipient-derived
// tokens, so concurrent renders never share a map.
func WithRecipient(vars map[string]string, rcpt models.RecipientInfo) map[string]string {
	out := make(map[string]string, len(vars)+2)
	for k, v := range vars {
		out[k] = v
	}
	out["employee_name"] = rcpt.Name
	out["employee_email"] = rcpt.Email
	return out
}

func customerName(data map[string]any) string {
	first := lookupString(data, "customer.first_name")
	last := lookupString(data, "customer.last_name")
	if full := strings.TrimSpace(first + " " + last); full != "" {
		return full
	}
	return lookupString(data, "customer.name", "customer_name")
}
