package template

import (
	"math/rand"
	"strings"
	"sync"

	"notification-engine/internal/models"
)

// Built-in titles and bodies per trigger event, used when the rule carries no
// channel-specific override. Substitution is literal token replacement only:
// rule authors write {token}, nothing is evaluated.
var defaultTitles = map[string]string{
	models.EventOrderCreated:   "New order #{order_id}",
	models.EventOrderUpdated:   "Order #{order_id} updated",
	models.EventOrderCancelled: "Order #{order_id} cancelled",
	models.EventOrderShipped:   "Order #{order_id} shipped",
	models.EventPaymentFailed:  "Payment failed for order #{order_id}",
	models.EventReviewNegative: "Negative review received",
	models.EventCartAbandoned:  "Abandoned cart",
	models.EventLowStock:       "Low stock: {product_name}",
}

var defaultBodies = map[string]string{
	models.EventOrderCreated:   "{customer_name} placed order #{order_id} for {order_amount} at {store_name}.",
	models.EventOrderUpdated:   "Order #{order_id} is now {order_status}.",
	models.EventOrderCancelled: "Order #{order_id} by {customer_name} was cancelled.",
	models.EventOrderShipped:   "Order #{order_id} for {customer_name} has been shipped.",
	models.EventPaymentFailed:  "Payment of {order_amount} for order #{order_id} failed.",
	models.EventReviewNegative: "{customer_name} left a {review_rating}-star review: {review_text}",
	models.EventCartAbandoned:  "{customer_name} left a cart with {product_name} at {store_name}.",
	models.EventLowStock:       "Only {product_quantity} left of {product_name} at {store_name}.",
}

const fallbackTitle = "Store notification"
const fallbackBody = "Something happened at {store_name} on {current_date} {current_time}."

// Renderer produces the channel-specific title and message for one rule and
// variable set, closing each message with a motivational line.
type Renderer struct {
	catalog *PhraseCatalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRenderer builds a Renderer. The RNG is injected so tests can pin the
// motivational pick with a fixed seed.
func NewRenderer(catalog *PhraseCatalog, rng *rand.Rand) *Renderer {
	return &Renderer{catalog: catalog, rng: rng}
}

// Render substitutes variables into the rule's title and template for the
// channel (or the built-in defaults) and appends the closing line. Unknown
// tokens are left as literal text.
func (r *Renderer) Render(rule *models.NotificationRule, channel models.Channel, vars map[string]string) (title, message string) {
	title = rule.Titles[channel]
	if title == "" {
		title = defaultTitles[rule.TriggerEvent]
	}
	if title == "" {
		title = fallbackTitle
	}

	message = rule.Templates[channel]
	if message == "" {
		message = defaultBodies[rule.TriggerEvent]
	}
	if message == "" {
		message = fallbackBody
	}

	title = Substitute(title, vars)
	message = Substitute(message, vars)

	if closing := r.closingLine(rule); closing != "" {
		message += "\n\n" + closing
	}
	return title, message
}

func (r *Renderer) closingLine(rule *models.NotificationRule) string {
	if custom := strings.TrimSpace(rule.MotivationalMessage); custom != "" {
		return custom
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog.Pick(CategoryFor(rule.TriggerEvent), r.rng)
}

// Substitute replaces every {token} occurrence with its variable value in a
// single left-to-right pass. Substituted values are never re-scanned, so a
// token inside rule-author or customer text stays literal. No template
// language.
func Substitute(text string, vars map[string]string) string {
	var b strings.Builder
	for len(text) > 0 {
		start := strings.IndexByte(text, '{')
		if start < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:start])
		rest := text[start:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		token := rest[1:end]
		if inner := strings.LastIndexByte(token, '{'); inner >= 0 {
			// keep everything before the innermost '{' literal and rescan
			b.WriteString(rest[:inner+1])
			text = rest[inner+1:]
			continue
		}
		if value, ok := vars[token]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(rest[:end+1])
		}
		text = rest[end+1:]
	}
	return b.String()
}
