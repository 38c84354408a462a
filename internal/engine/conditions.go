package engine

import (
	"time"

	"notification-engine/internal/models"
)

// EvaluateConditions reports whether the event payload satisfies every
// predicate set on the rule. Predicates are AND-combined; an empty conditions
// struct always passes. The function is pure: the wall clock is passed in.
func EvaluateConditions(c models.RuleConditions, data map[string]any, now time.Time) bool {
	if c.AfterHour != nil && now.Hour() < *c.AfterHour {
		return false
	}
	if c.BeforeHour != nil && now.Hour() >= *c.BeforeHour {
		return false
	}
	if c.MinOrderAmount != nil {
		amount, ok := lookupFloat(data, "total.amount", "total_amount", "total", "amount")
		if !ok || amount < *c.MinOrderAmount {
			return false
		}
	}
	if c.RatingBelow != nil {
		rating, ok := lookupFloat(data, "rating", "review.rating")
		if !ok || rating >= *c.RatingBelow {
			return false
		}
	}
	if c.OrderStatus != nil {
		status := lookupString(data, "status", "order.status")
		if status != *c.OrderStatus {
			return false
		}
	}
	return true
}
