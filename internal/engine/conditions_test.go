package engine

import (
	"testing"
	"time"

	"notification-engine/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func stringPtr(v string) *string  { return &v }

func TestEvaluateConditions(t *testing.T) {
	noon := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		conditions models.RuleConditions
		data       map[string]any
		now        time.Time
		want       bool
	}{
		{
			name: "empty conditions always pass",
			data: map[string]any{"anything": "goes"},
			now:  noon,
			want: true,
		},
		{
			name: "empty conditions pass on nil payload",
			now:  noon,
			want: true,
		},
		{
			name:       "after hour satisfied",
			conditions: models.RuleConditions{AfterHour: intPtr(9)},
			now:        noon,
			want:       true,
		},
		{
			name:       "after hour not reached",
			conditions: models.RuleConditions{AfterHour: intPtr(14)},
			now:        noon,
			want:       false,
		},
		{
			name:       "before hour satisfied",
			conditions: models.RuleConditions{BeforeHour: intPtr(18)},
			now:        noon,
			want:       true,
		},
		{
			name:       "before hour exceeded",
			conditions: models.RuleConditions{BeforeHour: intPtr(12)},
			now:        noon,
			want:       false,
		},
		{
			name:       "min order amount from nested total",
			conditions: models.RuleConditions{MinOrderAmount: floatPtr(100)},
			data:       map[string]any{"total": map[string]any{"amount": float64(250)}},
			now:        noon,
			want:       true,
		},
		{
			name:       "min order amount below bound",
			conditions: models.RuleConditions{MinOrderAmount: floatPtr(500)},
			data:       map[string]any{"total": map[string]any{"amount": float64(250)}},
			now:        noon,
			want:       false,
		},
		{
			name:       "min order amount with missing field",
			conditions: models.RuleConditions{MinOrderAmount: floatPtr(10)},
			data:       map[string]any{"customer": map[string]any{"name": "Ahmad"}},
			now:        noon,
			want:       false,
		},
		{
			name:       "rating below bound",
			conditions: models.RuleConditions{RatingBelow: floatPtr(3)},
			data:       map[string]any{"rating": float64(2)},
			now:        noon,
			want:       true,
		},
		{
			name:       "rating at bound fails",
			conditions: models.RuleConditions{RatingBelow: floatPtr(3)},
			data:       map[string]any{"rating": float64(3)},
			now:        noon,
			want:       false,
		},
		{
			name:       "order status exact match",
			conditions: models.RuleConditions{OrderStatus: stringPtr("completed")},
			data:       map[string]any{"status": "completed"},
			now:        noon,
			want:       true,
		},
		{
			name:       "order status mismatch",
			conditions: models.RuleConditions{OrderStatus: stringPtr("completed")},
			data:       map[string]any{"status": "pending"},
			now:        noon,
			want:       false,
		},
		{
			name: "all predicates AND-combined",
			conditions: models.RuleConditions{
				AfterHour:      intPtr(9),
				MinOrderAmount: floatPtr(100),
				OrderStatus:    stringPtr("paid"),
			},
			data: map[string]any{
				"total":  map[string]any{"amount": float64(150)},
				"status": "paid",
			},
			now:  noon,
			want: true,
		},
		{
			name: "one failing predicate fails the rule",
			conditions: models.RuleConditions{
				AfterHour:      intPtr(9),
				MinOrderAmount: floatPtr(1000),
			},
			data: map[string]any{"total": map[string]any{"amount": float64(150)}},
			now:  noon,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateConditions(tt.conditions, tt.data, tt.now); got != tt.want {
				t.Errorf("EvaluateConditions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	data := map[string]any{
		"id": "12345",
		"total": map[string]any{
			"amount": float64(250),
		},
		"items": []any{
			map[string]any{"name": "Mug", "quantity": float64(2)},
		},
	}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"id", "12345", true},
		{"total.amount", float64(250), true},
		{"items.0.name", "Mug", true},
		{"items.1.name", nil, false},
		{"items.x.name", nil, false},
		{"total.amount.cents", nil, false},
		{"missing", nil, false},
		{"total.missing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Lookup(data, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Lookup(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLookupNeverPanics(t *testing.T) {
	if _, ok := Lookup(nil, "a.b.c"); ok {
		t.Error("expected miss on nil payload")
	}
	if _, ok := Lookup(map[string]any{"a": 42}, "a.b"); ok {
		t.Error("expected miss when traversing through a scalar")
	}
}
