package models

import (
	"time"
)

// Delivery record statuses.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// EmployeeNotification is the persisted delivery record for one
// (rule, recipient, channel) dispatch.
//
// Dashboard records are created already delivered; email/chat records start
// pending and only a delivery worker moves them to sent or failed. Attempts
// only ever increases, via atomic increment in the store.
type EmployeeNotification struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	RuleID         string         `json:"rule_id"`
	EmployeeID     string         `json:"employee_id"`
	EmployeeName   string         `json:"employee_name"`
	Channel        Channel        `json:"channel"`
	TriggerEvent   string         `json:"trigger_event"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Status         string         `json:"status"`
	IsRead         bool           `json:"is_read"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	EventData      map[string]any `json:"event_data,omitempty"`
	ActionURL      string         `json:"action_url,omitempty"`
	Priority       int            `json:"priority"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Attempts       int            `json:"attempts"`
	WebhookEventID string         `json:"webhook_event_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TenantStats aggregates notification activity for one tenant.
type TenantStats struct {
	TotalRules         int              `json:"total_rules"`
	ActiveRules        int              `json:"active_rules"`
	TotalNotifications int64            `json:"total_notifications"`
	SentToday          int64            `json:"sent_today"`
	Failed             int64            `json:"failed"`
	ByChannel          map[string]int64 `json:"by_channel"`
	ByTriggerEvent     map[string]int64 `json:"by_trigger_event"`
}
