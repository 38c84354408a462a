package models

import "time"

// Channel is a delivery channel a rule can fan out to.
type Channel string

const (
	ChannelDashboard Channel = "dashboard"
	ChannelEmail     Channel = "email"
	ChannelChat      Channel = "chat"
)

// RecipientType selects one recipient resolution strategy.
type RecipientType string

const (
	RecipientAllEmployees      RecipientType = "all_employees"
	RecipientSpecificEmployees RecipientType = "specific_employees"
	RecipientByRole            RecipientType = "by_role"
	RecipientAssignedEmployee  RecipientType = "assigned_employee"
	RecipientCustomPhones      RecipientType = "custom_phones"
	RecipientCustomEmails      RecipientType = "custom_emails"
)

// Trigger events rules can subscribe to.
const (
	EventOrderCreated   = "order.created"
	EventOrderUpdated   = "order.updated"
	EventOrderCancelled = "order.cancelled"
	EventOrderShipped   = "order.shipped"
	EventPaymentFailed  = "payment.failed"
	EventReviewNegative = "review.negative"
	EventCartAbandoned  = "cart.abandoned"
	EventLowStock       = "stock.low"
)

// RuleConditions are the optional predicates gating a matched rule. Nil
// fields are not evaluated; the set ones must all hold.
type RuleConditions struct {
	MinOrderAmount *float64 `json:"min_order_amount,omitempty"`
	OrderStatus    *string  `json:"order_status,omitempty"`
	RatingBelow    *float64 `json:"rating_below,omitempty"`
	AfterHour      *int     `json:"after_hour,omitempty"`
	BeforeHour     *int     `json:"before_hour,omitempty"`
}

// NotificationRule is one tenant-scoped notification rule: which event it
// listens for, who gets notified, over which channels, and with what message.
type NotificationRule struct {
	ID                  string             `json:"id"`
	TenantID            string             `json:"tenant_id"`
	Name                string             `json:"name"`
	TriggerEvent        string             `json:"trigger_event"`
	Channels            []Channel          `json:"channels"`
	RecipientTypes      []RecipientType    `json:"recipient_types"`
	SpecificEmployeeIDs []string           `json:"specific_employee_ids,omitempty"`
	TargetRoles         []string           `json:"target_roles,omitempty"`
	CustomPhones        []string           `json:"custom_phones,omitempty"`
	CustomEmails        []string           `json:"custom_emails,omitempty"`
	Templates           map[Channel]string `json:"templates,omitempty"`
	Titles              map[Channel]string `json:"titles,omitempty"`
	MotivationalMessage string             `json:"motivational_message,omitempty"`
	Conditions          RuleConditions     `json:"conditions"`
	IsActive            bool               `json:"is_active"`
	Priority            int                `json:"priority"`
	SentCount           int64              `json:"sent_count"`
	LastTriggeredAt     *time.Time         `json:"last_triggered_at,omitempty"`
	CreatedBy           string             `json:"created_by,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// RuleCreate is the rule creation request body.
type RuleCreate struct {
	Name                string             `json:"name" binding:"required"`
	TriggerEvent        string             `json:"trigger_event" binding:"required"`
	Channels            []Channel          `json:"channels" binding:"required,min=1"`
	RecipientTypes      []RecipientType    `json:"recipient_types" binding:"required,min=1"`
	SpecificEmployeeIDs []string           `json:"specific_employee_ids"`
	TargetRoles         []string           `json:"target_roles"`
	CustomPhones        []string           `json:"custom_phones"`
	CustomEmails        []string           `json:"custom_emails"`
	Templates           map[Channel]string `json:"templates"`
	Titles              map[Channel]string `json:"titles"`
	MotivationalMessage string             `json:"motivational_message"`
	Conditions          RuleConditions     `json:"conditions"`
	Priority            int                `json:"priority"`
	CreatedBy           string             `json:"created_by"`
}

// RuleUpdate is the partial-update request body. Nil fields keep the stored
// value.
type RuleUpdate struct {
	Name                *string            `json:"name"`
	Channels            []Channel          `json:"channels"`
	RecipientTypes      []RecipientType    `json:"recipient_types"`
	SpecificEmployeeIDs []string           `json:"specific_employee_ids"`
	TargetRoles         []string           `json:"target_roles"`
	CustomPhones        []string           `json:"custom_phones"`
	CustomEmails        []string           `json:"custom_emails"`
	Templates           map[Channel]string `json:"templates"`
	Titles              map[Channel]string `json:"titles"`
	MotivationalMessage *string            `json:"motivational_message"`
	Conditions          *RuleConditions    `json:"conditions"`
	Priority            *int               `json:"priority"`
}
