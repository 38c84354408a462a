package models

import "strings"

// EventContext is one inbound store event as handed over by the event bus.
// It is never persisted; EventData snapshots on delivery records carry the
// payload forward for audit.
type EventContext struct {
	TenantID       string         `json:"tenantId"`
	StoreID        string         `json:"storeId,omitempty"`
	EventType      string         `json:"eventType"`
	Data           map[string]any `json:"data"`
	WebhookEventID string         `json:"webhookEventId,omitempty"`
}

// Prefixes for recipient ids fabricated from custom phone/email targets.
// Such recipients have no dashboard account.
const (
	SyntheticPhonePrefix = "custom-phone-"
	SyntheticEmailPrefix = "custom-email-"
)

// RecipientInfo is one addressable recipient produced by the resolver.
type RecipientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

// IsSynthetic reports whether the recipient was fabricated from a custom
// contact value rather than looked up in the employee directory.
func (r RecipientInfo) IsSynthetic() bool {
	return strings.HasPrefix(r.ID, SyntheticPhonePrefix) ||
		strings.HasPrefix(r.ID, SyntheticEmailPrefix)
}

// DispatchJob is the unit of work handed to the delivery pipeline for one
// delivery record. Attempt counts prior invocations of this job, starting at 0.
type DispatchJob struct {
	NotificationID string  `json:"notificationId"`
	TenantID       string  `json:"tenantId"`
	Channel        Channel `json:"channel"`
	EmployeeID     string  `json:"employeeId"`
	EmployeeName   string  `json:"employeeName"`
	EmployeeEmail  string  `json:"employeeEmail,omitempty"`
	EmployeePhone  string  `json:"employeePhone,omitempty"`
	Title          string  `json:"title"`
	Message        string  `json:"message"`
	ActionURL      string  `json:"actionUrl,omitempty"`
	Priority       int     `json:"priority"`
	Attempt        int     `json:"attempt"`
}
