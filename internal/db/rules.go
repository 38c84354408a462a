package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notification-engine/internal/models"
)

func channelsToStrings(chs []models.Channel) []string {
	out := make([]string, len(chs))
	for i, c := range chs {
		out[i] = string(c)
	}
	return out
}

func stringsToChannels(ss []string) []models.Channel {
	out := make([]models.Channel, len(ss))
	for i, s := range ss {
		out[i] = models.Channel(s)
	}
	return out
}

func recipientTypesToStrings(rts []models.RecipientType) []string {
	out := make([]string, len(rts))
	for i, rt := range rts {
		out[i] = string(rt)
	}
	return out
}

func stringsToRecipientTypes(ss []string) []models.RecipientType {
	out := make([]models.RecipientType, len(ss))
	for i, s := range ss {
		out[i] = models.RecipientType(s)
	}
	return out
}

// CreateRule inserts a new notification rule, filling id and timestamps.
func (d *DB) CreateRule(ctx context.Context, r *models.NotificationRule) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	templates, err := json.Marshal(r.Templates)
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}
	titles, err := json.Marshal(r.Titles)
	if err != nil {
		return fmt.Errorf("failed to encode titles: %w", err)
	}
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}

	query := `
	INSERT INTO notification_rules (
		id, tenant_id, name, trigger_event, channels, recipient_types,
		specific_employee_ids, target_roles, custom_phones, custom_emails,
		templates, titles, motivational_message, conditions, is_active,
		priority, sent_count, created_by, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 0, $17, NOW(), NOW())
	RETURNING created_at, updated_at`

	err = d.Pool.QueryRow(ctx, query,
		r.ID, r.TenantID, r.Name, r.TriggerEvent,
		channelsToStrings(r.Channels), recipientTypesToStrings(r.RecipientTypes),
		r.SpecificEmployeeIDs, r.TargetRoles, r.CustomPhones, r.CustomEmails,
		templates, titles, r.MotivationalMessage, conditions, r.IsActive,
		r.Priority, r.CreatedBy,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

const ruleColumns = `
	id, tenant_id, name, trigger_event, channels, recipient_types,
	specific_employee_ids, target_roles, custom_phones, custom_emails,
	templates, titles, motivational_message, conditions, is_active,
	priority, sent_count, last_triggered_at, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (models.NotificationRule, error) {
	var (
		r              models.NotificationRule
		channels       []string
		recipientTypes []string
		templates      []byte
		titles         []byte
		conditions     []byte
	)
	err := row.Scan(
		&r.ID, &r.TenantID, &r.Name, &r.TriggerEvent, &channels, &recipientTypes,
		&r.SpecificEmployeeIDs, &r.TargetRoles, &r.CustomPhones, &r.CustomEmails,
		&templates, &titles, &r.MotivationalMessage, &conditions, &r.IsActive,
		&r.Priority, &r.SentCount, &r.LastTriggeredAt, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return models.NotificationRule{}, err
	}
	r.Channels = stringsToChannels(channels)
	r.RecipientTypes = stringsToRecipientTypes(recipientTypes)
	if len(templates) > 0 {
		if err := json.Unmarshal(templates, &r.Templates); err != nil {
			return models.NotificationRule{}, fmt.Errorf("failed to decode templates: %w", err)
		}
	}
	if len(titles) > 0 {
		if err := json.Unmarshal(titles, &r.Titles); err != nil {
			return models.NotificationRule{}, fmt.Errorf("failed to decode titles: %w", err)
		}
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
			return models.NotificationRule{}, fmt.Errorf("failed to decode conditions: %w", err)
		}
	}
	return r, nil
}

// GetRule retrieves one rule scoped to the tenant.
func (d *DB) GetRule(ctx context.Context, tenantID, id string) (models.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE tenant_id = $1 AND id = $2`
	r, err := scanRule(d.Pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return models.NotificationRule{}, fmt.Errorf("failed to get rule %s: %w", id, err)
	}
	return r, nil
}

// ListRules returns all rules of the tenant, newest first.
func (d *DB) ListRules(ctx context.Context, tenantID string) ([]models.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := d.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []models.NotificationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ActiveRulesByTrigger returns the active rules of the tenant subscribed to
// the trigger event. This is the match query of the event processor.
func (d *DB) ActiveRulesByTrigger(ctx context.Context, tenantID, triggerEvent string) ([]models.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + `
	FROM notification_rules
	WHERE tenant_id = $1 AND trigger_event = $2 AND is_active = true`
	rows, err := d.Pool.Query(ctx, query, tenantID, triggerEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to match rules for %s: %w", triggerEvent, err)
	}
	defer rows.Close()

	var rules []models.NotificationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SaveRule updates all mutable fields of an existing rule.
func (d *DB) SaveRule(ctx context.Context, r *models.NotificationRule) error {
	templates, err := json.Marshal(r.Templates)
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}
	titles, err := json.Marshal(r.Titles)
	if err != nil {
		return fmt.Errorf("failed to encode titles: %w", err)
	}
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}

	query := `
	UPDATE notification_rules SET
		name = $3, channels = $4, recipient_types = $5, specific_employee_ids = $6,
		target_roles = $7, custom_phones = $8, custom_emails = $9, templates = $10,
		titles = $11, motivational_message = $12, conditions = $13, priority = $14,
		updated_at = NOW()
	WHERE tenant_id = $1 AND id = $2`
	tag, err := d.Pool.Exec(ctx, query,
		r.TenantID, r.ID, r.Name,
		channelsToStrings(r.Channels), recipientTypesToStrings(r.RecipientTypes),
		r.SpecificEmployeeIDs, r.TargetRoles, r.CustomPhones, r.CustomEmails,
		templates, titles, r.MotivationalMessage, conditions, r.Priority,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no rule updated for id %s", r.ID)
	}
	return nil
}

// ToggleRule flips a rule active or inactive.
func (d *DB) ToggleRule(ctx context.Context, tenantID, id string, active bool) error {
	query := `UPDATE notification_rules SET is_active = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`
	tag, err := d.Pool.Exec(ctx, query, tenantID, id, active)
	if err != nil {
		return fmt.Errorf("failed to toggle rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no rule updated for id %s", id)
	}
	return nil
}

// DeleteRule removes a rule. Delivery records referencing it are kept for audit.
func (d *DB) DeleteRule(ctx context.Context, tenantID, id string) error {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM notification_rules WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no rule deleted for id %s", id)
	}
	return nil
}

// RecordTriggered atomically bumps sent_count by the number of jobs actually
// dispatched and stamps last_triggered_at. The increment happens in SQL so
// concurrent events on the same rule never lose updates.
func (d *DB) RecordTriggered(ctx context.Context, ruleID string, dispatched int, at time.Time) error {
	query := `
	UPDATE notification_rules
	SET sent_count = sent_count + $2, last_triggered_at = $3, updated_at = NOW()
	WHERE id = $1`
	if _, err := d.Pool.Exec(ctx, query, ruleID, dispatched, at); err != nil {
		return fmt.Errorf("failed to record trigger for rule %s: %w", ruleID, err)
	}
	return nil
}

// CountRules returns total and active rule counts for the tenant.
func (d *DB) CountRules(ctx context.Context, tenantID string) (total, active int, err error) {
	query := `
	SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active)
	FROM notification_rules WHERE tenant_id = $1`
	if err := d.Pool.QueryRow(ctx, query, tenantID).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return total, active, nil
}
