package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"notification-engine/internal/models"
)

// CreateNotification persists one delivery record, filling id and created_at.
func (d *DB) CreateNotification(ctx context.Context, n *models.EmployeeNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	eventData, err := json.Marshal(n.EventData)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	query := `
	INSERT INTO employee_notifications (
		id, tenant_id, rule_id, employee_id, employee_name, channel,
		trigger_event, title, message, status, is_read, event_data,
		action_url, priority, attempts, webhook_event_id, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0, $15, NOW())
	RETURNING created_at`

	err = d.Pool.QueryRow(ctx, query,
		n.ID, n.TenantID, n.RuleID, n.EmployeeID, n.EmployeeName, string(n.Channel),
		n.TriggerEvent, n.Title, n.Message, n.Status, n.IsRead, eventData,
		n.ActionURL, n.Priority, n.WebhookEventID,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

const notificationColumns = `
	id, tenant_id, rule_id, employee_id, employee_name, channel,
	trigger_event, title, message, status, is_read, read_at, event_data,
	action_url, priority, error_message, attempts, webhook_event_id, created_at`

func scanNotification(row rowScanner) (models.EmployeeNotification, error) {
	var (
		n         models.EmployeeNotification
		channel   string
		eventData []byte
	)
	err := row.Scan(
		&n.ID, &n.TenantID, &n.RuleID, &n.EmployeeID, &n.EmployeeName, &channel,
		&n.TriggerEvent, &n.Title, &n.Message, &n.Status, &n.IsRead, &n.ReadAt, &eventData,
		&n.ActionURL, &n.Priority, &n.ErrorMessage, &n.Attempts, &n.WebhookEventID, &n.CreatedAt,
	)
	if err != nil {
		return models.EmployeeNotification{}, err
	}
	n.Channel = models.Channel(channel)
	if len(eventData) > 0 {
		if err := json.Unmarshal(eventData, &n.EventData); err != nil {
			return models.EmployeeNotification{}, fmt.Errorf("failed to decode event data: %w", err)
		}
	}
	return n, nil
}

// GetNotification retrieves one delivery record by id.
func (d *DB) GetNotification(ctx context.Context, id string) (models.EmployeeNotification, error) {
	query := `SELECT ` + notificationColumns + ` FROM employee_notifications WHERE id = $1`
	n, err := scanNotification(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.EmployeeNotification{}, fmt.Errorf("no notification found for id %s", id)
		}
		return models.EmployeeNotification{}, fmt.Errorf("failed to get notification %s: %w", id, err)
	}
	return n, nil
}

// ListNotificationsByEmployee returns an employee's delivery records, newest
// first.
func (d *DB) ListNotificationsByEmployee(ctx context.Context, tenantID, employeeID string, limit, offset int) ([]models.EmployeeNotification, error) {
	query := `SELECT ` + notificationColumns + `
	FROM employee_notifications
	WHERE tenant_id = $1 AND employee_id = $2
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4`
	rows, err := d.Pool.Query(ctx, query, tenantID, employeeID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.EmployeeNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UpdateNotificationStatus sets status and error message and atomically bumps
// the attempts counter. Called once per delivery-worker invocation.
func (d *DB) UpdateNotificationStatus(ctx context.Context, id, status, errorMessage string) error {
	query := `
	UPDATE employee_notifications
	SET status = $2, error_message = $3, attempts = attempts + 1
	WHERE id = $1`
	tag, err := d.Pool.Exec(ctx, query, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no notification updated for id %s", id)
	}
	return nil
}

// MarkNotificationRead flips one dashboard record of the employee to read.
func (d *DB) MarkNotificationRead(ctx context.Context, tenantID, employeeID, id string, at time.Time) error {
	query := `
	UPDATE employee_notifications
	SET is_read = true, read_at = $4, status = $5
	WHERE tenant_id = $1 AND employee_id = $2 AND id = $3 AND channel = 'dashboard'`
	tag, err := d.Pool.Exec(ctx, query, tenantID, employeeID, id, at, models.StatusRead)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no notification updated for id %s", id)
	}
	return nil
}

// MarkAllNotificationsRead flips every unread dashboard record of the
// employee and returns how many were updated.
func (d *DB) MarkAllNotificationsRead(ctx context.Context, tenantID, employeeID string, at time.Time) (int64, error) {
	query := `
	UPDATE employee_notifications
	SET is_read = true, read_at = $3, status = $4
	WHERE tenant_id = $1 AND employee_id = $2 AND channel = 'dashboard' AND is_read = false`
	tag, err := d.Pool.Exec(ctx, query, tenantID, employeeID, at, models.StatusRead)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HasWebhookEvent reports whether any delivery record already exists for the
// upstream webhook event id. Used to deduplicate redelivered events.
func (d *DB) HasWebhookEvent(ctx context.Context, tenantID, webhookEventID string) (bool, error) {
	var exists bool
	query := `
	SELECT EXISTS (
		SELECT 1 FROM employee_notifications
		WHERE tenant_id = $1 AND webhook_event_id = $2
	)`
	if err := d.Pool.QueryRow(ctx, query, tenantID, webhookEventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check webhook event %s: %w", webhookEventID, err)
	}
	return exists, nil
}

// NotificationStats aggregates delivery-record counters for the tenant.
func (d *DB) NotificationStats(ctx context.Context, tenantID string) (models.TenantStats, error) {
	var stats models.TenantStats

	query := `
	SELECT COUNT(*),
	       COUNT(*) FILTER (WHERE status IN ('sent', 'delivered', 'read') AND created_at >= CURRENT_DATE),
	       COUNT(*) FILTER (WHERE status = 'failed')
	FROM employee_notifications WHERE tenant_id = $1`
	err := d.Pool.QueryRow(ctx, query, tenantID).Scan(&stats.TotalNotifications, &stats.SentToday, &stats.Failed)
	if err != nil {
		return models.TenantStats{}, fmt.Errorf("failed to aggregate notifications: %w", err)
	}

	stats.ByChannel = make(map[string]int64)
	rows, err := d.Pool.Query(ctx,
		`SELECT channel, COUNT(*) FROM employee_notifications WHERE tenant_id = $1 GROUP BY channel`, tenantID)
	if err != nil {
		return models.TenantStats{}, fmt.Errorf("failed to aggregate by channel: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return models.TenantStats{}, fmt.Errorf("failed to scan channel count: %w", err)
		}
		stats.ByChannel[key] = count
	}
	if err := rows.Err(); err != nil {
		return models.TenantStats{}, err
	}

	stats.ByTriggerEvent = make(map[string]int64)
	rows, err = d.Pool.Query(ctx,
		`SELECT trigger_event, COUNT(*) FROM employee_notifications WHERE tenant_id = $1 GROUP BY trigger_event`, tenantID)
	if err != nil {
		return models.TenantStats{}, fmt.Errorf("failed to aggregate by trigger: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return models.TenantStats{}, fmt.Errorf("failed to scan trigger count: %w", err)
		}
		stats.ByTriggerEvent[key] = count
	}
	return stats, rows.Err()
}
