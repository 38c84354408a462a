package status

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"notification-engine/internal/models"
)

// Store is the persistence surface the tracker drives.
type Store interface {
	GetNotification(ctx context.Context, id string) (models.EmployeeNotification, error)
	UpdateNotificationStatus(ctx context.Context, id, status, errorMessage string) error
	MarkNotificationRead(ctx context.Context, tenantID, employeeID, id string, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, tenantID, employeeID string, at time.Time) (int64, error)
	NotificationStats(ctx context.Context, tenantID string) (models.TenantStats, error)
	CountRules(ctx context.Context, tenantID string) (total, active int, err error)
}

// Tracker owns the delivery-record status lifecycle: worker callbacks,
// employee read marks, and tenant statistics.
type Tracker struct {
	store  Store
	logger *logrus.Logger
	now    func() time.Time
}

func NewTracker(store Store, logger *logrus.Logger) *Tracker {
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// Current returns the record as persisted; workers use it to gate re-sends.
func (t *Tracker) Current(ctx context.Context, id string) (models.EmployeeNotification, error) {
	return t.store.GetNotification(ctx, id)
}

// UpdateStatus sets status and error message and bumps the attempts counter.
// Called only by delivery workers.
func (t *Tracker) UpdateStatus(ctx context.Context, id, status, errorMessage string) error {
	return t.store.UpdateNotificationStatus(ctx, id, status, errorMessage)
}

// MarkRead flips one dashboard record of the employee to read.
func (t *Tracker) MarkRead(ctx context.Context, tenantID, employeeID, id string) error {
	return t.store.MarkNotificationRead(ctx, tenantID, employeeID, id, t.now())
}

// MarkAllRead flips every unread dashboard record of the employee and
// returns how many were updated.
func (t *Tracker) MarkAllRead(ctx context.Context, tenantID, employeeID string) (int64, error) {
	return t.store.MarkAllNotificationsRead(ctx, tenantID, employeeID, t.now())
}

// Stats aggregates rule and notification counters for the tenant.
func (t *Tracker) Stats(ctx context.Context, tenantID string) (models.TenantStats, error) {
	stats, err := t.store.NotificationStats(ctx, tenantID)
	if err != nil {
		return models.TenantStats{}, err
	}
	total, active, err := t.store.CountRules(ctx, tenantID)
	if err != nil {
		return models.TenantStats{}, err
	}
	stats.TotalRules = total
	stats.ActiveRules = active
	return stats, nil
}
