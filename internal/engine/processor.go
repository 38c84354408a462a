package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"notification-engine/internal/directory"
	"notification-engine/internal/models"
	"notification-engine/internal/template"
)

// RuleStore is the rule persistence the processor reads and counts against.
type RuleStore interface {
	ActiveRulesByTrigger(ctx context.Context, tenantID, triggerEvent string) ([]models.NotificationRule, error)
	RecordTriggered(ctx context.Context, ruleID string, dispatched int, at time.Time) error
}

// NotificationStore persists delivery records at fan-out time.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.EmployeeNotification) error
	UpdateNotificationStatus(ctx context.Context, id, status, errorMessage string) error
	HasWebhookEvent(ctx context.Context, tenantID, webhookEventID string) (bool, error)
}

// Enqueuer hands one dispatch job to the delivery pipeline. A false return
// means the queue refused the job (full) and it was logged there.
type Enqueuer interface {
	Enqueue(job models.DispatchJob) bool
}

// Processor is the event-side orchestrator: it matches rules, evaluates
// conditions, resolves recipients, renders messages, persists delivery
// records, and enqueues dispatch jobs.
type Processor struct {
	rules         RuleStore
	notifications NotificationStore
	directory     directory.Directory
	resolver      *Resolver
	renderer      *template.Renderer
	queue         Enqueuer
	logger        *logrus.Logger
	now           func() time.Time
}

func NewProcessor(
	rules RuleStore,
	notifications NotificationStore,
	dir directory.Directory,
	renderer *template.Renderer,
	queue Enqueuer,
	logger *logrus.Logger,
) *Processor {
	return &Processor{
		rules:         rules,
		notifications: notifications,
		directory:     dir,
		resolver:      NewResolver(dir, logger),
		renderer:      renderer,
		queue:         queue,
		logger:        logger,
		now:           time.Now,
	}
}

// OnEvent implements the bus Subscriber: it runs ProcessEvent to completion
// and logs the outcome.
func (p *Processor) OnEvent(ctx context.Context, evt models.EventContext) {
	count, err := p.ProcessEvent(ctx, evt)
	entry := p.logger.WithFields(logrus.Fields{
		"tenant_id":  evt.TenantID,
		"event_type": evt.EventType,
	})
	if err != nil {
		entry.WithError(err).Error("event processing failed")
		return
	}
	entry.WithField("jobs", count).Info("event processed")
}

// ProcessEvent fans one event out to every matching active rule and returns
// the number of dispatch jobs enqueued. Failures inside one rule never abort
// the others; only the rule match query itself can fail the call.
func (p *Processor) ProcessEvent(ctx context.Context, evt models.EventContext) (int, error) {
	if evt.WebhookEventID != "" {
		seen, err := p.notifications.HasWebhookEvent(ctx, evt.TenantID, evt.WebhookEventID)
		if err != nil {
			p.logger.WithError(err).Warn("webhook dedup check failed, processing anyway")
		} else if seen {
			p.logger.WithFields(logrus.Fields{
				"tenant_id":        evt.TenantID,
				"webhook_event_id": evt.WebhookEventID,
			}).Info("duplicate event, skipping")
			return 0, nil
		}
	}

	rules, err := p.rules.ActiveRulesByTrigger(ctx, evt.TenantID, evt.EventType)
	if err != nil {
		return 0, fmt.Errorf("matching rules for %s: %w", evt.EventType, err)
	}
	if len(rules) == 0 {
		return 0, nil
	}

	storeName := p.storeName(ctx, evt)

	total := 0
	for i := range rules {
		rule := &rules[i]
		dispatched, err := p.processRule(ctx, rule, evt, storeName)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"tenant_id": evt.TenantID,
				"rule_id":   rule.ID,
			}).WithError(err).Error("rule processing failed, continuing with remaining rules")
			continue
		}
		total += dispatched
	}
	return total, nil
}

// storeName resolves the store display name once per event; lookup failures
// degrade to an empty name rather than blocking notifications.
func (p *Processor) storeName(ctx context.Context, evt models.EventContext) string {
	if evt.StoreID == "" {
		return ""
	}
	name, err := p.directory.GetStoreName(ctx, evt.TenantID, evt.StoreID)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"tenant_id": evt.TenantID,
			"store_id":  evt.StoreID,
		}).WithError(err).Warn("store name lookup failed")
		return ""
	}
	return name
}

func (p *Processor) processRule(ctx context.Context, rule *models.NotificationRule, evt models.EventContext, storeName string) (dispatched int, err error) {
	// a misbehaving payload must not take down sibling rules
	defer func() {
		if r := recover(); r != nil {
			dispatched = 0
			err = fmt.Errorf("panic while processing rule %s: %v", rule.ID, r)
		}
	}()

	now := p.now()
	if !EvaluateConditions(rule.Conditions, evt.Data, now) {
		p.logger.WithField("rule_id", rule.ID).Debug("conditions not met, skipping rule")
		return 0, nil
	}

	recipients, err := p.resolver.Resolve(ctx, rule, evt)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		p.logger.WithField("rule_id", rule.ID).Warn("rule matched but resolved no recipients")
		return 0, nil
	}

	vars := BuildVariables(evt, storeName, now)

	for _, rcpt := range recipients {
		for _, channel := range rule.Channels {
			if !CanSendToChannel(rcpt, channel) {
				// configuration mismatch, not a failure
				continue
			}
			if p.dispatchOne(ctx, rule, evt, rcpt, channel, vars) {
				dispatched++
			}
		}
	}

	if dispatched > 0 {
		if err := p.rules.RecordTriggered(ctx, rule.ID, dispatched, now); err != nil {
			p.logger.WithField("rule_id", rule.ID).WithError(err).Error("failed to record rule trigger")
		}
	}
	return dispatched, nil
}

func (p *Processor) dispatchOne(ctx context.Context, rule *models.NotificationRule, evt models.EventContext, rcpt models.RecipientInfo, channel models.Channel, vars map[string]string) bool {
	recipientVars := WithRecipient(vars, rcpt)
	title, message := p.renderer.Render(rule, channel, recipientVars)

	status := models.StatusPending
	if channel == models.ChannelDashboard {
		// no external transport involved
		status = models.StatusDelivered
	}

	notif := models.EmployeeNotification{
		TenantID:       evt.TenantID,
		RuleID:         rule.ID,
		EmployeeID:     rcpt.ID,
		EmployeeName:   rcpt.Name,
		Channel:        channel,
		TriggerEvent:   rule.TriggerEvent,
		Title:          title,
		Message:        message,
		Status:         status,
		EventData:      evt.Data,
		ActionURL:      recipientVars["order_link"],
		Priority:       rule.Priority,
		WebhookEventID: evt.WebhookEventID,
	}
	if err := p.notifications.CreateNotification(ctx, &notif); err != nil {
		p.logger.WithFields(logrus.Fields{
			"rule_id":     rule.ID,
			"employee_id": rcpt.ID,
			"channel":     channel,
		}).WithError(err).Error("failed to persist delivery record")
		return false
	}

	if !p.queue.Enqueue(models.DispatchJob{
		NotificationID: notif.ID,
		TenantID:       evt.TenantID,
		Channel:        channel,
		EmployeeID:     rcpt.ID,
		EmployeeName:   rcpt.Name,
		EmployeeEmail:  rcpt.Email,
		EmployeePhone:  rcpt.Phone,
		Title:          title,
		Message:        message,
		ActionURL:      notif.ActionURL,
		Priority:       rule.Priority,
	}) {
		// no job owns the record anymore; fail it so the manual retry
		// endpoint can pick it up. Dashboard records are already delivered,
		// only their live push is lost.
		if channel != models.ChannelDashboard {
			if err := p.notifications.UpdateNotificationStatus(ctx, notif.ID, models.StatusFailed, "dispatch queue full"); err != nil {
				p.logger.WithField("notification_id", notif.ID).WithError(err).Error("failed to mark dropped record")
			}
		}
		return false
	}
	return true
}

// PreviewMessage is one rendered (recipient, channel) pair from a test send.
type PreviewMessage struct {
	EmployeeID   string         `json:"employee_id"`
	EmployeeName string         `json:"employee_name"`
	Channel      models.Channel `json:"channel"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
}

// TestRule runs the real condition, resolution, compatibility, and rendering
// path for a rule without persisting records or enqueueing jobs.
func (p *Processor) TestRule(ctx context.Context, rule *models.NotificationRule, evt models.EventContext) ([]PreviewMessage, error) {
	now := p.now()
	if !EvaluateConditions(rule.Conditions, evt.Data, now) {
		return nil, nil
	}
	recipients, err := p.resolver.Resolve(ctx, rule, evt)
	if err != nil {
		return nil, err
	}
	storeName := p.storeName(ctx, evt)
	vars := BuildVariables(evt, storeName, now)

	var previews []PreviewMessage
	for _, rcpt := range recipients {
		for _, channel := range rule.Channels {
			if !CanSendToChannel(rcpt, channel) {
				continue
			}
			title, message := p.renderer.Render(rule, channel, WithRecipient(vars, rcpt))
			previews = append(previews, PreviewMessage{
				EmployeeID:   rcpt.ID,
				EmployeeName: rcpt.Name,
				Channel:      channel,
				Title:        title,
				Message:      message,
			})
		}
	}
	return previews, nil
}
