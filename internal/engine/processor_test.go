package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"notification-engine/internal/directory"
	"notification-engine/internal/models"
	"notification-engine/internal/template"
)

type mockRuleStore struct {
	rules     []models.NotificationRule
	err       error
	triggered map[string]int
}

func (m *mockRuleStore) ActiveRulesByTrigger(ctx context.Context, tenantID, triggerEvent string) ([]models.NotificationRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.NotificationRule
	for _, r := range m.rules {
		if r.TenantID == tenantID && r.TriggerEvent == triggerEvent && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleStore) RecordTriggered(ctx context.Context, ruleID string, dispatched int, at time.Time) error {
	if m.triggered == nil {
		m.triggered = make(map[string]int)
	}
	m.triggered[ruleID] += dispatched
	return nil
}

type mockNotificationStore struct {
	created   []models.EmployeeNotification
	createErr error
	seen      map[string]bool
}

func (m *mockNotificationStore) CreateNotification(ctx context.Context, n *models.EmployeeNotification) error {
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = fmt.Sprintf("n%d", len(m.created)+1)
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotificationStore) UpdateNotificationStatus(ctx context.Context, id, status, errorMessage string) error {
	for i := range m.created {
		if m.created[i].ID == id {
			m.created[i].Status = status
			m.created[i].ErrorMessage = errorMessage
		}
	}
	return nil
}

func (m *mockNotificationStore) HasWebhookEvent(ctx context.Context, tenantID, webhookEventID string) (bool, error) {
	return m.seen[webhookEventID], nil
}

type mockQueue struct {
	jobs []models.DispatchJob
	full bool
}

func (m *mockQueue) Enqueue(job models.DispatchJob) bool {
	if m.full {
		return false
	}
	m.jobs = append(m.jobs, job)
	return true
}

func newTestProcessor(rules *mockRuleStore, notifs *mockNotificationStore, dir directory.Directory, queue *mockQueue) *Processor {
	renderer := template.NewRenderer(template.DefaultPhrases(), rand.New(rand.NewSource(1)))
	p := NewProcessor(rules, notifs, dir, renderer, queue, testLogger())
	p.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func orderCreatedEvent() models.EventContext {
	return models.EventContext{
		TenantID:  "t1",
		StoreID:   "s1",
		EventType: models.EventOrderCreated,
		Data: map[string]any{
			"id":       "12345",
			"total":    map[string]any{"amount": float64(250)},
			"customer": map[string]any{"first_name": "Ahmad"},
		},
	}
}

func TestProcessEventNoMatchingRules(t *testing.T) {
	rules := &mockRuleStore{}
	notifs := &mockNotificationStore{}
	queue := &mockQueue{}
	p := newTestProcessor(rules, notifs, &mockDirectory{}, queue)

	count, err := p.ProcessEvent(context.Background(), orderCreatedEvent())
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if count != 0 || len(notifs.created) != 0 || len(queue.jobs) != 0 {
		t.Errorf("expected no side effects, got count=%d records=%d jobs=%d", count, len(notifs.created), len(queue.jobs))
	}
}

func TestProcessEventFansOutPerRecipientAndChannel(t *testing.T) {
	rules := &mockRuleStore{rules: []models.NotificationRule{{
		ID:             "r1",
		TenantID:       "t1",
		TriggerEvent:   models.EventOrderCreated,
		Channels:       []models.Channel{models.ChannelDashboard, models.ChannelEmail},
		RecipientTypes: []models.RecipientType{models.RecipientByRole},
		TargetRoles:    []string{"support"},
		IsActive:       true,
		Priority:       2,
	}}}
	notifs := &mockNotificationStore{}
	queue := &mockQueue{}
	dir := &mockDirectory{
		storeName: "Ahmad's Store",
		employees: map[string]directory.Employee{
			"e1": {ID: "e1", Name: "Sara", Role: "support", Email: "sara@shop.test", IsActive: true},
			"e2": {ID: "e2", Name: "Omar", Role: "support", IsActive: true},
		},
	}
	p := newTestProcessor(rules, notifs, dir, queue)

	count, err := p.ProcessEvent(context.Background(), orderCreatedEvent())
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	// 2 dashboard records + 1 email record; the contactless employee gets no
	// email job and no error
	if count != 3 {
		t.Fatalf("expected 3 jobs, got %d", count)
	}
	if len(notifs.created) != 3 || len(queue.jobs) != 3 {
		t.Fatalf("expected 3 records and 3 jobs, got %d records %d jobs", len(notifs.created), len(queue.jobs))
	}

	byChannel := map[models.Channel]int{}
	for _, n := range notifs.created {
		byChannel[n.Channel]++
		switch n.Channel {
		case models.ChannelDashboard:
			if n.Status != models.StatusDelivered {
				t.Errorf("dashboard record created with status %s", n.Status)
			}
		case models.ChannelEmail:
			if n.Status != models.StatusPending {
				t.Errorf("email record created with status %s", n.Status)
			}
		}
		if n.Title != "New order #12345" {
			t.Errorf("unexpected title %q", n.Title)
		}
		if !strings.Contains(n.Message, "Ahmad placed order #12345 for 250 at Ahmad's Store.") {
			t.Errorf("unexpected message %q", n.Message)
		}
	}
	if byChannel[models.ChannelDashboard] != 2 || byChannel[models.ChannelEmail] != 1 {
		t.Errorf("unexpected channel split: %v", byChannel)
	}

	if rules.triggered["r1"] != 3 {
		t.Errorf("sent count incremented by %d, want 3", rules.triggered["r1"])
	}
	if dir.listCalls != 1 {
		t.Errorf("directory listed %d times, want 1", dir.listCalls)
	}
}

func TestProcessEventInactiveRuleExcluded(t *testing.T) {
	rules := &mockRuleStore{rules: []models.NotificationRule{{
		ID:             "r1",
		TenantID:       "t1",
		TriggerEvent:   models.EventOrderCreated,
		Channels:       []models.Channel{models.ChannelDashboard},
		RecipientTypes: []models.RecipientType{models.RecipientAllEmployees},
		IsActive:       false,
	}}}
	notifs := &mockNotificationStore{}
	queue := &mockQueue{}
	dir := &mockDirectory{employees: map[string]directory.Employee{
		"e1": {ID: "e1", Name: "Sara", IsActive: true},
	}}
	p := newTestProcessor(rules, notifs, dir, queue)

	count, err := p.ProcessEvent(context.Background(), orderCreatedEvent())
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if count != 0 || len(notifs.created) != 0 {
		t.Errorf("inactive rule produced notifications: count=%d records=%d", count, len(notifs.created))
	}
}

func TestProcessEventConditionsSkipRule(t *testing.T) {
	rules := &mockRuleStore{rules: []models.NotificationRule{{
		ID:             "r1",
		TenantID:       "t1",
		TriggerEvent:   models.EventOrderCreated,
		Channels:       []models.Channel{models.ChannelDashboard},
		RecipientTypes: []models.RecipientType{models.RecipientAllEmployees},
		Conditions:     models.RuleConditions{MinOrderAmount: floatPtr(1000)},
		IsActive:       true,
	}}}
	notifs := &mockNotificationStore{}
	queue := &mockQueue{}
	dir := &mockDirectory{employees: map[string]directory.Employee{
		"e1": {ID: "e1", Name: "Sara", IsActive: true},
	}}
	p := newTestProcessor(rules, notifs, dir, queue)

	count, err := p.ProcessEvent(context.Background(), orderCreatedEvent())
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if count != 0 || len(notifs.created) != 0 {
		t.Errorf("unmet conditions still produced notifications")
	}
	if rules.triggered["r1"] != 0 {
		t.Errorf("skipped rule must not bump sent count")
	}
}

func TestProcessEventRuleFailureDoesNotAbortSiblings(t *testing.T) {
	rules := &mockRuleStore{rules: []models.NotificationRule{
		{
			ID:             "r-broken",
			TenantID:       "t1",
			TriggerEvent:   models.EventOrderCreated,
			Channels:       []models.Channel{models.ChannelEmail},
			RecipientTypes: []models.RecipientType{models.RecipientAllEmployees},
			IsActive:       true,
		},
		{
			ID:             "r-ok",
			TenantID:       "t1",
			TriggerEvent:   models.EventOrderCreated,
			Channels:       []models.Channel{models.ChannelEmail},
			RecipientTypes: []models.RecipientType{models.RecipientCustomEmails},
			CustomEmails:   []string{"ops@shop.test"},
			IsActive:       true,
		},
	}}
	notifs := &mockNotificationStore{}
	queue := &mockQueue{}
	// directory failure breaks only the rule that needs it
	dir := &mockDirectory{listErr: errors.New("directory down")}
	p := newTestProcessor(rules, notifs, dir, queue)

	count, err := p.ProcessEvent(context.Background(), orderCreatedEvent())
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the healthy rule to dispatch 1 job, got %d", count)
	}
	if len(notifs.created) != 1 || notifs.created[0].RuleID != "r-ok" {
		t.Fatalf("expected one record from r-ok, got %+v", notifs.created)
	}
	if rules.triggered["r-broken"] != 0 || rules.triggered["r-ok"] != 1 {
		t.Errorf("unexpected trigger counts: %v", rules.triggered)
	}
}

func TestProcessEventCompatibilityGateExcludesDashboardForCustomContacts(t *testing.T) {
	rules := &mockRuleStore{rules: []models.NotificationRule{{
		ID:             "r1",
		TenantID:       "t1",
		TriggerEvent:   models.EventOrderCreated,
		Channels:       []models.Channel{models.ChannelDashboard},
		RecipientTypes: []models.RecipientType{models.RecipientCustomPhones},
		CustomPhones:   []string{"+971501234567"},
		IsActive:       true,
	}}}
	notifs := &mockNotificationStore{}
	queue := &mockQueue{}
	p := newTestProcessor(rules, notifs, &mockDirectory{}, queue)

	count, err := p.ProcessEvent(context.Background(), orderCreatedEvent())
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if count != 0 || len(notifs.created) != 0 {
		t.Errorf("synthetic recipients must never get dashboard records")
	}
	if rules.triggered["r1"] != 0 {
		t.Errorf("fully gated rule must not bump sent count")
	}
}

func TestProcessEventFullQueueFailsDroppedRecord(t *testing.T) {
	rules := &mockRuleStore{rules: []models.NotificationRule{{
		ID:             "r1",
		TenantID:       "t1",
		TriggerEvent:   models.EventOrderCreated,
		Channels:       []models.Channel{models.ChannelEmail},
		RecipientTypes: []models.RecipientType{models.RecipientCustomEmails},
		CustomEmails:   []string{"ops@shop.test"},
		IsActive:       true,
	}}}
	notifs := &mockNotificationStore{}
	queue := &mockQueue{full: true}
	p := newTestProcessor(rules, notifs, &mockDirectory{}, queue)

	count, err := p.ProcessEvent(context.Background(), orderCreatedEvent())
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if count != 0 {
		t.Errorf("dropped job counted as dispatched: %d", count)
	}
	if len(notifs.created) != 1 {
		t.Fatalf("expected 1 record, got %d", len(notifs.created))
	}
	// the record must not stay pending with no job owning it
	if got := notifs.created[0]; got.Status != models.StatusFailed || got.ErrorMessage != "dispatch queue full" {
		t.Errorf("dropped record = %s %q, want failed with queue-full error", got.Status, got.ErrorMessage)
	}
	if rules.triggered["r1"] != 0 {
		t.Errorf("dropped job must not bump sent count")
	}
}

func TestProcessEventDeduplicatesRedeliveredWebhook(t *testing.T) {
	rules := &mockRuleStore{rules: []models.NotificationRule{{
		ID:             "r1",
		TenantID:       "t1",
		TriggerEvent:   models.EventOrderCreated,
		Channels:       []models.Channel{models.ChannelEmail},
		RecipientTypes: []models.RecipientType{models.RecipientCustomEmails},
		CustomEmails:   []string{"ops@shop.test"},
		IsActive:       true,
	}}}
	notifs := &mockNotificationStore{seen: map[string]bool{"wh-1": true}}
	queue := &mockQueue{}
	p := newTestProcessor(rules, notifs, &mockDirectory{}, queue)

	evt := orderCreatedEvent()
	evt.WebhookEventID = "wh-1"
	count, err := p.ProcessEvent(context.Background(), evt)
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if count != 0 || len(notifs.created) != 0 {
		t.Errorf("redelivered event must be a no-op")
	}
}

func TestProcessEventRuleLookupFailureFailsCall(t *testing.T) {
	rules := &mockRuleStore{err: errors.New("db down")}
	p := newTestProcessor(rules, &mockNotificationStore{}, &mockDirectory{}, &mockQueue{})
	if _, err := p.ProcessEvent(context.Background(), orderCreatedEvent()); err == nil {
		t.Fatal("expected error when the rule match query fails")
	}
}

func TestTestRuleRendersWithoutSideEffects(t *testing.T) {
	notifs := &mockNotificationStore{}
	queue := &mockQueue{}
	dir := &mockDirectory{employees: map[string]directory.Employee{
		"e1": {ID: "e1", Name: "Sara", Email: "sara@shop.test", Role: "support", IsActive: true},
	}}
	p := newTestProcessor(&mockRuleStore{}, notifs, dir, queue)

	rule := &models.NotificationRule{
		ID:             "r1",
		TenantID:       "t1",
		TriggerEvent:   models.EventOrderCreated,
		Channels:       []models.Channel{models.ChannelDashboard, models.ChannelEmail},
		RecipientTypes: []models.RecipientType{models.RecipientByRole},
		TargetRoles:    []string{"support"},
	}
	previews, err := p.TestRule(context.Background(), rule, orderCreatedEvent())
	if err != nil {
		t.Fatalf("TestRule() error = %v", err)
	}
	if len(previews) != 2 {
		t.Fatalf("expected 2 previews, got %d", len(previews))
	}
	if len(notifs.created) != 0 || len(queue.jobs) != 0 {
		t.Error("test send must not persist records or enqueue jobs")
	}
}
