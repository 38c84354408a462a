package engine

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"notification-engine/internal/directory"
	"notification-engine/internal/models"
)

type mockDirectory struct {
	employees map[string]directory.Employee
	storeName string
	listErr   error
	getErr    error
	listCalls int
}

func (m *mockDirectory) ListActiveEmployees(ctx context.Context, tenantID string) ([]directory.Employee, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []directory.Employee
	for _, emp := range m.employees {
		if emp.IsActive {
			out = append(out, emp)
		}
	}
	return out, nil
}

func (m *mockDirectory) GetEmployee(ctx context.Context, tenantID, employeeID string) (*directory.Employee, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	emp, ok := m.employees[employeeID]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &emp, nil
}

func (m *mockDirectory) GetStoreName(ctx context.Context, tenantID, storeID string) (string, error) {
	return m.storeName, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestResolveByRole(t *testing.T) {
	dir := &mockDirectory{employees: map[string]directory.Employee{
		"e1": {ID: "e1", Name: "Sara", Role: "support", Email: "sara@shop.test", IsActive: true},
		"e2": {ID: "e2", Name: "Omar", Role: "Support", IsActive: true},
		"e3": {ID: "e3", Name: "Lina", Role: "manager", IsActive: true},
	}}
	resolver := NewResolver(dir, testLogger())

	rule := &models.NotificationRule{
		ID:             "r1",
		TenantID:       "t1",
		RecipientTypes: []models.RecipientType{models.RecipientByRole},
		TargetRoles:    []string{"support"},
	}
	recipients, err := resolver.Resolve(context.Background(), rule, models.EventContext{TenantID: "t1"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(recipients) != 2 {
		t.Fatalf("expected 2 support recipients, got %d", len(recipients))
	}
	for _, rcpt := range recipients {
		if rcpt.ID == "e3" {
			t.Error("manager should not be resolved for support role")
		}
	}
}

func TestResolveSpecificEmployeesSkipsMissing(t *testing.T) {
	dir := &mockDirectory{employees: map[string]directory.Employee{
		"e1": {ID: "e1", Name: "Sara", IsActive: true},
	}}
	resolver := NewResolver(dir, testLogger())

	rule := &models.NotificationRule{
		TenantID:            "t1",
		RecipientTypes:      []models.RecipientType{models.RecipientSpecificEmployees},
		SpecificEmployeeIDs: []string{"e1", "ghost"},
	}
	recipients, err := resolver.Resolve(context.Background(), rule, models.EventContext{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(recipients) != 1 || recipients[0].ID != "e1" {
		t.Fatalf("expected only e1, got %+v", recipients)
	}
}

func TestResolveAssignedEmployee(t *testing.T) {
	dir := &mockDirectory{employees: map[string]directory.Employee{
		"e7": {ID: "e7", Name: "Nour", IsActive: true},
	}}
	resolver := NewResolver(dir, testLogger())
	rule := &models.NotificationRule{
		TenantID:       "t1",
		RecipientTypes: []models.RecipientType{models.RecipientAssignedEmployee},
	}

	recipients, err := resolver.Resolve(context.Background(), rule,
		models.EventContext{Data: map[string]any{"assigned_to": "e7"}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(recipients) != 1 || recipients[0].ID != "e7" {
		t.Fatalf("expected e7, got %+v", recipients)
	}

	recipients, err = resolver.Resolve(context.Background(), rule, models.EventContext{Data: map[string]any{}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(recipients) != 0 {
		t.Fatalf("expected no recipients without assignment, got %+v", recipients)
	}
}

func TestResolveCustomContacts(t *testing.T) {
	resolver := NewResolver(&mockDirectory{}, testLogger())
	rule := &models.NotificationRule{
		RecipientTypes: []models.RecipientType{models.RecipientCustomPhones, models.RecipientCustomEmails},
		CustomPhones:   []string{"00971 50 123 4567", "966501112222"},
		CustomEmails:   []string{"ops@shop.test"},
	}

	recipients, err := resolver.Resolve(context.Background(), rule, models.EventContext{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(recipients) != 3 {
		t.Fatalf("expected 3 synthetic recipients, got %d", len(recipients))
	}
	if recipients[0].ID != "custom-phone-0" || recipients[0].Phone != "+971501234567" {
		t.Errorf("unexpected first phone recipient: %+v", recipients[0])
	}
	if recipients[1].Phone != "+966501112222" {
		t.Errorf("unexpected second phone recipient: %+v", recipients[1])
	}
	if recipients[2].ID != "custom-email-0" || recipients[2].Email != "ops@shop.test" {
		t.Errorf("unexpected email recipient: %+v", recipients[2])
	}
	for _, rcpt := range recipients {
		if !rcpt.IsSynthetic() {
			t.Errorf("recipient %s should be synthetic", rcpt.ID)
		}
	}
}

func TestResolveDeduplicatesFirstWins(t *testing.T) {
	dir := &mockDirectory{employees: map[string]directory.Employee{
		"e1": {ID: "e1", Name: "Sara", Role: "support", IsActive: true},
	}}
	resolver := NewResolver(dir, testLogger())
	rule := &models.NotificationRule{
		TenantID: "t1",
		RecipientTypes: []models.RecipientType{
			models.RecipientSpecificEmployees,
			models.RecipientByRole,
		},
		SpecificEmployeeIDs: []string{"e1"},
		TargetRoles:         []string{"support"},
	}

	recipients, err := resolver.Resolve(context.Background(), rule, models.EventContext{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(recipients) != 1 {
		t.Fatalf("expected deduplicated single recipient, got %d", len(recipients))
	}
}

func TestResolvePropagatesDirectoryError(t *testing.T) {
	dir := &mockDirectory{listErr: errors.New("directory down")}
	resolver := NewResolver(dir, testLogger())
	rule := &models.NotificationRule{
		RecipientTypes: []models.RecipientType{models.RecipientAllEmployees},
	}
	if _, err := resolver.Resolve(context.Background(), rule, models.EventContext{}); err == nil {
		t.Fatal("expected error from failing directory")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"+971501234567", "+971501234567"},
		{"00971501234567", "+971501234567"},
		{"971 50-123 4567", "+971501234567"},
		{"(971) 50 123 4567", "+971501234567"},
		{"0097 150 1234567", "+971501234567"},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanSendToChannel(t *testing.T) {
	employee := models.RecipientInfo{ID: "e1", Email: "sara@shop.test", Phone: "+971501234567"}
	noContact := models.RecipientInfo{ID: "e2", Name: "Omar"}
	customPhone := models.RecipientInfo{ID: "custom-phone-0", Phone: "+966501112222"}
	customEmail := models.RecipientInfo{ID: "custom-email-0", Email: "ops@shop.test"}

	tests := []struct {
		name    string
		rcpt    models.RecipientInfo
		channel models.Channel
		want    bool
	}{
		{"employee to dashboard", employee, models.ChannelDashboard, true},
		{"employee to email", employee, models.ChannelEmail, true},
		{"employee to chat", employee, models.ChannelChat, true},
		{"no contact to email", noContact, models.ChannelEmail, false},
		{"no contact to chat", noContact, models.ChannelChat, false},
		{"no contact to dashboard", noContact, models.ChannelDashboard, true},
		{"custom phone to dashboard", customPhone, models.ChannelDashboard, false},
		{"custom phone to chat", customPhone, models.ChannelChat, true},
		{"custom email to dashboard", customEmail, models.ChannelDashboard, false},
		{"custom email to email", customEmail, models.ChannelEmail, true},
		{"unknown channel", employee, models.Channel("fax"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanSendToChannel(tt.rcpt, tt.channel); got != tt.want {
				t.Errorf("CanSendToChannel(%s, %s) = %v, want %v", tt.rcpt.ID, tt.channel, got, tt.want)
			}
		})
	}
}
