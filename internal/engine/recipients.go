package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"notification-engine/internal/directory"
	"notification-engine/internal/models"
)

// Resolver turns a rule's recipient specification into a deduplicated list of
// addressable recipients. Each recipient type resolves through its own
// strategy; results are unioned by recipient id, first occurrence wins.
type Resolver struct {
	directory  directory.Directory
	logger     *logrus.Logger
	strategies map[models.RecipientType]strategyFunc
}

type strategyFunc func(ctx context.Context, rule *models.NotificationRule, evt models.EventContext) ([]models.RecipientInfo, error)

func NewResolver(dir directory.Directory, logger *logrus.Logger) *Resolver {
	r := &Resolver{directory: dir, logger: logger}
	r.strategies = map[models.RecipientType]strategyFunc{
		models.RecipientAllEmployees:      r.resolveAllEmployees,
		models.RecipientSpecificEmployees: r.resolveSpecificEmployees,
		models.RecipientByRole:            r.resolveByRole,
		models.RecipientAssignedEmployee:  r.resolveAssignedEmployee,
		models.RecipientCustomPhones:      r.resolveCustomPhones,
		models.RecipientCustomEmails:      r.resolveCustomEmails,
	}
	return r
}

// Resolve runs every strategy declared on the rule and unions the results.
func (r *Resolver) Resolve(ctx context.Context, rule *models.NotificationRule, evt models.EventContext) ([]models.RecipientInfo, error) {
	seen := make(map[string]bool)
	var recipients []models.RecipientInfo

	for _, rt := range rule.RecipientTypes {
		strategy, ok := r.strategies[rt]
		if !ok {
			r.logger.WithFields(logrus.Fields{"rule_id": rule.ID, "recipient_type": rt}).
				Warn("unknown recipient type, skipping")
			continue
		}
		batch, err := strategy(ctx, rule, evt)
		if err != nil {
			return nil, fmt.Errorf("resolving %s recipients: %w", rt, err)
		}
		for _, rcpt := range batch {
			if seen[rcpt.ID] {
				continue
			}
			seen[rcpt.ID] = true
			recipients = append(recipients, rcpt)
		}
	}
	return recipients, nil
}

func employeeToRecipient(emp directory.Employee) models.RecipientInfo {
	return models.RecipientInfo{
		ID:    emp.ID,
		Name:  emp.Name,
		Email: emp.Email,
		Phone: NormalizePhone(emp.Phone),
		Role:  emp.Role,
	}
}

func (r *Resolver) resolveAllEmployees(ctx context.Context, rule *models.NotificationRule, evt models.EventContext) ([]models.RecipientInfo, error) {
	employees, err := r.directory.ListActiveEmployees(ctx, rule.TenantID)
	if err != nil {
		return nil, err
	}
	out := make([]models.RecipientInfo, 0, len(employees))
	for _, emp := range employees {
		out = append(out, employeeToRecipient(emp))
	}
	return out, nil
}

func (r *Resolver) resolveSpecificEmployees(ctx context.Context, rule *models.NotificationRule, evt models.EventContext) ([]models.RecipientInfo, error) {
	var out []models.RecipientInfo
	for _, id := range rule.SpecificEmployeeIDs {
		emp, err := r.directory.GetEmployee(ctx, rule.TenantID, id)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				r.logger.WithFields(logrus.Fields{"rule_id": rule.ID, "employee_id": id}).
					Warn("employee not found, skipping")
				continue
			}
			return nil, err
		}
		out = append(out, employeeToRecipient(*emp))
	}
	return out, nil
}

func (r *Resolver) resolveByRole(ctx context.Context, rule *models.NotificationRule, evt models.EventContext) ([]models.RecipientInfo, error) {
	employees, err := r.directory.ListActiveEmployees(ctx, rule.TenantID)
	if err != nil {
		return nil, err
	}
	var out []models.RecipientInfo
	for _, emp := range employees {
		for _, role := range rule.TargetRoles {
			if strings.EqualFold(emp.Role, role) {
				out = append(out, employeeToRecipient(emp))
				break
			}
		}
	}
	return out, nil
}

func (r *Resolver) resolveAssignedEmployee(ctx context.Context, rule *models.NotificationRule, evt models.EventContext) ([]models.RecipientInfo, error) {
	assignedID := lookupString(evt.Data, "assigned_to", "employee_id", "assigned_employee_id")
	if assignedID == "" {
		return nil, nil
	}
	emp, err := r.directory.GetEmployee(ctx, rule.TenantID, assignedID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			r.logger.WithFields(logrus.Fields{"rule_id": rule.ID, "employee_id": assignedID}).
				Warn("assigned employee not found, skipping")
			return nil, nil
		}
		return nil, err
	}
	return []models.RecipientInfo{employeeToRecipient(*emp)}, nil
}

func (r *Resolver) resolveCustomPhones(ctx context.Context, rule *models.NotificationRule, evt models.EventContext) ([]models.RecipientInfo, error) {
	var out []models.RecipientInfo
	for i, phone := range rule.CustomPhones {
		normalized := NormalizePhone(phone)
		if normalized == "" {
			continue
		}
		out = append(out, models.RecipientInfo{
			ID:    fmt.Sprintf("%s%d", models.SyntheticPhonePrefix, i),
			Name:  normalized,
			Phone: normalized,
		})
	}
	return out, nil
}

func (r *Resolver) resolveCustomEmails(ctx context.Context, rule *models.NotificationRule, evt models.EventContext) ([]models.RecipientInfo, error) {
	var out []models.RecipientInfo
	for i, email := range rule.CustomEmails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		out = append(out, models.RecipientInfo{
			ID:    fmt.Sprintf("%s%d", models.SyntheticEmailPrefix, i),
			Name:  email,
			Email: email,
		})
	}
	return out, nil
}

// NormalizePhone reduces a phone number to +-prefixed international form:
// separators stripped, a 00 prefix replaced by +, a bare number given a
// leading +. Empty input stays empty.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	p := b.String()
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "00") {
		p = "+" + p[2:]
	}
	if !strings.HasPrefix(p, "+") {
		p = "+" + p
	}
	return p
}

// CanSendToChannel is the channel/contact compatibility gate. Incompatible
// pairs are a configuration mismatch: skipped, never retried.
func CanSendToChannel(rcpt models.RecipientInfo, channel models.Channel) bool {
	switch channel {
	case models.ChannelChat:
		return rcpt.Phone != ""
	case models.ChannelEmail:
		return strings.Contains(rcpt.Email, "@")
	case models.ChannelDashboard:
		// custom-contact recipients have no dashboard account
		return !rcpt.IsSynthetic()
	default:
		return false
	}
}
