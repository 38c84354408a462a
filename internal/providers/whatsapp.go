package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"notification-engine/internal/config"
	"notification-engine/internal/dispatch"
	"notification-engine/internal/models"
)

// WhatsAppTransport delivers chat-channel jobs through a WhatsApp session
// gateway. The gateway owns the phone session; a send only works while that
// session is connected.
type WhatsAppTransport struct {
	baseURL string
	token   string
	session string
	http    *http.Client
	limiter *rate.Limiter
}

func NewWhatsAppTransport(cfg config.Config) *WhatsAppTransport {
	return &WhatsAppTransport{
		baseURL: cfg.Chat.GatewayURL,
		token:   cfg.Chat.GatewayToken,
		session: cfg.Chat.Session,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.Chat.RatePerSecond), cfg.Chat.RatePerSecond),
	}
}

func (t *WhatsAppTransport) Send(ctx context.Context, job models.DispatchJob) error {
	if job.EmployeePhone == "" {
		return dispatch.Permanent(fmt.Errorf("recipient %s has no phone number", job.EmployeeID))
	}
	if t.baseURL == "" || t.session == "" {
		return dispatch.Permanent(fmt.Errorf("missing chat gateway configuration"))
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("chat rate limit wait failed: %w", err)
	}

	connected, err := t.sessionConnected(ctx)
	if err != nil {
		return fmt.Errorf("failed to check gateway session: %w", err)
	}
	if !connected {
		// the session may reconnect; let the queue retry
		return fmt.Errorf("gateway session %s is not connected", t.session)
	}

	text := job.Title + "\n" + job.Message
	if job.ActionURL != "" {
		text += "\n" + job.ActionURL
	}
	payload, err := json.Marshal(map[string]string{
		"session": t.session,
		"phone":   job.EmployeePhone,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/messages/text", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send chat message to %s: %w", job.EmployeePhone, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, job.EmployeePhone)
	}
	return nil
}

func (t *WhatsAppTransport) sessionConnected(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/api/sessions/%s/status", t.baseURL, t.session)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var status struct {
		Connected bool `json:"connected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, err
	}
	return status.Connected, nil
}
