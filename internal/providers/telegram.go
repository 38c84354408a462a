package providers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"notification-engine/internal/config"
	"notification-engine/internal/dispatch"
	"notification-engine/internal/models"
)

// ChatRegistry resolves a phone number to the chat id an employee linked via
// the management API. Telegram cannot address recipients by phone directly.
type ChatRegistry interface {
	ChatIDForPhone(ctx context.Context, tenantID, phone string) (int64, error)
}

// TelegramTransport delivers chat-channel jobs through a Telegram bot,
// for tenants that bridge their chat channel to Telegram instead of the
// WhatsApp gateway.
type TelegramTransport struct {
	bot      *bot.Bot
	registry ChatRegistry
	limiter  *rate.Limiter
}

func NewTelegramTransport(cfg config.Config, registry ChatRegistry) (*TelegramTransport, error) {
	if cfg.Chat.BotToken == "" {
		return nil, fmt.Errorf("missing chat bot token")
	}
	b, err := bot.New(cfg.Chat.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat bot: %w", err)
	}
	return &TelegramTransport{
		bot:      b,
		registry: registry,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Chat.RatePerSecond), cfg.Chat.RatePerSecond),
	}, nil
}

func (t *TelegramTransport) Send(ctx context.Context, job models.DispatchJob) error {
	if job.EmployeePhone == "" {
		return dispatch.Permanent(fmt.Errorf("recipient %s has no phone number", job.EmployeeID))
	}

	chatID, err := t.registry.ChatIDForPhone(ctx, job.TenantID, job.EmployeePhone)
	if err != nil {
		return fmt.Errorf("failed to resolve chat id for %s: %w", job.EmployeePhone, err)
	}
	if chatID == 0 {
		// the employee never linked a chat; retrying cannot fix this
		return dispatch.Permanent(fmt.Errorf("no chat registered for %s", job.EmployeePhone))
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("chat rate limit wait failed: %w", err)
	}

	text := job.Title + "\n" + job.Message
	if job.ActionURL != "" {
		text += "\n" + job.ActionURL
	}
	if _, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("failed to send chat message to chat_id %d: %w", chatID, err)
	}
	return nil
}
