package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RegisterChat stores or replaces the chat id linked to a phone number. The
// telegram bridge cannot address recipients by phone, so employees link their
// chat once via the management API.
func (d *DB) RegisterChat(ctx context.Context, tenantID, phone string, chatID int64) error {
	query := `
	INSERT INTO chat_registrations (tenant_id, phone, chat_id, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (tenant_id, phone) DO UPDATE SET chat_id = EXCLUDED.chat_id`
	if _, err := d.Pool.Exec(ctx, query, tenantID, phone, chatID); err != nil {
		return fmt.Errorf("failed to register chat for %s: %w", phone, err)
	}
	return nil
}

// ChatIDForPhone resolves the registered chat id for a phone number, or 0
// when none is registered.
func (d *DB) ChatIDForPhone(ctx context.Context, tenantID, phone string) (int64, error) {
	var chatID int64
	query := `SELECT chat_id FROM chat_registrations WHERE tenant_id = $1 AND phone = $2`
	err := d.Pool.QueryRow(ctx, query, tenantID, phone).Scan(&chatID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to look up chat id for %s: %w", phone, err)
	}
	return chatID, nil
}
