package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetPreference returns the delivery flags of a user for one notification type.
func (db *DB) GetPreference(ctx context.Context, userID, notificationType string) (*Preference, error) {
	query := `
		SELECT user_id, notification_type, enabled, in_app, email, push, email_address
		FROM notification_preferences
		WHERE user_id = $1 AND notification_type = $2
	`
	var p Preference
	err := db.conn.QueryRowContext(ctx, query, userID, notificationType).Scan(
		&p.UserID,
		&p.NotificationType,
		&p.Enabled,
		&p.InApp,
		&p.Email,
		&p.Push,
		&p.EmailAddress,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preference %s/%s: %w", userID, notificationType, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return &p, nil
}

// UpsertPreference writes p, replacing the existing row for the same
// (user_id, notification_type).
func (db *DB) UpsertPreference(ctx context.Context, p *Preference) error {
	query := `
		INSERT INTO notification_preferences (user_id, notification_type, enabled, in_app, email, push, email_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, notification_type) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    in_app = EXCLUDED.in_app,
		    email = EXCLUDED.email,
		    push = EXCLUDED.push,
		    email_address = EXCLUDED.email_address
	`
	_, err := db.conn.ExecContext(ctx, query,
		p.UserID,
		p.NotificationType,
		p.Enabled,
		p.InApp,
		p.Email,
		p.Push,
		p.EmailAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}
	return nil
}
