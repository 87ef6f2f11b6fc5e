package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

const notificationColumns = `id, user_id, type, title, message, extra_data, category, archived, read, priority, rules_processed, created_at`

func scanNotification(row rowScanner) (*Notification, error) {
	var (
		n         Notification
		extraData []byte
		category  sql.NullString
		priority  sql.NullString
	)
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Message,
		&extraData,
		&category,
		&n.Archived,
		&n.Read,
		&priority,
		&n.RulesProcessed,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	n.ExtraData = unmarshalJSONB(extraData, "notification_id", n.ID)
	n.Category = stringPtr(category)
	n.Priority = stringPtr(priority)
	return &n, nil
}

// CreateNotification inserts n and fills its generated ID and CreatedAt.
func (db *DB) CreateNotification(ctx context.Context, n *Notification) error {
	extraData, err := marshalJSONB(n.ExtraData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notifications (user_id, type, title, message, extra_data, category, archived, read, priority, rules_processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	err = db.conn.QueryRowContext(ctx, query,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		extraData,
		nullString(n.Category),
		n.Archived,
		n.Read,
		nullString(n.Priority),
		n.RulesProcessed,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	slog.Info("Inserted new notification",
		"notification_id", n.ID,
		"user_id", n.UserID,
		"type", n.Type,
	)
	return nil
}

// GetNotification retrieves a notification by ID.
func (db *DB) GetNotification(ctx context.Context, id string) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// SaveClassification commits the action-target fields of n and marks it as
// processed by the rule engine.
func (db *DB) SaveClassification(ctx context.Context, n *Notification) error {
	query := `
		UPDATE notifications
		SET category = $2,
		    archived = $3,
		    read = $4,
		    priority = $5,
		    rules_processed = TRUE
		WHERE id = $1
	`
	result, err := db.conn.ExecContext(ctx, query,
		n.ID,
		nullString(n.Category),
		n.Archived,
		n.Read,
		nullString(n.Priority),
	)
	if err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", n.ID, ErrNotFound)
	}
	n.RulesProcessed = true
	return nil
}

// ListUnprocessedNotificationIDs returns ids of notifications the rule engine
// has not processed yet, oldest first. An empty userID matches every user.
func (db *DB) ListUnprocessedNotificationIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	var query string
	var args []interface{}

	if userID != "" {
		query = `
			SELECT id FROM notifications
			WHERE rules_processed = FALSE AND user_id = $1
			ORDER BY created_at ASC
			LIMIT $2
		`
		args = []interface{}{userID, limit}
	} else {
		query = `
			SELECT id FROM notifications
			WHERE rules_processed = FALSE
			ORDER BY created_at ASC
			LIMIT $1
		`
		args = []interface{}{limit}
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed notifications: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan notification id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification ids: %w", err)
	}
	return ids, nil
}
