package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pilarhub/eventcore/internal/events"
)

const eventColumns = `id, type, origin_module, user_id, payload, priority, processed, created_at, processed_at`

// InsertEvent appends an event to the log. The caller assigns ID and CreatedAt.
func (db *DB) InsertEvent(ctx context.Context, e *events.Event) error {
	payload, err := marshalJSONB(e.Payload)
	if err != nil {
		return err
	}

	var userID sql.NullString
	if e.UserID != "" {
		userID = sql.NullString{String: e.UserID, Valid: true}
	}

	query := `
		INSERT INTO events (id, type, origin_module, user_id, payload, priority, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
	`
	_, err = db.conn.ExecContext(ctx, query,
		e.ID,
		string(e.Type),
		string(e.OriginModule),
		userID,
		payload,
		e.Priority,
		e.CreatedAt,
	)
	if err != nil {
		if isPQCode(err, pqUniqueViolation) {
			return fmt.Errorf("event already exists: %s", e.ID)
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// MarkEventProcessed sets processed = TRUE and stamps processed_at.
func (db *DB) MarkEventProcessed(ctx context.Context, id string) error {
	query := `UPDATE events SET processed = TRUE, processed_at = NOW() WHERE id = $1`
	result, err := db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRecentEvents returns the newest events, optionally restricted to one type.
func (db *DB) GetRecentEvents(ctx context.Context, eventType events.Type, limit int) ([]*events.Event, error) {
	var query string
	var args []interface{}

	if eventType != "" {
		query = `SELECT ` + eventColumns + ` FROM events WHERE type = $1 ORDER BY created_at DESC LIMIT $2`
		args = []interface{}{string(eventType), limit}
	} else {
		query = `SELECT ` + eventColumns + ` FROM events ORDER BY created_at DESC LIMIT $1`
		args = []interface{}{limit}
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	return scanEvents(rows)
}

// GetPendingEvents returns events not yet marked processed, oldest first.
func (db *DB) GetPendingEvents(ctx context.Context, limit int) ([]*events.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE processed = FALSE ORDER BY created_at ASC LIMIT $1`
	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	return scanEvents(rows)
}

// GetEventStats counts events created within the last windowHours, split by
// type, origin module and processed status.
func (db *DB) GetEventStats(ctx context.Context, windowHours int) (*events.Stats, error) {
	query := `
		SELECT type, origin_module, processed, COUNT(*)
		FROM events
		WHERE created_at >= NOW() - make_interval(hours => $1)
		GROUP BY type, origin_module, processed
	`
	rows, err := db.conn.QueryContext(ctx, query, windowHours)
	if err != nil {
		return nil, fmt.Errorf("failed to query event stats: %w", err)
	}
	defer rows.Close()

	stats := &events.Stats{
		WindowHours: windowHours,
		ByType:      make(map[string]int64),
		ByModule:    make(map[string]int64),
	}
	for rows.Next() {
		var (
			eventType, module string
			processed         bool
			count             int64
		)
		if err := rows.Scan(&eventType, &module, &processed, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event stats: %w", err)
		}
		stats.Total += count
		if processed {
			stats.Processed += count
		} else {
			stats.Pending += count
		}
		stats.ByType[eventType] += count
		stats.ByModule[module] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event stats: %w", err)
	}
	return stats, nil
}

func scanEvents(rows *sql.Rows) ([]*events.Event, error) {
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		var (
			e           events.Event
			eventType   string
			module      string
			userID      sql.NullString
			payload     []byte
			processedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&eventType,
			&module,
			&userID,
			&payload,
			&e.Priority,
			&e.Processed,
			&e.CreatedAt,
			&processedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = events.Type(eventType)
		e.OriginModule = events.Module(module)
		e.UserID = userID.String
		e.Payload = unmarshalJSONB(payload, "event_id", e.ID)
		e.ProcessedAt = timePtr(processedAt)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	slog.Debug("Loaded events", "count", len(out))
	return out, nil
}
