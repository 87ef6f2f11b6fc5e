package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const ruleColumns = `id, user_id, name, enabled, priority, conditions, actions, times_triggered, last_triggered_at, created_at`

func scanRule(row rowScanner) (*Rule, error) {
	var (
		r               Rule
		conditions      []byte
		actions         []byte
		lastTriggeredAt sql.NullTime
	)
	if err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Name,
		&r.Enabled,
		&r.Priority,
		&conditions,
		&actions,
		&r.TimesTriggered,
		&lastTriggeredAt,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Conditions = append([]byte(nil), conditions...)
	r.Actions = append([]byte(nil), actions...)
	r.LastTriggeredAt = timePtr(lastTriggeredAt)
	return &r, nil
}

// ListEnabledRules returns the user's enabled rules, highest priority first.
// Ties keep creation order.
func (db *DB) ListEnabledRules(ctx context.Context, userID string) ([]*Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE user_id = $1 AND enabled = TRUE
		ORDER BY priority DESC, created_at ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

// GetRule retrieves a rule by ID.
func (db *DB) GetRule(ctx context.Context, ruleID string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = $1`
	r, err := scanRule(db.conn.QueryRowContext(ctx, query, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return r, nil
}

// RecordRuleTriggered increments times_triggered and sets last_triggered_at.
func (db *DB) RecordRuleTriggered(ctx context.Context, ruleID string, at time.Time) error {
	query := `
		UPDATE rules
		SET times_triggered = times_triggered + 1,
		    last_triggered_at = $2
		WHERE id = $1
	`
	result, err := db.conn.ExecContext(ctx, query, ruleID, at)
	if err != nil {
		return fmt.Errorf("failed to record rule trigger: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	return nil
}
