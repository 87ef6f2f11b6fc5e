package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const contextColumns = `user_id, cycle_phase, energy_level, workload_percent, in_focus_session,
	pending_task_count, active_project_count, unread_notification_count,
	hour_of_day, day_of_week, productive_period, stress_level, needs_break, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContext(row rowScanner) (*UserContext, error) {
	var c UserContext
	err := row.Scan(
		&c.UserID,
		&c.CyclePhase,
		&c.EnergyLevel,
		&c.WorkloadPercent,
		&c.InFocusSession,
		&c.PendingTaskCount,
		&c.ActiveProjectCount,
		&c.UnreadNotificationCount,
		&c.HourOfDay,
		&c.DayOfWeek,
		&c.ProductivePeriod,
		&c.StressLevel,
		&c.NeedsBreak,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContext loads the context row of a user.
func (db *DB) GetContext(ctx context.Context, userID string) (*UserContext, error) {
	query := `SELECT ` + contextColumns + ` FROM user_contexts WHERE user_id = $1`
	c, err := scanContext(db.conn.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("context for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get context: %w", err)
	}
	return c, nil
}

// GetOrCreateContext returns the user's row, inserting seed first when none exists.
func (db *DB) GetOrCreateContext(ctx context.Context, seed *UserContext) (*UserContext, error) {
	if err := insertContextIfMissing(ctx, db.conn, seed); err != nil {
		return nil, err
	}
	return db.GetContext(ctx, seed.UserID)
}

// ModifyContext applies fn to the user's row inside a transaction. The row is
// locked with SELECT ... FOR UPDATE; seed is inserted first when the user has
// no row yet. The stored result is returned.
func (db *DB) ModifyContext(ctx context.Context, seed *UserContext, fn func(*UserContext) error) (*UserContext, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertContextIfMissing(ctx, tx, seed); err != nil {
		return nil, err
	}

	query := `SELECT ` + contextColumns + ` FROM user_contexts WHERE user_id = $1 FOR UPDATE`
	c, err := scanContext(tx.QueryRowContext(ctx, query, seed.UserID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock context: %w", err)
	}

	if err := fn(c); err != nil {
		return nil, err
	}

	update := `
		UPDATE user_contexts
		SET cycle_phase = $2,
		    energy_level = $3,
		    workload_percent = $4,
		    in_focus_session = $5,
		    pending_task_count = $6,
		    active_project_count = $7,
		    unread_notification_count = $8,
		    hour_of_day = $9,
		    day_of_week = $10,
		    productive_period = $11,
		    stress_level = $12,
		    needs_break = $13,
		    updated_at = $14
		WHERE user_id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		c.UserID,
		c.CyclePhase,
		c.EnergyLevel,
		c.WorkloadPercent,
		c.InFocusSession,
		c.PendingTaskCount,
		c.ActiveProjectCount,
		c.UnreadNotificationCount,
		c.HourOfDay,
		c.DayOfWeek,
		c.ProductivePeriod,
		c.StressLevel,
		c.NeedsBreak,
		c.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to update context: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit context update: %w", err)
	}
	return c, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertContextIfMissing(ctx context.Context, conn execer, seed *UserContext) error {
	query := `
		INSERT INTO user_contexts (` + contextColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := conn.ExecContext(ctx, query,
		seed.UserID,
		seed.CyclePhase,
		seed.EnergyLevel,
		seed.WorkloadPercent,
		seed.InFocusSession,
		seed.PendingTaskCount,
		seed.ActiveProjectCount,
		seed.UnreadNotificationCount,
		seed.HourOfDay,
		seed.DayOfWeek,
		seed.ProductivePeriod,
		seed.StressLevel,
		seed.NeedsBreak,
		seed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create context: %w", err)
	}
	return nil
}
