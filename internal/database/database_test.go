// These tests use sqlmock to mock database interactions.
package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/pilarhub/eventcore/internal/events"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &DB{conn: conn}, mock
}

func TestNewDB_InvalidDSN(t *testing.T) {
	db, err := NewDB("invalid-dsn")
	if err == nil {
		db.Close()
		t.Fatal("NewDB() expected error for invalid DSN")
	}
}

func TestDB_Close(t *testing.T) {
	db := &DB{conn: nil}
	if err := db.Close(); err != nil {
		t.Errorf("Close() with nil conn error = %v, want nil", err)
	}
}

func TestDB_EnsureSchema(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := d.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestSchema_Indexes(t *testing.T) {
	schema := strings.Join(strings.Fields(Schema), " ")
	for _, want := range []string{
		"ON events (type, processed)",
		"ON events (priority DESC, created_at)",
		"user_id TEXT PRIMARY KEY",
		"UNIQUE (user_id, notification_type)",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("Schema missing %q", want)
		}
	}
}

func TestDB_InsertEvent(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()
	e := &events.Event{
		ID:           "evt-1",
		Type:         events.TaskCreated,
		OriginModule: events.ModuleTasks,
		UserID:       "user-1",
		Payload:      map[string]any{"taskId": "t-1"},
		Priority:     5,
		CreatedAt:    time.Now().UTC(),
	}

	tests := []struct {
		name      string
		setupMock func()
		wantErr   bool
		errMsg    string
	}{
		{
			name: "successful insert",
			setupMock: func() {
				mock.ExpectExec("INSERT INTO events").
					WithArgs("evt-1", "TASK_CREATED", "tasks", "user-1", sqlmock.AnyArg(), 5, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name: "duplicate id",
			setupMock: func() {
				mock.ExpectExec("INSERT INTO events").
					WillReturnError(&pq.Error{Code: "23505"})
			},
			wantErr: true,
			errMsg:  "event already exists",
		},
		{
			name: "database error",
			setupMock: func() {
				mock.ExpectExec("INSERT INTO events").
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
			errMsg:  "failed to insert event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			err := d.InsertEvent(ctx, e)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && tt.errMsg != "" && err != nil && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("InsertEvent() error = %v, want error containing %v", err, tt.errMsg)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Mock expectations were not met: %v", err)
			}
		})
	}
}

func TestDB_MarkEventProcessed(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE events SET processed = TRUE").
		WithArgs("evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := d.MarkEventProcessed(ctx, "evt-1"); err != nil {
		t.Fatalf("MarkEventProcessed() error = %v", err)
	}

	mock.ExpectExec("UPDATE events SET processed = TRUE").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := d.MarkEventProcessed(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkEventProcessed(missing) error = %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "type", "origin_module", "user_id", "payload", "priority", "processed", "created_at", "processed_at"})
}

func TestDB_GetRecentEvents(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("filtered by type", func(t *testing.T) {
		mock.ExpectQuery("FROM events WHERE type = ").
			WithArgs("TASK_OVERDUE", 10).
			WillReturnRows(eventRows().
				AddRow("evt-2", "TASK_OVERDUE", "tasks", "user-1", []byte(`{"taskId":"t-9"}`), 7, true, now, now))

		got, err := d.GetRecentEvents(ctx, events.TaskOverdue, 10)
		if err != nil {
			t.Fatalf("GetRecentEvents() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("GetRecentEvents() returned %d events, want 1", len(got))
		}
		e := got[0]
		if e.Type != events.TaskOverdue || e.Priority != 7 || !e.Processed || e.ProcessedAt == nil {
			t.Errorf("unexpected event: %+v", e)
		}
		if e.Payload["taskId"] != "t-9" {
			t.Errorf("Payload = %v, want taskId t-9", e.Payload)
		}
	})

	t.Run("all types", func(t *testing.T) {
		mock.ExpectQuery("FROM events ORDER BY created_at DESC").
			WithArgs(5).
			WillReturnRows(eventRows().
				AddRow("evt-3", "TASK_CREATED", "tasks", nil, []byte(`not json`), 5, false, now, nil))

		got, err := d.GetRecentEvents(ctx, "", 5)
		if err != nil {
			t.Fatalf("GetRecentEvents() error = %v", err)
		}
		if len(got) != 1 || got[0].UserID != "" || len(got[0].Payload) != 0 || got[0].ProcessedAt != nil {
			t.Errorf("unexpected events: %+v", got)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_GetPendingEvents_UsesExplicitFilter(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("WHERE processed = FALSE ORDER BY created_at ASC").
		WithArgs(100).
		WillReturnRows(eventRows())

	got, err := d.GetPendingEvents(context.Background(), 100)
	if err != nil {
		t.Fatalf("GetPendingEvents() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetPendingEvents() = %d events, want 0", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_GetEventStats(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("GROUP BY type, origin_module, processed").
		WithArgs(24).
		WillReturnRows(sqlmock.NewRows([]string{"type", "origin_module", "processed", "count"}).
			AddRow("TASK_CREATED", "tasks", true, 4).
			AddRow("TASK_CREATED", "tasks", false, 1).
			AddRow("ENERGY_LOW", "wellness", true, 2))

	stats, err := d.GetEventStats(context.Background(), 24)
	if err != nil {
		t.Fatalf("GetEventStats() error = %v", err)
	}
	if stats.Total != 7 || stats.Processed != 6 || stats.Pending != 1 {
		t.Errorf("totals = %d/%d/%d, want 7/6/1", stats.Total, stats.Processed, stats.Pending)
	}
	if stats.ByType["TASK_CREATED"] != 5 || stats.ByModule["wellness"] != 2 {
		t.Errorf("breakdown = %v / %v", stats.ByType, stats.ByModule)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func contextRow(c *UserContext) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"user_id", "cycle_phase", "energy_level", "workload_percent", "in_focus_session",
		"pending_task_count", "active_project_count", "unread_notification_count",
		"hour_of_day", "day_of_week", "productive_period", "stress_level", "needs_break", "updated_at",
	}).AddRow(
		c.UserID, c.CyclePhase, c.EnergyLevel, c.WorkloadPercent, c.InFocusSession,
		c.PendingTaskCount, c.ActiveProjectCount, c.UnreadNotificationCount,
		c.HourOfDay, c.DayOfWeek, c.ProductivePeriod, c.StressLevel, c.NeedsBreak, c.UpdatedAt,
	)
}

func TestDB_ModifyContext(t *testing.T) {
	seed := &UserContext{UserID: "user-1", EnergyLevel: 7, WorkloadPercent: 50, StressLevel: 5, UpdatedAt: time.Now().UTC()}

	t.Run("commits the mutated row", func(t *testing.T) {
		d, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO user_contexts").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FOR UPDATE").WithArgs("user-1").WillReturnRows(contextRow(seed))
		mock.ExpectExec("UPDATE user_contexts").
			WithArgs("user-1", "ovulacao", 9, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := d.ModifyContext(context.Background(), seed, func(c *UserContext) error {
			c.CyclePhase = "ovulacao"
			c.EnergyLevel = 9
			return nil
		})
		if err != nil {
			t.Fatalf("ModifyContext() error = %v", err)
		}
		if got.CyclePhase != "ovulacao" || got.EnergyLevel != 9 {
			t.Errorf("ModifyContext() = %+v", got)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Mock expectations were not met: %v", err)
		}
	})

	t.Run("rolls back when the mutation fails", func(t *testing.T) {
		d, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO user_contexts").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FOR UPDATE").WithArgs("user-1").WillReturnRows(contextRow(seed))
		mock.ExpectRollback()

		_, err := d.ModifyContext(context.Background(), seed, func(*UserContext) error {
			return errors.New("boom")
		})
		if err == nil {
			t.Fatal("ModifyContext() expected error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Mock expectations were not met: %v", err)
		}
	})
}

func TestDB_GetContext_NotFound(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("FROM user_contexts WHERE user_id").
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := d.GetContext(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetContext() error = %v, want ErrNotFound", err)
	}
}

func TestDB_GetOrCreateContext(t *testing.T) {
	d, mock := newMockDB(t)
	seed := &UserContext{UserID: "user-2", EnergyLevel: 7, WorkloadPercent: 50, StressLevel: 5, UpdatedAt: time.Now().UTC()}
	mock.ExpectExec("ON CONFLICT \\(user_id\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM user_contexts WHERE user_id").WithArgs("user-2").WillReturnRows(contextRow(seed))

	got, err := d.GetOrCreateContext(context.Background(), seed)
	if err != nil {
		t.Fatalf("GetOrCreateContext() error = %v", err)
	}
	if got.EnergyLevel != 7 || got.StressLevel != 5 || got.WorkloadPercent != 50 {
		t.Errorf("GetOrCreateContext() = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func ruleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "enabled", "priority", "conditions", "actions", "times_triggered", "last_triggered_at", "created_at"})
}

func TestDB_ListEnabledRules(t *testing.T) {
	d, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("ORDER BY priority DESC, created_at ASC").
		WithArgs("user-1").
		WillReturnRows(ruleRows().
			AddRow("r-1", "user-1", "high", true, 10, []byte(`{"all":[]}`), []byte(`[{"type":"archive"}]`), 3, now, now).
			AddRow("r-2", "user-1", "low", true, 1, []byte(`{}`), []byte(`[]`), 0, nil, now))

	rules, err := d.ListEnabledRules(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListEnabledRules() error = %v", err)
	}
	if len(rules) != 2 || rules[0].ID != "r-1" || rules[1].LastTriggeredAt != nil {
		t.Errorf("ListEnabledRules() = %+v", rules)
	}
	if string(rules[0].Actions) != `[{"type":"archive"}]` {
		t.Errorf("Actions = %s", rules[0].Actions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_GetRule_NotFound(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("FROM rules WHERE id").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	if _, err := d.GetRule(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRule() error = %v, want ErrNotFound", err)
	}
}

func TestDB_RecordRuleTriggered(t *testing.T) {
	d, mock := newMockDB(t)
	at := time.Now().UTC()
	mock.ExpectExec("SET times_triggered = times_triggered \\+ 1").
		WithArgs("r-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := d.RecordRuleTriggered(context.Background(), "r-1", at); err != nil {
		t.Fatalf("RecordRuleTriggered() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_CreateNotification(t *testing.T) {
	d, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs("user-1", "TASK_OVERDUE", "Task overdue", "msg", sqlmock.AnyArg(), nil, false, false, nil, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("n-1", now))

	n := &Notification{UserID: "user-1", Type: "TASK_OVERDUE", Title: "Task overdue", Message: "msg"}
	if err := d.CreateNotification(context.Background(), n); err != nil {
		t.Fatalf("CreateNotification() error = %v", err)
	}
	if n.ID != "n-1" || !n.CreatedAt.Equal(now) {
		t.Errorf("CreateNotification() filled %+v", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_GetNotification(t *testing.T) {
	d, mock := newMockDB(t)
	now := time.Now().UTC()
	cols := []string{"id", "user_id", "type", "title", "message", "extra_data", "category", "archived", "read", "priority", "rules_processed", "created_at"}

	mock.ExpectQuery("FROM notifications WHERE id").
		WithArgs("n-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("n-1", "user-1", "email", "Hello", "", []byte(`{"sender":"a@b.c"}`), "work", false, false, nil, false, now))

	n, err := d.GetNotification(context.Background(), "n-1")
	if err != nil {
		t.Fatalf("GetNotification() error = %v", err)
	}
	if n.Category == nil || *n.Category != "work" || n.Priority != nil || n.ExtraData["sender"] != "a@b.c" {
		t.Errorf("GetNotification() = %+v", n)
	}

	mock.ExpectQuery("FROM notifications WHERE id").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	if _, err := d.GetNotification(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNotification(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDB_SaveClassification(t *testing.T) {
	d, mock := newMockDB(t)
	category := "spam"
	n := &Notification{ID: "n-1", Category: &category, Archived: true}

	mock.ExpectExec("UPDATE notifications").
		WithArgs("n-1", "spam", true, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := d.SaveClassification(context.Background(), n); err != nil {
		t.Fatalf("SaveClassification() error = %v", err)
	}
	if !n.RulesProcessed {
		t.Error("SaveClassification() should set RulesProcessed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_ListUnprocessedNotificationIDs(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("WHERE rules_processed = FALSE AND user_id = ").
		WithArgs("user-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("n-1").AddRow("n-2"))
	mock.ExpectQuery("WHERE rules_processed = FALSE\\s+ORDER BY").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("n-3"))

	ids, err := d.ListUnprocessedNotificationIDs(context.Background(), "user-1", 50)
	if err != nil || len(ids) != 2 {
		t.Fatalf("ListUnprocessedNotificationIDs(user-1) = %v, %v", ids, err)
	}
	ids, err = d.ListUnprocessedNotificationIDs(context.Background(), "", 50)
	if err != nil || len(ids) != 1 || ids[0] != "n-3" {
		t.Fatalf("ListUnprocessedNotificationIDs(all) = %v, %v", ids, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_Preferences(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery("FROM notification_preferences").
		WithArgs("user-1", "TASK_OVERDUE").
		WillReturnError(sql.ErrNoRows)
	if _, err := d.GetPreference(ctx, "user-1", "TASK_OVERDUE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPreference() error = %v, want ErrNotFound", err)
	}

	p := &Preference{UserID: "user-1", NotificationType: "TASK_OVERDUE", Enabled: true, InApp: false, Push: true}
	mock.ExpectExec("ON CONFLICT \\(user_id, notification_type\\) DO UPDATE").
		WithArgs("user-1", "TASK_OVERDUE", true, false, false, true, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := d.UpsertPreference(ctx, p); err != nil {
		t.Fatalf("UpsertPreference() error = %v", err)
	}

	mock.ExpectQuery("FROM notification_preferences").
		WithArgs("user-1", "TASK_OVERDUE").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "notification_type", "enabled", "in_app", "email", "push", "email_address"}).
			AddRow("user-1", "TASK_OVERDUE", true, false, false, true, ""))
	got, err := d.GetPreference(ctx, "user-1", "TASK_OVERDUE")
	if err != nil {
		t.Fatalf("GetPreference() error = %v", err)
	}
	if got.InApp || !got.Push {
		t.Errorf("GetPreference() = %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}
