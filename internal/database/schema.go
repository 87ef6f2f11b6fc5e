package database

// Schema is the DDL for every table the event core owns.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id            UUID PRIMARY KEY,
	type          TEXT NOT NULL,
	origin_module TEXT NOT NULL,
	user_id       TEXT,
	payload       JSONB NOT NULL DEFAULT '{}'::jsonb,
	priority      INTEGER NOT NULL DEFAULT 5 CHECK (priority BETWEEN 1 AND 10),
	processed     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_events_type_processed ON events (type, processed);
CREATE INDEX IF NOT EXISTS idx_events_priority_created ON events (priority DESC, created_at);

CREATE TABLE IF NOT EXISTS user_contexts (
	user_id                   TEXT PRIMARY KEY,
	cycle_phase               TEXT NOT NULL DEFAULT '',
	energy_level              INTEGER NOT NULL DEFAULT 7 CHECK (energy_level BETWEEN 1 AND 10),
	workload_percent          DOUBLE PRECISION NOT NULL DEFAULT 50,
	in_focus_session          BOOLEAN NOT NULL DEFAULT FALSE,
	pending_task_count        INTEGER NOT NULL DEFAULT 0,
	active_project_count      INTEGER NOT NULL DEFAULT 0,
	unread_notification_count INTEGER NOT NULL DEFAULT 0,
	hour_of_day               INTEGER NOT NULL DEFAULT 0,
	day_of_week               INTEGER NOT NULL DEFAULT 0,
	productive_period         TEXT NOT NULL DEFAULT '',
	stress_level              INTEGER NOT NULL DEFAULT 5 CHECK (stress_level BETWEEN 1 AND 10),
	needs_break               BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rules (
	id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id           TEXT NOT NULL,
	name              TEXT NOT NULL,
	enabled           BOOLEAN NOT NULL DEFAULT TRUE,
	priority          INTEGER NOT NULL DEFAULT 0,
	conditions        JSONB NOT NULL DEFAULT '{}'::jsonb,
	actions           JSONB NOT NULL DEFAULT '[]'::jsonb,
	times_triggered   INTEGER NOT NULL DEFAULT 0,
	last_triggered_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_rules_user_enabled ON rules (user_id, enabled, priority DESC);

CREATE TABLE IF NOT EXISTS notifications (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id         TEXT NOT NULL,
	type            TEXT NOT NULL,
	title           TEXT NOT NULL,
	message         TEXT NOT NULL DEFAULT '',
	extra_data      JSONB NOT NULL DEFAULT '{}'::jsonb,
	category        TEXT,
	archived        BOOLEAN NOT NULL DEFAULT FALSE,
	read            BOOLEAN NOT NULL DEFAULT FALSE,
	priority        TEXT,
	rules_processed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_rules_processed ON notifications (rules_processed, created_at);

CREATE TABLE IF NOT EXISTS notification_preferences (
	user_id           TEXT NOT NULL,
	notification_type TEXT NOT NULL,
	enabled           BOOLEAN NOT NULL DEFAULT TRUE,
	in_app            BOOLEAN NOT NULL DEFAULT TRUE,
	email             BOOLEAN NOT NULL DEFAULT FALSE,
	push              BOOLEAN NOT NULL DEFAULT TRUE,
	email_address     TEXT NOT NULL DEFAULT '',
	UNIQUE (user_id, notification_type)
);
`
