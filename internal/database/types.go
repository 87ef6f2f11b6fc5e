package database

import (
	"encoding/json"
	"time"
)

// UserContext is the persisted per-user context row.
type UserContext struct {
	UserID                  string    `json:"user_id"`
	CyclePhase              string    `json:"cycle_phase"`
	EnergyLevel             int       `json:"energy_level"`
	WorkloadPercent         float64   `json:"workload_percent"`
	InFocusSession          bool      `json:"in_focus_session"`
	PendingTaskCount        int       `json:"pending_task_count"`
	ActiveProjectCount      int       `json:"active_project_count"`
	UnreadNotificationCount int       `json:"unread_notification_count"`
	HourOfDay               int       `json:"hour_of_day"`
	DayOfWeek               int       `json:"day_of_week"`
	ProductivePeriod        string    `json:"productive_period"`
	StressLevel             int       `json:"stress_level"`
	NeedsBreak              bool      `json:"needs_break"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Rule is a user-authored automation rule. Conditions and Actions are kept as
// raw JSON; the rules package parses them.
type Rule struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	Enabled         bool            `json:"enabled"`
	Priority        int             `json:"priority"`
	Conditions      json.RawMessage `json:"conditions"`
	Actions         json.RawMessage `json:"actions"`
	TimesTriggered  int             `json:"times_triggered"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Notification is a notification record. Category, Archived, Read and Priority
// are the fields rule actions mutate.
type Notification struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	ExtraData      map[string]any `json:"extra_data"`
	Category       *string        `json:"category,omitempty"`
	Archived       bool           `json:"archived"`
	Read           bool           `json:"read"`
	Priority       *string        `json:"priority,omitempty"`
	RulesProcessed bool           `json:"rules_processed"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Preference holds a user's delivery flags for one notification type.
type Preference struct {
	UserID           string `json:"user_id"`
	NotificationType string `json:"notification_type"`
	Enabled          bool   `json:"enabled"`
	InApp            bool   `json:"in_app"`
	Email            bool   `json:"email"`
	Push             bool   `json:"push"`
	EmailAddress     string `json:"email_address"`
}
