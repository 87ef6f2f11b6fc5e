// Package events defines the event envelope carried by the bus and the typed
// payloads its handlers decode.
package events

import (
	"fmt"
	"time"
)

// Type identifies what happened. The wire value is the constant name.
type Type string

const (
	TaskCreated             Type = "TASK_CREATED"
	TaskCompleted           Type = "TASK_COMPLETED"
	TaskDeadlineApproaching Type = "TASK_DEADLINE_APPROACHING"
	TaskOverdue             Type = "TASK_OVERDUE"
	CapacityWarning         Type = "CAPACITY_WARNING"
	CapacityCritical        Type = "CAPACITY_CRITICAL"
	CyclePhaseChanged       Type = "CYCLE_PHASE_CHANGED"
	EnergyLow               Type = "ENERGY_LOW"
	WellnessUpdated         Type = "WELLNESS_UPDATED"
	FocusSessionStarted     Type = "FOCUS_SESSION_STARTED"
	FocusSessionEnded       Type = "FOCUS_SESSION_ENDED"
	ProjectCreated          Type = "PROJECT_CREATED"
	ProjectCompleted        Type = "PROJECT_COMPLETED"
	ContextUpdated          Type = "CONTEXT_UPDATED"
)

var knownTypes = map[Type]bool{
	TaskCreated:             true,
	TaskCompleted:           true,
	TaskDeadlineApproaching: true,
	TaskOverdue:             true,
	CapacityWarning:         true,
	CapacityCritical:        true,
	CyclePhaseChanged:       true,
	EnergyLow:               true,
	WellnessUpdated:         true,
	FocusSessionStarted:     true,
	FocusSessionEnded:       true,
	ProjectCreated:          true,
	ProjectCompleted:        true,
	ContextUpdated:          true,
}

// Valid reports whether t is one of the declared event types.
func (t Type) Valid() bool {
	return knownTypes[t]
}

// Module identifies the producer that published an event.
type Module string

const (
	ModuleTasks     Module = "tasks"
	ModulePillars   Module = "pillars"
	ModuleCapacity  Module = "capacity"
	ModuleCycle     Module = "cycle"
	ModuleWellness  Module = "wellness"
	ModuleFreelance Module = "freelance"
	ModuleContext   Module = "context"
	ModuleSystem    Module = "system"
)

var knownModules = map[Module]bool{
	ModuleTasks:     true,
	ModulePillars:   true,
	ModuleCapacity:  true,
	ModuleCycle:     true,
	ModuleWellness:  true,
	ModuleFreelance: true,
	ModuleContext:   true,
	ModuleSystem:    true,
}

// Valid reports whether m is one of the declared origin modules.
func (m Module) Valid() bool {
	return knownModules[m]
}

const (
	// MinPriority and MaxPriority bound Event.Priority.
	MinPriority = 1
	MaxPriority = 10
	// DefaultPriority is used when a producer leaves Priority at zero.
	DefaultPriority = 5
)

// Event is one row of the append-only event log.
// Only Processed and ProcessedAt change after the row is written.
type Event struct {
	ID           string         `json:"id"`
	Type         Type           `json:"type"`
	OriginModule Module         `json:"origin_module"`
	UserID       string         `json:"user_id,omitempty"`
	Payload      map[string]any `json:"payload"`
	Priority     int            `json:"priority"`
	CreatedAt    time.Time      `json:"created_at"`
	Processed    bool           `json:"processed"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
}

// Validate checks the fields a producer is responsible for.
// A zero Priority is accepted; Publish replaces it with DefaultPriority.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type: %q", e.Type)
	}
	if !e.OriginModule.Valid() {
		return fmt.Errorf("unknown origin module: %q", e.OriginModule)
	}
	if e.Priority != 0 && (e.Priority < MinPriority || e.Priority > MaxPriority) {
		return fmt.Errorf("priority must be between %d and %d, got %d", MinPriority, MaxPriority, e.Priority)
	}
	return nil
}

// Stats summarises the event log over a time window.
type Stats struct {
	WindowHours int              `json:"window_hours"`
	Total       int64            `json:"total"`
	Processed   int64            `json:"processed"`
	Pending     int64            `json:"pending"`
	ByType      map[string]int64 `json:"by_type"`
	ByModule    map[string]int64 `json:"by_module"`
}
