package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Payloads arrive as untyped JSON maps. Handlers decode the fields they need
// through the typed views below instead of indexing the map directly. Keys are
// looked up in camelCase first and snake_case second.

// ResolveUserID returns the owning user: the envelope column when set, else the
// payload's userId/user_id.
func (e *Event) ResolveUserID() string {
	if e.UserID != "" {
		return e.UserID
	}
	s, _ := stringField(e.Payload, "userId", "user_id")
	return s
}

// CyclePhasePayload is the payload of CYCLE_PHASE_CHANGED.
type CyclePhasePayload struct {
	NewPhase string
	// ExpectedEnergy is a 0..1 fraction; nil when the producer did not send one.
	ExpectedEnergy *float64
}

// DecodeCyclePhase decodes a CYCLE_PHASE_CHANGED payload.
func DecodeCyclePhase(payload map[string]any) (CyclePhasePayload, error) {
	phase, ok := stringField(payload, "newPhase", "new_phase", "phase")
	if !ok || phase == "" {
		return CyclePhasePayload{}, fmt.Errorf("payload missing newPhase")
	}
	p := CyclePhasePayload{NewPhase: phase}
	if energy, ok := numberField(payload, "expectedEnergy", "expected_energy"); ok {
		if energy < 0 || energy > 1 {
			return CyclePhasePayload{}, fmt.Errorf("expectedEnergy must be within [0,1], got %v", energy)
		}
		p.ExpectedEnergy = &energy
	}
	return p, nil
}

// CapacityPayload is the payload of CAPACITY_WARNING and CAPACITY_CRITICAL.
type CapacityPayload struct {
	WorkloadPercent float64
}

// DecodeCapacity decodes a capacity payload.
func DecodeCapacity(payload map[string]any) (CapacityPayload, error) {
	pct, ok := numberField(payload, "percentage", "workloadPercent", "workload_percent")
	if !ok {
		return CapacityPayload{}, fmt.Errorf("payload missing percentage")
	}
	if pct < 0 {
		return CapacityPayload{}, fmt.Errorf("percentage cannot be negative, got %v", pct)
	}
	return CapacityPayload{WorkloadPercent: pct}, nil
}

// WellnessPayload is the payload of WELLNESS_UPDATED and, optionally, ENERGY_LOW.
// Absent levels are nil.
type WellnessPayload struct {
	EnergyLevel *int
	StressLevel *int
}

// DecodeWellness decodes a wellness payload. Levels outside 1..10 are rejected.
func DecodeWellness(payload map[string]any) (WellnessPayload, error) {
	var p WellnessPayload
	if v, ok := numberField(payload, "energyLevel", "energy_level"); ok {
		level, err := levelValue("energyLevel", v)
		if err != nil {
			return WellnessPayload{}, err
		}
		p.EnergyLevel = &level
	}
	if v, ok := numberField(payload, "stressLevel", "stress_level"); ok {
		level, err := levelValue("stressLevel", v)
		if err != nil {
			return WellnessPayload{}, err
		}
		p.StressLevel = &level
	}
	return p, nil
}

// TaskPayload is the payload of the task lifecycle events.
type TaskPayload struct {
	TaskID         string
	Title          string
	DueAt          *time.Time
	HoursRemaining *float64
	DaysOverdue    *int
}

// DecodeTask decodes a task payload. Only the task id is required.
func DecodeTask(payload map[string]any) (TaskPayload, error) {
	id, ok := stringField(payload, "taskId", "task_id")
	if !ok || id == "" {
		return TaskPayload{}, fmt.Errorf("payload missing taskId")
	}
	p := TaskPayload{TaskID: id}
	p.Title, _ = stringField(payload, "title", "taskTitle", "task_title")
	if due, ok := stringField(payload, "dueAt", "due_at", "deadline"); ok && due != "" {
		if t, err := time.Parse(time.RFC3339, due); err == nil {
			p.DueAt = &t
		}
	}
	if h, ok := numberField(payload, "hoursRemaining", "hours_remaining"); ok {
		p.HoursRemaining = &h
	}
	if d, ok := numberField(payload, "daysOverdue", "days_overdue"); ok {
		days := int(d)
		p.DaysOverdue = &days
	}
	return p, nil
}

func levelValue(name string, v float64) (int, error) {
	level := int(v + 0.5)
	if level < 1 || level > 10 {
		return 0, fmt.Errorf("%s must be between 1 and 10, got %v", name, v)
	}
	return level, nil
}

func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			return strings.TrimSpace(s), true
		case fmt.Stringer:
			return s.String(), true
		}
	}
	return "", false
}

// numberField accepts JSON numbers (float64), Go ints, json.Number and numeric strings.
func numberField(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := ToFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// ToFloat converts the numeric shapes a decoded JSON payload can hold.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
