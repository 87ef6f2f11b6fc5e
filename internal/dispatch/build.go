package dispatch

import (
	"fmt"
	"math"

	"github.com/pilarhub/eventcore/internal/contextmgr"
	"github.com/pilarhub/eventcore/internal/database"
	"github.com/pilarhub/eventcore/internal/events"
)

// Notification priorities set at creation. Rules may override them.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Build renders the notification for a dispatchable event. The event payload
// is kept as ExtraData, so rules can match on any of its fields.
func Build(e *events.Event) (*database.Notification, error) {
	n := &database.Notification{
		Type:      string(e.Type),
		ExtraData: extraData(e),
	}

	var priority string
	switch e.Type {
	case events.TaskDeadlineApproaching:
		p, err := events.DecodeTask(e.Payload)
		if err != nil {
			return nil, err
		}
		n.Title = "Deadline approaching"
		n.Message = fmt.Sprintf("%s is due soon", taskLabel(p))
		if p.HoursRemaining != nil {
			n.Message = fmt.Sprintf("%s is due in %s", taskLabel(p), hours(*p.HoursRemaining))
		}
		priority = PriorityHigh

	case events.TaskOverdue:
		p, err := events.DecodeTask(e.Payload)
		if err != nil {
			return nil, err
		}
		n.Title = "Task overdue"
		n.Message = fmt.Sprintf("%s is overdue", taskLabel(p))
		if p.DaysOverdue != nil && *p.DaysOverdue > 0 {
			n.Message = fmt.Sprintf("%s is %s overdue", taskLabel(p), plural(*p.DaysOverdue, "day"))
		}
		priority = PriorityHigh

	case events.CapacityCritical:
		p, err := events.DecodeCapacity(e.Payload)
		if err != nil {
			return nil, err
		}
		n.Title = "Workload critical"
		n.Message = fmt.Sprintf("Your workload is at %.0f%%. Consider moving or delegating tasks.", p.WorkloadPercent)
		priority = PriorityUrgent

	case events.CyclePhaseChanged:
		p, err := events.DecodeCyclePhase(e.Payload)
		if err != nil {
			return nil, err
		}
		phase, ok := contextmgr.NormalizePhase(p.NewPhase)
		if !ok {
			return nil, fmt.Errorf("unknown cycle phase %q", p.NewPhase)
		}
		n.Title = "New cycle phase"
		n.Message = fmt.Sprintf("You are now in the %s phase.", phase)
		priority = PriorityNormal

	default:
		return nil, fmt.Errorf("event type %s does not produce notifications", e.Type)
	}

	n.Priority = &priority
	return n, nil
}

func extraData(e *events.Event) map[string]any {
	out := make(map[string]any, len(e.Payload)+2)
	for k, v := range e.Payload {
		out[k] = v
	}
	out["eventId"] = e.ID
	out["originModule"] = string(e.OriginModule)
	return out
}

func taskLabel(p events.TaskPayload) string {
	if p.Title != "" {
		return fmt.Sprintf("%q", p.Title)
	}
	return "Task " + p.TaskID
}

func hours(h float64) string {
	if h < 1 {
		return "less than an hour"
	}
	return plural(int(math.Round(h)), "hour")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
