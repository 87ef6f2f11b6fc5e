package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pilarhub/eventcore/internal/database"
)

// Action types.
const (
	ActionClassify    = "classify"
	ActionArchive     = "archive"
	ActionSetPriority = "set_priority"
	ActionMarkRead    = "mark_read"
)

var actionAliases = map[string]string{
	"setPriority": ActionSetPriority,
	"markRead":    ActionMarkRead,
}

// ErrUnknownAction is returned for an action type the engine does not know.
var ErrUnknownAction = errors.New("unknown action type")

// Action is one step of a rule's action list.
type Action struct {
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
	Priority any    `json:"priority,omitempty"`
}

// ExecutedAction records an action that ran (or would run, in a dry run).
type ExecutedAction struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Type     string `json:"type"`
	Value    string `json:"value,omitempty"`
}

func (a Action) normalizedType() string {
	if alias, ok := actionAliases[a.Type]; ok {
		return alias
	}
	return a.Type
}

// resolve checks the action's parameters and returns its canonical type and
// the value it would write.
func (a Action) resolve() (string, string, error) {
	switch t := a.normalizedType(); t {
	case ActionClassify:
		category := strings.TrimSpace(a.Category)
		if category == "" {
			return t, "", fmt.Errorf("classify requires a category")
		}
		return t, category, nil
	case ActionArchive:
		return t, "true", nil
	case ActionMarkRead:
		return t, "true", nil
	case ActionSetPriority:
		priority, err := priorityString(a.Priority)
		if err != nil {
			return t, "", err
		}
		return t, priority, nil
	default:
		return a.Type, "", fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
}

// apply mutates n according to the action.
func (a Action) apply(n *database.Notification) (string, string, error) {
	t, value, err := a.resolve()
	if err != nil {
		return t, value, err
	}
	switch t {
	case ActionClassify:
		n.Category = &value
	case ActionArchive:
		n.Archived = true
	case ActionMarkRead:
		n.Read = true
	case ActionSetPriority:
		n.Priority = &value
	}
	return t, value, nil
}

// priorityString accepts a label ("high") or a number (3) and stores it as text.
func priorityString(v any) (string, error) {
	switch p := v.(type) {
	case string:
		p = strings.TrimSpace(p)
		if p == "" {
			return "", fmt.Errorf("set_priority requires a priority")
		}
		return p, nil
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(p), nil
	case nil:
		return "", fmt.Errorf("set_priority requires a priority")
	}
	return "", fmt.Errorf("unsupported priority value %v", v)
}
