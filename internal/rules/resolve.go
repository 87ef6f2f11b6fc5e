package rules

import (
	"strconv"
	"strings"

	"github.com/pilarhub/eventcore/internal/database"
)

// AbsentValue is the type of Absent.
type AbsentValue struct{}

// Absent is what Resolve returns for a path that does not exist.
var Absent = AbsentValue{}

// IsAbsent reports whether v is the Absent sentinel.
func IsAbsent(v any) bool {
	_, ok := v.(AbsentValue)
	return ok
}

// Resolve walks a dotted path over n. The first segment names a notification
// attribute (camelCase or snake_case); when it names none, the path is looked
// up in ExtraData instead. Later segments walk nested maps, and numeric
// segments index lists.
func Resolve(n *database.Notification, path string) any {
	if n == nil || path == "" {
		return Absent
	}
	segments := strings.Split(path, ".")

	current, ok := attribute(n, segments[0])
	rest := segments[1:]
	if !ok {
		current = n.ExtraData
		rest = segments
	}

	for _, seg := range rest {
		if IsAbsent(current) {
			return Absent
		}
		current = step(current, seg)
	}
	return current
}

func attribute(n *database.Notification, name string) (any, bool) {
	switch name {
	case "id":
		return n.ID, true
	case "userId", "user_id":
		return n.UserID, true
	case "type":
		return n.Type, true
	case "title":
		return n.Title, true
	case "message":
		return n.Message, true
	case "extraData", "extra_data", "structuredData":
		if n.ExtraData == nil {
			return Absent, true
		}
		return n.ExtraData, true
	case "category":
		if n.Category == nil {
			return Absent, true
		}
		return *n.Category, true
	case "priority":
		if n.Priority == nil {
			return Absent, true
		}
		return *n.Priority, true
	case "archived":
		return n.Archived, true
	case "read":
		return n.Read, true
	case "createdAt", "created_at":
		return n.CreatedAt, true
	}
	return nil, false
}

func step(current any, seg string) any {
	switch v := current.(type) {
	case map[string]any:
		next, ok := v[seg]
		if !ok {
			return Absent
		}
		return next
	case map[string]string:
		next, ok := v[seg]
		if !ok {
			return Absent
		}
		return next
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return Absent
		}
		return v[i]
	}
	return Absent
}
