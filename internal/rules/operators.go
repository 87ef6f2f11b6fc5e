package rules

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/pilarhub/eventcore/internal/events"
)

// Operators accepted in condition leaves.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpIn          = "in"
	OpExists      = "exists"
	OpGreater     = ">"
	OpLess        = "<"
	OpGreaterEq   = ">="
	OpLessEq      = "<="
)

var operatorAliases = map[string]string{
	"==":          OpEquals,
	"eq":          OpEquals,
	"!=":          OpNotEquals,
	"neq":         OpNotEquals,
	"startsWith":  OpStartsWith,
	"endsWith":    OpEndsWith,
	"notContains": OpNotContains,
	"gt":          OpGreater,
	"lt":          OpLess,
	"gte":         OpGreaterEq,
	"lte":         OpLessEq,
}

func normalizeOperator(op string) string {
	if alias, ok := operatorAliases[op]; ok {
		return alias
	}
	return op
}

// compare applies op to the resolved value and the rule's operand. A missing
// or null value only satisfies exists=false.
func compare(actual any, op string, expected any) bool {
	if actual == nil {
		actual = Absent
	}
	op = normalizeOperator(op)

	if op == OpExists {
		want := true
		if b, ok := expected.(bool); ok {
			want = b
		}
		return !IsAbsent(actual) == want
	}
	if IsAbsent(actual) {
		return false
	}

	switch op {
	case OpEquals:
		return equal(actual, expected)
	case OpNotEquals:
		return !equal(actual, expected)
	case OpContains:
		return contains(actual, expected)
	case OpNotContains:
		return !contains(actual, expected)
	case OpStartsWith:
		a, e, ok := bothStrings(actual, expected)
		return ok && strings.HasPrefix(a, e)
	case OpEndsWith:
		a, e, ok := bothStrings(actual, expected)
		return ok && strings.HasSuffix(a, e)
	case OpIn:
		list, ok := expected.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if equal(actual, item) {
				return true
			}
		}
		return false
	case OpGreater, OpLess, OpGreaterEq, OpLessEq:
		return numeric(actual, op, expected)
	}

	slog.Debug("Unknown condition operator, treating as non-match", "operator", op)
	return false
}

// equal is case-insensitive for strings, numeric for numbers and exact otherwise.
func equal(actual, expected any) bool {
	if a, ok := actual.(string); ok {
		e, ok := expected.(string)
		return ok && strings.EqualFold(a, e)
	}
	if _, isString := expected.(string); isString {
		return false
	}
	if a, ok := events.ToFloat(actual); ok {
		e, ok := events.ToFloat(expected)
		return ok && a == e
	}
	return reflect.DeepEqual(actual, expected)
}

// contains is a case-insensitive substring test for strings and a membership
// test for lists.
func contains(actual, expected any) bool {
	switch a := actual.(type) {
	case string:
		e, ok := expected.(string)
		return ok && strings.Contains(strings.ToLower(a), strings.ToLower(e))
	case []any:
		for _, item := range a {
			if equal(item, expected) {
				return true
			}
		}
	case []string:
		for _, item := range a {
			if equal(item, expected) {
				return true
			}
		}
	}
	return false
}

func bothStrings(actual, expected any) (string, string, bool) {
	a, ok := actual.(string)
	if !ok {
		return "", "", false
	}
	e, ok := expected.(string)
	if !ok {
		return "", "", false
	}
	return strings.ToLower(a), strings.ToLower(e), true
}

// numeric compares two numbers. Booleans and non-numeric strings never match.
func numeric(actual any, op string, expected any) bool {
	if _, isBool := actual.(bool); isBool {
		return false
	}
	a, ok := events.ToFloat(actual)
	if !ok {
		return false
	}
	e, ok := events.ToFloat(expected)
	if !ok {
		return false
	}
	switch op {
	case OpGreater:
		return a > e
	case OpLess:
		return a < e
	case OpGreaterEq:
		return a >= e
	case OpLessEq:
		return a <= e
	}
	panic(fmt.Sprintf("unreachable numeric operator %q", op))
}
