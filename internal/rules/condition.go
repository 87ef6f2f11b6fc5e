// Package rules evaluates user-authored automation rules against
// notifications. A rule is a condition tree plus an ordered action list; all
// matching rules fire, highest priority first.
package rules

import (
	"log/slog"

	"github.com/pilarhub/eventcore/internal/database"
)

// MaxDepth bounds condition nesting; deeper nodes never match.
const MaxDepth = 32

// Condition is one node of a condition tree. Exactly one shape is valid:
//
//	{"all": [...]}                              every child matches
//	{"any": [...]}                              at least one child matches
//	{"field": "a.b", "operator": "...", "value": v}
//
// Anything else, including an empty all/any list, is malformed and never matches.
type Condition struct {
	All      []Condition `json:"all,omitempty"`
	Any      []Condition `json:"any,omitempty"`
	Field    string      `json:"field,omitempty"`
	Operator string      `json:"operator,omitempty"`
	Value    any         `json:"value,omitempty"`
}

type nodeKind int

const (
	nodeMalformed nodeKind = iota
	nodeAll
	nodeAny
	nodeLeaf
)

func (c *Condition) kind() nodeKind {
	shapes := 0
	kind := nodeMalformed
	if c.All != nil {
		shapes++
		kind = nodeAll
	}
	if c.Any != nil {
		shapes++
		kind = nodeAny
	}
	if c.Field != "" || c.Operator != "" {
		shapes++
		kind = nodeLeaf
	}
	if shapes != 1 {
		return nodeMalformed
	}
	switch kind {
	case nodeAll:
		if len(c.All) == 0 {
			return nodeMalformed
		}
	case nodeAny:
		if len(c.Any) == 0 {
			return nodeMalformed
		}
	case nodeLeaf:
		if c.Field == "" || c.Operator == "" {
			return nodeMalformed
		}
	}
	return kind
}

// Matches evaluates the tree against n. Malformed nodes, unknown operators and
// unresolvable fields are non-matches, never errors.
func (c *Condition) Matches(n *database.Notification) bool {
	return c.matches(n, 0)
}

func (c *Condition) matches(n *database.Notification, depth int) bool {
	if depth > MaxDepth {
		slog.Warn("Condition tree too deep, treating as non-match", "max_depth", MaxDepth)
		return false
	}

	switch c.kind() {
	case nodeAll:
		for i := range c.All {
			if !c.All[i].matches(n, depth+1) {
				return false
			}
		}
		return true
	case nodeAny:
		for i := range c.Any {
			if c.Any[i].matches(n, depth+1) {
				return true
			}
		}
		return false
	case nodeLeaf:
		return compare(Resolve(n, c.Field), c.Operator, c.Value)
	default:
		slog.Debug("Malformed condition node, treating as non-match")
		return false
	}
}
