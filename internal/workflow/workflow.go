// Package workflow evaluates the data-driven review state machine. It holds
// no state of its own: transition rows come from the store, and this package
// decides which of them a given user may take and what happens when one is
// applied.
package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"lightbox/api/internal/store"
)

var (
	// ErrActionForbidden means the action exists but the role may not take it.
	ErrActionForbidden = errors.New("action not allowed for role")
	// ErrUnknownAction means no transition row matches the action.
	ErrUnknownAction = errors.New("unknown workflow action")
)

// Button styles hint at how a client should render an action.
const (
	StylePrimary = "primary"
	StyleDanger  = "danger"
	StyleDefault = "default"
)

// Terminal states accept no further transitions unless rows say otherwise.
const (
	StateDraft    = "Draft"
	StateApproved = "Approved"
	StateRejected = "Rejected"
)

// Option is one action a user can take from the current state.
type Option struct {
	Action    string `json:"action"`
	NextState string `json:"nextState"`
	Style     string `json:"style"`
}

// Style classifies an action label for rendering. Actions that start with
// "Approve" or "Submit" read as forward motion; only the literal "Reject"
// action is destructive, so labels like "Rejection Review" stay neutral.
func Style(action string) string {
	switch {
	case strings.HasPrefix(action, "Approve"), strings.HasPrefix(action, "Submit"):
		return StylePrimary
	case action == "Reject":
		return StyleDanger
	default:
		return StyleDefault
	}
}

// Options filters the transition rows leaving the current state down to those
// the role may take, deduplicated by action and ordered by sort_order. Admins
// may take any action.
func Options(defs []store.WorkflowTransition, role string) []Option {
	seen := make(map[string]bool)
	var picked []store.WorkflowTransition
	for _, def := range defs {
		if def.AllowedRole != role && role != "admin" {
			continue
		}
		if seen[def.Action] {
			continue
		}
		seen[def.Action] = true
		picked = append(picked, def)
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].SortOrder < picked[j].SortOrder })

	options := make([]Option, 0, len(picked))
	for _, def := range picked {
		options = append(options, Option{
			Action:    def.Action,
			NextState: def.NextState,
			Style:     Style(def.Action),
		})
	}
	return options
}

// Resolve finds the transition the role is allowed to take for the named
// action, or an error naming why it is illegal. The action must match a row
// exactly; state is never guessed.
func Resolve(defs []store.WorkflowTransition, role, action string) (store.WorkflowTransition, error) {
	actionExists := false
	for _, def := range defs {
		if def.Action != action {
			continue
		}
		actionExists = true
		if def.AllowedRole == role || role == "admin" {
			return def, nil
		}
	}
	if actionExists {
		return store.WorkflowTransition{}, fmt.Errorf("role %q may not take action %q: %w", role, action, ErrActionForbidden)
	}
	return store.WorkflowTransition{}, fmt.Errorf("no transition for action %q: %w", action, ErrUnknownAction)
}
