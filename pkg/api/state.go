package api

import "fmt"

var responseTransitions = map[ResponseStatus][]ResponseStatus{
	"":                           {ResponseStatusQueued, ResponseStatusInProgress, ResponseStatusCompleted, ResponseStatusFailed, ResponseStatusIncomplete, ResponseStatusCancelled},
	ResponseStatusQueued:         {ResponseStatusInProgress, ResponseStatusCancelled, ResponseStatusFailed},
	ResponseStatusInProgress:     {ResponseStatusCompleted, ResponseStatusFailed, ResponseStatusIncomplete, ResponseStatusCancelled, ResponseStatusRequiresAction},
	ResponseStatusRequiresAction: {ResponseStatusInProgress, ResponseStatusCancelled, ResponseStatusFailed, ResponseStatusIncomplete},
}

// ValidateResponseTransition checks whether a response status transition is valid.
// An empty "from" status represents the initial state before any status has been set.
// Repeating the current status is allowed, since servers re-announce it
// (response.created followed by response.in_progress). Terminal states
// (completed, failed, incomplete, cancelled) do not allow outgoing transitions.
func ValidateResponseTransition(from, to ResponseStatus) *APIError {
	if from == to && from != "" && !from.Terminal() {
		return nil
	}
	for _, s := range responseTransitions[from] {
		if s == to {
			return nil
		}
	}
	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %q to %q", from, to))
}

// Terminal reports whether no further transition is possible from s.
func (s ResponseStatus) Terminal() bool {
	switch s {
	case ResponseStatusCompleted, ResponseStatusFailed, ResponseStatusIncomplete, ResponseStatusCancelled:
		return true
	}
	return false
}

// ValidateItemTransition checks whether an item status transition is valid.
// An empty "from" status represents the initial state before any status has been set.
// Terminal states (completed, incomplete, failed) do not allow outgoing transitions.
func ValidateItemTransition(from, to ItemStatus) *APIError {
	valid := map[ItemStatus][]ItemStatus{
		"":                   {ItemStatusInProgress, ItemStatusCompleted, ItemStatusIncomplete, ItemStatusFailed},
		ItemStatusInProgress: {ItemStatusCompleted, ItemStatusIncomplete, ItemStatusFailed},
	}

	for _, s := range valid[from] {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %q to %q", from, to))
}
