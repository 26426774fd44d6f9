package autocomplete

import (
	"slices"

	"github.com/bastiangx/campuscomplete/pkg/recovery"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
)

// Phase is the controller's position in the lookup cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDebouncing
	PhaseLookingUp
	PhaseResolved
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseDebouncing:
		return "debouncing"
	case PhaseLookingUp:
		return "looking-up"
	case PhaseResolved:
		return "resolved"
	case PhaseErrored:
		return "errored"
	default:
		return "idle"
	}
}

// NoHighlight is the HighlightedIndex when nothing is highlighted.
const NoHighlight = -1

// State is what a list view renders.
type State struct {
	Query       string
	Scope       string
	Phase       Phase
	Suggestions []suggest.Suggestion

	// ResultsQuery is the query Suggestions answer. It trails Query while
	// newer input is still debouncing.
	ResultsQuery string

	IsLoading bool
	IsOpen    bool
	IsTimeout bool

	// Error is set when the last lookup failed. With Stale set it describes
	// the failure behind the cached results being shown.
	Error *recovery.Error
	Stale bool

	HighlightedIndex int
}

// Highlighted returns the highlighted suggestion, if any.
func (s State) Highlighted() (suggest.Suggestion, bool) {
	if s.HighlightedIndex < 0 || s.HighlightedIndex >= len(s.Suggestions) {
		return suggest.Suggestion{}, false
	}
	return s.Suggestions[s.HighlightedIndex], true
}

// Notice is the muted line shown under the list, or "".
func (s State) Notice() string {
	switch {
	case s.Stale:
		return "showing cached results"
	case s.Error != nil && s.Error.Retryable:
		return s.Error.Error() + " (retry available)"
	case s.Error != nil:
		return s.Error.Error()
	}
	return ""
}

func (s State) clone() State {
	s.Suggestions = slices.Clone(s.Suggestions)
	return s
}

// Listener receives every published state, in publication order.
type Listener func(State)
