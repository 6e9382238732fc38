package editor

import (
	"formloom/api/internal/form"
	"formloom/api/internal/formclient"
)

// Decision says what the editor surface should show for a fetched form.
type Decision int

const (
	// DecisionLoading: the fetch has not resolved; show nothing yet.
	DecisionLoading Decision = iota
	// DecisionUnavailable: the fetch failed or the form does not exist.
	DecisionUnavailable
	// DecisionUnauthorized: the form exists but belongs to another workspace.
	DecisionUnauthorized
	// DecisionAuthorized: the viewer owns the form and may edit it.
	DecisionAuthorized
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionUnavailable:
		return "unavailable"
	case DecisionUnauthorized:
		return "unauthorized"
	case DecisionAuthorized:
		return "authorized"
	}
	return "unknown"
}

// Decide maps a fetch snapshot and the viewer's subject to a gate decision.
// Precedence is strict: loading beats error beats unauthorized beats
// authorized, so a stale value never unlocks the editor while a refetch is in
// flight and an error never falls through to an ownership check on stale
// data.
func Decide(state formclient.FormState, subject string) Decision {
	if state.Loading {
		return DecisionLoading
	}
	if state.Err != nil || state.Form == nil {
		return DecisionUnavailable
	}
	if subject == "" {
		subject = form.AnonymousWorkspace
	}
	if state.Form.Workspace != subject {
		return DecisionUnauthorized
	}
	return DecisionAuthorized
}
