package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderError is a failed provider attempt: transport, auth, or a
// malformed response. Status is the HTTP status when one was received.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// AlternationViolation reports whether err signals a backend's strict
// user/assistant role-alternation constraint. The Anthropic API surfaces
// this as a 400 whose message mentions "alternation".
func AlternationViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "alternation")
}

// CallError is raised once the retry budget for one provider call is
// exhausted. It carries the attempt count and the last underlying error.
type CallError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s error after %d attempts: %v", e.Provider, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// AsCallError unwraps err into a *CallError if there is one.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
