package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds a handler can map to an HTTP status. Policy rejections are
// expected negative outcomes, not faults; they carry the human-readable
// reason and, where relevant, the cooldown end the client should display.
var (
	ErrNotFound      = errors.New("not found")
	ErrNotAuthorized = errors.New("not authorized")
)

type PolicyError struct {
	Reason      string
	CooldownEnd *time.Time
}

func (e *PolicyError) Error() string { return e.Reason }

func Policy(reason string) *PolicyError {
	return &PolicyError{Reason: reason}
}

func PolicyWithCooldown(reason string, cooldownEnd time.Time) *PolicyError {
	return &PolicyError{Reason: reason, CooldownEnd: &cooldownEnd}
}

func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func AsPolicy(err error) (*PolicyError, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
