package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrTurnRetryable means the provider stayed unavailable after every
	// retry. Nothing was committed; the user can repeat the utterance.
	ErrTurnRetryable = errors.New("turn failed: provider unavailable, try again")
	// ErrTurnFatal means the provider rejected the request permanently.
	ErrTurnFatal = errors.New("turn failed: provider rejected the request")
	// ErrPersistence means the completed turn could not be saved. The turn is
	// kept pending and only the save is retried.
	ErrPersistence = errors.New("turn failed: session could not be saved")
)

// TurnError carries the failure class of a turn together with its cause.
// errors.Is matches the class sentinel and errors.As reaches the cause.
type TurnError struct {
	Class     error
	SessionID string
	Cause     error
}

func (e *TurnError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("session %s: %v", e.SessionID, e.Class)
	}
	return fmt.Sprintf("session %s: %v: %v", e.SessionID, e.Class, e.Cause)
}

func (e *TurnError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Cause}
}

func turnError(class error, id string, cause error) error {
	return &TurnError{Class: class, SessionID: id, Cause: cause}
}
