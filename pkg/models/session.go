package models

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session identifier has no persisted state.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRevisionConflict is returned when a save does not follow the last committed revision.
	ErrRevisionConflict = errors.New("session revision conflict")
)

// SessionStatus represents the status of a design session.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusComplete SessionStatus = "complete"
)

// Session aggregates everything needed to resume a conversation.
type Session struct {
	ID           string        `json:"id"`
	Revision     int64         `json:"revision"`
	Status       SessionStatus `json:"status"`
	CurrentTopic string        `json:"current_topic,omitempty"`
	Transcript   Transcript    `json:"transcript"`
	Document     *Document     `json:"document"`
	Coverage     *CoverageSet  `json:"coverage"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewSession creates an empty active session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Status:    SessionStatusActive,
		Document:  NewDocument(),
		Coverage:  NewCoverageSet(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Transcript = s.Transcript.Clone()
	out.Document = s.Document.Clone()
	out.Coverage = s.Coverage.Clone()
	return &out
}

// SessionSummary is a lightweight listing entry.
type SessionSummary struct {
	ID              string        `json:"id"`
	Status          SessionStatus `json:"status"`
	Revision        int64         `json:"revision"`
	DocumentVersion int64         `json:"document_version"`
	Turns           int           `json:"turns"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Now returns the current time in UTC truncated to milliseconds, which is the
// precision every persistence backend preserves.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
