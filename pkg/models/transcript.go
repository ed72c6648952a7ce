package models

import "time"

// Role identifies the speaker of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single immutable transcript entry.
type Turn struct {
	Seq     int       `json:"seq"`
	Role    Role      `json:"role"`
	Text    string    `json:"text"`
	TopicID string    `json:"topic_id,omitempty"`
	At      time.Time `json:"at"`
}

// Transcript is the ordered, append-only record of a conversation.
type Transcript []Turn

// LastSeq returns the sequence number of the last turn, or 0 when empty.
func (t Transcript) LastSeq() int {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Seq
}

// Append adds a turn with the next sequence number and returns it.
func (t *Transcript) Append(role Role, text, topicID string, at time.Time) Turn {
	turn := Turn{
		Seq:     t.LastSeq() + 1,
		Role:    role,
		Text:    text,
		TopicID: topicID,
		At:      at,
	}
	*t = append(*t, turn)
	return turn
}

// After returns the turns with a sequence number greater than seq.
func (t Transcript) After(seq int) Transcript {
	for i, turn := range t {
		if turn.Seq > seq {
			return t[i:]
		}
	}
	return nil
}

// Recent returns at most n trailing turns.
func (t Transcript) Recent(n int) Transcript {
	if n <= 0 || len(t) == 0 {
		return nil
	}
	if n >= len(t) {
		return t
	}
	return t[len(t)-n:]
}

// Clone returns a copy of the transcript. Turns are values, so a shallow
// slice copy is sufficient.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	return append(Transcript(nil), t...)
}
