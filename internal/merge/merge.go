// Package merge applies proposed topic updates to a design document and
// produces the next document version. It performs no I/O.
package merge

import (
	"strings"
	"time"

	"github.com/thebtf/designpartner/pkg/models"
	"github.com/thebtf/designpartner/pkg/similarity"
)

// TieBreak selects the winner when one turn proposes several values for a topic.
type TieBreak string

const (
	// TieBreakConfidence keeps the highest-confidence value; equal confidence
	// goes to the later-listed update.
	TieBreakConfidence TieBreak = "confidence"
	// TieBreakRecency always keeps the later-listed update.
	TieBreakRecency TieBreak = "recency"
)

// ParseTieBreak maps a config string onto a TieBreak, defaulting to confidence.
func ParseTieBreak(s string) TieBreak {
	if TieBreak(strings.ToLower(strings.TrimSpace(s))) == TieBreakRecency {
		return TieBreakRecency
	}
	return TieBreakConfidence
}

// Policy configures merge behaviour.
type Policy struct {
	EquivalenceThreshold float64
	TieBreak             TieBreak
}

// DefaultPolicy returns the default merge policy.
func DefaultPolicy() Policy {
	return Policy{
		EquivalenceThreshold: similarity.DefaultThreshold,
		TieBreak:             TieBreakConfidence,
	}
}

// Turn identifies the transcript turn the updates came from.
type Turn struct {
	Seq int
	At  time.Time
}

// Conflict records a topic that received more than one value in a turn.
type Conflict struct {
	TopicID  string         `json:"topic"`
	Winner   models.Value   `json:"winner"`
	Rejected []models.Value `json:"rejected"`
}

// Report describes what a merge did.
type Report struct {
	Inserted     []string   `json:"inserted,omitempty"`
	Confirmed    []string   `json:"confirmed,omitempty"`
	Revised      []string   `json:"revised,omitempty"`
	Skipped      []string   `json:"skipped,omitempty"`
	Contradicted []string   `json:"contradicted,omitempty"`
	Conflicts    []Conflict `json:"conflicts,omitempty"`
}

// Touched returns every topic whose value was inserted, confirmed or revised.
func (r Report) Touched() []string {
	out := make([]string, 0, len(r.Inserted)+len(r.Confirmed)+len(r.Revised))
	out = append(out, r.Inserted...)
	out = append(out, r.Confirmed...)
	return append(out, r.Revised...)
}

// Changed reports whether any topic value changed.
func (r Report) Changed() bool {
	return len(r.Inserted) > 0 || len(r.Revised) > 0
}

// Merge applies updates to doc and returns the next version. doc is never
// modified. The version always advances by one, even when nothing changed.
//
// A new topic is inserted. A value equivalent to the current one is a no-op.
// A differing value supersedes the current one, which moves to the topic's
// history, and the record is flagged revised. Empty values never overwrite.
func Merge(doc *models.Document, updates []models.ProposedUpdate, turn Turn, policy Policy) (*models.Document, Report) {
	next := doc.Clone()
	if doc != nil {
		next.Version = doc.Version + 1
	} else {
		next.Version = 1
	}

	var report Report
	for _, u := range resolve(updates, policy, &report) {
		if u.Contradicts {
			report.Contradicted = append(report.Contradicted, u.TopicID)
		}

		current, exists := next.Topics[u.TopicID]
		if !exists {
			next.Topics[u.TopicID] = &models.TopicRecord{
				ID:         u.TopicID,
				Question:   u.Question,
				Value:      u.Value.Clone(),
				Confidence: u.Confidence,
				SourceTurn: turn.Seq,
				UpdatedAt:  turn.At,
				Discovered: u.Discovered,
			}
			report.Inserted = append(report.Inserted, u.TopicID)
			continue
		}

		// A flagged contradiction supersedes unless it restates the value verbatim.
		if u.Contradicts {
			if similarity.Identical(current.Value, u.Value) {
				report.Confirmed = append(report.Confirmed, u.TopicID)
				continue
			}
		} else if similarity.Equivalent(current.Value, u.Value, policy.EquivalenceThreshold) {
			report.Confirmed = append(report.Confirmed, u.TopicID)
			continue
		}

		current.History = append(current.History, models.Revision{
			Value:        current.Value,
			Confidence:   current.Confidence,
			SourceTurn:   current.SourceTurn,
			UpdatedAt:    current.UpdatedAt,
			SupersededBy: turn.Seq,
			SupersededAt: turn.At,
		})
		current.Value = u.Value.Clone()
		current.Confidence = u.Confidence
		current.SourceTurn = turn.Seq
		current.UpdatedAt = turn.At
		current.Revised = true
		if current.Question == "" {
			current.Question = u.Question
		}
		report.Revised = append(report.Revised, u.TopicID)
	}

	return next, report
}

// resolve picks one update per topic, in order of first appearance.
// Candidates equivalent to the winner are restatements, not conflicts.
func resolve(updates []models.ProposedUpdate, policy Policy, report *Report) []models.ProposedUpdate {
	var order []string
	winners := make(map[string]int)
	candidates := make(map[string][]int)

	for i := range updates {
		u := &updates[i]
		id := strings.TrimSpace(u.TopicID)
		if id == "" {
			continue
		}
		if u.Value.IsEmpty() {
			report.Skipped = append(report.Skipped, id)
			continue
		}

		candidates[id] = append(candidates[id], i)
		w, seen := winners[id]
		if !seen {
			order = append(order, id)
			winners[id] = i
			continue
		}
		if prefer(*u, updates[w], policy.TieBreak) {
			winners[id] = i
		}
	}

	out := make([]models.ProposedUpdate, 0, len(order))
	for _, id := range order {
		w := updates[winners[id]]
		w.TopicID = id
		var rejected []models.Value
		for _, i := range candidates[id] {
			if i == winners[id] || similarity.Equivalent(w.Value, updates[i].Value, policy.EquivalenceThreshold) {
				continue
			}
			rejected = append(rejected, updates[i].Value)
		}
		if len(rejected) > 0 {
			report.Conflicts = append(report.Conflicts, Conflict{TopicID: id, Winner: w.Value, Rejected: rejected})
		}
		out = append(out, w)
	}
	return out
}

// prefer reports whether the later update should replace the current winner.
func prefer(later, current models.ProposedUpdate, tb TieBreak) bool {
	if tb == TieBreakRecency {
		return true
	}
	return later.Confidence >= current.Confidence
}
