// Package coverage tracks which curriculum topics have been asked or answered
// and picks the next topic to ask about.
package coverage

import (
	"github.com/thebtf/designpartner/internal/curriculum"
	"github.com/thebtf/designpartner/pkg/models"
)

// DefaultMaxProbes is how many times a partially answered topic is asked
// before the conversation moves on for good.
const DefaultMaxProbes = 2

// Tracker answers coverage queries over a session's coverage set. It mutates
// the set it was given, so callers work on a cloned copy during a turn.
type Tracker struct {
	set       *models.CoverageSet
	reg       *curriculum.Registry
	maxProbes int
}

// New creates a Tracker. A non-positive maxProbes uses DefaultMaxProbes.
func New(set *models.CoverageSet, reg *curriculum.Registry, maxProbes int) *Tracker {
	if set == nil {
		set = models.NewCoverageSet()
	}
	if set.Entries == nil {
		set.Entries = make(map[string]*models.CoverageEntry)
	}
	if maxProbes <= 0 {
		maxProbes = DefaultMaxProbes
	}
	return &Tracker{set: set, reg: reg, maxProbes: maxProbes}
}

// Set returns the underlying coverage set.
func (t *Tracker) Set() *models.CoverageSet {
	return t.set
}

// IsCovered reports whether the topic has been asked or addressed.
func (t *Tracker) IsCovered(id string) bool {
	_, ok := t.set.Entries[id]
	return ok
}

// Completeness returns the topic's completeness, or "" when uncovered.
func (t *Tracker) Completeness(id string) models.Completeness {
	if e, ok := t.set.Entries[id]; ok {
		return e.Completeness
	}
	return ""
}

// MarkCovered records that a topic was addressed. Completeness never
// downgrades: a full topic stays full.
func (t *Tracker) MarkCovered(id string, c models.Completeness, turn int) {
	e, ok := t.set.Entries[id]
	if !ok {
		t.set.Entries[id] = &models.CoverageEntry{
			Completeness: c,
			Source:       models.CoverageVolunteered,
			UpdatedTurn:  turn,
		}
		return
	}
	if c.Rank() > e.Completeness.Rank() {
		e.Completeness = c
		e.UpdatedTurn = turn
	}
}

// MarkAsked records that the topic's question was put to the user. An asked
// topic is at least partially covered.
func (t *Tracker) MarkAsked(id string, turn int) {
	e, ok := t.set.Entries[id]
	if !ok {
		t.set.Entries[id] = &models.CoverageEntry{
			Completeness: models.CompletenessPartial,
			Probes:       1,
			Source:       models.CoverageAsked,
			UpdatedTurn:  turn,
		}
		return
	}
	e.Probes++
	e.Source = models.CoverageAsked
	e.UpdatedTurn = turn
}

// Parked reports whether a partial topic has used up its probes.
func (t *Tracker) Parked(id string) bool {
	e, ok := t.set.Entries[id]
	return ok && e.Completeness != models.CompletenessFull && e.Probes >= t.maxProbes
}

// NextUncoveredTopic selects the next curriculum topic to ask about.
// Partially covered topics come first, in curriculum order, followed by
// uncovered ones. Full and parked topics are never selected.
func (t *Tracker) NextUncoveredTopic() (string, bool) {
	if t.reg == nil {
		return "", false
	}
	ids := t.reg.IDs()
	for _, id := range ids {
		e, ok := t.set.Entries[id]
		if ok && e.Completeness != models.CompletenessFull && !t.Parked(id) {
			return id, true
		}
	}
	for _, id := range ids {
		if !t.IsCovered(id) {
			return id, true
		}
	}
	return "", false
}

// Reset forgets a topic so it can be selected again.
func (t *Tracker) Reset(id string) bool {
	if _, ok := t.set.Entries[id]; !ok {
		return false
	}
	delete(t.set.Entries, id)
	return true
}

// Progress summarises curriculum coverage.
type Progress struct {
	Total   int `json:"total"`
	Full    int `json:"full"`
	Partial int `json:"partial"`
	Parked  int `json:"parked"`
}

// Progress counts curriculum topics by coverage state.
func (t *Tracker) Progress() Progress {
	var p Progress
	if t.reg == nil {
		return p
	}
	for _, id := range t.reg.IDs() {
		p.Total++
		switch {
		case t.Completeness(id) == models.CompletenessFull:
			p.Full++
		case t.Parked(id):
			p.Parked++
		case t.IsCovered(id):
			p.Partial++
		}
	}
	return p
}
