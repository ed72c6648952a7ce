package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// Completeness distinguishes fully answered topics from ones that may be re-probed.
type Completeness string

const (
	CompletenessPartial Completeness = "partial"
	CompletenessFull    Completeness = "full"
)

// Rank orders completeness levels so coverage can only move forward.
func (c Completeness) Rank() int {
	switch c {
	case CompletenessFull:
		return 2
	case CompletenessPartial:
		return 1
	default:
		return 0
	}
}

// CoverageSource records how a topic entered the coverage set.
type CoverageSource string

const (
	CoverageAsked       CoverageSource = "asked"
	CoverageVolunteered CoverageSource = "volunteered"
)

// CoverageEntry tracks one topic that has been asked or addressed.
type CoverageEntry struct {
	Completeness Completeness   `json:"completeness"`
	Probes       int            `json:"probes"`
	Source       CoverageSource `json:"source"`
	UpdatedTurn  int            `json:"updated_turn"`
}

// CoverageSet is the set of topics considered asked, keyed by topic identifier.
// It implements sql.Scanner and driver.Valuer so it can be stored as a JSON column.
type CoverageSet struct {
	Entries map[string]*CoverageEntry `json:"entries"`
}

// NewCoverageSet creates an empty coverage set.
func NewCoverageSet() *CoverageSet {
	return &CoverageSet{Entries: make(map[string]*CoverageEntry)}
}

// Get returns the entry for a topic, if any.
func (c *CoverageSet) Get(id string) (*CoverageEntry, bool) {
	if c == nil || c.Entries == nil {
		return nil, false
	}
	e, ok := c.Entries[id]
	return e, ok
}

// Clone returns a deep copy of the set.
func (c *CoverageSet) Clone() *CoverageSet {
	out := NewCoverageSet()
	if c == nil {
		return out
	}
	for id, e := range c.Entries {
		cp := *e
		out.Entries[id] = &cp
	}
	return out
}

// Scan implements sql.Scanner.
func (c *CoverageSet) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*c = *NewCoverageSet()
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("coverage set: unsupported scan type %T", value)
	}
	if len(data) == 0 {
		*c = *NewCoverageSet()
		return nil
	}
	var out CoverageSet
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("coverage set: %w", err)
	}
	if out.Entries == nil {
		out.Entries = make(map[string]*CoverageEntry)
	}
	*c = out
	return nil
}

// Value implements driver.Valuer.
func (c CoverageSet) Value() (driver.Value, error) {
	if c.Entries == nil {
		c.Entries = make(map[string]*CoverageEntry)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
