// Package models contains domain models for designpartner.
package models

import (
	"sort"
	"strings"
	"time"
)

// Value is the extracted content of a topic. A value may carry free text,
// structured sub-fields, list items, or any combination of them.
type Value struct {
	Text   string            `json:"text,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Items  []string          `json:"items,omitempty"`
}

// IsEmpty reports whether the value carries no content at all.
func (v Value) IsEmpty() bool {
	if strings.TrimSpace(v.Text) != "" {
		return false
	}
	for _, f := range v.Fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	for _, item := range v.Items {
		if strings.TrimSpace(item) != "" {
			return false
		}
	}
	return true
}

// String renders the value as a single line of text.
func (v Value) String() string {
	parts := make([]string, 0, 1+len(v.Fields)+len(v.Items))
	if t := strings.TrimSpace(v.Text); t != "" {
		parts = append(parts, t)
	}
	if len(v.Fields) > 0 {
		keys := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+": "+v.Fields[k])
		}
	}
	parts = append(parts, v.Items...)
	return strings.Join(parts, "; ")
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	out := Value{Text: v.Text}
	if v.Fields != nil {
		out.Fields = make(map[string]string, len(v.Fields))
		for k, f := range v.Fields {
			out.Fields[k] = f
		}
	}
	if v.Items != nil {
		out.Items = append([]string(nil), v.Items...)
	}
	return out
}

// Revision is a superseded topic value kept in the audit trail.
type Revision struct {
	Value        Value     `json:"value"`
	Confidence   float64   `json:"confidence"`
	SourceTurn   int       `json:"source_turn"`
	UpdatedAt    time.Time `json:"updated_at"`
	SupersededBy int       `json:"superseded_by"`
	SupersededAt time.Time `json:"superseded_at"`
}

// TopicRecord is the current state of one design topic.
type TopicRecord struct {
	ID         string     `json:"id"`
	Question   string     `json:"question,omitempty"`
	Value      Value      `json:"value"`
	Confidence float64    `json:"confidence"`
	SourceTurn int        `json:"source_turn"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Revised    bool       `json:"revised,omitempty"`
	Discovered bool       `json:"discovered,omitempty"`
	History    []Revision `json:"history,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *TopicRecord) Clone() *TopicRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Value = r.Value.Clone()
	if r.History != nil {
		out.History = make([]Revision, len(r.History))
		for i, h := range r.History {
			h.Value = h.Value.Clone()
			out.History[i] = h
		}
	}
	return &out
}

// Document is a versioned mapping from topic identifier to topic record.
// New versions are only produced by the merge engine.
type Document struct {
	Version int64                   `json:"version"`
	Topics  map[string]*TopicRecord `json:"topics"`
}

// NewDocument creates an empty document at version 0.
func NewDocument() *Document {
	return &Document{Topics: make(map[string]*TopicRecord)}
}

// Get returns the record for a topic, if present.
func (d *Document) Get(id string) (*TopicRecord, bool) {
	if d == nil || d.Topics == nil {
		return nil, false
	}
	r, ok := d.Topics[id]
	return r, ok
}

// Len returns the number of topics in the document.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Topics)
}

// TopicIDs returns all topic identifiers in sorted order.
func (d *Document) TopicIDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.Topics))
	for id := range d.Topics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LastUpdated returns the most recent UpdatedAt across all topics.
func (d *Document) LastUpdated() time.Time {
	var latest time.Time
	if d == nil {
		return latest
	}
	for _, r := range d.Topics {
		if r.UpdatedAt.After(latest) {
			latest = r.UpdatedAt
		}
	}
	return latest
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return NewDocument()
	}
	out := &Document{
		Version: d.Version,
		Topics:  make(map[string]*TopicRecord, len(d.Topics)),
	}
	for id, r := range d.Topics {
		out.Topics[id] = r.Clone()
	}
	return out
}

// ProposedUpdate is a structured fact proposed by the extraction engine.
type ProposedUpdate struct {
	TopicID     string  `json:"topic"`
	Value       Value   `json:"value"`
	Confidence  float64 `json:"confidence"`
	Contradicts bool    `json:"contradicts,omitempty"`
	Question    string  `json:"question,omitempty"`
	Discovered  bool    `json:"discovered,omitempty"`
}
