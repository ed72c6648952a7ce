package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  bool
	}{
		{"zero", Value{}, true},
		{"whitespace text", Value{Text: "  "}, true},
		{"blank field", Value{Fields: map[string]string{"a": " "}}, true},
		{"blank item", Value{Items: []string{""}}, true},
		{"text", Value{Text: "climbing"}, false},
		{"field", Value{Fields: map[string]string{"a": "b"}}, false},
		{"item", Value{Items: []string{"route log"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.IsEmpty())
		})
	}
}

func TestValue_String(t *testing.T) {
	v := Value{
		Text:   "Climbers",
		Fields: map[string]string{"b": "2", "a": "1"},
		Items:  []string{"x"},
	}
	assert.Equal(t, "Climbers; a: 1; b: 2; x", v.String())
}

func TestDocument_CloneIsDeep(t *testing.T) {
	now := Now()
	doc := NewDocument()
	doc.Version = 3
	doc.Topics["domain"] = &TopicRecord{
		ID:    "domain",
		Value: Value{Text: "social climbing app", Items: []string{"a"}, Fields: map[string]string{"k": "v"}},
		History: []Revision{
			{Value: Value{Text: "old"}, SupersededAt: now},
		},
	}

	clone := doc.Clone()
	clone.Topics["domain"].Value.Items[0] = "changed"
	clone.Topics["domain"].Value.Fields["k"] = "changed"
	clone.Topics["domain"].History[0].Value.Text = "changed"
	clone.Topics["new"] = &TopicRecord{ID: "new"}

	assert.Equal(t, "a", doc.Topics["domain"].Value.Items[0])
	assert.Equal(t, "v", doc.Topics["domain"].Value.Fields["k"])
	assert.Equal(t, "old", doc.Topics["domain"].History[0].Value.Text)
	assert.Equal(t, 1, doc.Len())
	assert.Equal(t, int64(3), clone.Version)
}

func TestDocument_NilSafe(t *testing.T) {
	var doc *Document
	_, ok := doc.Get("x")
	assert.False(t, ok)
	assert.Zero(t, doc.Len())
	assert.NotNil(t, doc.Clone().Topics)
}

func TestDocument_TopicIDsAndLastUpdated(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	doc := NewDocument()
	doc.Topics["b"] = &TopicRecord{ID: "b", UpdatedAt: t1}
	doc.Topics["a"] = &TopicRecord{ID: "a", UpdatedAt: t2}

	assert.Equal(t, []string{"a", "b"}, doc.TopicIDs())
	assert.Equal(t, t2, doc.LastUpdated())
}

func TestTranscript_Append(t *testing.T) {
	var tr Transcript
	now := Now()

	first := tr.Append(RoleAssistant, "What are you building?", "domain", now)
	second := tr.Append(RoleUser, "A climbing app", "", now)

	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, 2, second.Seq)
	assert.Equal(t, 2, tr.LastSeq())
	assert.Len(t, tr.After(1), 1)
	assert.Nil(t, tr.After(2))
	assert.Len(t, tr.Recent(1), 1)
	assert.Len(t, tr.Recent(10), 2)
	assert.Nil(t, tr.Recent(0))
}

func TestTranscript_CloneIndependent(t *testing.T) {
	tr := Transcript{{Seq: 1, Text: "a"}}
	clone := tr.Clone()
	clone[0].Text = "b"
	clone = append(clone, Turn{Seq: 2})

	assert.Equal(t, "a", tr[0].Text)
	assert.Len(t, tr, 1)
	assert.Nil(t, Transcript(nil).Clone())
}

func TestCompleteness_Rank(t *testing.T) {
	assert.Greater(t, CompletenessFull.Rank(), CompletenessPartial.Rank())
	assert.Greater(t, CompletenessPartial.Rank(), Completeness("").Rank())
}

func TestCoverageSet_Scan(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    int
		wantErr bool
	}{
		{name: "nil value", input: nil, want: 0},
		{name: "empty string", input: "", want: 0},
		{name: "string", input: `{"entries":{"domain":{"completeness":"full","probes":1,"source":"asked","updated_turn":2}}}`, want: 1},
		{name: "bytes", input: []byte(`{"entries":{"a":{"completeness":"partial"},"b":{"completeness":"full"}}}`), want: 2},
		{name: "null entries", input: `{}`, want: 0},
		{name: "invalid json", input: "{", wantErr: true},
		{name: "unsupported type", input: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c CoverageSet
			err := c.Scan(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c.Entries)
			assert.Len(t, c.Entries, tt.want)
		})
	}
}

func TestCoverageSet_ValueRoundTrip(t *testing.T) {
	c := NewCoverageSet()
	c.Entries["domain"] = &CoverageEntry{Completeness: CompletenessFull, Probes: 1, Source: CoverageAsked, UpdatedTurn: 2}

	v, err := c.Value()
	require.NoError(t, err)

	var out CoverageSet
	require.NoError(t, out.Scan(v))
	assert.Equal(t, c.Entries, out.Entries)

	empty, err := CoverageSet{}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"entries":{}}`, empty)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("abc", Now())
	s.Transcript.Append(RoleUser, "hello", "", Now())
	s.Coverage.Entries["domain"] = &CoverageEntry{Completeness: CompletenessPartial}
	s.Document.Topics["domain"] = &TopicRecord{ID: "domain"}

	clone := s.Clone()
	clone.Transcript[0].Text = "changed"
	clone.Coverage.Entries["domain"].Completeness = CompletenessFull
	clone.Document.Topics["domain"].Confidence = 1
	clone.Revision = 9

	assert.Equal(t, "hello", s.Transcript[0].Text)
	assert.Equal(t, CompletenessPartial, s.Coverage.Entries["domain"].Completeness)
	assert.Zero(t, s.Document.Topics["domain"].Confidence)
	assert.Zero(t, s.Revision)
	assert.Nil(t, (*Session)(nil).Clone())
}

func TestNow_MillisecondUTC(t *testing.T) {
	now := Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%int(time.Millisecond))
}
