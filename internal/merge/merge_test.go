package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/designpartner/pkg/models"
)

var (
	t1 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Minute)
)

func text(s string) models.Value { return models.Value{Text: s} }

func TestMerge_ClimbingScenario(t *testing.T) {
	doc := models.NewDocument()

	first, report := Merge(doc, []models.ProposedUpdate{
		{TopicID: "domain", Value: text("climbing training tracker"), Confidence: 0.9},
		{TopicID: "differentiator", Value: text("volume over routes"), Confidence: 0.8},
	}, Turn{Seq: 2, At: t1}, DefaultPolicy())

	assert.Equal(t, int64(1), first.Version)
	assert.ElementsMatch(t, []string{"domain", "differentiator"}, report.Inserted)
	assert.Zero(t, doc.Len(), "input document is not mutated")

	second, report := Merge(first, []models.ProposedUpdate{
		{TopicID: "differentiator", Value: text("bouldering volume, not routes"), Confidence: 0.85, Contradicts: true},
	}, Turn{Seq: 4, At: t2}, DefaultPolicy())

	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, []string{"differentiator"}, report.Revised)
	assert.Equal(t, []string{"differentiator"}, report.Contradicted)

	rec, ok := second.Get("differentiator")
	require.True(t, ok)
	assert.True(t, rec.Revised)
	assert.Equal(t, "bouldering volume, not routes", rec.Value.Text)
	assert.Equal(t, 4, rec.SourceTurn)
	assert.Equal(t, t2, rec.UpdatedAt)
	require.Len(t, rec.History, 1)
	assert.Equal(t, "volume over routes", rec.History[0].Value.Text)
	assert.Equal(t, 0.8, rec.History[0].Confidence)
	assert.Equal(t, 2, rec.History[0].SourceTurn)
	assert.Equal(t, 4, rec.History[0].SupersededBy)
	assert.Equal(t, t2, rec.History[0].SupersededAt)

	prior, _ := first.Get("differentiator")
	assert.False(t, prior.Revised, "previous version is untouched")
	assert.Empty(t, prior.History)

	domain, _ := second.Get("domain")
	assert.Equal(t, "climbing training tracker", domain.Value.Text)
}

func TestMerge_Idempotent(t *testing.T) {
	updates := []models.ProposedUpdate{
		{TopicID: "domain", Value: text("climbing app"), Confidence: 0.9},
		{TopicID: "mvp_features", Value: models.Value{Items: []string{"log sessions", "share with friends"}}, Confidence: 0.7},
	}

	once, _ := Merge(models.NewDocument(), updates, Turn{Seq: 1, At: t1}, DefaultPolicy())
	twice, report := Merge(once, updates, Turn{Seq: 3, At: t2}, DefaultPolicy())

	assert.Equal(t, once.Version+1, twice.Version)
	assert.ElementsMatch(t, []string{"domain", "mvp_features"}, report.Confirmed)
	assert.False(t, report.Changed())

	once.Version = twice.Version
	assert.Equal(t, once, twice)
}

func TestMerge_NoRegression(t *testing.T) {
	doc := models.NewDocument()
	doc.Version = 7
	doc.Topics["domain"] = &models.TopicRecord{ID: "domain", Value: text("climbing app"), Confidence: 0.9}
	doc.Topics["problem"] = &models.TopicRecord{ID: "problem", Value: text("no volume tracking")}

	next, report := Merge(doc, []models.ProposedUpdate{
		{TopicID: "domain", Value: models.Value{}, Confidence: 1},
		{TopicID: "problem", Value: text("   "), Confidence: 1},
		{TopicID: "", Value: text("orphan"), Confidence: 1},
	}, Turn{Seq: 9, At: t1}, DefaultPolicy())

	assert.Equal(t, int64(8), next.Version)
	assert.Equal(t, []string{"domain", "problem"}, report.Skipped)
	for id, rec := range doc.Topics {
		got, ok := next.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, rec.Value, got.Value)
	}
	assert.Equal(t, 2, next.Len())
}

func TestMerge_ContradictionsSupersede(t *testing.T) {
	tests := []struct {
		name        string
		before      string
		after       string
		contradicts bool
		revised     bool
	}{
		{"changed amount", "10 dollars per month", "20 dollars per month", true, true},
		{"changed amount unflagged", "10 dollars per month", "20 dollars per month", false, true},
		{"negation", "users pay a monthly subscription", "users pay no monthly subscription", true, true},
		{"negation unflagged", "users pay a monthly subscription", "users pay no monthly subscription", false, true},
		{"flagged restatement", "climbers share routes socially", "socially share routes climbers", true, true},
		{"unflagged restatement", "climbers share routes socially", "socially share routes climbers", false, false},
		{"flagged verbatim", "10 dollars per month", "10 Dollars per month.", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := models.NewDocument()
			doc.Topics["pricing"] = &models.TopicRecord{ID: "pricing", Value: text(tt.before), Confidence: 0.8, SourceTurn: 2}

			next, report := Merge(doc, []models.ProposedUpdate{
				{TopicID: "pricing", Value: text(tt.after), Confidence: 0.9, Contradicts: tt.contradicts},
			}, Turn{Seq: 4, At: t2}, DefaultPolicy())

			rec, ok := next.Get("pricing")
			require.True(t, ok)
			if !tt.revised {
				assert.Equal(t, []string{"pricing"}, report.Confirmed)
				assert.Equal(t, tt.before, rec.Value.Text)
				assert.Empty(t, rec.History)
				return
			}
			assert.Equal(t, []string{"pricing"}, report.Revised)
			assert.Empty(t, report.Confirmed)
			assert.True(t, rec.Revised)
			assert.Equal(t, tt.after, rec.Value.Text)
			require.Len(t, rec.History, 1)
			assert.Equal(t, tt.before, rec.History[0].Value.Text)
			assert.Equal(t, 4, rec.History[0].SupersededBy)
		})
	}
}

func TestMerge_RestatedDuplicateIsNotAConflict(t *testing.T) {
	next, report := Merge(models.NewDocument(), []models.ProposedUpdate{
		{TopicID: "domain", Value: text("climbing training tracker"), Confidence: 0.7},
		{TopicID: "domain", Value: text("Climbing training tracker."), Confidence: 0.9},
		{TopicID: "domain", Value: text("tax accounting"), Confidence: 0.2},
	}, Turn{Seq: 1, At: t1}, DefaultPolicy())

	rec, ok := next.Get("domain")
	require.True(t, ok)
	assert.Equal(t, "Climbing training tracker.", rec.Value.Text)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, []models.Value{text("tax accounting")}, report.Conflicts[0].Rejected)

	_, report = Merge(models.NewDocument(), []models.ProposedUpdate{
		{TopicID: "domain", Value: text("climbing app"), Confidence: 0.7},
		{TopicID: "domain", Value: text("climbing app"), Confidence: 0.7},
	}, Turn{Seq: 1, At: t1}, DefaultPolicy())
	assert.Empty(t, report.Conflicts)
}

func TestMerge_ZeroUpdatesAdvancesVersion(t *testing.T) {
	next, report := Merge(nil, nil, Turn{Seq: 1, At: t1}, DefaultPolicy())
	assert.Equal(t, int64(1), next.Version)
	assert.Empty(t, report.Touched())
}

func TestMerge_TieBreak(t *testing.T) {
	tests := []struct {
		name      string
		policy    TieBreak
		updates   []models.ProposedUpdate
		want      string
		conflicts int
	}{
		{
			name:   "higher confidence wins",
			policy: TieBreakConfidence,
			updates: []models.ProposedUpdate{
				{TopicID: "domain", Value: text("fitness app"), Confidence: 0.9},
				{TopicID: "domain", Value: text("climbing app"), Confidence: 0.6},
			},
			want:      "fitness app",
			conflicts: 1,
		},
		{
			name:   "equal confidence later wins",
			policy: TieBreakConfidence,
			updates: []models.ProposedUpdate{
				{TopicID: "domain", Value: text("fitness app"), Confidence: 0.7},
				{TopicID: "domain", Value: text("climbing app"), Confidence: 0.7},
			},
			want:      "climbing app",
			conflicts: 1,
		},
		{
			name:   "recency ignores confidence",
			policy: TieBreakRecency,
			updates: []models.ProposedUpdate{
				{TopicID: "domain", Value: text("fitness app"), Confidence: 0.9},
				{TopicID: "domain", Value: text("climbing app"), Confidence: 0.1},
			},
			want:      "climbing app",
			conflicts: 1,
		},
		{
			name:   "empty value does not compete",
			policy: TieBreakConfidence,
			updates: []models.ProposedUpdate{
				{TopicID: "domain", Value: text("fitness app"), Confidence: 0.5},
				{TopicID: "domain", Value: models.Value{}, Confidence: 1},
			},
			want: "fitness app",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := Policy{TieBreak: tt.policy}
			for i := 0; i < 5; i++ {
				next, report := Merge(models.NewDocument(), tt.updates, Turn{Seq: 1, At: t1}, policy)
				rec, ok := next.Get("domain")
				require.True(t, ok)
				assert.Equal(t, tt.want, rec.Value.Text)
				assert.Len(t, report.Conflicts, tt.conflicts)
				assert.Empty(t, rec.History, "same-turn losers are not revisions")
			}
		})
	}
}

func TestMerge_InsertKeepsMetadata(t *testing.T) {
	next, _ := Merge(models.NewDocument(), []models.ProposedUpdate{
		{TopicID: "pricing", Value: text("freemium"), Confidence: 0.4, Question: "How will it make money?", Discovered: true},
	}, Turn{Seq: 5, At: t1}, DefaultPolicy())

	rec, ok := next.Get("pricing")
	require.True(t, ok)
	assert.True(t, rec.Discovered)
	assert.Equal(t, "How will it make money?", rec.Question)
	assert.Equal(t, 5, rec.SourceTurn)
	assert.False(t, rec.Revised)
}

func TestMerge_UpdateValueNotAliased(t *testing.T) {
	updates := []models.ProposedUpdate{{TopicID: "mvp_features", Value: models.Value{Items: []string{"a"}}, Confidence: 1}}
	next, _ := Merge(models.NewDocument(), updates, Turn{Seq: 1, At: t1}, DefaultPolicy())
	updates[0].Value.Items[0] = "mutated"

	rec, _ := next.Get("mvp_features")
	assert.Equal(t, "a", rec.Value.Items[0])
}

func TestParseTieBreak(t *testing.T) {
	assert.Equal(t, TieBreakRecency, ParseTieBreak(" Recency "))
	assert.Equal(t, TieBreakConfidence, ParseTieBreak("confidence"))
	assert.Equal(t, TieBreakConfidence, ParseTieBreak("bogus"))
}

func TestReport_Touched(t *testing.T) {
	r := Report{Inserted: []string{"a"}, Confirmed: []string{"b"}, Revised: []string{"c"}, Skipped: []string{"d"}}
	assert.Equal(t, []string{"a", "b", "c"}, r.Touched())
	assert.True(t, r.Changed())
	assert.False(t, Report{Confirmed: []string{"b"}}.Changed())
}
