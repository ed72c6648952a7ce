// Package sessiontest provides a conformance suite for session.Store
// implementations.
package sessiontest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/designpartner/internal/session"
	"github.com/thebtf/designpartner/pkg/models"
)

// StoreSuite exercises a session.Store. Embed it and set NewStore.
type StoreSuite struct {
	suite.Suite
	// NewStore returns a fresh, empty store for each test.
	NewStore func() session.Store
	store    session.Store
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.store = s.NewStore()
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// Populated returns a session with one committed turn's worth of state.
func Populated(id string, base time.Time) *models.Session {
	sess := models.NewSession(id, base)
	sess.CurrentTopic = "problem"
	sess.Transcript.Append(models.RoleAssistant, "In a sentence, what kind of product are you building?", "domain", base)
	sess.Transcript.Append(models.RoleUser, "it's a climbing app for tracking training volume", "", base.Add(time.Second))
	sess.Transcript.Append(models.RoleAssistant, "What problem are you trying to solve?", "problem", base.Add(2*time.Second))

	sess.Document.Version = 1
	sess.Document.Topics["domain"] = &models.TopicRecord{
		ID:         "domain",
		Question:   "In a sentence, what kind of product are you building?",
		Value:      models.Value{Text: "climbing training tracker"},
		Confidence: 0.9,
		SourceTurn: 2,
		UpdatedAt:  base.Add(time.Second),
	}
	sess.Document.Topics["differentiator"] = &models.TopicRecord{
		ID:         "differentiator",
		Value:      models.Value{Text: "bouldering volume, not routes", Items: []string{"volume"}, Fields: map[string]string{"focus": "bouldering"}},
		Confidence: 0.85,
		SourceTurn: 2,
		UpdatedAt:  base.Add(time.Second),
		Revised:    true,
		History: []models.Revision{{
			Value:        models.Value{Text: "volume over routes"},
			Confidence:   0.8,
			SourceTurn:   1,
			UpdatedAt:    base,
			SupersededBy: 2,
			SupersededAt: base.Add(time.Second),
		}},
	}
	sess.Coverage.Entries["domain"] = &models.CoverageEntry{Completeness: models.CompletenessFull, Probes: 1, Source: models.CoverageAsked, UpdatedTurn: 2}
	sess.Coverage.Entries["differentiator"] = &models.CoverageEntry{Completeness: models.CompletenessFull, Source: models.CoverageVolunteered, UpdatedTurn: 2}
	sess.UpdatedAt = base.Add(2 * time.Second)
	return sess
}

func (s *StoreSuite) base() time.Time {
	return time.Date(2026, 4, 2, 9, 30, 15, 123_000_000, time.UTC)
}

func (s *StoreSuite) TestLoadMissing() {
	_, err := s.store.Load(s.ctx, "missing")
	s.ErrorIs(err, models.ErrSessionNotFound)
}

func (s *StoreSuite) TestCreateAndLoadEmpty() {
	sess := models.NewSession("empty", s.base())
	s.Require().NoError(s.store.Create(s.ctx, sess))

	got, err := s.store.Load(s.ctx, "empty")
	s.Require().NoError(err)
	s.Equal(sess, got)

	v0, err := s.store.Document(s.ctx, "empty", 0)
	s.Require().NoError(err, "the empty document is kept as version 0")
	s.Equal(int64(0), v0.Version)
	s.Zero(v0.Len())
}

func (s *StoreSuite) TestCreateDuplicate() {
	s.Require().NoError(s.store.Create(s.ctx, models.NewSession("dup", s.base())))
	err := s.store.Create(s.ctx, models.NewSession("dup", s.base()))
	s.ErrorIs(err, models.ErrRevisionConflict)
}

func (s *StoreSuite) TestResumptionEquivalence() {
	s.Require().NoError(s.store.Create(s.ctx, models.NewSession("climb", s.base())))

	sess := Populated("climb", s.base())
	sess.Revision = 1
	s.Require().NoError(s.store.Save(s.ctx, sess))

	got, err := s.store.Load(s.ctx, "climb")
	s.Require().NoError(err)
	s.Equal(sess, got)
}

func (s *StoreSuite) TestSaveAppendsIncrementally() {
	s.Require().NoError(s.store.Create(s.ctx, models.NewSession("inc", s.base())))

	sess := Populated("inc", s.base())
	sess.Revision = 1
	s.Require().NoError(s.store.Save(s.ctx, sess))

	sess.Revision = 2
	sess.Transcript.Append(models.RoleUser, "people lose track of sessions", "", s.base().Add(3*time.Second))
	sess.Transcript.Append(models.RoleAssistant, "How do people deal with this today?", "current_solutions", s.base().Add(4*time.Second))
	sess.Document = sess.Document.Clone()
	sess.Document.Version = 2
	sess.Document.Topics["problem"] = &models.TopicRecord{ID: "problem", Value: models.Value{Text: "lost sessions"}, Confidence: 0.8, SourceTurn: 4, UpdatedAt: s.base().Add(3 * time.Second)}
	sess.Coverage.Entries["problem"] = &models.CoverageEntry{Completeness: models.CompletenessFull, Probes: 1, Source: models.CoverageAsked, UpdatedTurn: 4}
	sess.Status = models.SessionStatusComplete
	s.Require().NoError(s.store.Save(s.ctx, sess))

	got, err := s.store.Load(s.ctx, "inc")
	s.Require().NoError(err)
	s.Equal(sess, got)

	v1, err := s.store.Document(s.ctx, "inc", 1)
	s.Require().NoError(err)
	s.Equal(int64(1), v1.Version)
	s.Equal(2, v1.Len())

	_, err = s.store.Document(s.ctx, "inc", 99)
	s.ErrorIs(err, models.ErrSessionNotFound)
}

func (s *StoreSuite) TestSaveRevisionConflict() {
	s.Require().NoError(s.store.Create(s.ctx, models.NewSession("rev", s.base())))

	stale := Populated("rev", s.base())
	stale.Revision = 2
	s.ErrorIs(s.store.Save(s.ctx, stale), models.ErrRevisionConflict)

	stale.Revision = 1
	s.Require().NoError(s.store.Save(s.ctx, stale))
	s.ErrorIs(s.store.Save(s.ctx, stale), models.ErrRevisionConflict, "the same revision cannot be committed twice")

	got, err := s.store.Load(s.ctx, "rev")
	s.Require().NoError(err)
	s.Equal(int64(1), got.Revision)
}

func (s *StoreSuite) TestSaveMissing() {
	sess := Populated("ghost", s.base())
	sess.Revision = 1
	s.ErrorIs(s.store.Save(s.ctx, sess), models.ErrSessionNotFound)
}

func (s *StoreSuite) TestConcurrentSavesSerialise() {
	s.Require().NoError(s.store.Create(s.ctx, models.NewSession("race", s.base())))

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := Populated("race", s.base())
			sess.Revision = 1
			results <- s.store.Save(s.ctx, sess)
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		}
	}
	s.Equal(1, ok, "exactly one writer commits a given revision")
}

func (s *StoreSuite) TestDeleteAndList() {
	s.Require().NoError(s.store.Create(s.ctx, models.NewSession("a", s.base())))
	b := models.NewSession("b", s.base().Add(time.Minute))
	s.Require().NoError(s.store.Create(s.ctx, b))

	populated := Populated("b", s.base())
	populated.Revision = 1
	populated.UpdatedAt = s.base().Add(time.Hour)
	s.Require().NoError(s.store.Save(s.ctx, populated))

	list, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("b", list[0].ID)
	s.Equal(3, list[0].Turns)
	s.Equal(int64(1), list[0].DocumentVersion)
	s.Equal("a", list[1].ID)
	s.Zero(list[1].Turns)

	s.Require().NoError(s.store.Delete(s.ctx, "b"))
	_, err = s.store.Load(s.ctx, "b")
	s.ErrorIs(err, models.ErrSessionNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, "b"), models.ErrSessionNotFound)

	list, err = s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
}
