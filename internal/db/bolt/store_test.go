package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/designpartner/internal/session"
	"github.com/thebtf/designpartner/internal/session/sessiontest"
	"github.com/thebtf/designpartner/pkg/models"
)

func TestStoreConformance(t *testing.T) {
	suite.Run(t, &sessiontest.StoreSuite{
		NewStore: func() session.Store {
			s, err := Open(filepath.Join(t.TempDir(), "nested", "sessions.bolt"))
			require.NoError(t, err)
			return s
		},
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.bolt")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	sess := sessiontest.Populated("again", models.Now())
	require.NoError(t, s.Create(ctx, sess))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx, "again")
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	doc, err := s.Document(ctx, "again", 1)
	require.NoError(t, err)
	assert.Equal(t, sess.Document, doc)
}

func TestCancelledContext(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "c.bolt"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Create(ctx, models.NewSession("x", models.Now())), context.Canceled)
	_, err = s.Load(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVersionKeyOrdering(t *testing.T) {
	assert.Less(t, string(versionKey(2)), string(versionKey(10)))
	assert.Len(t, versionKey(0), 8)
}
