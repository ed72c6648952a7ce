package gorm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	"github.com/thebtf/designpartner/internal/session"
	"github.com/thebtf/designpartner/internal/session/sessiontest"
	"github.com/thebtf/designpartner/pkg/models"
)

// testStore creates a SQLite store in a temporary directory.
func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	return store
}

func TestSessionStoreConformance(t *testing.T) {
	suite.Run(t, &sessiontest.StoreSuite{
		NewStore: func() session.Store { return NewSessionStore(testStore(t)) },
	})
}

func TestNewStoreMigrates(t *testing.T) {
	store := testStore(t)
	defer store.Close()

	assert.Equal(t, DriverSQLite, store.Driver())
	require.NoError(t, store.Ping())

	for _, table := range []string{"design_sessions", "transcript_turns", "document_versions"} {
		assert.True(t, store.DB.Migrator().HasTable(table), table)
	}

	var mode string
	require.NoError(t, store.GetRawDB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestNewStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := NewStore(Config{Path: path, LogLevel: logger.Silent})
	require.NoError(t, err)
	sess := sessiontest.Populated("again", models.Now())
	sess.Revision = 0
	require.NoError(t, NewSessionStore(store).Create(ctx, sess))
	require.NoError(t, store.Close())

	store, err = NewStore(Config{Path: path, LogLevel: logger.Silent})
	require.NoError(t, err)
	defer store.Close()

	got, err := NewSessionStore(store).Load(ctx, "again")
	require.NoError(t, err)
	assert.Equal(t, sess, got)
}

func TestDialector(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		driver  string
		wantErr bool
	}{
		{name: "default sqlite", cfg: Config{Path: "x.db"}, driver: DriverSQLite},
		{name: "sqlite3 alias", cfg: Config{Driver: "sqlite3", DSN: "file::memory:"}, driver: DriverSQLite},
		{name: "sqlite without path", cfg: Config{}, wantErr: true},
		{name: "postgres", cfg: Config{Driver: "Postgres", DSN: "host=localhost dbname=dp"}, driver: DriverPostgres},
		{name: "postgres without dsn", cfg: Config{Driver: "postgres"}, wantErr: true},
		{name: "mysql", cfg: Config{Driver: "mysql", DSN: "dp:dp@tcp(localhost:3306)/dp"}, driver: DriverMySQL},
		{name: "mysql without dsn", cfg: Config{Driver: "mysql"}, wantErr: true},
		{name: "unknown", cfg: Config{Driver: "oracle", DSN: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dial, driver, err := dialector(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, dial)
			assert.Equal(t, tt.driver, driver)
		})
	}
}

func TestSaveRejectsShrinkingTranscript(t *testing.T) {
	ctx := context.Background()
	ss := NewSessionStore(testStore(t))
	defer ss.Close()

	base := models.Now()
	require.NoError(t, ss.Create(ctx, models.NewSession("s", base)))
	sess := sessiontest.Populated("s", base)
	sess.Revision = 1
	require.NoError(t, ss.Save(ctx, sess))

	sess.Revision = 2
	sess.Transcript = sess.Transcript[:1]
	err := ss.Save(ctx, sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shrink")

	got, err := ss.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Revision, "failed save is rolled back")
	assert.Len(t, got.Transcript, 3)
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	doc := sessiontest.Populated("x", models.Now()).Document
	data, err := encodeDocument(doc)
	require.NoError(t, err)

	back, err := decodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc, back)

	empty, err := decodeDocument("")
	require.NoError(t, err)
	assert.NotNil(t, empty.Topics)
}
