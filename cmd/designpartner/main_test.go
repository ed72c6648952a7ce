package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/designpartner/internal/config"
	"github.com/thebtf/designpartner/internal/coverage"
	"github.com/thebtf/designpartner/internal/db/bolt"
	gormdb "github.com/thebtf/designpartner/internal/db/gorm"
	"github.com/thebtf/designpartner/internal/merge"
	"github.com/thebtf/designpartner/internal/orchestrator"
	"github.com/thebtf/designpartner/internal/provider"
	"github.com/thebtf/designpartner/pkg/models"
)

const climbingReply = `{"updates":[{"topic":"domain","value":"climbing training tracker","confidence":0.9}]}`

// CLISuite drives the root command end to end against a bolt store in a
// temporary home directory.
type CLISuite struct {
	suite.Suite
	home string
}

func (s *CLISuite) SetupTest() {
	s.home = s.T().TempDir()
	s.T().Setenv("HOME", s.home)
	s.T().Setenv(config.EnvPrefix+"DATA_DIR", "")
	s.T().Setenv(config.EnvPrefix+"DB_DRIVER", DriverBolt)
	s.T().Setenv(config.EnvPrefix+"LOG_LEVEL", "error")

	prev := newProvider
	s.T().Cleanup(func() { newProvider = prev })
	newProvider = func(*config.Config) (provider.Provider, error) {
		return provider.Func(func(context.Context, *provider.Request) (string, error) {
			return climbingReply, nil
		}), nil
	}
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) run(stdin string, args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (s *CLISuite) newSession() string {
	out, err := s.run("", "new")
	s.Require().NoError(err)
	id := strings.TrimSpace(out)
	s.Require().Len(id, 36)
	return id
}

func (s *CLISuite) TestConversationLifecycle() {
	id := s.newSession()

	out, err := s.run("I'm building a climbing training tracker\n\n", "talk", id)
	s.Require().NoError(err)
	s.Contains(out, orchestrator.Greeting)
	s.Contains(out, "+ noted domain")
	s.Contains(out, "> ")

	out, err = s.run("", "show", id, "--transcript")
	s.Require().NoError(err)
	s.Contains(out, "Session:   "+id)
	s.Contains(out, "climbing training tracker")
	s.Contains(out, "full")
	s.Contains(out, "I'm building a climbing training tracker")

	out, err = s.run("", "export", id, "-f", "json")
	s.Require().NoError(err)
	s.Contains(out, `"climbing training tracker"`)

	file := filepath.Join(s.home, "prd.md")
	_, err = s.run("", "export", id, "-o", file)
	s.Require().NoError(err)
	data, err := os.ReadFile(file)
	s.Require().NoError(err)
	s.Contains(string(data), "climbing training tracker")

	out, err = s.run("", "list")
	s.Require().NoError(err)
	s.Contains(out, id)

	_, err = s.run("", "reset", id, "domain")
	s.Require().NoError(err)
	_, err = s.run("", "reset", id, "domain")
	s.ErrorIs(err, orchestrator.ErrTopicNotCovered)
}

func (s *CLISuite) TestTalkCreatesSession() {
	out, err := s.run("", "talk")
	s.Require().NoError(err)
	s.Contains(out, "session ")
	s.Contains(out, orchestrator.Greeting)
}

func (s *CLISuite) TestNewWithBegin() {
	out, err := s.run("", "new", "--begin")
	s.Require().NoError(err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	s.Require().GreaterOrEqual(len(lines), 2)
	s.True(strings.HasPrefix(lines[1], orchestrator.Greeting))
}

func (s *CLISuite) TestClearRequiresForce() {
	id := s.newSession()

	_, err := s.run("", "clear", id)
	s.ErrorIs(err, errNotConfirmed)

	out, err := s.run("", "clear", id, "--force")
	s.Require().NoError(err)
	s.Contains(out, "cleared "+id)

	_, err = s.run("", "show", id)
	s.ErrorIs(err, models.ErrSessionNotFound)
}

func (s *CLISuite) TestExportRejectsUnknownFormat() {
	id := s.newSession()
	_, err := s.run("", "export", id, "-f", "pdf")
	s.Error(err)
}

func TestOpenStore(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvPrefix+"DATA_DIR", "")
	require.NoError(t, config.EnsureDataDir())

	t.Run("bolt uses its own default file", func(t *testing.T) {
		cfg := config.Default()
		cfg.DBDriver = "bolt"
		st, err := openStore(cfg)
		require.NoError(t, err)
		defer st.Close()
		assert.IsType(t, &bolt.Store{}, st)
		_, err = os.Stat(config.BoltPath())
		assert.NoError(t, err)
	})

	t.Run("sqlite by default", func(t *testing.T) {
		cfg := config.Default()
		cfg.DBPath = filepath.Join(t.TempDir(), "dp.db")
		st, err := openStore(cfg)
		require.NoError(t, err)
		defer st.Close()
		assert.IsType(t, &gormdb.SessionStore{}, st)
	})

	t.Run("postgres without DSN fails", func(t *testing.T) {
		cfg := config.Default()
		cfg.DBDriver = "postgres"
		_, err := openStore(cfg)
		assert.Error(t, err)
	})
}

func TestOrchestratorConfig(t *testing.T) {
	cfg := config.Default()
	cfg.FullConfidence = 0.8
	cfg.MaxProbes = 4
	cfg.TieBreak = "recency"
	cfg.RetryAttempts = 5
	cfg.RetryInitialDelay = time.Second
	cfg.RetryMaxDelay = 0

	oc := orchestratorConfig(cfg)
	assert.Equal(t, 0.8, oc.FullConfidence)
	assert.Equal(t, 4, oc.MaxProbes)
	assert.Equal(t, merge.TieBreakRecency, oc.Merge.TieBreak)
	assert.Equal(t, 5, oc.Retry.MaxAttempts)
	assert.Equal(t, time.Second, oc.Retry.InitialDelay)
	assert.Equal(t, orchestrator.DefaultRetryPolicy().MaxDelay, oc.Retry.MaxDelay)
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(strings.NewReader("\n  \nhello\n"), &out)

	line, err := c.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", line)

	_, err = c.Listen(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, c.Present(context.Background(), &orchestrator.TurnResult{
		Prompt:   "Who is it for?",
		Notice:   orchestrator.RetryNotice,
		Report:   merge.Report{Inserted: []string{"domain"}, Revised: []string{"title"}},
		Progress: coverage.Progress{Total: 14, Full: 2, Partial: 1},
	}))
	s := out.String()
	assert.Contains(t, s, "("+orchestrator.RetryNotice+")")
	assert.Contains(t, s, "+ noted domain")
	assert.Contains(t, s, "~ revised title")
	assert.Contains(t, s, "[3/14 covered] Who is it for?")
}

func TestConsoleListenCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := newConsole(r, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Listen(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
