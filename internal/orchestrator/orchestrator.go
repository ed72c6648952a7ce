// Package orchestrator drives the design conversation: it turns each user
// utterance into a committed document version and decides what to ask next.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/designpartner/internal/coverage"
	"github.com/thebtf/designpartner/internal/curriculum"
	"github.com/thebtf/designpartner/internal/extraction"
	"github.com/thebtf/designpartner/internal/merge"
	"github.com/thebtf/designpartner/internal/privacy"
	"github.com/thebtf/designpartner/internal/provider"
	"github.com/thebtf/designpartner/internal/session"
	"github.com/thebtf/designpartner/pkg/models"
)

const (
	// DefaultFullConfidence is the confidence at which a topic counts as fully covered.
	DefaultFullConfidence = 0.7

	// Greeting opens a brand new session.
	Greeting = "Hi, I'm your design partner. Before you build anything, let's think through what you're making and why."
	// ClosingMessage is said once every curriculum topic is covered or parked.
	ClosingMessage = "That covers everything I wanted to ask. Your design document is ready to export, and you can keep adding to it any time."
)

// ErrTopicNotCovered is returned when resetting a topic that has no coverage.
var ErrTopicNotCovered = errors.New("topic has no coverage to reset")

// Extractor proposes document updates for an utterance.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (*extraction.Result, error)
}

// Curriculum supplies the current topic registry.
type Curriculum interface {
	Current() *curriculum.Registry
}

// Config tunes turn processing.
type Config struct {
	FullConfidence float64
	MaxProbes      int
	Merge          merge.Policy
	Retry          RetryPolicy
}

// DefaultConfig returns the default turn configuration.
func DefaultConfig() Config {
	return Config{
		FullConfidence: DefaultFullConfidence,
		MaxProbes:      coverage.DefaultMaxProbes,
		Merge:          merge.DefaultPolicy(),
		Retry:          DefaultRetryPolicy(),
	}
}

// TurnResult is what the voice/UI layer presents after a turn.
type TurnResult struct {
	SessionID    string            `json:"session_id"`
	State        State             `json:"state"`
	TopicID      string            `json:"topic,omitempty"`
	Prompt       string            `json:"prompt"`
	Notice       string            `json:"notice,omitempty"`
	Revision     int64             `json:"revision"`
	Document     *models.Document  `json:"document"`
	Report       merge.Report      `json:"report"`
	ParseFailure bool              `json:"parse_failure,omitempty"`
	Progress     coverage.Progress `json:"progress"`
}

// Orchestrator runs turns for any number of sessions. Turns of one session
// are strictly sequential; distinct sessions proceed independently.
type Orchestrator struct {
	sessions   *session.Manager
	extractor  Extractor
	curriculum Curriculum
	cfg        Config
	meter      metric.Meter
	metrics    *metrics
	sleep      func(context.Context, time.Duration) error
	now        func() time.Time
	onState    func(id string, s State)

	mu      sync.Mutex
	pending map[string]*models.Session
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithMeter records metrics on meter instead of the global provider.
func WithMeter(m metric.Meter) Option {
	return func(o *Orchestrator) { o.meter = m }
}

// WithStateHook observes every state transition.
func WithStateHook(fn func(id string, s State)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

// New creates an orchestrator.
func New(sessions *session.Manager, ex Extractor, cur Curriculum, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		sessions:   sessions,
		extractor:  ex,
		curriculum: cur,
		cfg:        DefaultConfig(),
		sleep:      sleepContext,
		now:        models.Now,
		pending:    make(map[string]*models.Session),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.FullConfidence <= 0 {
		o.cfg.FullConfidence = DefaultFullConfidence
	}
	m, err := newMetrics(o.meter)
	if err != nil {
		return nil, fmt.Errorf("orchestrator metrics: %w", err)
	}
	o.metrics = m
	return o, nil
}

// Begin presents the opening question of a new session, or the outstanding
// question of a resumed one. A complete session whose curriculum has since
// grown re-enters topic selection.
func (o *Orchestrator) Begin(ctx context.Context, id string) (*TurnResult, error) {
	unlock, err := o.sessions.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := o.flushLocked(ctx, id); err != nil {
		return nil, err
	}
	sess, err := o.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	reg := o.curriculum.Current()
	tracker := coverage.New(sess.Coverage, reg, o.cfg.MaxProbes)

	if awaitingAnswer(sess, reg) {
		return o.result(sess, tracker, merge.Report{}, false), nil
	}
	if sess.Status == models.SessionStatusComplete {
		if _, more := tracker.NextUncoveredTopic(); !more {
			return o.result(sess, tracker, merge.Report{}, false), nil
		}
	}

	o.transition(id, StateSelectingNext)
	now := o.now()
	state := o.selectNext(sess, tracker, reg, now, "")
	sess.UpdatedAt = now
	if err := o.commit(ctx, sess); err != nil {
		return nil, err
	}
	o.transition(id, state)
	return o.result(sess, tracker, merge.Report{}, false), nil
}

// HandleUtterance runs one full turn for a user utterance. Provider
// failures leave the session untouched; once extraction has succeeded the
// turn runs to completion even if ctx is cancelled.
func (o *Orchestrator) HandleUtterance(ctx context.Context, id, text string) (*TurnResult, error) {
	unlock, err := o.sessions.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := o.flushLocked(ctx, id); err != nil {
		return nil, err
	}
	sess, err := o.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	reg := o.curriculum.Current()

	utterance := privacy.Clean(text)
	if utterance == "" {
		// Nothing usable was said; the current question stands.
		return o.result(sess, coverage.New(sess.Coverage, reg, o.cfg.MaxProbes), merge.Report{}, false), nil
	}

	o.transition(id, StateExtracting)
	res, err := o.extract(ctx, id, extraction.Request{
		Utterance:    utterance,
		Document:     sess.Document,
		Coverage:     sess.Coverage,
		Transcript:   sess.Transcript,
		Topics:       extraction.TopicsOf(reg),
		CurrentTopic: sess.CurrentTopic,
	})
	if err != nil {
		o.transition(id, stateOf(sess))
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	now := o.now()
	asked := sess.CurrentTopic

	o.transition(id, StateMerging)
	userTurn := sess.Transcript.Append(models.RoleUser, utterance, asked, now)
	doc, report := merge.Merge(sess.Document, res.Updates, merge.Turn{Seq: userTurn.Seq, At: now}, o.cfg.Merge)
	sess.Document = doc

	o.transition(id, StateCoverageUpdate)
	tracker := coverage.New(sess.Coverage, reg, o.cfg.MaxProbes)
	o.updateCoverage(tracker, doc, res, report, asked, userTurn.Seq)

	o.transition(id, StateSelectingNext)
	retopic := ""
	if res.ParseFailure {
		retopic = asked
		o.metrics.softFailures.Add(ctx, 1)
	}
	state := o.selectNext(sess, tracker, reg, now, retopic)
	sess.UpdatedAt = now

	if err := o.commit(ctx, sess); err != nil {
		return nil, err
	}

	o.metrics.turns.Add(ctx, 1)
	if n := len(report.Revised); n > 0 {
		o.metrics.revisions.Add(ctx, int64(n))
	}
	log.Info().
		Str("session", id).
		Int("turn", userTurn.Seq).
		Int64("version", doc.Version).
		Strs("inserted", report.Inserted).
		Strs("revised", report.Revised).
		Bool("parse_failure", res.ParseFailure).
		Str("next", sess.CurrentTopic).
		Msg("Turn committed")

	o.transition(id, state)
	return o.result(sess, tracker, report, res.ParseFailure), nil
}

// ResetTopic forgets a topic's coverage so it will be asked again. It is
// an operator action.
func (o *Orchestrator) ResetTopic(ctx context.Context, id, topicID string) (*TurnResult, error) {
	unlock, err := o.sessions.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := o.flushLocked(ctx, id); err != nil {
		return nil, err
	}
	sess, err := o.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	reg := o.curriculum.Current()
	tracker := coverage.New(sess.Coverage, reg, o.cfg.MaxProbes)

	topicID = curriculum.NormalizeID(topicID)
	if !tracker.Reset(topicID) {
		return nil, fmt.Errorf("reset %s: %w", topicID, ErrTopicNotCovered)
	}

	now := o.now()
	if sess.Status == models.SessionStatusComplete {
		o.selectNext(sess, tracker, reg, now, "")
	}
	sess.UpdatedAt = now
	if err := o.commit(ctx, sess); err != nil {
		return nil, err
	}
	log.Info().Str("session", id).Str("topic", topicID).Msg("Topic coverage reset")
	return o.result(sess, tracker, merge.Report{}, false), nil
}

// Flush retries the save of a turn that completed but could not be
// persisted. It is a no-op when nothing is pending.
func (o *Orchestrator) Flush(ctx context.Context, id string) error {
	unlock, err := o.sessions.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	return o.flushLocked(ctx, id)
}

// Pending reports whether a completed turn is waiting to be saved.
func (o *Orchestrator) Pending(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.pending[id]
	return ok
}

func (o *Orchestrator) flushLocked(ctx context.Context, id string) error {
	o.mu.Lock()
	sess := o.pending[id]
	o.mu.Unlock()
	if sess == nil {
		return nil
	}

	if err := o.sessions.Save(ctx, sess); err != nil {
		if errors.Is(err, models.ErrRevisionConflict) || errors.Is(err, models.ErrSessionNotFound) {
			// The stored session moved on without us; the pending turn can never land.
			o.dropPending(id)
			log.Error().Err(err).Str("session", id).Msg("Discarding pending turn")
		}
		return turnError(ErrPersistence, id, err)
	}
	o.dropPending(id)
	log.Info().Str("session", id).Int64("revision", sess.Revision).Msg("Pending turn saved")
	return nil
}

func (o *Orchestrator) dropPending(id string) {
	o.mu.Lock()
	delete(o.pending, id)
	o.mu.Unlock()
}

// commit saves sess. A failed save keeps the completed turn pending unless
// the store has moved past it.
func (o *Orchestrator) commit(ctx context.Context, sess *models.Session) error {
	err := o.sessions.Save(ctx, sess)
	if err == nil {
		return nil
	}
	o.metrics.turnFailed(ctx, "persistence")
	if !errors.Is(err, models.ErrRevisionConflict) {
		o.mu.Lock()
		o.pending[sess.ID] = sess
		o.mu.Unlock()
	}
	log.Error().Err(err).Str("session", sess.ID).Msg("Failed to save turn")
	return turnError(ErrPersistence, sess.ID, err)
}

// extract calls the extractor, retrying transient provider failures with
// exponential backoff.
func (o *Orchestrator) extract(ctx context.Context, id string, req extraction.Request) (*extraction.Result, error) {
	attempts := o.cfg.Retry.attempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := o.cfg.Retry.NextDelay(attempt - 1)
			var pe *provider.Error
			if errors.As(lastErr, &pe) && pe.RetryAfter > delay {
				delay = pe.RetryAfter
			}
			o.metrics.retries.Add(ctx, 1)
			log.Warn().Err(lastErr).Str("session", id).Int("attempt", attempt+1).Dur("delay", delay).Msg("Retrying extraction")
			if err := o.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		res, err := o.extractor.Extract(ctx, req)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !provider.IsTransient(err) {
			o.metrics.turnFailed(ctx, "fatal")
			return nil, turnError(ErrTurnFatal, id, err)
		}
		lastErr = err
	}
	o.metrics.turnFailed(ctx, "retryable")
	return nil, turnError(ErrTurnRetryable, id, lastErr)
}

// updateCoverage records the asked topic's probe, then marks every touched
// topic full or partial by confidence and every addressed topic partial.
func (o *Orchestrator) updateCoverage(t *coverage.Tracker, doc *models.Document, res *extraction.Result, report merge.Report, asked string, seq int) {
	if asked != "" && !res.ParseFailure {
		t.MarkAsked(asked, seq)
	}

	conf := make(map[string]float64, len(res.Updates))
	for _, u := range res.Updates {
		if u.Confidence > conf[u.TopicID] {
			conf[u.TopicID] = u.Confidence
		}
	}
	for _, id := range report.Touched() {
		c := conf[id]
		if rec, ok := doc.Get(id); ok && rec.Confidence > c {
			c = rec.Confidence
		}
		completeness := models.CompletenessPartial
		if c >= o.cfg.FullConfidence {
			completeness = models.CompletenessFull
		}
		t.MarkCovered(id, completeness, seq)
	}
	for _, id := range res.Addressed {
		t.MarkCovered(id, models.CompletenessPartial, seq)
	}
}

// selectNext appends the next question to the transcript, or the closing
// message when nothing is left to ask. A non-empty retopic is re-asked with
// its narrower probe.
func (o *Orchestrator) selectNext(sess *models.Session, t *coverage.Tracker, reg *curriculum.Registry, now time.Time, retopic string) State {
	id, reask := retopic, true
	if id == "" || !reg.Contains(id) {
		next, ok := t.NextUncoveredTopic()
		if !ok {
			sess.Status = models.SessionStatusComplete
			sess.CurrentTopic = ""
			sess.Transcript.Append(models.RoleAssistant, ClosingMessage, "", now)
			return StateComplete
		}
		id, reask = next, t.IsCovered(next)
	}

	topic, _ := reg.Get(id)
	text := topic.Prompt(reask)
	if len(sess.Transcript) == 0 {
		text = Greeting + " " + text
	}
	sess.Status = models.SessionStatusActive
	sess.CurrentTopic = id
	sess.Transcript.Append(models.RoleAssistant, text, id, now)
	return StateAwaitingInput
}

func (o *Orchestrator) transition(id string, s State) {
	log.Debug().Str("session", id).Stringer("state", s).Msg("Turn state")
	if o.onState != nil {
		o.onState(id, s)
	}
}

func (o *Orchestrator) result(sess *models.Session, t *coverage.Tracker, report merge.Report, parseFailure bool) *TurnResult {
	r := &TurnResult{
		SessionID:    sess.ID,
		State:        stateOf(sess),
		TopicID:      sess.CurrentTopic,
		Revision:     sess.Revision,
		Document:     sess.Document.Clone(),
		Report:       report,
		ParseFailure: parseFailure,
		Progress:     t.Progress(),
	}
	if last, ok := lastAssistant(sess.Transcript); ok {
		r.Prompt = last.Text
	}
	return r
}

func stateOf(sess *models.Session) State {
	if sess.Status == models.SessionStatusComplete {
		return StateComplete
	}
	return StateAwaitingInput
}

// awaitingAnswer reports whether the last thing said was a question about
// the current topic that the user has not answered yet.
func awaitingAnswer(sess *models.Session, reg *curriculum.Registry) bool {
	if sess.Status != models.SessionStatusActive || sess.CurrentTopic == "" || !reg.Contains(sess.CurrentTopic) {
		return false
	}
	n := len(sess.Transcript)
	if n == 0 {
		return false
	}
	last := sess.Transcript[n-1]
	return last.Role == models.RoleAssistant && last.TopicID == sess.CurrentTopic
}

func lastAssistant(t models.Transcript) (models.Turn, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == models.RoleAssistant {
			return t[i], true
		}
	}
	return models.Turn{}, false
}
