package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/designpartner/internal/config"
	"github.com/thebtf/designpartner/internal/curriculum"
	"github.com/thebtf/designpartner/internal/db/bolt"
	gormdb "github.com/thebtf/designpartner/internal/db/gorm"
	"github.com/thebtf/designpartner/internal/export"
	"github.com/thebtf/designpartner/internal/extraction"
	"github.com/thebtf/designpartner/internal/merge"
	"github.com/thebtf/designpartner/internal/orchestrator"
	"github.com/thebtf/designpartner/internal/provider"
	"github.com/thebtf/designpartner/internal/provider/factory"
	"github.com/thebtf/designpartner/internal/session"
	"github.com/thebtf/designpartner/internal/worker"
	"github.com/thebtf/designpartner/internal/worker/sse"
)

// DriverBolt selects the embedded bbolt store.
const DriverBolt = "bolt"

// newProvider builds the extraction backend. Tests replace it.
var newProvider = func(cfg *config.Config) (provider.Provider, error) {
	return factory.New(provider.Config{
		Name:      cfg.Provider,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.ProviderTimeout,
		RPS:       cfg.ProviderRPS,
		MaxTokens: cfg.MaxTokens,
	})
}

// app holds the wired components shared by every command.
type app struct {
	cfg         *config.Config
	store       session.Store
	redis       *redis.Pool
	sessions    *session.Manager
	curriculum  *curriculum.Live
	orch        *orchestrator.Orchestrator
	exporter    *export.Exporter
	broadcaster *sse.Broadcaster
	metrics     *worker.Metrics
}

// openStore selects the persistence backend named by the configuration.
func openStore(cfg *config.Config) (session.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBDriver)) {
	case DriverBolt, "bbolt":
		path := cfg.DBPath
		if path == "" || path == config.DBPath() {
			path = config.BoltPath()
		}
		return bolt.Open(path)
	default:
		st, err := gormdb.NewStore(gormdb.Config{
			Driver:   cfg.DBDriver,
			Path:     cfg.DBPath,
			DSN:      cfg.DBDSN,
			MaxConns: cfg.MaxConns,
			LogLevel: logger.Silent,
		})
		if err != nil {
			return nil, err
		}
		return gormdb.NewSessionStore(st), nil
	}
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.FullConfidence = cfg.FullConfidence
	oc.MaxProbes = cfg.MaxProbes
	oc.Merge = merge.Policy{
		EquivalenceThreshold: cfg.EquivalenceThreshold,
		TieBreak:             merge.ParseTieBreak(cfg.TieBreak),
	}
	if cfg.RetryAttempts > 0 {
		oc.Retry.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryInitialDelay > 0 {
		oc.Retry.InitialDelay = cfg.RetryInitialDelay
	}
	if cfg.RetryMaxDelay > 0 {
		oc.Retry.MaxDelay = cfg.RetryMaxDelay
	}
	return oc
}

// newApp opens storage and wires the conversation engine.
func newApp(cfg *config.Config) (_ *app, err error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	a := &app{cfg: cfg, broadcaster: sse.NewBroadcaster()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.store, err = openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var opts []session.Option
	if cfg.RedisAddr != "" {
		a.redis = session.NewRedisPool(cfg.RedisAddr)
		opts = append(opts, session.WithLocker(session.NewRedisLocker(a.redis, cfg.LockTTL)))
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis session locks")
	}
	a.sessions = session.NewManager(a.store, opts...)

	a.curriculum, err = curriculum.NewLive(cfg.CurriculumPath)
	if err != nil {
		return nil, fmt.Errorf("load curriculum: %w", err)
	}

	p, err := newProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	engine := extraction.New(p,
		extraction.WithWindowTokens(cfg.WindowTokens),
		extraction.WithMaxTokens(cfg.MaxTokens),
		extraction.WithTemperature(float32(cfg.Temperature)),
	)

	a.metrics = worker.NewMetrics(a.broadcaster)
	a.orch, err = orchestrator.New(a.sessions, engine, a.curriculum,
		orchestrator.WithConfig(orchestratorConfig(cfg)),
		orchestrator.WithStateHook(a.metrics.ObserveState),
	)
	if err != nil {
		return nil, err
	}
	a.exporter = export.NewExporter(a.sessions, a.curriculum)
	return a, nil
}

// service builds the HTTP worker over the app's components.
func (a *app) service() *worker.Service {
	return worker.NewService(worker.Options{
		Version:      version,
		Config:       a.cfg,
		Sessions:     a.sessions,
		Orchestrator: a.orch,
		Exporter:     a.exporter,
		Curriculum:   a.curriculum,
		Broadcaster:  a.broadcaster,
		Metrics:      a.metrics,
	})
}

// Close releases storage, locks and the curriculum watcher.
func (a *app) Close() error {
	var errs []error
	if a.curriculum != nil {
		errs = append(errs, a.curriculum.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
