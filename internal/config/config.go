// Package config provides configuration management for designpartner.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
)

const (
	// DefaultWorkerPort is the HTTP port of the design partner server.
	DefaultWorkerPort = 37780
	// DefaultProvider is the default language-model backend.
	DefaultProvider = "anthropic"
	// DataDirName is the directory under $HOME holding all local state.
	DataDirName = ".designpartner"
	// EnvPrefix prefixes every setting key and environment override.
	EnvPrefix = "DESIGNPARTNER_"
)

// Config holds designpartner configuration.
type Config struct {
	WorkerHost string
	WorkerPort int

	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	ProviderTimeout time.Duration
	ProviderRPS     float64
	MaxTokens       int
	Temperature     float64
	WindowTokens    int

	DBDriver string
	DBPath   string
	DBDSN    string
	MaxConns int

	RedisAddr string
	LockTTL   time.Duration

	CurriculumPath  string
	WatchCurriculum bool

	FullConfidence       float64
	MaxProbes            int
	TieBreak             string
	EquivalenceThreshold float64
	RetryAttempts        int
	RetryInitialDelay    time.Duration
	RetryMaxDelay        time.Duration

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogJSON       bool
	CORSOrigins   []string
}

var (
	global     *Config
	globalOnce sync.Once
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		WorkerHost:           "127.0.0.1",
		WorkerPort:           DefaultWorkerPort,
		Provider:             DefaultProvider,
		ProviderTimeout:      60 * time.Second,
		ProviderRPS:          1,
		MaxTokens:            1024,
		Temperature:          0.2,
		WindowTokens:         2000,
		DBDriver:             "sqlite",
		DBPath:               DBPath(),
		MaxConns:             4,
		LockTTL:              30 * time.Second,
		FullConfidence:       0.7,
		MaxProbes:            2,
		TieBreak:             "confidence",
		EquivalenceThreshold: 0.8,
		RetryAttempts:        3,
		RetryInitialDelay:    500 * time.Millisecond,
		RetryMaxDelay:        8 * time.Second,
		LogLevel:             "info",
		LogMaxSizeMB:         10,
		LogMaxBackups:        3,
		LogMaxAgeDays:        28,
		CORSOrigins:          []string{},
	}
}

// DataDir returns the data directory path. DESIGNPARTNER_DATA_DIR overrides
// the default of ~/.designpartner.
func DataDir() string {
	if dir := os.Getenv(EnvPrefix + "DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, DataDirName)
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "designpartner.db")
}

// BoltPath returns the default bolt database path.
func BoltPath() string {
	return filepath.Join(DataDir(), "sessions.bolt")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// LogPath returns the default rotating log file path.
func LogPath() string {
	return filepath.Join(DataDir(), "logs", "designpartner.log")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings writes a settings file with defaults if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	def := Default()
	data, err := json.MarshalIndent(map[string]any{
		EnvPrefix + "WORKER_PORT":      def.WorkerPort,
		EnvPrefix + "PROVIDER":         def.Provider,
		EnvPrefix + "MODEL":            def.Model,
		EnvPrefix + "PROVIDER_TIMEOUT": def.ProviderTimeout.String(),
		EnvPrefix + "DB_DRIVER":        def.DBDriver,
		EnvPrefix + "FULL_CONFIDENCE":  def.FullConfidence,
		EnvPrefix + "MAX_PROBES":       def.MaxProbes,
		EnvPrefix + "TIE_BREAK":        def.TieBreak,
		EnvPrefix + "LOG_LEVEL":        def.LogLevel,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll creates the data directory and the default settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := EnsureSettings(); err != nil {
		return fmt.Errorf("create settings: %w", err)
	}
	return nil
}

type setter func(c *Config, v any) error

// field builds a setter that only assigns a successfully converted value, so
// an invalid setting leaves the previous value in place.
func field[T any](ptr func(*Config) *T, conv func(any) (T, error)) setter {
	return func(c *Config, v any) error {
		x, err := conv(v)
		if err != nil {
			return err
		}
		*ptr(c) = x
		return nil
	}
}

// settings maps every DESIGNPARTNER_* key to the field it sets. Values are
// coerced with cast so settings.json and the environment share one path.
var settings = map[string]setter{
	"WORKER_HOST": field(func(c *Config) *string { return &c.WorkerHost }, cast.ToStringE),
	"WORKER_PORT": func(c *Config, v any) error {
		n, err := cast.ToIntE(v)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid port %v", v)
		}
		c.WorkerPort = n
		return nil
	},
	"PROVIDER":              field(func(c *Config) *string { return &c.Provider }, cast.ToStringE),
	"MODEL":                 field(func(c *Config) *string { return &c.Model }, cast.ToStringE),
	"API_KEY":               field(func(c *Config) *string { return &c.APIKey }, cast.ToStringE),
	"BASE_URL":              field(func(c *Config) *string { return &c.BaseURL }, cast.ToStringE),
	"PROVIDER_TIMEOUT":      field(func(c *Config) *time.Duration { return &c.ProviderTimeout }, toDuration),
	"PROVIDER_RPS":          field(func(c *Config) *float64 { return &c.ProviderRPS }, cast.ToFloat64E),
	"MAX_TOKENS":            field(func(c *Config) *int { return &c.MaxTokens }, cast.ToIntE),
	"TEMPERATURE":           field(func(c *Config) *float64 { return &c.Temperature }, cast.ToFloat64E),
	"WINDOW_TOKENS":         field(func(c *Config) *int { return &c.WindowTokens }, cast.ToIntE),
	"DB_DRIVER":             field(func(c *Config) *string { return &c.DBDriver }, cast.ToStringE),
	"DB_PATH":               field(func(c *Config) *string { return &c.DBPath }, cast.ToStringE),
	"DB_DSN":                field(func(c *Config) *string { return &c.DBDSN }, cast.ToStringE),
	"MAX_CONNS":             field(func(c *Config) *int { return &c.MaxConns }, cast.ToIntE),
	"REDIS_ADDR":            field(func(c *Config) *string { return &c.RedisAddr }, cast.ToStringE),
	"LOCK_TTL":              field(func(c *Config) *time.Duration { return &c.LockTTL }, toDuration),
	"CURRICULUM":            field(func(c *Config) *string { return &c.CurriculumPath }, cast.ToStringE),
	"WATCH_CURRICULUM":      field(func(c *Config) *bool { return &c.WatchCurriculum }, cast.ToBoolE),
	"FULL_CONFIDENCE":       field(func(c *Config) *float64 { return &c.FullConfidence }, cast.ToFloat64E),
	"MAX_PROBES":            field(func(c *Config) *int { return &c.MaxProbes }, cast.ToIntE),
	"TIE_BREAK":             field(func(c *Config) *string { return &c.TieBreak }, cast.ToStringE),
	"EQUIVALENCE_THRESHOLD": field(func(c *Config) *float64 { return &c.EquivalenceThreshold }, cast.ToFloat64E),
	"RETRY_ATTEMPTS":        field(func(c *Config) *int { return &c.RetryAttempts }, cast.ToIntE),
	"RETRY_INITIAL_DELAY":   field(func(c *Config) *time.Duration { return &c.RetryInitialDelay }, toDuration),
	"RETRY_MAX_DELAY":       field(func(c *Config) *time.Duration { return &c.RetryMaxDelay }, toDuration),
	"LOG_LEVEL":             field(func(c *Config) *string { return &c.LogLevel }, cast.ToStringE),
	"LOG_FILE":              field(func(c *Config) *string { return &c.LogFile }, cast.ToStringE),
	"LOG_MAX_SIZE_MB":       field(func(c *Config) *int { return &c.LogMaxSizeMB }, cast.ToIntE),
	"LOG_MAX_BACKUPS":       field(func(c *Config) *int { return &c.LogMaxBackups }, cast.ToIntE),
	"LOG_MAX_AGE_DAYS":      field(func(c *Config) *int { return &c.LogMaxAgeDays }, cast.ToIntE),
	"LOG_JSON":              field(func(c *Config) *bool { return &c.LogJSON }, cast.ToBoolE),
	"CORS_ORIGINS": func(c *Config, v any) error {
		switch t := v.(type) {
		case string:
			c.CORSOrigins = splitTrim(t)
			return nil
		default:
			list, err := cast.ToStringSliceE(v)
			if err != nil {
				return err
			}
			c.CORSOrigins = list
			return nil
		}
	},
}

// toDuration accepts Go duration strings ("1m30s") or numbers of milliseconds.
func toDuration(v any) (time.Duration, error) {
	if s, ok := v.(string); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, nil
		}
	}
	ms, err := cast.ToInt64E(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %v", v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Load reads settings.json, then .env files, then DESIGNPARTNER_* environment
// variables, later sources overriding earlier ones. A missing or malformed
// settings file yields defaults.
func Load() (*Config, error) {
	cfg := Default()

	// .env never overrides variables already set in the environment.
	for _, path := range []string{".env", filepath.Join(DataDir(), ".env")} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to load .env file")
		}
	}

	values := map[string]any{}
	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, &values); jerr != nil {
			log.Warn().Err(jerr).Str("path", SettingsPath()).Msg("Ignoring malformed settings file")
			values = map[string]any{}
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read settings: %w", err)
	}

	for key := range settings {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			values[EnvPrefix+key] = v
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set, ok := settings[strings.TrimPrefix(k, EnvPrefix)]
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		if err := set(cfg, values[k]); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("Ignoring invalid setting")
		}
	}

	if cfg.APIKey == "" {
		cfg.APIKey = providerKeyFromEnv(cfg.Provider)
	}
	return cfg, nil
}

// providerKeyFromEnv falls back to the vendor's conventional variable.
func providerKeyFromEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "ollama":
		return ""
	default:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load config, using defaults")
			cfg = Default()
		}
		global = cfg
	})
	return global
}

// GetWorkerPort returns the server port, honouring DESIGNPARTNER_WORKER_PORT.
func GetWorkerPort() int {
	if v := os.Getenv(EnvPrefix + "WORKER_PORT"); v != "" {
		if port, err := cast.ToIntE(v); err == nil && port > 0 {
			return port
		}
	}
	return Get().WorkerPort
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
