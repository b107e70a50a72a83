// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Keys are flat and snake_case so env vars map onto them directly.
//   - New returns defaults; Load layers a YAML file and MATCH_ env vars on top.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/repository"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/optimizer"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of pair-scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// StoreBackend is one of memory, sqlite or postgres.
	StoreBackend string `koanf:"store_backend"`
	// StoreDSN is the SQLite path or Postgres connection string.
	StoreDSN      string `koanf:"store_dsn"`
	StoreMaxConns int    `koanf:"store_max_conns"`

	// RedisAddr enables the vibe score cache when set.
	RedisAddr    string        `koanf:"redis_addr"`
	VibeCacheTTL time.Duration `koanf:"vibe_cache_ttl"`

	// VibeURL enables the text-similarity provider when set.
	VibeURL     string        `koanf:"vibe_url"`
	VibeAPIKey  string        `koanf:"vibe_api_key"`
	VibeTimeout time.Duration `koanf:"vibe_timeout"`

	// NATSURL enables change notifications when set.
	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject"`

	// Group rules.
	MinGroupSize      int     `koanf:"min_group_size"`
	MaxGroupSize      int     `koanf:"max_group_size"`
	TargetGroupSize   int     `koanf:"target_group_size"`
	MaxAgeGap         int     `koanf:"max_age_gap"`
	MaxFemales        int     `koanf:"max_females"`
	AllowSingleGender bool    `koanf:"allow_single_gender"`
	PenaltyHard       float64 `koanf:"penalty_hard"`
	PenaltySoft       float64 `koanf:"penalty_soft"`

	// Optimizer search bounds.
	TopK          int           `koanf:"top_k"`
	Restarts      int           `koanf:"restarts"`
	Steps         int           `koanf:"steps"`
	PerturbRounds int           `koanf:"perturb_rounds"`
	TimeBudget    time.Duration `koanf:"time_budget"`
	MinDistance   int           `koanf:"min_distance"`
	Seed          int64         `koanf:"seed"`
	Objective     string        `koanf:"objective"`
}

// New creates a Config with defaults.
func New() *Config {
	rules := grouping.DefaultRules()
	params := optimizer.DefaultParams
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":9080",
		WorkerCount:   runtime.NumCPU() * 2,
		StoreBackend:  string(repository.BackendMemory),
		StoreMaxConns: 4,
		VibeCacheTTL:  24 * time.Hour,
		VibeTimeout:   5 * time.Second,
		NATSSubject:   "match.arrangement",

		MinGroupSize:      rules.MinSize,
		MaxGroupSize:      rules.MaxSize,
		TargetGroupSize:   rules.TargetSize,
		MaxAgeGap:         rules.MaxAgeGap,
		MaxFemales:        rules.MaxFemales,
		AllowSingleGender: rules.AllowSingleGender,
		PenaltyHard:       rules.PenaltyHard,
		PenaltySoft:       rules.PenaltySoft,

		TopK:          params.TopK,
		Restarts:      params.Restarts,
		Steps:         params.Steps,
		PerturbRounds: params.Perturb,
		TimeBudget:    params.TimeBudget,
		MinDistance:   params.MinDistance,
		Seed:          params.Seed,
		Objective:     string(params.Objective),
	}
}

// Rules returns the configured group rules.
func (c *Config) Rules() grouping.Rules {
	return grouping.Rules{
		MinSize:           c.MinGroupSize,
		MaxSize:           c.MaxGroupSize,
		TargetSize:        c.TargetGroupSize,
		MaxAgeGap:         c.MaxAgeGap,
		MaxFemales:        c.MaxFemales,
		AllowSingleGender: c.AllowSingleGender,
		PenaltyHard:       c.PenaltyHard,
		PenaltySoft:       c.PenaltySoft,
	}
}

// OptimizerParams returns the configured search parameters.
func (c *Config) OptimizerParams() optimizer.Params {
	p := optimizer.DefaultParams
	p.TopK = c.TopK
	p.Restarts = c.Restarts
	p.Steps = c.Steps
	p.Perturb = c.PerturbRounds
	p.TimeBudget = c.TimeBudget
	p.MinDistance = c.MinDistance
	p.Seed = c.Seed
	p.Objective = optimizer.Objective(c.Objective)
	return p
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch repository.Backend(c.StoreBackend) {
	case repository.BackendMemory:
	case repository.BackendSQLite, repository.BackendPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for the %s backend", ErrInvalidStore, c.StoreBackend)
		}
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidStore, c.StoreBackend)
	}
	if c.MinGroupSize < 1 || c.TargetGroupSize < c.MinGroupSize || c.MaxGroupSize < c.TargetGroupSize {
		return fmt.Errorf("%w: group sizes must satisfy 1 <= min <= target <= max, got %d/%d/%d",
			ErrInvalidRules, c.MinGroupSize, c.TargetGroupSize, c.MaxGroupSize)
	}
	if c.MaxFemales < 0 || c.MaxAgeGap < 0 || c.PenaltyHard < 0 || c.PenaltySoft < 0 {
		return fmt.Errorf("%w: max_females, max_age_gap and penalties must not be negative", ErrInvalidRules)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1", ErrInvalidConfig)
	}
	switch optimizer.Objective(c.Objective) {
	case optimizer.ObjectiveMean, optimizer.ObjectiveMin:
	default:
		return fmt.Errorf("%w: objective must be mean or min, got %q", ErrInvalidConfig, c.Objective)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
