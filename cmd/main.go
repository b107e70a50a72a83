package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/http/api"
	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/notify"
	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/repository"
	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/vibe"
	service "github.com/abdulrahmanalageeli/match-sub002/internal/app"
	"github.com/abdulrahmanalageeli/match-sub002/internal/config"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/scoring"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

const appName = "match-engine"

// Version and BuildTime are set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 60 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Compatibility scoring and group assignment engine",
		Long: `match-engine scores participant compatibility from survey answers and
partitions an event's attendees into balanced dinner groups.

It provides:
- an HTTP API for registration, scoring, previews and manual edits
- an offline preview command that arranges a YAML roster`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				_ = os.Setenv(config.EnvConfig, configPath)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(), previewCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Root context with cancel on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

// setup loads configuration and initializes the global logger from it.
func setup(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(logger.Format(cfg.LogFormat)), logger.WithOutput(os.Stderr)); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func serve(ctx context.Context) error {
	// The metrics registry carries its own system gauges.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	opts, err := buildOptions(ctx, cfg, log)
	if err != nil {
		return err
	}
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		svc.Stop(stopCtx)
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildOptions opens the configured store and optional integrations.
func buildOptions(ctx context.Context, cfg *config.Config, log logger.Logger) ([]service.Option, error) {
	store, err := repository.Open(ctx, repository.Backend(cfg.StoreBackend), cfg.StoreDSN,
		repository.WithMaxOpenConns(cfg.StoreMaxConns))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithStore(store),
		service.WithRules(cfg.Rules()),
		service.WithOptimizerParams(cfg.OptimizerParams()),
	}

	if p := vibeProvider(ctx, cfg, log); p != nil {
		opts = append(opts, service.WithVibeProvider(p))
	}

	if cfg.NATSURL != "" {
		n, err := notify.Connect(cfg.NATSURL,
			notify.WithSubject(cfg.NATSSubject),
			notify.WithLogger(log.Named("notify")))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		opts = append(opts, service.WithNotifier(n))
	}
	return opts, nil
}

// vibeProvider returns nil when no similarity service is configured, in
// which case pairs score without the vibe term.
func vibeProvider(ctx context.Context, cfg *config.Config, log logger.Logger) scoring.VibeProvider {
	if cfg.VibeURL == "" {
		return nil
	}
	var p scoring.VibeProvider = vibe.NewHTTPProvider(cfg.VibeURL,
		vibe.WithTimeout(cfg.VibeTimeout),
		vibe.WithAPIKey(cfg.VibeAPIKey),
		vibe.WithHTTPLogger(log.Named("vibe")))
	if cfg.RedisAddr == "" {
		return p
	}
	cache := vibe.NewCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), p,
		vibe.WithTTL(cfg.VibeCacheTTL),
		vibe.WithCacheLogger(log.Named("vibe_cache")))
	if err := cache.Ping(ctx); err != nil {
		log.Warn(ctx, "vibe cache unreachable; lookups fall through to the provider",
			logger.String("redis_addr", cfg.RedisAddr), logger.Error(err))
	}
	return cache
}

// startSystemMetricsUpdater updates system metrics until ctx is cancelled.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater updates service metrics until ctx is cancelled.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if n, ok := stats["participants"].(int); ok {
		metrics.UpdateParticipantsTotal(n)
	}
	if started, ok := stats["started"].(bool); ok && started {
		if workerCount, ok := stats["workerCount"].(int); ok {
			metrics.UpdateWorkerActiveCount(workerCount)
		}
	}
}
