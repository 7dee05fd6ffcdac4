package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"partyboard/adapters/jsonfile"
	mem "partyboard/adapters/memory"
	pgxAdapter "partyboard/adapters/pgx"
	redisAdapter "partyboard/adapters/redis"
	sqlxAdapter "partyboard/adapters/sqlx"
	"partyboard/analytics"
	"partyboard/api/httpapi"
	"partyboard/board"
	"partyboard/config"
	"partyboard/core"
	"partyboard/engine"
	"partyboard/integrations/webhook"
	"partyboard/realtime"
)

// Flags are the command line inputs that select a configuration source.
type Flags struct {
	ConfigPath string
	Profile    string
}

// App aggregates the assembled server components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Hub      *realtime.Hub
	Service  *engine.LeaderboardService
	Reporter *analytics.Reporter
	Handler  http.Handler
	Server   *http.Server
}

// provideConfig picks the file, then the profile, then plain environment.
func provideConfig(flags Flags) (*config.Config, error) {
	switch {
	case flags.ConfigPath != "":
		return config.LoadFromFile(flags.ConfigPath)
	case flags.Profile != "":
		return config.LoadProfile(flags.Profile)
	default:
		return config.Load()
	}
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

// provideStorage opens the configured adapter. The cleanup closes pools and
// clients that hold connections.
func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Storage, func(), error) {
	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("storage close failed", "adapter", cfg.Storage.Adapter, "error", err)
			}
		}
	}
	return store, cleanup, nil
}

func provideMetrics(cfg *config.Config) *analytics.SubmissionMetrics {
	if !cfg.Analytics.Enabled {
		return nil
	}
	return analytics.NewSubmissionMetrics()
}

func provideReporter(cfg *config.Config, metrics *analytics.SubmissionMetrics, logger *slog.Logger) *analytics.Reporter {
	if metrics == nil {
		return nil
	}
	var exporter analytics.Exporter = analytics.NewLogExporter(logger)
	if cfg.Analytics.ExportURL != "" {
		exporter = analytics.NewMultiExporter(
			exporter,
			analytics.NewHTTPExporter(cfg.Analytics.ExportURL, cfg.Analytics.ExportAPIKey, cfg.Analytics.ExportBatch),
		)
	}
	return analytics.NewReporter(metrics, exporter, cfg.Analytics.ReportInterval, logger)
}

func provideWebhook(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	if len(cfg.Webhook.Endpoints) == 0 {
		return nil
	}
	types := make([]core.EventType, 0, len(cfg.Webhook.Events))
	for _, e := range cfg.Webhook.Events {
		types = append(types, core.EventType(e))
	}
	return webhook.New(cfg.Webhook.Endpoints,
		webhook.WithClient(&http.Client{Timeout: cfg.Webhook.Timeout}),
		webhook.WithTypes(types...),
		webhook.WithLogger(logger),
	)
}

func provideService(cfg *config.Config, logger *slog.Logger, hub *realtime.Hub, storage engine.Storage, sink *webhook.Sink, metrics *analytics.SubmissionMetrics) *engine.LeaderboardService {
	opts := []board.Option{
		board.WithRealtime(hub),
		board.WithStorage(storage),
		board.WithDispatchMode(dispatchMode(cfg.Leaderboard.Dispatch)),
		board.WithWebhook(sink),
		board.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, board.WithAnalytics(metrics))
	}
	return board.New(opts...)
}

func provideHandler(svc *engine.LeaderboardService, hub *realtime.Hub, cfg *config.Config, metrics *analytics.SubmissionMetrics, logger *slog.Logger) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		DefaultLimit:     cfg.Leaderboard.DefaultLimit,
		MaxBodyBytes:     cfg.Leaderboard.MaxBodyBytes,
		Stats:            metrics,
		ShareURL:         cfg.Server.ShareURL,
		Logger:           logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func dispatchMode(name string) engine.DispatchMode {
	if name == "sync" {
		return engine.DispatchSync
	}
	return engine.DispatchAsync
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(ctx context.Context, cfg *config.Config) (engine.Storage, error) {
	switch cfg.Storage.Adapter {
	case config.AdapterMemory:
		return mem.New(), nil
	case config.AdapterFile:
		return jsonfile.New(cfg.Storage.File.Path)
	case config.AdapterRedis:
		return redisAdapter.New(cfg.Storage.Redis)
	case config.AdapterSQL:
		return sqlxAdapter.New(cfg.Storage.SQL)
	case config.AdapterPostgres:
		return pgxAdapter.New(ctx, cfg.Storage.Postgres)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
