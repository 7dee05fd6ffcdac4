// Package board assembles a LeaderboardService from functional options.
package board

import (
	"context"
	"log/slog"

	"partyboard/adapters/memory"
	"partyboard/analytics"
	"partyboard/core"
	"partyboard/engine"
	"partyboard/integrations/webhook"
	"partyboard/realtime"
)

// Option configures the builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	rules   engine.RuleEngine
	hub     *realtime.Hub
	sink    *webhook.Sink
	hooks   []analytics.Hook
	logger  *slog.Logger
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime forwards every leaderboard event to the hub.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhook posts events to the sink's endpoints.
func WithWebhook(s *webhook.Sink) Option { return func(c *config) { c.sink = s } }

// WithAnalytics feeds events into KPI hooks.
func WithAnalytics(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// New builds a configured LeaderboardService. If not provided, defaults are used:
//   - storage: in-memory
//   - rules: DefaultRuleEngine
//   - dispatch: async
func New(opts ...Option) *engine.LeaderboardService {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = memory.New()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewLeaderboardService(cfg.storage, bus, cfg.rules).WithLogger(cfg.logger)
	if cfg.hub != nil {
		bus.SubscribeAll(cfg.hub.Broadcast)
	}
	if cfg.sink != nil {
		bus.SubscribeAll(cfg.sink.OnEvent)
	}
	if len(cfg.hooks) > 0 {
		bridge := analytics.NewBridge(cfg.hooks...)
		bus.SubscribeAll(bridge.Handle)
	}
	bus.SubscribeAll(func(_ context.Context, e core.Event) {
		cfg.logger.Debug("leaderboard event", "type", e.Type, "pseudo", e.Pseudo, "score", e.Score)
	})
	return svc
}
