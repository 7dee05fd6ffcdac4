package engine

import (
	"context"
	"errors"
	"log/slog"

	"partyboard/core"
)

// LeaderboardService translates requests into Storage operations, validating input
// and publishing an event for every accepted submission.
type LeaderboardService struct {
	storage Storage
	bus     *EventBus
	rules   RuleEngine
	logger  *slog.Logger
}

func NewLeaderboardService(storage Storage, bus *EventBus, rules RuleEngine) *LeaderboardService {
	if storage == nil || bus == nil || rules == nil {
		panic("NewLeaderboardService requires non-nil storage, bus, and rules")
	}
	return &LeaderboardService{storage: storage, bus: bus, rules: rules, logger: slog.Default()}
}

// WithLogger replaces the service logger.
func (s *LeaderboardService) WithLogger(l *slog.Logger) *LeaderboardService {
	if l != nil {
		s.logger = l
	}
	return s
}

func DefaultRuleEngine() RuleEngine {
	return &simpleRuleEngine{rules: []core.Rule{core.NewLeaderRule{}}}
}

// Subscribe convenience method.
func (s *LeaderboardService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubmitScore validates and ratchets the best score of pseudo.
// Storage failures come back as *core.StorageError.
func (s *LeaderboardService) SubmitScore(ctx context.Context, pseudo string, score int64) (core.SubmitResult, error) {
	p, err := core.NormalizePseudo(pseudo)
	if err != nil {
		return core.SubmitResult{}, err
	}
	if err := core.ValidateScore(score); err != nil {
		return core.SubmitResult{}, err
	}
	res, err := s.storage.UpsertBest(ctx, p, score)
	if err != nil {
		s.logger.Error("score submission failed", "pseudo", p, "score", score, "error", err)
		return core.SubmitResult{}, core.WrapStorage("upsert", err)
	}
	s.logger.Info("score submitted", "pseudo", p, "score", score, "outcome", res.Outcome.String())

	ev := core.NewSubmissionEvent(p, res)
	s.bus.Publish(ctx, ev)
	if res.Outcome != core.OutcomeRejected {
		// derived events are best effort; the submission already succeeded
		if standing, err := s.storage.GetRank(ctx, p); err == nil {
			for _, d := range s.rules.Evaluate(ctx, standing, ev) {
				s.bus.Publish(ctx, d)
			}
		}
	}
	return core.NewSubmitResult(res), nil
}

// GetTop returns the best limit players. limit is clamped to core.MaxLimit.
func (s *LeaderboardService) GetTop(ctx context.Context, limit int) ([]core.PlayerScore, error) {
	limit, err := core.ValidateLimit(limit)
	if err != nil {
		return nil, err
	}
	entries, err := s.storage.ListTop(ctx, limit)
	if err != nil {
		return nil, core.WrapStorage("list", err)
	}
	if entries == nil {
		entries = []core.PlayerScore{}
	}
	return entries, nil
}

// GetPlayerRank returns core.ErrNotFound for unknown pseudos.
func (s *LeaderboardService) GetPlayerRank(ctx context.Context, pseudo string) (core.RankInfo, error) {
	p, err := core.NormalizePseudo(pseudo)
	if err != nil {
		return core.RankInfo{}, err
	}
	info, err := s.storage.GetRank(ctx, p)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.RankInfo{}, err
		}
		return core.RankInfo{}, core.WrapStorage("rank", err)
	}
	return info, nil
}

// Ping probes storage with a rank lookup; a missing probe player is healthy.
func (s *LeaderboardService) Ping(ctx context.Context) error {
	_, err := s.storage.GetRank(ctx, core.Pseudo("healthcheck_probe"))
	if err == nil || errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}

func (s *LeaderboardService) Close() { s.bus.Close() }

type simpleRuleEngine struct{ rules []core.Rule }

func (e *simpleRuleEngine) Evaluate(ctx context.Context, standing core.RankInfo, trigger core.Event) []core.Event {
	var out []core.Event
	for _, r := range e.rules {
		out = append(out, r.Evaluate(ctx, standing, trigger)...)
	}
	return out
}
