package engine

import (
	"context"

	"partyboard/core"
)

// Storage abstracts best-score persistence.
// UpsertBest must be atomic per pseudo: the stored best never decreases.
type Storage interface {
	UpsertBest(ctx context.Context, pseudo core.Pseudo, score int64) (core.UpsertResult, error)
	ListTop(ctx context.Context, limit int) ([]core.PlayerScore, error)
	GetRank(ctx context.Context, pseudo core.Pseudo) (core.RankInfo, error)
}

// RuleEngine evaluates rules and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, standing core.RankInfo, trigger core.Event) []core.Event
}
