package core

import "context"

// Rule determines whether a player's standing and trigger event should emit derived events.
type Rule interface {
	Evaluate(ctx context.Context, standing RankInfo, trigger Event) []Event
}

// NewLeaderRule emits new_leader when a created or improved score reaches rank 1.
type NewLeaderRule struct{}

func (NewLeaderRule) Evaluate(_ context.Context, standing RankInfo, trigger Event) []Event {
	if trigger.Type != EventScoreCreated && trigger.Type != EventScoreImproved {
		return nil
	}
	if standing.Rank != 1 || standing.Pseudo != trigger.Pseudo {
		return nil
	}
	return []Event{NewLeader(standing.Pseudo, standing.Score)}
}
