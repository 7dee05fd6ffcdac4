// Package session drives a party-game session: a sequence of mini-games,
// the screens between them and the final leaderboard submission.
package session

import (
	"context"
	"time"
)

// EndReason tells the orchestrator how a mini-game finished.
type EndReason int

const (
	Completed EndReason = iota + 1
	Failed
)

func (r EndReason) String() string {
	switch r {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (r EndReason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Tutorial is shown before a game starts. HTMLBody is rendered verbatim.
type Tutorial struct {
	Title    string `json:"title"`
	HTMLBody string `json:"htmlBody"`
}

// Host is the orchestrator as seen by a running game. Calls are expected from
// within Update or Start; calls after End are ignored.
type Host interface {
	AddScore(points int64)
	End(reason EndReason, finalScore int64)
	LevelUp()
}

// MiniGame is the lifecycle every game variant implements.
//
// Init acquires resources and may block; it should honour ctx cancellation.
// Cleanup must be safe after a failed or partial Init and is called exactly once.
type MiniGame interface {
	Init(ctx context.Context) error
	Start()
	Update(dt time.Duration)
	Cleanup() error
}

// Factory builds a fresh game bound to host.
type Factory func(host Host) MiniGame

// InstanceState is the lifecycle position of the active game instance.
type InstanceState int

const (
	StateCreated InstanceState = iota
	StateInitializing
	StateReady
	StateRunning
	StateEnded
	StateCleanedUp
)

var instanceStateNames = [...]string{"created", "initializing", "ready", "running", "ended", "cleaned_up"}

func (s InstanceState) String() string {
	if int(s) < len(instanceStateNames) {
		return instanceStateNames[s]
	}
	return "unknown"
}

func (s InstanceState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
