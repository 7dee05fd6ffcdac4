package memory

import (
	"testing"

	"partyboard/engine"
	"partyboard/leaderboard/leaderboardtest"
)

func TestMemoryStore(t *testing.T) {
	leaderboardtest.Run(t, func(t *testing.T) engine.Storage { return New() })
}
