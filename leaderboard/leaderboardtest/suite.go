// Package leaderboardtest holds a conformance suite every engine.Storage
// implementation runs in its own tests.
package leaderboardtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyboard/core"
	"partyboard/engine"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) engine.Storage

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("RatchetScenario", func(t *testing.T) { testRatchetScenario(t, newStore(t)) })
	t.Run("BestIsMaxOfSubmissions", func(t *testing.T) { testBestIsMax(t, newStore(t)) })
	t.Run("ResubmitSameScore", func(t *testing.T) { testResubmit(t, newStore(t)) })
	t.Run("ListTopOrderAndLimit", func(t *testing.T) { testListTop(t, newStore(t)) })
	t.Run("RankCompetition", func(t *testing.T) { testRank(t, newStore(t)) })
	t.Run("RankNotFound", func(t *testing.T) { testRankNotFound(t, newStore(t)) })
	t.Run("ConcurrentSubmissions", func(t *testing.T) { testConcurrent(t, newStore(t)) })
}

func testRatchetScenario(t *testing.T, s engine.Storage) {
	ctx := context.Background()

	res, err := s.UpsertBest(ctx, "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCreated, res.Outcome)

	res, err = s.UpsertBest(ctx, "alice", 50)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeRejected, res.Outcome)
	assert.Equal(t, core.ReasonNotBetter, res.Reason)
	assert.Equal(t, int64(100), res.PreviousScore)

	res, err = s.UpsertBest(ctx, "alice", 150)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeUpdated, res.Outcome)
	assert.Equal(t, int64(100), res.PreviousScore)

	top, err := s.ListTop(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, core.Pseudo("alice"), top[0].Pseudo)
	assert.Equal(t, int64(150), top[0].BestScore)
	assert.False(t, top[0].LastUpdated.IsZero())
}

func testBestIsMax(t *testing.T, s engine.Storage) {
	ctx := context.Background()
	seq := []int64{30, 10, 70, 70, 20, 90, 5}
	for _, v := range seq {
		_, err := s.UpsertBest(ctx, "bob", v)
		require.NoError(t, err)
	}
	info, err := s.GetRank(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(90), info.Score)
}

func testResubmit(t *testing.T, s engine.Storage) {
	ctx := context.Background()
	first, err := s.UpsertBest(ctx, "carol", 42)
	require.NoError(t, err)
	assert.Contains(t, []core.Outcome{core.OutcomeCreated, core.OutcomeUpdated}, first.Outcome)

	second, err := s.UpsertBest(ctx, "carol", 42)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeRejected, second.Outcome)

	info, err := s.GetRank(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Score)
}

func testListTop(t *testing.T, s engine.Storage) {
	ctx := context.Background()
	scores := map[core.Pseudo]int64{"p1": 10, "p2": 40, "p3": 20, "p4": 40, "p5": 5}
	for _, p := range []core.Pseudo{"p1", "p2", "p3", "p4", "p5"} {
		_, err := s.UpsertBest(ctx, p, scores[p])
		require.NoError(t, err)
		// distinct timestamps so the date tie-break is observable
		time.Sleep(2 * time.Millisecond)
	}

	top, err := s.ListTop(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, core.Pseudo("p2"), top[0].Pseudo, "earlier 40 ranks first")
	assert.Equal(t, core.Pseudo("p4"), top[1].Pseudo)
	assert.Equal(t, core.Pseudo("p3"), top[2].Pseudo)

	all, err := s.ListTop(ctx, 50)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].BestScore, all[i].BestScore)
	}

	again, err := s.ListTop(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, pseudos(all), pseudos(again), "order must be stable")
}

func testRank(t *testing.T, s engine.Storage) {
	ctx := context.Background()
	for p, v := range map[core.Pseudo]int64{"top": 500, "tie-a": 300, "tie-b": 300, "low": 100} {
		_, err := s.UpsertBest(ctx, p, v)
		require.NoError(t, err)
	}
	info, err := s.GetRank(ctx, "top")
	require.NoError(t, err)
	assert.Equal(t, core.RankInfo{Rank: 1, Pseudo: "top", Score: 500}, info)

	a, err := s.GetRank(ctx, "tie-a")
	require.NoError(t, err)
	b, err := s.GetRank(ctx, "tie-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.Rank)
	assert.Equal(t, int64(2), b.Rank)

	low, err := s.GetRank(ctx, "low")
	require.NoError(t, err)
	assert.Equal(t, int64(4), low.Rank)
}

func testRankNotFound(t *testing.T, s engine.Storage) {
	_, err := s.GetRank(context.Background(), "nobody")
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)
}

func testConcurrent(t *testing.T, s engine.Storage) {
	ctx := context.Background()
	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	errs := make([]error, 0)
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			res, err := s.UpsertBest(ctx, "racer", v*10)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("upsert %d: %w", v, err))
				return
			}
			if res.Outcome == core.OutcomeCreated {
				created++
			}
		}(int64(i))
	}
	wg.Wait()
	require.Empty(t, errs)
	assert.Equal(t, 1, created, "exactly one submission creates the row")

	info, err := s.GetRank(ctx, "racer")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), info.Score)
}

func pseudos(in []core.PlayerScore) []core.Pseudo {
	out := make([]core.Pseudo, len(in))
	for i, e := range in {
		out[i] = e.Pseudo
	}
	return out
}
