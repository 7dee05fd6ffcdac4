package memory

import (
	"context"
	"sync"
	"time"

	"partyboard/core"
	"partyboard/engine"
	"partyboard/leaderboard"
)

// Store is a concurrent in-memory Storage backed by a skip list index.
type Store struct {
	mu    sync.Mutex
	board leaderboard.Board
	now   func() time.Time
}

func New() *Store {
	return &Store{board: leaderboard.NewSkipList(), now: func() time.Time { return time.Now().UTC() }}
}

// UpsertBest holds the store lock across the read and the conditional write.
func (s *Store) UpsertBest(_ context.Context, pseudo core.Pseudo, score int64) (core.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.board.Get(pseudo)
	if !ok {
		s.board.Update(core.PlayerScore{Pseudo: pseudo, BestScore: score, LastUpdated: s.now()})
		return core.Created(score), nil
	}
	if score <= cur.BestScore {
		return core.Rejected(score, cur.BestScore), nil
	}
	s.board.Update(core.PlayerScore{Pseudo: pseudo, BestScore: score, LastUpdated: s.now()})
	return core.Updated(score, cur.BestScore), nil
}

func (s *Store) ListTop(_ context.Context, limit int) ([]core.PlayerScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.TopN(limit), nil
}

func (s *Store) GetRank(_ context.Context, pseudo core.Pseudo) (core.RankInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.board.Get(pseudo)
	if !ok {
		return core.RankInfo{}, core.ErrNotFound
	}
	return core.RankInfo{Rank: int64(s.board.CountAbove(e.BestScore)) + 1, Pseudo: pseudo, Score: e.BestScore}, nil
}

var _ engine.Storage = (*Store)(nil)
