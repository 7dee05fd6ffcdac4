package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"partyboard/core"
	"partyboard/engine"
)

// Store persists the whole leaderboard to a single JSON file.
// Suitable for demos and kiosk deployments without a database.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.Pseudo]core.PlayerScore
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.Pseudo]core.PlayerScore{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var rows []core.PlayerScore
	if err := json.Unmarshal(b, &rows); err != nil {
		return err
	}
	for _, r := range rows {
		s.data[r.Pseudo] = r
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.sortedLocked(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) sortedLocked() []core.PlayerScore {
	rows := make([]core.PlayerScore, 0, len(s.data))
	for _, r := range s.data {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return core.Less(rows[i], rows[j]) })
	return rows
}

func (s *Store) UpsertBest(_ context.Context, pseudo core.Pseudo, score int64) (core.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[pseudo]
	if ok && score <= cur.BestScore {
		return core.Rejected(score, cur.BestScore), nil
	}
	s.data[pseudo] = core.PlayerScore{Pseudo: pseudo, BestScore: score, LastUpdated: time.Now().UTC()}
	if err := s.persist(); err != nil {
		// keep memory consistent with disk
		if ok {
			s.data[pseudo] = cur
		} else {
			delete(s.data, pseudo)
		}
		return core.UpsertResult{}, core.WrapStorage("persist", err)
	}
	if !ok {
		return core.Created(score), nil
	}
	return core.Updated(score, cur.BestScore), nil
}

func (s *Store) ListTop(_ context.Context, limit int) ([]core.PlayerScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sortedLocked()
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) GetRank(_ context.Context, pseudo core.Pseudo) (core.RankInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[pseudo]
	if !ok {
		return core.RankInfo{}, core.ErrNotFound
	}
	var above int64
	for _, r := range s.data {
		if r.BestScore > cur.BestScore {
			above++
		}
	}
	return core.RankInfo{Rank: above + 1, Pseudo: pseudo, Score: cur.BestScore}, nil
}

var _ engine.Storage = (*Store)(nil)
