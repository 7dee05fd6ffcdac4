package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"partyboard/core"
)

// A simple skip list keyed by (score desc, updated asc, pseudo asc) to achieve O(log n) updates.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    core.PlayerScore
	next [maxLevel]*node
}

type SkipList struct {
	mu       sync.RWMutex
	head     *node
	lvl      int
	byPseudo map[core.Pseudo]*node
	rng      *rand.Rand
}

func NewSkipList() *SkipList {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &SkipList{
		head:     &node{},
		lvl:      1,
		byPseudo: map[core.Pseudo]*node{},
		rng:      rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

// Update inserts or moves the entry to its new position.
func (s *SkipList) Update(e core.PlayerScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byPseudo[e.Pseudo]; ok {
		s.removeLocked(old.e)
	}
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && core.Less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	s.byPseudo[e.Pseudo] = n
}

func (s *SkipList) removeLocked(e core.PlayerScore) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && core.Less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e.Pseudo != e.Pseudo {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].next[i] = target.next[i]
		}
	}
	delete(s.byPseudo, e.Pseudo)
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

func (s *SkipList) Remove(pseudo core.Pseudo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byPseudo[pseudo]; ok {
		s.removeLocked(n.e)
	}
}

func (s *SkipList) TopN(n int) []core.PlayerScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	out := make([]core.PlayerScore, 0, min(n, len(s.byPseudo)))
	cur := s.head.next[0]
	for cur != nil && len(out) < n {
		out = append(out, cur.e)
		cur = cur.next[0]
	}
	return out
}

func (s *SkipList) Get(pseudo core.Pseudo) (core.PlayerScore, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byPseudo[pseudo]; ok {
		return n.e, true
	}
	return core.PlayerScore{}, false
}

func (s *SkipList) CountAbove(score int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for cur := s.head.next[0]; cur != nil && cur.e.BestScore > score; cur = cur.next[0] {
		count++
	}
	return count
}

func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPseudo)
}

var _ Board = (*SkipList)(nil)
