package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Definition registers a game variant.
type Definition struct {
	ID       string
	Tutorial Tutorial
	New      Factory
}

// Registry maps game ids to their definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

func NewRegistry() *Registry { return &Registry{defs: map[string]Definition{}} }

// Register validates def and adds it. Ids are unique.
func (r *Registry) Register(def Definition) error {
	def.ID = strings.TrimSpace(def.ID)
	switch {
	case def.ID == "":
		return errors.New("game id is required")
	case def.New == nil:
		return fmt.Errorf("game %q: factory is required", def.ID)
	case strings.TrimSpace(def.Tutorial.Title) == "":
		return fmt.Errorf("game %q: tutorial title is required", def.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("game %q already registered", def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// MustRegister panics on an invalid definition. Meant for package init wiring.
func (r *Registry) MustRegister(defs ...Definition) *Registry {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Lookup(id string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownGame, id)
	}
	return def, nil
}

// Tutorial returns the tutorial of id without instantiating the game.
func (r *Registry) Tutorial(id string) (Tutorial, error) {
	def, err := r.Lookup(id)
	if err != nil {
		return Tutorial{}, err
	}
	return def.Tutorial, nil
}

// IDs returns the registered ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Validate checks that a sequence is non-empty and only names registered games.
func (r *Registry) Validate(sequence []string) error {
	if len(sequence) == 0 {
		return errors.New("sequence must contain at least one game")
	}
	for _, id := range sequence {
		if _, err := r.Lookup(id); err != nil {
			return err
		}
	}
	return nil
}
