// Package games holds headless versions of the party mini-games. Rendering and
// pose detection live outside; each game only sees a Sensor reduced to Signals.
package games

import (
	"math/rand/v2"
	"sync/atomic"

	"partyboard/session"
)

// Options configures the registered games.
type Options struct {
	// Sensors builds the input device of each instance. Nil means every game
	// gets a sensor that never acts.
	Sensors SensorFactory
	// Seed makes the games' randomness reproducible.
	Seed uint64
}

// IDs lists the built-in games in their default play order.
func IDs() []string {
	return []string{WallShapesID, CowboyDuelID, PlumberID, ColorLinesID}
}

// Register adds the built-in games to r.
func Register(r *session.Registry, opts Options) error {
	var instances atomic.Uint64
	newRand := func() *rand.Rand {
		return rand.New(rand.NewPCG(opts.Seed, instances.Add(1)))
	}
	sensor := func(id string) Sensor {
		if opts.Sensors == nil {
			return nil
		}
		return opts.Sensors(id)
	}

	defs := []session.Definition{
		{
			ID:       WallShapesID,
			Tutorial: wallShapesTutorial(),
			New: func(h session.Host) session.MiniGame {
				return NewWallShapes(h, sensor(WallShapesID), newRand())
			},
		},
		{
			ID:       CowboyDuelID,
			Tutorial: cowboyDuelTutorial(),
			New: func(h session.Host) session.MiniGame {
				return NewCowboyDuel(h, sensor(CowboyDuelID), newRand())
			},
		},
		{
			ID:       PlumberID,
			Tutorial: plumberTutorial(),
			New: func(h session.Host) session.MiniGame {
				return NewPlumber(h, sensor(PlumberID), newRand())
			},
		},
		{
			ID:       ColorLinesID,
			Tutorial: colorLinesTutorial(),
			New: func(h session.Host) session.MiniGame {
				return NewColorLines(h, sensor(ColorLinesID), newRand())
			},
		},
	}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in games.
func NewRegistry(opts Options) (*session.Registry, error) {
	r := session.NewRegistry()
	if err := Register(r, opts); err != nil {
		return nil, err
	}
	return r, nil
}
