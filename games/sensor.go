package games

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// NoLane is the lane of a Signal or cue that points nowhere.
const NoLane = -1

// Signal is one reading of the player's input. Camera poses, hand positions and
// key presses are all reduced to "is the player acting" and "where".
type Signal struct {
	Active bool
	Lane   int
}

// Idle is the reading of a player doing nothing.
var Idle = Signal{Lane: NoLane}

// Sensor is the input device of a game. Open may block while the device warms up
// and must honour ctx; Close is only called after a successful Open.
type Sensor interface {
	Open(ctx context.Context) error
	Read() Signal
	Close() error
}

// CueListener is implemented by sensors that want to see what the game asks the
// player to do (the wall pose, the duel target, the lane to hold).
type CueListener interface {
	Cue(lane int)
}

// SensorFactory returns a fresh sensor for one instance of gameID.
type SensorFactory func(gameID string) Sensor

// ErrSensorUnavailable is returned by Open when the device cannot be acquired.
var ErrSensorUnavailable = errors.New("sensor unavailable")

// Script computes a reading from the current cue.
type Script func(cue int) Signal

// ScriptedSensor replays a Script. OpenDelay and OpenErr simulate a slow or
// missing device.
type ScriptedSensor struct {
	Script    Script
	OpenDelay time.Duration
	OpenErr   error

	mu     sync.Mutex
	cue    int
	opens  int
	closes int
}

// NewScriptedSensor returns a sensor driven by script.
func NewScriptedSensor(script Script) *ScriptedSensor {
	return &ScriptedSensor{Script: script, cue: NoLane}
}

func (s *ScriptedSensor) Open(ctx context.Context) error {
	if s.OpenDelay > 0 {
		t := time.NewTimer(s.OpenDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	return nil
}

func (s *ScriptedSensor) Read() Signal {
	s.mu.Lock()
	cue := s.cue
	s.mu.Unlock()
	if s.Script == nil {
		return Idle
	}
	return s.Script(cue)
}

func (s *ScriptedSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *ScriptedSensor) Cue(lane int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cue = lane
}

// Counts returns how many times the sensor was opened and closed.
func (s *ScriptedSensor) Counts() (opens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

// Perfect follows every cue immediately.
func Perfect(cue int) Signal {
	if cue == NoLane {
		return Idle
	}
	return Signal{Active: true, Lane: cue}
}

// Asleep never acts.
func Asleep(int) Signal { return Idle }

// Bot is a simulated player. It reacts to a new cue after Reaction frames,
// gets Fatigue frames slower on every cue and picks a wrong lane with
// probability 1-Accuracy.
type Bot struct {
	Reaction int
	Fatigue  int
	Accuracy float64

	rng      *rand.Rand
	cue      int
	lane     int
	waited   int
	slowdown int
}

// NewBot returns a bot seeded with seed.
func NewBot(seed uint64, reaction, fatigue int, accuracy float64) *Bot {
	return &Bot{
		Reaction: reaction,
		Fatigue:  fatigue,
		Accuracy: accuracy,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		cue:      NoLane,
		lane:     NoLane,
	}
}

// Script returns the bot as a Script. The returned Script is not safe for
// concurrent use.
func (b *Bot) Script() Script {
	return func(cue int) Signal {
		if cue != b.cue {
			b.cue = cue
			b.waited = 0
			b.lane = cue
			if cue != NoLane {
				b.slowdown += b.Fatigue
				if b.rng.Float64() >= b.Accuracy {
					b.lane = (cue + 1 + b.rng.IntN(3)) % laneCount
				}
			}
		}
		if b.cue == NoLane {
			return Idle
		}
		if b.waited < b.Reaction+b.slowdown {
			b.waited++
			return Idle
		}
		return Signal{Active: true, Lane: b.lane}
	}
}
