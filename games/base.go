package games

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"partyboard/session"
)

// laneCount is the number of lanes, poses and targets every variant uses.
const laneCount = 4

// base holds the lifecycle shared by all variants. Update is only called from
// the orchestrator's frame loop, so no locking is needed.
type base struct {
	id      string
	host    session.Host
	sensor  Sensor
	rng     *rand.Rand
	opened  bool
	running bool
	ended   bool
	score   int64
	elapsed time.Duration
	prev    Signal
}

func newBase(id string, host session.Host, sensor Sensor, rng *rand.Rand) base {
	if sensor == nil {
		sensor = NewScriptedSensor(Asleep)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	return base{
		id:     id,
		host:   host,
		sensor: sensor,
		rng:    rng,
		prev:   Idle,
	}
}

func (b *base) Init(ctx context.Context) error {
	if err := b.sensor.Open(ctx); err != nil {
		return fmt.Errorf("%s: open sensor: %w", b.id, err)
	}
	b.opened = true
	return nil
}

func (b *base) Start() { b.running = true }

// Cleanup releases the sensor if Init acquired it.
func (b *base) Cleanup() error {
	b.running = false
	if !b.opened {
		return nil
	}
	b.opened = false
	return b.sensor.Close()
}

// frame advances the clock and reads the sensor. ok is false once the game stopped.
func (b *base) frame(dt time.Duration, cue int) (sig Signal, pressed bool, ok bool) {
	if !b.running || b.ended {
		return Idle, false, false
	}
	b.elapsed += dt
	if l, isListener := b.sensor.(CueListener); isListener {
		l.Cue(cue)
	}
	sig = b.sensor.Read()
	pressed = sig.Active && !b.prev.Active
	b.prev = sig
	return sig, pressed, true
}

func (b *base) addScore(points int64) {
	b.score += points
	b.host.AddScore(points)
}

func (b *base) end(reason session.EndReason) {
	if b.ended {
		return
	}
	b.ended = true
	b.running = false
	b.host.End(reason, b.score)
}

// Score returns the points earned by this instance.
func (b *base) Score() int64 { return b.score }
