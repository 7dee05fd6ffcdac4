package games

import (
	"math/rand/v2"
	"time"

	"partyboard/session"
)

// PlumberID identifies the leak repair game.
const PlumberID = "plumber"

const (
	leakBaseRate    = 2 * time.Second
	leakMinRate     = 500 * time.Millisecond
	leakRateStep    = 250 * time.Millisecond
	repairsPerLevel = 5
	repairPoints    = 10
	repairDrain     = 10.0

	// water gained per second for each open leak
	risePerLeak = 3.0
	maxWater    = 100.0
)

type leak struct {
	lane int
}

// Plumber spawns leaks that flood the room. Covering a leak's lane repairs it.
// Leaks come faster as repairs accumulate; a flooded room fails the game.
type Plumber struct {
	base
	leaks   []leak
	spawnIn time.Duration
	water   float64
	repairs int
	level   int
}

func NewPlumber(host session.Host, sensor Sensor, rng *rand.Rand) *Plumber {
	return &Plumber{
		base:    newBase(PlumberID, host, sensor, rng),
		spawnIn: leakBaseRate,
		level:   1,
	}
}

func plumberTutorial() session.Tutorial {
	return NewTutorial("Plumber",
		"Plug the water leaks with your hands before the room is flooded!",
		"Work as a team: one player places the hands, the other presses the key.",
		"Webcam + MakeyMakey")
}

// SpawnRate is the delay between two leaks after the given number of repairs.
func SpawnRate(repairs int) time.Duration {
	level := repairs / repairsPerLevel
	if level == 0 {
		return leakBaseRate
	}
	return max(leakBaseRate-time.Duration(level+1)*leakRateStep, leakMinRate)
}

func (g *Plumber) Water() float64 { return g.water }
func (g *Plumber) OpenLeaks() int { return len(g.leaks) }

func (g *Plumber) Update(dt time.Duration) {
	cue := NoLane
	if len(g.leaks) > 0 {
		cue = g.leaks[0].lane
	}
	sig, _, ok := g.frame(dt, cue)
	if !ok {
		return
	}

	g.spawnIn -= dt
	if g.spawnIn <= 0 {
		g.leaks = append(g.leaks, leak{lane: g.rng.IntN(laneCount)})
		g.spawnIn += SpawnRate(g.repairs)
	}

	g.water = min(maxWater, g.water+float64(len(g.leaks))*risePerLeak*dt.Seconds())

	if sig.Active {
		for i, l := range g.leaks {
			if l.lane == sig.Lane {
				g.leaks = append(g.leaks[:i], g.leaks[i+1:]...)
				g.repair()
				break
			}
		}
	}

	if g.water >= maxWater {
		g.end(session.Failed)
	}
}

func (g *Plumber) repair() {
	g.repairs++
	g.addScore(repairPoints)
	g.water = max(0, g.water-repairDrain)
	if lvl := g.repairs/repairsPerLevel + 1; lvl > g.level {
		g.level = lvl
		g.host.LevelUp()
	}
}
