package games

import (
	"math/rand/v2"
	"time"

	"partyboard/session"
)

// CowboyDuelID identifies the reflex duel.
const CowboyDuelID = "cowboy-duel"

const (
	duelStartWindow = 5 * time.Second
	duelWindowStep  = 500 * time.Millisecond
	duelMinWindow   = time.Second
	duelWaiting     = time.Second
	duelReadyMin    = 2 * time.Second
	duelReadySpread = 2 * time.Second
	duelHitPause    = time.Second
	duelMissPause   = 1500 * time.Millisecond
	duelPoints      = 100
)

type duelPhase int

const (
	phaseWaiting duelPhase = iota
	phaseReady
	phaseShooting
	phaseHit
	phaseMiss
)

// CowboyDuel is a sequence of rounds against a cowboy appearing in one of the
// lanes. Each round leaves less time to shoot. Missing, shooting early or
// being too slow ends the duel.
type CowboyDuel struct {
	base
	phase     duelPhase
	phaseTime time.Duration
	readyFor  time.Duration
	round     int
	window    time.Duration
	gauge     time.Duration
	target    int
	kills     int
}

func NewCowboyDuel(host session.Host, sensor Sensor, rng *rand.Rand) *CowboyDuel {
	g := &CowboyDuel{base: newBase(CowboyDuelID, host, sensor, rng)}
	g.newRound()
	return g
}

func cowboyDuelTutorial() session.Tutorial {
	return NewTutorial("Cowboy Duel",
		"Draw faster than your opponent! Aim at the cowboy and shoot before the gauge fills up.",
		"The more cowboys you take down, the less time you have to react. Stay focused!",
		"Webcam + MakeyMakey")
}

// DrawWindow is the time allowed to shoot in the given round, starting at 1.
func DrawWindow(round int) time.Duration {
	w := duelStartWindow - time.Duration(round-1)*duelWindowStep
	return max(w, duelMinWindow)
}

func (g *CowboyDuel) Round() int { return g.round }
func (g *CowboyDuel) Kills() int { return g.kills }

func (g *CowboyDuel) newRound() {
	g.round++
	g.window = DrawWindow(g.round)
	g.gauge = 0
	g.target = g.rng.IntN(laneCount)
	g.setPhase(phaseWaiting)
}

func (g *CowboyDuel) setPhase(p duelPhase) {
	g.phase = p
	g.phaseTime = 0
}

func (g *CowboyDuel) Update(dt time.Duration) {
	cue := NoLane
	if g.phase == phaseShooting {
		cue = g.target
	}
	sig, pressed, ok := g.frame(dt, cue)
	if !ok {
		return
	}
	g.phaseTime += dt

	switch g.phase {
	case phaseWaiting:
		if pressed {
			g.setPhase(phaseMiss)
		} else if g.phaseTime >= duelWaiting {
			g.readyFor = duelReadyMin + time.Duration(g.rng.Int64N(int64(duelReadySpread)))
			g.setPhase(phaseReady)
		}
	case phaseReady:
		if pressed {
			g.setPhase(phaseMiss)
		} else if g.phaseTime >= g.readyFor {
			g.setPhase(phaseShooting)
		}
	case phaseShooting:
		g.gauge += dt
		switch {
		case pressed && sig.Lane == g.target:
			g.kills++
			g.addScore(duelPoints)
			g.setPhase(phaseHit)
		case pressed, g.gauge >= g.window:
			g.setPhase(phaseMiss)
		}
	case phaseHit:
		if g.phaseTime >= duelHitPause {
			g.newRound()
		}
	case phaseMiss:
		if g.phaseTime >= duelMissPause {
			g.end(session.Completed)
		}
	}
}
