package games

import (
	"math/rand/v2"
	"time"

	"partyboard/session"
)

// WallShapesID identifies the pose-matching wall game.
const WallShapesID = "wall-shapes"

const (
	firstWallAfter = time.Second
	wallInterval   = 3 * time.Second

	// wallArrive is the age at which a wall reaches the player.
	wallArrive  = 4 * time.Second
	wallWindow  = time.Second
	wallHold    = 500 * time.Millisecond
	wallPoints  = 100
	wallsToPass = 5
	wallLives   = 3
)

type wall struct {
	pose   int
	age    time.Duration
	hold   time.Duration
	passed bool
}

// WallShapes sends walls with a pose-shaped hole. Holding the pose while a wall
// goes by scores; a wall that hits the player costs a life.
type WallShapes struct {
	base
	walls   []*wall
	spawnIn time.Duration
	lives   int
	passed  int
}

func NewWallShapes(host session.Host, sensor Sensor, rng *rand.Rand) *WallShapes {
	return &WallShapes{
		base:    newBase(WallShapesID, host, sensor, rng),
		spawnIn: firstWallAfter,
		lives:   wallLives,
	}
}

func wallShapesTutorial() session.Tutorial {
	return NewTutorial("Shapes in the wall",
		"Copy the pose drawn on the wall before it reaches you to pass through it.",
		"Make sure the room is well lit and step back far enough for your whole body to be visible.",
		"Webcam")
}

// Lives returns the remaining lives.
func (g *WallShapes) Lives() int { return g.lives }

func (g *WallShapes) Update(dt time.Duration) {
	sig, _, ok := g.frame(dt, g.cue())
	if !ok {
		return
	}

	g.spawnIn -= dt
	if g.spawnIn <= 0 {
		g.walls = append(g.walls, &wall{pose: g.rng.IntN(laneCount)})
		g.spawnIn += wallInterval
	}

	remaining := g.walls[:0]
	for _, w := range g.walls {
		w.age += dt
		if !w.passed && w.age >= wallArrive && w.age < wallArrive+wallWindow {
			if sig.Active && sig.Lane == w.pose {
				w.hold += dt
				if w.hold >= wallHold {
					w.passed = true
					g.addScore(wallPoints)
				}
			} else {
				w.hold = 0
			}
		}
		if w.age < wallArrive+wallWindow {
			remaining = append(remaining, w)
			continue
		}
		if !w.passed {
			g.lives--
			if g.lives <= 0 {
				g.end(session.Failed)
				return
			}
			continue
		}
		g.passed++
		if g.passed >= wallsToPass {
			g.end(session.Completed)
			return
		}
	}
	g.walls = remaining
}

// cue is the pose of the wall currently at the player. Walls only ever age,
// so it is computed from the state before this frame.
func (g *WallShapes) cue() int {
	for _, w := range g.walls {
		if !w.passed && w.age >= wallArrive-wallHold && w.age < wallArrive+wallWindow {
			return w.pose
		}
	}
	return NoLane
}
