package games

import (
	"math"
	"math/rand/v2"
	"time"

	"partyboard/session"
)

// ColorLinesID identifies the rhythm lane game.
const ColorLinesID = "color-lines"

// Geometry is in screen pixels, speeds in pixels per second.
const (
	fieldWidth    = 1290.0
	zoneStart     = -50.0
	zoneEnd       = 450.0
	minLineWidth  = 150.0
	maxLineWidth  = 400.0
	baseLineSpeed = 300.0
	maxLineSpeed  = 840.0
	lineAccel     = 7.5
	fillFactor    = 1.15
	linesLives    = 3

	// four beats at 160 bpm
	lineEvery  = 1500 * time.Millisecond
	levelEvery = 6 * time.Second
)

type line struct {
	lane    int
	x       float64
	width   float64
	fill    float64
	colored bool
	wrong   bool
}

func (l *line) inZone() bool { return l.x+l.width > zoneStart && l.x < zoneEnd }

// ColorLines sends grey lines down four lanes. Holding a line's lane while it
// crosses the zone colors it for combo points; holding the wrong lane or
// letting a line through costs a life. The game ends when lives run out.
type ColorLines struct {
	base
	lines    []*line
	spawnIn  time.Duration
	speed    float64
	lives    int
	combo    int
	maxCombo int
	level    int
}

func NewColorLines(host session.Host, sensor Sensor, rng *rand.Rand) *ColorLines {
	return &ColorLines{
		base:    newBase(ColorLinesID, host, sensor, rng),
		spawnIn: lineEvery,
		speed:   baseLineSpeed,
		lives:   linesLives,
		level:   1,
	}
}

func colorLinesTutorial() session.Tutorial {
	return NewTutorial("Color Lines",
		"Select a lane and HOLD it to color the grey bars coming from the right!",
		"Up is the orange star, right the green circle, down the blue rectangle, left the red triangle. Only one lane at a time!",
		"MakeyMakey")
}

// LinePoints is the score of a colored line of the given width at combo.
func LinePoints(width float64, combo int) int64 {
	return int64(math.Round(10 * (width / 100) * float64(combo)))
}

func (g *ColorLines) Lives() int    { return g.lives }
func (g *ColorLines) MaxCombo() int { return g.maxCombo }

func (g *ColorLines) Update(dt time.Duration) {
	sig, _, ok := g.frame(dt, g.cue())
	if !ok {
		return
	}
	secs := dt.Seconds()

	g.speed = min(maxLineSpeed, baseLineSpeed+lineAccel*g.elapsed.Seconds())
	if lvl := int(g.elapsed/levelEvery) + 1; lvl > g.level {
		g.level = lvl
		g.host.LevelUp()
	}

	g.spawnIn -= dt
	if g.spawnIn <= 0 {
		g.lines = append(g.lines, &line{
			lane:  g.rng.IntN(laneCount),
			x:     fieldWidth,
			width: minLineWidth + g.rng.Float64()*(maxLineWidth-minLineWidth),
		})
		g.spawnIn += lineEvery
	}

	remaining := g.lines[:0]
	for _, l := range g.lines {
		l.x -= g.speed * secs
		if sig.Active && l.inZone() && !l.colored {
			if l.lane == sig.Lane {
				l.fill += g.speed * fillFactor * secs
				if l.fill >= l.width {
					l.fill = l.width
					l.colored = true
					g.combo++
					g.maxCombo = max(g.maxCombo, g.combo)
					g.addScore(LinePoints(l.width, g.combo))
				}
			} else if !l.wrong {
				l.wrong = true
				g.loseLife()
			}
		}
		if l.x+l.width >= 0 {
			remaining = append(remaining, l)
			continue
		}
		if !l.colored && !l.wrong {
			g.loseLife()
		}
	}
	g.lines = remaining

	if g.lives <= 0 {
		g.end(session.Completed)
	}
}

func (g *ColorLines) loseLife() {
	g.lives--
	g.combo = 0
}

// cue is the lane of the leading line that can still be colored.
func (g *ColorLines) cue() int {
	for _, l := range g.lines {
		if l.inZone() && !l.colored && !l.wrong {
			return l.lane
		}
	}
	return NoLane
}
