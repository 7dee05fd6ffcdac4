package session

// Screen is the UI mode of a session.
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenMenu
	ScreenTutorial
	ScreenPlaying
	ScreenTransition
	ScreenGameOver
	ScreenLeaderboard
)

var screenNames = [...]string{"loading", "menu", "tutorial", "playing", "transition", "gameover", "leaderboard"}

func (s Screen) String() string {
	if int(s) < len(screenNames) {
		return screenNames[s]
	}
	return "unknown"
}

func (s Screen) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
