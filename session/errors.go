package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed on the current screen.
	ErrInvalidTransition = errors.New("invalid screen transition")
	// ErrUnknownGame is returned for ids missing from the registry.
	ErrUnknownGame = errors.New("unknown game")
	// ErrAborted is returned by StartCurrentGame when the player left before the game started.
	ErrAborted = errors.New("game start aborted")
	// ErrNoLeaderboard is returned when no leaderboard client is configured.
	ErrNoLeaderboard = errors.New("no leaderboard configured")
)

// InitError reports a game that could not acquire its resources.
type InitError struct {
	GameID string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.GameID, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func transitionError(op string, from Screen) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, from)
}
