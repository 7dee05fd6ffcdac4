package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"partyboard/games"
	"partyboard/session"
)

const maxInitAttempts = 3

// player is one simulated participant with their own session.
type player struct {
	Pseudo   string
	Seed     uint64
	Reaction int
	Fatigue  int
	Accuracy float64
}

// sensors gives every game instance a fresh bot so fatigue restarts per game.
func (p player) sensors() games.SensorFactory {
	var n uint64
	return func(string) games.Sensor {
		n++
		bot := games.NewBot(p.Seed*1000+n, p.Reaction, p.Fatigue, p.Accuracy)
		return games.NewScriptedSensor(bot.Script())
	}
}

type playOptions struct {
	Sequence        []string
	Frame           time.Duration
	MaxGameTime     time.Duration
	TransitionDelay time.Duration
	LeaderboardSize int
	Realtime        bool
	Logger          *slog.Logger
}

// outcome is what a finished session reports.
type outcome struct {
	Pseudo     string
	Score      int64
	Results    []session.Result
	Submission session.Submission
}

// playSession runs one player through the sequence and submits the score.
func playSession(ctx context.Context, p player, lb session.Leaderboard, opts playOptions) (outcome, error) {
	registry, err := games.NewRegistry(games.Options{Sensors: p.sensors(), Seed: p.Seed})
	if err != nil {
		return outcome{}, err
	}
	logger := opts.Logger.With("pseudo", p.Pseudo)
	orch, err := session.New(registry,
		session.WithLeaderboard(lb),
		session.WithTransitionDelay(opts.TransitionDelay),
		session.WithLeaderboardLimit(opts.LeaderboardSize),
		session.WithLogger(logger),
		session.WithScreenListener(func(from, to session.Screen) {
			logger.Debug("screen", "from", from.String(), "to", to.String())
		}),
	)
	if err != nil {
		return outcome{}, err
	}
	defer orch.Close()

	if err := orch.Ready(); err != nil {
		return outcome{}, err
	}
	if err := orch.StartSession(opts.Sequence); err != nil {
		return outcome{}, err
	}
	if err := drive(ctx, orch, opts); err != nil {
		return outcome{}, err
	}

	sub, err := orch.SubmitScore(ctx, p.Pseudo)
	if err != nil {
		return outcome{}, err
	}
	st := orch.Snapshot()
	return outcome{Pseudo: p.Pseudo, Score: st.Score, Results: st.Results, Submission: sub}, nil
}

// drive feeds frames until the session reaches GameOver.
func drive(ctx context.Context, orch *session.Orchestrator, opts playOptions) error {
	var (
		played   time.Duration
		base     int64
		attempts int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch s := orch.Screen(); s {
		case session.ScreenTutorial:
			played = 0
			if err := orch.StartCurrentGame(ctx); err != nil {
				attempts++
				if attempts >= maxInitAttempts || errors.Is(err, context.Canceled) {
					return fmt.Errorf("start %s: %w", orch.Snapshot().CurrentGame, err)
				}
				continue
			}
			attempts = 0
			base = orch.Snapshot().Score
		case session.ScreenPlaying:
			orch.Tick(opts.Frame)
			played += opts.Frame
			if opts.MaxGameTime > 0 && played >= opts.MaxGameTime {
				// games that never end on their own are cut
				_ = orch.EndCurrentGame(session.Completed, orch.Snapshot().Score-base)
			}
		case session.ScreenTransition:
			if !opts.Realtime {
				if err := sleep(ctx, time.Millisecond); err != nil {
					return err
				}
				continue
			}
		case session.ScreenGameOver:
			return nil
		default:
			return fmt.Errorf("unexpected screen %s", s)
		}
		if opts.Realtime {
			if err := sleep(ctx, opts.Frame); err != nil {
				return err
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
