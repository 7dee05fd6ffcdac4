package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyboard/board"
	"partyboard/engine"
	"partyboard/games"
	"partyboard/session"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlaySession(t *testing.T) {
	lb := board.New(board.WithDispatchMode(engine.DispatchSync), board.WithLogger(quietLogger()))
	p := player{Pseudo: "alice", Seed: 7, Reaction: 1, Accuracy: 1}

	res, err := playSession(context.Background(), p, lb, playOptions{
		Sequence:        games.IDs(),
		Frame:           16 * time.Millisecond,
		MaxGameTime:     20 * time.Second,
		LeaderboardSize: 10,
		Logger:          quietLogger(),
	})
	require.NoError(t, err)

	require.NotEmpty(t, res.Results)
	assert.Equal(t, games.WallShapesID, res.Results[0].GameID)
	assert.Equal(t, session.Completed, res.Results[0].Reason)
	require.NotNil(t, res.Submission.Result)
	assert.True(t, res.Submission.Result.IsNew())

	top, err := lb.GetTop(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, res.Score, top[0].BestScore)
}

func TestPlaySessionCutsEndlessGames(t *testing.T) {
	lb := board.New(board.WithDispatchMode(engine.DispatchSync), board.WithLogger(quietLogger()))
	p := player{Pseudo: "bob", Seed: 3, Reaction: 1, Accuracy: 1}

	res, err := playSession(context.Background(), p, lb, playOptions{
		Sequence:        []string{games.CowboyDuelID},
		Frame:           16 * time.Millisecond,
		MaxGameTime:     5 * time.Second,
		LeaderboardSize: 10,
		Logger:          quietLogger(),
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, games.CowboyDuelID, res.Results[0].GameID)
}

func TestPlaySessionCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lb := board.New(board.WithDispatchMode(engine.DispatchSync), board.WithLogger(quietLogger()))

	_, err := playSession(ctx, player{Pseudo: "carol", Seed: 1}, lb, playOptions{
		Sequence: games.IDs(),
		Frame:    16 * time.Millisecond,
		Logger:   quietLogger(),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunInProcess(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &out, &demoOptions{
		profile:  "testing",
		players:  []string{"alice", "bob"},
		maxGame:  10 * time.Second,
		accuracy: 0.9,
		reaction: 2,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "RANK")
	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "bob")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "-", describe(session.Submission{}))
	assert.Equal(t, "failed: offline", describe(session.Submission{Error: "offline"}))
}
