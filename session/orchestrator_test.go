package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyboard/board"
	"partyboard/core"
	"partyboard/engine"
)

// tracker counts instances across a test to check that at most one is live.
type tracker struct {
	mu       sync.Mutex
	created  int
	inits    int
	cleanups int
	live     int
	maxLive  int
	hosts    []Host
}

func (p *tracker) snapshot() (created, cleanups, live, maxLive int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created, p.cleanups, p.live, p.maxLive
}

type fakeGame struct {
	p        *tracker
	host     Host
	behavior *fakeBehavior

	mu          sync.Mutex
	initialized bool
	started     bool
	updates     int
}

// fakeBehavior scripts a fake game variant.
type fakeBehavior struct {
	initErr    error
	initGate   chan struct{}
	ignoreCtx  bool
	initCalled chan struct{}
	onUpdate   func(h Host, frame int)
}

func (g *fakeGame) Init(ctx context.Context) error {
	g.p.mu.Lock()
	g.p.inits++
	g.p.mu.Unlock()
	if g.behavior.initCalled != nil {
		close(g.behavior.initCalled)
	}
	if g.behavior.initGate != nil {
		if g.behavior.ignoreCtx {
			<-g.behavior.initGate
		} else {
			select {
			case <-g.behavior.initGate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if g.behavior.initErr != nil {
		return g.behavior.initErr
	}
	g.mu.Lock()
	g.initialized = true
	g.mu.Unlock()
	g.p.mu.Lock()
	g.p.live++
	if g.p.live > g.p.maxLive {
		g.p.maxLive = g.p.live
	}
	g.p.mu.Unlock()
	return nil
}

func (g *fakeGame) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.started = true
}

func (g *fakeGame) Update(time.Duration) {
	g.mu.Lock()
	g.updates++
	frame := g.updates
	g.mu.Unlock()
	if g.behavior.onUpdate != nil {
		g.behavior.onUpdate(g.host, frame)
	}
}

func (g *fakeGame) Cleanup() error {
	g.mu.Lock()
	wasLive := g.initialized
	g.initialized = false
	g.mu.Unlock()
	g.p.mu.Lock()
	defer g.p.mu.Unlock()
	g.p.cleanups++
	if wasLive {
		g.p.live--
	}
	return nil
}

func endOnFirstFrame(reason EndReason, points int64) func(Host, int) {
	return func(h Host, _ int) {
		h.AddScore(points)
		h.End(reason, points)
	}
}

func newRegistry(p *tracker, behaviors map[string]*fakeBehavior) *Registry {
	r := NewRegistry()
	for id, behavior := range behaviors {
		behavior := behavior
		r.MustRegister(Definition{
			ID:       id,
			Tutorial: Tutorial{Title: "How to play " + id, HTMLBody: "<p>" + id + "</p>"},
			New: func(h Host) MiniGame {
				p.mu.Lock()
				p.created++
				p.hosts = append(p.hosts, h)
				p.mu.Unlock()
				return &fakeGame{p: p, host: h, behavior: behavior}
			},
		})
	}
	return r
}

func newOrchestrator(t *testing.T, r *Registry, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(r, append([]Option{WithTransitionDelay(0)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, o.Ready())
	t.Cleanup(o.Close)
	return o
}

func TestSequenceCompletedAdvancesThenGameOver(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{
		"A": {onUpdate: endOnFirstFrame(Completed, 100)},
		"B": {onUpdate: endOnFirstFrame(Completed, 40)},
	})
	var screens []Screen
	o := newOrchestrator(t, r, WithScreenListener(func(_, to Screen) { screens = append(screens, to) }))
	ctx := context.Background()

	require.NoError(t, o.StartSession([]string{"A", "B"}))
	tut, err := o.CurrentTutorial()
	require.NoError(t, err)
	assert.Equal(t, "How to play A", tut.Title)

	require.NoError(t, o.StartCurrentGame(ctx))
	assert.Equal(t, ScreenPlaying, o.Screen())
	assert.True(t, o.Tick(16*time.Millisecond))

	st := o.Snapshot()
	assert.Equal(t, ScreenTutorial, st.Screen, "completing A leads to B's tutorial")
	assert.Equal(t, 1, st.Index)
	assert.Equal(t, "B", st.CurrentGame)
	assert.Nil(t, st.Instance)

	require.NoError(t, o.StartCurrentGame(ctx))
	o.Tick(16 * time.Millisecond)

	st = o.Snapshot()
	assert.Equal(t, ScreenGameOver, st.Screen)
	assert.Equal(t, int64(140), st.Score)
	assert.Equal(t, []Result{
		{GameID: "A", Reason: Completed, FinalScore: 100},
		{GameID: "B", Reason: Completed, FinalScore: 40},
	}, st.Results)
	assert.Equal(t, []Screen{
		ScreenMenu, ScreenTutorial, ScreenPlaying, ScreenTransition, ScreenTutorial, ScreenPlaying, ScreenGameOver,
	}, screens)

	created, cleanups, live, maxLive := p.snapshot()
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, cleanups)
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, maxLive)
}

func TestFailedGameEndsSession(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{
		"A": {onUpdate: endOnFirstFrame(Failed, 10)},
		"B": {},
	})
	o := newOrchestrator(t, r)

	require.NoError(t, o.StartSession([]string{"A", "B"}))
	require.NoError(t, o.StartCurrentGame(context.Background()))
	o.Tick(time.Millisecond)

	st := o.Snapshot()
	assert.Equal(t, ScreenGameOver, st.Screen)
	assert.Equal(t, 0, st.Index)
	created, cleanups, _, _ := p.snapshot()
	assert.Equal(t, 1, created, "B is never instantiated")
	assert.Equal(t, 1, cleanups)
}

func TestSingleLiveInstanceAcrossSessions(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{
		"A": {onUpdate: endOnFirstFrame(Completed, 1)},
		"B": {onUpdate: endOnFirstFrame(Completed, 1)},
		"C": {onUpdate: func(h Host, frame int) {
			if frame == 3 {
				h.End(Completed, 3)
			}
		}},
	})
	o := newOrchestrator(t, r)
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		require.NoError(t, o.StartSession([]string{"A", "C", "B"}))
		for o.Screen() != ScreenGameOver {
			require.Equal(t, ScreenTutorial, o.Screen())
			require.NoError(t, o.StartCurrentGame(ctx))
			for o.Tick(time.Millisecond) {
			}
		}
		if round%2 == 1 {
			require.NoError(t, o.StartSession([]string{"C"}))
			require.NoError(t, o.StartCurrentGame(ctx))
			o.Tick(time.Millisecond)
			o.BackToMenu()
		}
	}

	created, cleanups, live, maxLive := p.snapshot()
	assert.Equal(t, created, cleanups)
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, maxLive)
}

func TestAbortDuringInitCleansUpWhenInitResolves(t *testing.T) {
	p := &tracker{}
	behavior := &fakeBehavior{initGate: make(chan struct{}), ignoreCtx: true, initCalled: make(chan struct{})}
	r := newRegistry(p, map[string]*fakeBehavior{"slow": behavior})
	o := newOrchestrator(t, r)

	require.NoError(t, o.StartSession([]string{"slow"}))
	done := make(chan error, 1)
	go func() { done <- o.StartCurrentGame(context.Background()) }()
	<-behavior.initCalled

	st := o.Snapshot()
	require.NotNil(t, st.Instance)
	assert.Equal(t, StateInitializing, *st.Instance)

	o.BackToMenu()
	assert.Equal(t, ScreenMenu, o.Screen())
	_, cleanups, _, _ := p.snapshot()
	assert.Equal(t, 0, cleanups, "cleanup waits for init to resolve")

	close(behavior.initGate)
	assert.ErrorIs(t, <-done, ErrAborted)

	created, cleanups, live, _ := p.snapshot()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, cleanups)
	assert.Equal(t, 0, live)
	assert.Equal(t, ScreenMenu, o.Screen())
}

func TestAbortCancelsInitContext(t *testing.T) {
	p := &tracker{}
	behavior := &fakeBehavior{initGate: make(chan struct{}), initCalled: make(chan struct{})}
	r := newRegistry(p, map[string]*fakeBehavior{"slow": behavior})
	o := newOrchestrator(t, r)

	require.NoError(t, o.StartSession([]string{"slow"}))
	done := make(chan error, 1)
	go func() { done <- o.StartCurrentGame(context.Background()) }()
	<-behavior.initCalled

	o.BackToMenu()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrAborted)
	case <-time.After(time.Second):
		t.Fatal("init was not cancelled")
	}
	_, cleanups, _, _ := p.snapshot()
	assert.Equal(t, 1, cleanups)
}

func TestNextInitWaitsForPreviousCleanup(t *testing.T) {
	p := &tracker{}
	slow := &fakeBehavior{initGate: make(chan struct{}), ignoreCtx: true, initCalled: make(chan struct{})}
	fast := &fakeBehavior{}
	r := newRegistry(p, map[string]*fakeBehavior{"slow": slow, "fast": fast})
	o := newOrchestrator(t, r)
	ctx := context.Background()

	require.NoError(t, o.StartSession([]string{"slow"}))
	first := make(chan error, 1)
	go func() { first <- o.StartCurrentGame(ctx) }()
	<-slow.initCalled
	o.BackToMenu()

	require.NoError(t, o.StartSession([]string{"fast"}))
	second := make(chan error, 1)
	go func() { second <- o.StartCurrentGame(ctx) }()

	select {
	case <-second:
		t.Fatal("second game started while the first still held its resources")
	case <-time.After(30 * time.Millisecond):
	}

	close(slow.initGate)
	assert.ErrorIs(t, <-first, ErrAborted)
	require.NoError(t, <-second)
	assert.Equal(t, ScreenPlaying, o.Screen())

	_, _, _, maxLive := p.snapshot()
	assert.Equal(t, 1, maxLive)
}

func TestInitErrorReturnsToTutorial(t *testing.T) {
	p := &tracker{}
	camErr := errors.New("camera permission denied")
	behavior := &fakeBehavior{initErr: camErr}
	r := newRegistry(p, map[string]*fakeBehavior{"cam": behavior})
	o := newOrchestrator(t, r)
	ctx := context.Background()

	require.NoError(t, o.StartSession([]string{"cam"}))
	err := o.StartCurrentGame(ctx)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "cam", initErr.GameID)
	assert.ErrorIs(t, err, camErr)

	st := o.Snapshot()
	assert.Equal(t, ScreenTutorial, st.Screen)
	assert.Contains(t, st.InitError, "camera permission denied")
	assert.Nil(t, st.Instance)
	_, cleanups, _, _ := p.snapshot()
	assert.Equal(t, 1, cleanups, "cleanup runs after a failed init")

	// retry succeeds once the resource is available, proving the slot was released
	behavior.initErr = nil
	require.NoError(t, o.StartCurrentGame(ctx))
	assert.Empty(t, o.Snapshot().InitError)

	o.BackToMenu()
	assert.Equal(t, ScreenMenu, o.Screen())
}

func TestEndIsHonouredOnce(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{
		"A": {onUpdate: func(h Host, _ int) {
			h.End(Completed, 5)
			h.End(Failed, 99)
		}},
		"B": {},
	})
	o := newOrchestrator(t, r)

	require.NoError(t, o.StartSession([]string{"A", "B"}))
	require.NoError(t, o.StartCurrentGame(context.Background()))
	o.Tick(time.Millisecond)

	st := o.Snapshot()
	assert.Equal(t, ScreenTutorial, st.Screen)
	assert.Len(t, st.Results, 1)
	_, cleanups, _, _ := p.snapshot()
	assert.Equal(t, 1, cleanups)
}

func TestStaleHostCallbacksIgnored(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{
		"A": {onUpdate: endOnFirstFrame(Completed, 10)},
		"B": {},
	})
	o := newOrchestrator(t, r)
	ctx := context.Background()

	require.NoError(t, o.StartSession([]string{"A", "B"}))
	require.NoError(t, o.StartCurrentGame(ctx))
	o.Tick(time.Millisecond)
	require.NoError(t, o.StartCurrentGame(ctx))

	p.mu.Lock()
	stale := p.hosts[0]
	p.mu.Unlock()
	stale.AddScore(1000)
	stale.LevelUp()
	stale.End(Failed, 0)

	st := o.Snapshot()
	assert.Equal(t, int64(10), st.Score)
	assert.Equal(t, 1, st.Level)
	assert.Equal(t, ScreenPlaying, st.Screen)
}

func TestScoreAndLevel(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{
		"A": {onUpdate: func(h Host, frame int) {
			h.AddScore(10)
			h.AddScore(-5)
			if frame == 2 {
				h.LevelUp()
			}
		}},
	})
	o := newOrchestrator(t, r)

	require.NoError(t, o.StartSession([]string{"A"}))
	assert.Error(t, o.AddScore(1), "no running game")
	require.NoError(t, o.StartCurrentGame(context.Background()))
	o.Tick(time.Millisecond)
	o.Tick(time.Millisecond)
	require.NoError(t, o.AddScore(5))
	assert.True(t, core.IsValidation(o.AddScore(-1)))

	st := o.Snapshot()
	assert.Equal(t, int64(25), st.Score)
	assert.Equal(t, 2, st.Level)

	require.NoError(t, o.EndCurrentGame(Completed, 25))
	assert.Equal(t, ScreenGameOver, o.Screen())
	assert.ErrorIs(t, o.EndCurrentGame(Completed, 25), ErrInvalidTransition)
}

func TestTransitionDelay(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{
		"A": {onUpdate: endOnFirstFrame(Completed, 1)},
		"B": {},
	})
	o := newOrchestrator(t, r, WithTransitionDelay(20*time.Millisecond))

	require.NoError(t, o.StartSession([]string{"A", "B"}))
	require.NoError(t, o.StartCurrentGame(context.Background()))
	o.Tick(time.Millisecond)
	assert.Equal(t, ScreenTransition, o.Screen())
	assert.ErrorIs(t, o.StartCurrentGame(context.Background()), ErrInvalidTransition)

	require.Eventually(t, func() bool { return o.Screen() == ScreenTutorial }, time.Second, 2*time.Millisecond)
	assert.Equal(t, "B", o.Snapshot().CurrentGame)
}

func TestBackToMenuCancelsTransition(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{
		"A": {onUpdate: endOnFirstFrame(Completed, 1)},
		"B": {},
	})
	o := newOrchestrator(t, r, WithTransitionDelay(20*time.Millisecond))

	require.NoError(t, o.StartSession([]string{"A", "B"}))
	require.NoError(t, o.StartCurrentGame(context.Background()))
	o.Tick(time.Millisecond)
	o.BackToMenu()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ScreenMenu, o.Screen())
}

func TestBackToMenuCleansRunningGame(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{"A": {}})
	o := newOrchestrator(t, r)

	require.NoError(t, o.StartSession([]string{"A"}))
	require.NoError(t, o.StartCurrentGame(context.Background()))
	o.BackToMenu()

	assert.Equal(t, ScreenMenu, o.Screen())
	assert.False(t, o.Tick(time.Millisecond))
	_, cleanups, live, _ := p.snapshot()
	assert.Equal(t, 1, cleanups)
	assert.Equal(t, 0, live)

	o.BackToMenu()
	_, cleanups, _, _ = p.snapshot()
	assert.Equal(t, 1, cleanups, "no second cleanup")
}

func TestPauseResume(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{"A": {}})
	o := newOrchestrator(t, r)

	assert.ErrorIs(t, o.Pause(), ErrInvalidTransition)
	require.NoError(t, o.StartSession([]string{"A"}))
	require.NoError(t, o.StartCurrentGame(context.Background()))

	require.NoError(t, o.Pause())
	assert.False(t, o.Tick(time.Millisecond))
	assert.True(t, o.Snapshot().Paused)
	require.NoError(t, o.Resume())
	assert.True(t, o.Tick(time.Millisecond))
}

func TestInvalidTransitions(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{"A": {}})
	o, err := New(r)
	require.NoError(t, err)

	assert.Equal(t, ScreenLoading, o.Screen())
	assert.ErrorIs(t, o.StartSession([]string{"A"}), ErrInvalidTransition)
	require.NoError(t, o.Ready())
	assert.ErrorIs(t, o.Ready(), ErrInvalidTransition)
	assert.ErrorIs(t, o.StartCurrentGame(context.Background()), ErrInvalidTransition)
	assert.ErrorIs(t, o.StartSession([]string{"A", "Z"}), ErrUnknownGame)
	assert.Error(t, o.StartSession(nil))
	assert.ErrorIs(t, o.Restart(), ErrInvalidTransition)
	_, err = o.SubmitScore(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = o.CurrentTutorial()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = New(NewRegistry())
	assert.Error(t, err)
}

func TestRestartReplaysSequence(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{"A": {onUpdate: endOnFirstFrame(Failed, 7)}})
	o := newOrchestrator(t, r)

	require.NoError(t, o.StartSession([]string{"A"}))
	require.NoError(t, o.StartCurrentGame(context.Background()))
	o.Tick(time.Millisecond)
	require.Equal(t, ScreenGameOver, o.Screen())

	require.NoError(t, o.Restart())
	st := o.Snapshot()
	assert.Equal(t, ScreenTutorial, st.Screen)
	assert.Equal(t, []string{"A"}, st.Sequence)
	assert.Zero(t, st.Score)
	assert.Empty(t, st.Results)
}

type flakyBoard struct {
	mu    sync.Mutex
	fail  bool
	calls int
	inner Leaderboard
}

func (b *flakyBoard) SubmitScore(ctx context.Context, pseudo string, score int64) (core.SubmitResult, error) {
	b.mu.Lock()
	b.calls++
	fail := b.fail
	b.mu.Unlock()
	if fail {
		return core.SubmitResult{}, core.WrapStorage("upsert", errors.New("connection refused"))
	}
	return b.inner.SubmitScore(ctx, pseudo, score)
}

func (b *flakyBoard) GetTop(ctx context.Context, limit int) ([]core.PlayerScore, error) {
	b.mu.Lock()
	fail := b.fail
	b.mu.Unlock()
	if fail {
		return nil, core.WrapStorage("list", errors.New("connection refused"))
	}
	return b.inner.GetTop(ctx, limit)
}

func (b *flakyBoard) setFail(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = v
}

func playToGameOver(t *testing.T, o *Orchestrator, seq ...string) {
	t.Helper()
	require.NoError(t, o.StartSession(seq))
	for o.Screen() == ScreenTutorial {
		require.NoError(t, o.StartCurrentGame(context.Background()))
		for o.Tick(time.Millisecond) {
		}
	}
	require.Equal(t, ScreenGameOver, o.Screen())
}

func TestLeaderboardFailureIsNonFatal(t *testing.T) {
	svc := board.New(board.WithDispatchMode(engine.DispatchSync))
	defer svc.Close()
	lb := &flakyBoard{fail: true, inner: svc}

	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{"A": {onUpdate: endOnFirstFrame(Completed, 100)}})
	o := newOrchestrator(t, r, WithLeaderboard(lb), WithLeaderboardLimit(5))
	ctx := context.Background()

	playToGameOver(t, o, "A")

	sub, err := o.SubmitScore(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, sub.Error, "could not save your score")
	assert.False(t, sub.Pending)
	st := o.Snapshot()
	assert.Equal(t, ScreenGameOver, st.Screen)
	assert.Equal(t, int64(100), st.Score, "local score is unaffected")

	lb.setFail(false)
	sub, err = o.SubmitScore(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, sub.Result)
	assert.True(t, sub.Result.IsNew())
	assert.Empty(t, sub.Error)

	lb.setFail(true)
	view, err := o.ShowLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScreenLeaderboard, o.Screen())
	assert.Empty(t, view.Entries)
	assert.Contains(t, view.Error, "connection")

	o.BackToMenu()
	lb.setFail(false)
	view, err = o.ShowLeaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, core.Pseudo("alice"), view.Entries[0].Pseudo)
	assert.Equal(t, view, o.Snapshot().Leaderboard)
}

func TestRatchetThroughSessions(t *testing.T) {
	svc := board.New(board.WithDispatchMode(engine.DispatchSync))
	defer svc.Close()

	points := int64(100)
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{"A": {onUpdate: func(h Host, _ int) {
		h.AddScore(points)
		h.End(Completed, points)
	}}})
	o := newOrchestrator(t, r, WithLeaderboard(svc))
	ctx := context.Background()

	playToGameOver(t, o, "A")
	sub, err := o.SubmitScore(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, sub.Result.IsNew())

	points = 50
	require.NoError(t, o.Restart())
	playToGameOver(t, o, "A")
	sub, err = o.SubmitScore(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, sub.Result.Updated)
	assert.False(t, *sub.Result.Updated)

	points = 150
	playToGameOver(t, o, "A")
	sub, err = o.SubmitScore(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, sub.Result.IsImproved())
	assert.Equal(t, int64(100), *sub.Result.OldScore)

	top, err := svc.GetTop(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(150), top[0].BestScore)
}

// gatedBoard blocks SubmitScore until release is closed.
type gatedBoard struct {
	Leaderboard
	entered chan struct{}
	release chan struct{}
}

func (b *gatedBoard) SubmitScore(ctx context.Context, pseudo string, score int64) (core.SubmitResult, error) {
	close(b.entered)
	<-b.release
	return b.Leaderboard.SubmitScore(ctx, pseudo, score)
}

func TestLateSubmissionDoesNotLeakIntoNextSession(t *testing.T) {
	svc := board.New(board.WithDispatchMode(engine.DispatchSync))
	defer svc.Close()
	lb := &gatedBoard{Leaderboard: svc, entered: make(chan struct{}), release: make(chan struct{})}

	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{"A": {onUpdate: endOnFirstFrame(Completed, 100)}})
	o := newOrchestrator(t, r, WithLeaderboard(lb))
	playToGameOver(t, o, "A")

	done := make(chan Submission, 1)
	go func() {
		sub, err := o.SubmitScore(context.Background(), "alice")
		assert.NoError(t, err)
		done <- sub
	}()
	<-lb.entered
	assert.True(t, o.Snapshot().Submission.Pending)

	require.NoError(t, o.Restart())
	close(lb.release)
	sub := <-done

	require.NotNil(t, sub.Result, "the caller still gets its own result")
	assert.True(t, sub.Result.IsNew())
	st := o.Snapshot()
	assert.Equal(t, ScreenTutorial, st.Screen)
	assert.Equal(t, Submission{}, st.Submission)

	top, err := svc.GetTop(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(100), top[0].BestScore)
}

func TestSubmitWithoutLeaderboard(t *testing.T) {
	p := &tracker{}
	r := newRegistry(p, map[string]*fakeBehavior{"A": {onUpdate: endOnFirstFrame(Failed, 1)}})
	o := newOrchestrator(t, r)
	playToGameOver(t, o, "A")

	_, err := o.SubmitScore(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNoLeaderboard)
	view, err := o.ShowLeaderboard(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, view.Error)
}
