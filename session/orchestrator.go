package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"partyboard/core"
)

// DefaultTransitionDelay is the pause between two games of a sequence.
const DefaultTransitionDelay = 3 * time.Second

// Leaderboard is the persistence the orchestrator offers at the end of a session.
type Leaderboard interface {
	SubmitScore(ctx context.Context, pseudo string, score int64) (core.SubmitResult, error)
	GetTop(ctx context.Context, limit int) ([]core.PlayerScore, error)
}

// Result records how one game of the sequence ended.
type Result struct {
	GameID     string    `json:"game_id"`
	Reason     EndReason `json:"reason"`
	FinalScore int64     `json:"final_score"`
}

// Submission is the state of the end-of-session score submission.
type Submission struct {
	Pending bool               `json:"pending"`
	Pseudo  string             `json:"pseudo,omitempty"`
	Result  *core.SubmitResult `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// LeaderboardView is what the leaderboard screen shows: entries, or an error
// message in their place.
type LeaderboardView struct {
	Loading bool               `json:"loading"`
	Entries []core.PlayerScore `json:"entries,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// State is a copy of the orchestrator state.
type State struct {
	ID          string          `json:"id"`
	Screen      Screen          `json:"screen"`
	Sequence    []string        `json:"sequence"`
	Index       int             `json:"index"`
	CurrentGame string          `json:"current_game,omitempty"`
	Score       int64           `json:"score"`
	Level       int             `json:"level"`
	Paused      bool            `json:"paused"`
	Instance    *InstanceState  `json:"instance,omitempty"`
	InitError   string          `json:"init_error,omitempty"`
	Results     []Result        `json:"results"`
	Submission  Submission      `json:"submission"`
	Leaderboard LeaderboardView `json:"leaderboard"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLeaderboard sets the client used for submissions and rankings.
func WithLeaderboard(lb Leaderboard) Option { return func(o *Orchestrator) { o.board = lb } }

// WithTransitionDelay sets the pause between games. Zero advances immediately.
func WithTransitionDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.transitionDelay = d
		}
	}
}

// WithLeaderboardLimit sets how many entries the leaderboard screen shows.
func WithLeaderboardLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.limit = n
		}
	}
}

// WithLogger sets the logger; the session id is attached to every record.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithScreenListener registers fn for every screen change. It runs with the
// orchestrator locked and must not call back into it.
func WithScreenListener(fn func(from, to Screen)) Option {
	return func(o *Orchestrator) { o.listener = fn }
}

type instance struct {
	gameID string
	game   MiniGame
	state  InstanceState
	cancel context.CancelFunc
	ended  bool
	clean  bool
}

// Orchestrator owns the screen state machine and the only live MiniGame.
//
// Frames (Tick) and aborts (BackToMenu) are serialized on frameMu so Cleanup
// never overlaps Update. Host callbacks arrive while Tick holds frameMu and only
// take mu.
type Orchestrator struct {
	id              uuid.UUID
	registry        *Registry
	board           Leaderboard
	logger          *slog.Logger
	listener        func(from, to Screen)
	transitionDelay time.Duration
	limit           int

	// slot is held from before Init until after Cleanup.
	slot *semaphore.Weighted

	frameMu sync.Mutex

	mu         sync.Mutex
	screen     Screen
	sequence   []string
	index      int
	score      int64
	level      int
	paused     bool
	active     *instance
	initErr    string
	results    []Result
	submission Submission
	view       LeaderboardView
	timer      *time.Timer
	transition uint64
	viewSeq    uint64
	// round changes with every StartSession; late submissions from an
	// earlier round are dropped.
	round      uint64
}

// New creates an orchestrator on the Loading screen.
func New(registry *Registry, opts ...Option) (*Orchestrator, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, errors.New("registry must contain at least one game")
	}
	o := &Orchestrator{
		id:              uuid.New(),
		registry:        registry,
		logger:          slog.Default(),
		transitionDelay: DefaultTransitionDelay,
		limit:           core.DefaultLimit,
		slot:            semaphore.NewWeighted(1),
		screen:          ScreenLoading,
		level:           1,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("session", o.id.String())
	return o, nil
}

// ID returns the session id used in logs.
func (o *Orchestrator) ID() string { return o.id.String() }

// Ready leaves the Loading screen.
func (o *Orchestrator) Ready() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.screen != ScreenLoading {
		return transitionError("ready", o.screen)
	}
	o.setScreen(ScreenMenu)
	return nil
}

// StartSession resets the session and shows the tutorial of the first game.
func (o *Orchestrator) StartSession(sequence []string) error {
	if err := o.registry.Validate(sequence); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.screen {
	case ScreenMenu, ScreenGameOver, ScreenLeaderboard:
	default:
		return transitionError("start session", o.screen)
	}
	o.sequence = append([]string(nil), sequence...)
	o.index = 0
	o.score = 0
	o.level = 1
	o.paused = false
	o.initErr = ""
	o.results = nil
	o.submission = Submission{}
	o.round++
	o.setScreen(ScreenTutorial)
	o.logger.Info("session started", "sequence", o.sequence)
	return nil
}

// Restart replays the last sequence from GameOver.
func (o *Orchestrator) Restart() error {
	o.mu.Lock()
	if o.screen != ScreenGameOver {
		defer o.mu.Unlock()
		return transitionError("restart", o.screen)
	}
	seq := append([]string(nil), o.sequence...)
	o.mu.Unlock()
	return o.StartSession(seq)
}

// CurrentTutorial returns the tutorial of the game about to be played.
func (o *Orchestrator) CurrentTutorial() (Tutorial, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.screen != ScreenTutorial {
		return Tutorial{}, transitionError("tutorial", o.screen)
	}
	return o.registry.Tutorial(o.sequence[o.index])
}

// StartCurrentGame instantiates the current game, waits for Init and starts it.
//
// If the player leaves (BackToMenu) while Init is running, the Init context is
// cancelled, the game is cleaned up as soon as Init returns, and ErrAborted is
// returned. An Init failure cleans up, returns to Tutorial with the error shown
// and returns *InitError.
func (o *Orchestrator) StartCurrentGame(ctx context.Context) error {
	o.mu.Lock()
	if o.screen != ScreenTutorial {
		defer o.mu.Unlock()
		return transitionError("start game", o.screen)
	}
	gameID := o.sequence[o.index]
	def, err := o.registry.Lookup(gameID)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	initCtx, cancel := context.WithCancel(ctx)
	inst := &instance{gameID: gameID, state: StateCreated, cancel: cancel}
	o.active = inst
	o.initErr = ""
	o.paused = false
	o.setScreen(ScreenPlaying)
	o.mu.Unlock()
	defer cancel()

	// wait for the previous game to release its resources
	if err := o.slot.Acquire(initCtx, 1); err != nil {
		o.mu.Lock()
		if o.active == inst {
			o.active = nil
			o.setScreen(ScreenTutorial)
		}
		o.mu.Unlock()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrAborted
	}

	game := def.New(&gameHost{o: o, inst: inst})
	o.mu.Lock()
	inst.game = game
	inst.state = StateInitializing
	aborted := o.active != inst
	o.mu.Unlock()
	if aborted {
		o.cleanup(inst)
		return ErrAborted
	}

	o.logger.Info("game init", "game", gameID)
	initErr := game.Init(initCtx)

	o.mu.Lock()
	aborted = o.active != inst
	switch {
	case initErr != nil && !aborted:
		o.active = nil
		o.initErr = initErr.Error()
		o.setScreen(ScreenTutorial)
	case initErr == nil:
		inst.state = StateReady
	}
	o.mu.Unlock()
	if initErr != nil || aborted {
		o.cleanup(inst)
		if aborted {
			o.logger.Info("game abandoned during init", "game", gameID)
			return ErrAborted
		}
		o.logger.Warn("game init failed", "game", gameID, "error", initErr)
		return &InitError{GameID: gameID, Err: initErr}
	}

	o.frameMu.Lock()
	defer o.frameMu.Unlock()
	o.mu.Lock()
	if o.active != inst {
		o.mu.Unlock()
		o.cleanup(inst)
		return ErrAborted
	}
	// Running before Start so callbacks made from Start are accepted
	inst.state = StateRunning
	o.mu.Unlock()

	game.Start()
	o.logger.Info("game started", "game", gameID)
	return nil
}

// Tick advances the running game by one frame. It reports whether a frame ran.
func (o *Orchestrator) Tick(dt time.Duration) bool {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()

	o.mu.Lock()
	inst := o.active
	if inst == nil || inst.state != StateRunning || o.paused {
		o.mu.Unlock()
		return false
	}
	o.mu.Unlock()

	inst.game.Update(dt)
	return true
}

// AddScore adds points to the session score while a game is running.
func (o *Orchestrator) AddScore(points int64) error {
	if points < 0 {
		return &core.ValidationError{Field: "points", Reason: "points must be non-negative"}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil || o.active.state != StateRunning {
		return transitionError("add score", o.screen)
	}
	o.score += points
	return nil
}

// EndCurrentGame ends the running game as if it had called End itself.
func (o *Orchestrator) EndCurrentGame(reason EndReason, finalScore int64) error {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()
	o.mu.Lock()
	inst := o.active
	o.mu.Unlock()
	if inst == nil || !o.endGame(inst, reason, finalScore) {
		return transitionError("end game", o.Screen())
	}
	return nil
}

// BackToMenu aborts whatever is happening and shows the menu. A running game
// is cleaned up before it returns; a game still in Init is cleaned up by
// StartCurrentGame once Init returns.
func (o *Orchestrator) BackToMenu() {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()

	o.mu.Lock()
	inst := o.active
	o.active = nil
	o.paused = false
	o.stopTransition()
	o.viewSeq++
	o.view = LeaderboardView{}
	if o.screen != ScreenMenu {
		o.setScreen(ScreenMenu)
	}
	var cleanupNow bool
	if inst != nil {
		inst.cancel()
		cleanupNow = inst.state >= StateReady
	}
	o.mu.Unlock()

	if cleanupNow {
		o.cleanup(inst)
	}
}

// Pause stops Tick from advancing the running game.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.screen != ScreenPlaying {
		return transitionError("pause", o.screen)
	}
	o.paused = true
	return nil
}

// Resume lets Tick drive the running game again.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.screen != ScreenPlaying {
		return transitionError("resume", o.screen)
	}
	o.paused = false
	return nil
}

// SubmitScore persists the session score under pseudo. Leaderboard failures do
// not change the screen; they are reported in Submission.Error and the call can
// be retried.
func (o *Orchestrator) SubmitScore(ctx context.Context, pseudo string) (Submission, error) {
	o.mu.Lock()
	if o.screen != ScreenGameOver {
		defer o.mu.Unlock()
		return Submission{}, transitionError("submit score", o.screen)
	}
	if o.board == nil {
		defer o.mu.Unlock()
		return Submission{}, ErrNoLeaderboard
	}
	if o.submission.Pending {
		defer o.mu.Unlock()
		return o.submission, errors.New("submission already pending")
	}
	score, round := o.score, o.round
	o.submission = Submission{Pending: true, Pseudo: pseudo}
	o.mu.Unlock()

	res, err := o.board.SubmitScore(ctx, pseudo, score)

	o.mu.Lock()
	defer o.mu.Unlock()
	sub := Submission{Pseudo: pseudo}
	if err != nil {
		o.logger.Warn("score submission failed", "pseudo", pseudo, "score", score, "error", err)
		sub.Error = submitErrorMessage(err)
	} else {
		sub.Result = &res
		o.logger.Info("score submitted", "pseudo", pseudo, "score", score)
	}
	if o.round == round {
		o.submission = sub
	}
	return sub, nil
}

// ShowLeaderboard switches to the leaderboard screen and loads the top entries.
// A fetch failure shows a connection message instead of the list.
func (o *Orchestrator) ShowLeaderboard(ctx context.Context) (LeaderboardView, error) {
	o.mu.Lock()
	switch o.screen {
	case ScreenMenu, ScreenGameOver:
	default:
		defer o.mu.Unlock()
		return LeaderboardView{}, transitionError("show leaderboard", o.screen)
	}
	o.viewSeq++
	seq := o.viewSeq
	o.view = LeaderboardView{Loading: true}
	o.setScreen(ScreenLeaderboard)
	board, limit := o.board, o.limit
	o.mu.Unlock()

	var view LeaderboardView
	if board == nil {
		view.Error = ErrNoLeaderboard.Error()
	} else if entries, err := board.GetTop(ctx, limit); err != nil {
		o.logger.Warn("leaderboard fetch failed", "error", err)
		view.Error = "could not reach the leaderboard, check your connection"
	} else {
		view.Entries = entries
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.viewSeq == seq {
		o.view = view
	}
	return view, nil
}

// Screen returns the current screen.
func (o *Orchestrator) Screen() Screen {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.screen
}

// Snapshot returns a copy of the session state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := State{
		ID:          o.id.String(),
		Screen:      o.screen,
		Sequence:    append([]string(nil), o.sequence...),
		Index:       o.index,
		Score:       o.score,
		Level:       o.level,
		Paused:      o.paused,
		InitError:   o.initErr,
		Results:     append([]Result(nil), o.results...),
		Submission:  o.submission,
		Leaderboard: o.view,
	}
	if o.index < len(o.sequence) {
		st.CurrentGame = o.sequence[o.index]
	}
	if o.active != nil {
		s := o.active.state
		st.Instance = &s
	}
	return st
}

// Close aborts the session.
func (o *Orchestrator) Close() { o.BackToMenu() }

// endGame handles End from inst. It returns false for stale or repeated calls.
func (o *Orchestrator) endGame(inst *instance, reason EndReason, finalScore int64) bool {
	o.mu.Lock()
	if o.active != inst || inst.state != StateRunning || inst.ended {
		o.mu.Unlock()
		o.logger.Debug("ignored end from inactive game", "game", inst.gameID)
		return false
	}
	inst.ended = true
	inst.state = StateEnded
	o.active = nil
	o.paused = false
	o.results = append(o.results, Result{GameID: inst.gameID, Reason: reason, FinalScore: finalScore})

	advance := reason == Completed && o.index < len(o.sequence)-1
	var token uint64
	if advance {
		o.setScreen(ScreenTransition)
		o.transition++
		token = o.transition
		if o.transitionDelay > 0 {
			o.timer = time.AfterFunc(o.transitionDelay, func() { o.advance(token) })
		}
	} else {
		o.setScreen(ScreenGameOver)
	}
	o.mu.Unlock()

	o.logger.Info("game ended", "game", inst.gameID, "reason", reason.String(), "final_score", finalScore)
	o.cleanup(inst)
	if advance && o.transitionDelay == 0 {
		o.advance(token)
	}
	return true
}

func (o *Orchestrator) advance(token uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.screen != ScreenTransition || o.transition != token {
		return
	}
	o.timer = nil
	o.index++
	o.setScreen(ScreenTutorial)
}

// stopTransition must be called with mu held.
func (o *Orchestrator) stopTransition() {
	o.transition++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// cleanup runs Cleanup once per instance and frees the resource slot.
func (o *Orchestrator) cleanup(inst *instance) {
	o.mu.Lock()
	if inst.clean {
		o.mu.Unlock()
		return
	}
	inst.clean = true
	o.mu.Unlock()

	if inst.game != nil {
		if err := inst.game.Cleanup(); err != nil {
			o.logger.Warn("game cleanup failed", "game", inst.gameID, "error", err)
		}
	}

	o.mu.Lock()
	inst.state = StateCleanedUp
	o.mu.Unlock()
	o.slot.Release(1)
}

func (o *Orchestrator) addScoreFrom(inst *instance, points int64) {
	if points < 0 {
		o.logger.Warn("negative points ignored", "game", inst.gameID, "points", points)
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == inst && inst.state == StateRunning {
		o.score += points
	}
}

func (o *Orchestrator) levelUpFrom(inst *instance) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == inst && inst.state == StateRunning {
		o.level++
	}
}

// setScreen must be called with mu held.
func (o *Orchestrator) setScreen(s Screen) {
	from := o.screen
	o.screen = s
	if o.listener != nil && from != s {
		o.listener(from, s)
	}
}

func submitErrorMessage(err error) string {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return fmt.Sprintf("could not save your score: %v", err)
}

// gameHost binds host callbacks to a single instance so late calls from a
// replaced game are dropped.
type gameHost struct {
	o    *Orchestrator
	inst *instance
}

func (h *gameHost) AddScore(points int64) { h.o.addScoreFrom(h.inst, points) }

func (h *gameHost) End(reason EndReason, finalScore int64) {
	h.o.endGame(h.inst, reason, finalScore)
}

func (h *gameHost) LevelUp() { h.o.levelUpFrom(h.inst) }
