package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"partyboard/board"
	"partyboard/config"
	"partyboard/engine"
	"partyboard/games"
	sdk "partyboard/sdk/go"
	"partyboard/session"
)

type demoOptions struct {
	profile  string
	envFile  string
	players  []string
	remote   string
	apiKey   string
	realtime bool
	maxGame  time.Duration
	accuracy float64
	reaction int
	fatigue  int
}

func main() {
	opts := &demoOptions{}
	if err := newCmd(opts).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "party-demo: %v\n", err)
		os.Exit(1)
	}
}

func newCmd(opts *demoOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "party-demo",
		Short:         "Play headless party sessions with simulated players.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.profile, "profile", "p", "development", "config profile for session settings")
	fs.StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before configuration")
	fs.StringSliceVar(&opts.players, "players", []string{"alice", "bob", "carol"}, "pseudos of the simulated players")
	fs.StringVar(&opts.remote, "remote", "", "leaderboard API base URL; empty runs an in-process board")
	fs.StringVar(&opts.apiKey, "api-key", "", "API key for the remote leaderboard")
	fs.BoolVar(&opts.realtime, "realtime", false, "pace frames at wall-clock speed")
	fs.DurationVar(&opts.maxGame, "max-game", 2*time.Minute, "simulated time after which a game is cut")
	fs.Float64Var(&opts.accuracy, "accuracy", 0.85, "probability a bot picks the right lane")
	fs.IntVar(&opts.reaction, "reaction", 12, "bot reaction time in frames")
	fs.IntVar(&opts.fatigue, "fatigue", 1, "frames added to the reaction on every cue")

	return cmd
}

func run(ctx context.Context, out io.Writer, opts *demoOptions) error {
	if opts.envFile == "" {
		if err := config.LoadEnvFiles(); err != nil {
			return err
		}
	} else if err := config.LoadEnvFiles(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.LoadProfile(opts.profile)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelOf(cfg.Logging.Level)}))

	lb, err := leaderboardFor(opts, logger)
	if err != nil {
		return err
	}

	sequence := cfg.Session.Sequence
	if len(sequence) == 0 {
		sequence = games.IDs()
	}
	playOpts := playOptions{
		Sequence:        sequence,
		Frame:           cfg.Session.FrameInterval,
		MaxGameTime:     opts.maxGame,
		LeaderboardSize: cfg.Session.LeaderboardLimit,
		Realtime:        opts.realtime,
		Logger:          logger,
	}
	if opts.realtime {
		playOpts.TransitionDelay = cfg.Session.TransitionDelay
	}

	outcomes := make([]outcome, len(opts.players))
	g, gctx := errgroup.WithContext(ctx)
	for i, pseudo := range opts.players {
		p := player{
			Pseudo:   strings.TrimSpace(pseudo),
			Seed:     cfg.Session.Seed + uint64(i) + 1,
			Reaction: opts.reaction,
			Fatigue:  opts.fatigue,
			Accuracy: opts.accuracy,
		}
		g.Go(func() error {
			res, err := playSession(gctx, p, lb, playOpts)
			if err != nil {
				return fmt.Errorf("%s: %w", p.Pseudo, err)
			}
			outcomes[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	printOutcomes(out, outcomes)

	top, err := lb.GetTop(ctx, cfg.Session.LeaderboardLimit)
	if err != nil {
		return fmt.Errorf("load leaderboard: %w", err)
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPSEUDO\tBEST")
	for i, e := range top {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, e.Pseudo, e.BestScore)
	}
	return tw.Flush()
}

// leaderboardFor returns the remote API client, or an in-process board.
func leaderboardFor(opts *demoOptions, logger *slog.Logger) (session.Leaderboard, error) {
	if opts.remote == "" {
		return board.New(board.WithDispatchMode(engine.DispatchSync), board.WithLogger(logger)), nil
	}
	var clientOpts []sdk.Option
	if opts.apiKey != "" {
		clientOpts = append(clientOpts, sdk.WithAPIKey(opts.apiKey))
	}
	return sdk.NewClient(opts.remote, clientOpts...)
}

func printOutcomes(out io.Writer, outcomes []outcome) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PSEUDO\tSCORE\tGAMES\tSUBMISSION")
	for _, o := range outcomes {
		played := make([]string, 0, len(o.Results))
		for _, r := range o.Results {
			played = append(played, fmt.Sprintf("%s:%s:%d", r.GameID, r.Reason, r.FinalScore))
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", o.Pseudo, o.Score, strings.Join(played, " "), describe(o.Submission))
	}
	_ = tw.Flush()
}

func describe(s session.Submission) string {
	switch {
	case s.Error != "":
		return "failed: " + s.Error
	case s.Result == nil:
		return "-"
	case s.Result.IsNew():
		return "new entry"
	case s.Result.IsImproved():
		return fmt.Sprintf("improved from %d", *s.Result.OldScore)
	default:
		return s.Result.Message
	}
}

func levelOf(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
