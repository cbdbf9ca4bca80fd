package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/okian/ranked/internal/simulate"
	"github.com/okian/ranked/pkg/logger"
)

const programName = "ranked-simulate"

var globalFlags = struct {
	debug     bool
	logFormat string
}{}

func commonRun(ctx context.Context) error {
	if err := logger.InitWithWriter(os.Stderr, globalFlags.logFormat); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if globalFlags.debug {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Get().Named(programName)
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		log.Debug(ctx, fmt.Sprintf(format, v...))
	})); err != nil {
		return fmt.Errorf("set maxprocs: %w", err)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	cfg := simulate.DefaultConfig()
	cmd := &cobra.Command{
		Use:          programName,
		Short:        "Seed profiles, vote concurrently and verify the leaderboard",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := commonRun(cmd.Context()); err != nil {
				return err
			}
			cfg.Logger = logger.Get().Named(programName)
			_, err := simulate.Run(cmd.Context(), cfg)
			return err
		},
	}

	cmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	cmd.PersistentFlags().
		StringVar(&globalFlags.logFormat, "log-format", "text", "log format: text or json")

	flags := cmd.Flags()
	flags.StringVarP(&cfg.BaseURL, "url", "u", cfg.BaseURL, "base URL of the ranking service")
	flags.IntVarP(&cfg.Profiles, "profiles", "p", cfg.Profiles, "profiles to create before voting")
	flags.IntVarP(&cfg.Votes, "votes", "n", cfg.Votes, "pair-and-vote rounds in total")
	flags.IntVarP(&cfg.Voters, "voters", "c", cfg.Voters, "concurrent voters")
	flags.IntVar(&cfg.ReplayEvery, "replay-every", cfg.ReplayEvery, "resubmit every Nth accepted token; 0 disables")
	flags.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "leaderboard page size used for verification")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "seed for generated profiles")
	flags.StringVar(&cfg.VoterPrefix, "voter-prefix", cfg.VoterPrefix, "X-Voter-ID prefix; empty sends no header")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
