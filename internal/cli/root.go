// Package cli provides the command-line interface for mooddine.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/mooddine/internal/client"
	"github.com/raphaelgruber/mooddine/internal/config"
	"github.com/raphaelgruber/mooddine/internal/metrics"
	"github.com/raphaelgruber/mooddine/internal/notify"
	"github.com/raphaelgruber/mooddine/internal/quota"
	"github.com/raphaelgruber/mooddine/internal/session"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	storeFlag string
	ephemeral bool

	// Global config and collaborators, wired in PersistentPreRunE
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	closeStore func() error
	gate       *quota.Gate
	recClient  *client.Client
	collector  *metrics.Collector
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mooddine",
	Short: "Find dining spots that match your mood",
	Long: `MoodDine sends a free-text mood to the recommendation service and
shows a ranked list of places, with ratings, opening status and what
Reddit thinks of them.

Searches are limited per day; run 'mooddine quota' to see what is left.
Without a subcommand on a terminal, the interactive search page opens.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip wiring for help and commands that need no backend
		if cmd.Name() == "help" || cmd.Name() == "moods" {
			return nil
		}
		if !cmd.HasParent() && !stdoutIsTerminal() {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if ephemeral {
			cfg.QuotaStore = config.StoreMemory
		} else if storeFlag != "" {
			cfg.QuotaStore = storeFlag
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level, verbose && !isTUI(cmd))
		slog.SetDefault(logger)

		collector = metrics.NewCollector()

		ctx := cmd.Context()
		store, closer, err := openStore(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("open %s quota store: %w", cfg.QuotaStore, err)
		}
		closeStore = closer

		gate = quota.NewGate(store,
			quota.WithLimit(cfg.DailyLimit),
			quota.WithLogger(logger),
			quota.WithMetrics(collector))
		recClient = client.New(cfg.RecommendURL, cfg.SearchTimeout, logger)

		logger.Debug("mooddine configured",
			"endpoint", cfg.RecommendURL,
			"store", cfg.QuotaStore,
			"daily_limit", cfg.DailyLimit)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if verbose && collector != nil && !isTUI(cmd) {
			printStats(cmd.ErrOrStderr(), collector.Snapshot())
		}
		if closeStore != nil {
			if err := closeStore(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close quota store: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !stdoutIsTerminal() {
			return cmd.Help()
		}
		return runTUI(cmd, args)
	},
}

// newController builds a search session on the wired gate and client.
func newController(n notify.Notifier) *session.Controller {
	return session.New(gate, recClient, session.Options{
		Timeout:  cfg.SearchTimeout,
		Logger:   logger,
		Metrics:  collector,
		Notifier: notify.Multi{notify.LogNotifier{Logger: logger}, n},
	})
}

// isTUI reports whether cmd takes over the terminal.
func isTUI(cmd *cobra.Command) bool {
	return cmd.Name() == "tui" || (!cmd.HasParent() && stdoutIsTerminal())
}

func stdoutIsTerminal() bool {
	return isTerminalFd(os.Stdout.Fd())
}

func isTerminalFd(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output and session statistics")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "quota store: memory, file, sqlite, redis or surrealdb")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep the quota in memory for this run only")

	// Add subcommands
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(moodsCmd)
}
