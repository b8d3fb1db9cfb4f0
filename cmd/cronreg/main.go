package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/cronreg/internal/crontab"
)

// Exit statuses follow sysexits.h where a specific one applies.
const (
	exitFailure     = 1
	exitUnavailable = 69 // EX_UNAVAILABLE
	exitNoPerm      = 77 // EX_NOPERM
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := buildRoot(command{out: os.Stdout, errOut: os.Stderr, tabFor: systemTab})
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "cronreg:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case crontab.IsPermission(err):
		return exitNoPerm
	case crontab.IsUnavailable(err):
		return exitUnavailable
	default:
		return exitFailure
	}
}

// buildRoot creates the root command; running it without a subcommand syncs.
func buildRoot(c command) *cobra.Command {
	globalFlags := &GlobalFlags{}
	syncFlags := &SyncFlags{}
	statusFlags := &StatusFlags{}
	historyFlags := &HistoryFlags{}

	root := createRootCommand(c, globalFlags, syncFlags)
	root.AddCommand(
		createSyncCommand(c, globalFlags, syncFlags),
		createStatusCommand(c, globalFlags, statusFlags),
		createRemoveCommand(c, globalFlags),
		createHistoryCommand(c, globalFlags, historyFlags),
	)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(c command, flags *GlobalFlags, syncFlags *SyncFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "cronreg",
		Short: "Keep the used-car scraper registered in crontab",
		Long: `cronreg makes sure the invoking user's crontab holds exactly one entry for
the used-car scraper. Any line that logs to the scraper's log file is replaced
by the current entry; every other line is left untouched and in order.

Examples:
  cronreg                      # same as 'cronreg sync'
  cronreg sync --dry-run       # show the table that would be written
  cronreg status --next=5      # show matching lines and upcoming runs
  cronreg remove               # unregister the scraper
  cronreg --config=/etc/cronreg.toml --user=ec2-user`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Sync(cmd.Context(), *flags, *syncFlags)
		},
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.User, "user", "", "edit this user's crontab (crontab -u, needs root)")

	return root
}

// createSyncCommand creates the sync subcommand
func createSyncCommand(c command, flags *GlobalFlags, syncFlags *SyncFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Register the scraper job, replacing any previous entry",
		Long: `Read the crontab, drop every line containing the job's log path, append the
job's line and write the table back in a single replacement.

Examples:
  cronreg sync
  cronreg sync --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Sync(cmd.Context(), *flags, *syncFlags)
		},
	}
	cmd.Flags().BoolVar(&syncFlags.DryRun, "dry-run", false, "print the resulting crontab without writing it")
	return cmd
}

// createStatusCommand creates the status subcommand
func createStatusCommand(c command, flags *GlobalFlags, statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show crontab lines that belong to the job",
		Long: `Show every crontab line containing the job's log path, whether the table
already holds exactly the current entry, and the next activation times.

Examples:
  cronreg status
  cronreg status --next=5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context(), *flags, *statusFlags)
		},
	}
	cmd.Flags().IntVar(&statusFlags.Next, "next", 3, "number of upcoming activations to show")
	cmd.Flags().BoolVar(&statusFlags.JSON, "json", false, "print status as JSON")
	return cmd
}

// createRemoveCommand creates the remove subcommand
func createRemoveCommand(c command, flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Unregister the job",
		Long: `Drop every crontab line containing the job's log path and write the rest back.
Running it when nothing matches succeeds and changes nothing.

Examples:
  cronreg remove`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Remove(cmd.Context(), *flags)
		},
	}
}

// createHistoryCommand creates the history subcommand
func createHistoryCommand(c command, flags *GlobalFlags, historyFlags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent registrar runs from the audit store",
		Long: `List recent sync and remove runs recorded in the SQL history store
configured under [history] dsn (SQLite or PostgreSQL).

Examples:
  cronreg history --config=/etc/cronreg.toml --limit=10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(cmd.Context(), *flags, *historyFlags)
		},
	}
	cmd.Flags().IntVar(&historyFlags.Limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func systemTab(binary, user string) crontab.Tab {
	return crontab.CommandTab{Binary: binary, User: user}
}
