package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/librarian/internal/analysis"
	"github.com/stellarlinkco/librarian/internal/config"
	"github.com/stellarlinkco/librarian/internal/cron"
	"github.com/stellarlinkco/librarian/internal/librarian"
	"github.com/stellarlinkco/librarian/internal/memory"
	"github.com/stellarlinkco/librarian/internal/notify"
	"github.com/stellarlinkco/librarian/internal/session"
)

// LibrarianOptions for building the pipeline with custom dependencies
type LibrarianOptions struct {
	RuntimeFactory analysis.RuntimeFactory
	Reindexer      memory.Reindexer
	Notifier       notify.Notifier
}

// buildLibrarian wires the configured collaborators. Injected options win over config.
func buildLibrarian(cfg *config.Config, opts LibrarianOptions) (*librarian.Librarian, error) {
	o := librarian.Options{Reindexer: opts.Reindexer, Notifier: opts.Notifier}

	if a := analysis.New(cfg, opts.RuntimeFactory); a != nil {
		o.Analyzer = a
	}
	if o.Notifier == nil {
		n, err := notify.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("create notifier: %w", err)
		}
		o.Notifier = n
	}
	return librarian.New(cfg, o), nil
}

var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "librarian - distill chat sessions into a daily knowledge log",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		session.SetVerbose(verboseFlag)
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan sessions once and update today's daily log",
	RunE:  runRun,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the librarian on its cron schedule",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and workspace",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show librarian status",
	RunE:  runStatus,
}

var (
	verboseFlag      bool
	serveNowFlag     bool
	digestFormatFlag string
	statusFormatFlag string
	recallLimitFlag  int
	recallIndexFlag  bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log every skipped session line")
	serveCmd.Flags().BoolVar(&serveNowFlag, "now", false, "Run once immediately before waiting for the schedule")
	digestCmd.Flags().StringVarP(&digestFormatFlag, "format", "f", formatText, "Output format: text, json or yaml")
	statusCmd.Flags().StringVarP(&statusFormatFlag, "format", "f", formatText, "Output format: text or yaml")
	recallCmd.Flags().IntVarP(&recallLimitFlag, "limit", "n", 10, "Maximum number of results")
	recallCmd.Flags().BoolVar(&recallIndexFlag, "reindex", false, "Index the daily logs before searching")
	rootCmd.AddCommand(runCmd, serveCmd, digestCmd, recallCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	return runRunWithOptions(cmd, LibrarianOptions{})
}

// runRunWithOptions runs one pass with injectable dependencies for testing
func runRunWithOptions(cmd *cobra.Command, opts LibrarianOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	lib, err := buildLibrarian(cfg, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render("Running Librarian"))
	result := lib.Run(commandContext(cmd))
	switch result {
	case librarian.Completed:
		fmt.Fprintln(out, successStyle.Render(result))
	default:
		fmt.Fprintln(out, warnStyle.Render(result))
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	return runServeWithOptions(cmd, LibrarianOptions{})
}

func runServeWithOptions(cmd *cobra.Command, opts LibrarianOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cron.ValidateSchedule(cfg.Schedule.Expr); err != nil {
		return err
	}
	lib, err := buildLibrarian(cfg, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := cron.NewService(cfg.Schedule.Expr, cfg.StatePath(), lib.RunE)
	if serveNowFlag {
		svc.RunNow(ctx)
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", labelStyle.Render("Schedule:"), cfg.Schedule.Expr)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", labelStyle.Render("Next run:"), svc.Next().Format(time.RFC3339))
	<-ctx.Done()
	svc.Stop()
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DailyDir(), 0755); err != nil {
		return fmt.Errorf("create daily log dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath()), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	fmt.Fprintf(out, "Daily logs: %s\n", cfg.DailyDir())
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to point sessions.dir at your session store\n", cfgPath)
	fmt.Fprintln(out, "  2. Optionally enable analysis and set LIBRARIAN_API_KEY")
	fmt.Fprintln(out, "  3. Run 'librarian digest' to preview, then 'librarian run'")
	return nil
}
