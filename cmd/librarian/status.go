package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/librarian/internal/config"
	"github.com/stellarlinkco/librarian/internal/cron"
)

type statusReport struct {
	Config      string        `yaml:"config"`
	Workspace   string        `yaml:"workspace"`
	SessionsDir string        `yaml:"sessionsDir"`
	DailyDir    string        `yaml:"dailyDir"`
	TodayLog    int64         `yaml:"todayLogBytes"`
	Reindex     string        `yaml:"reindex"`
	Analysis    string        `yaml:"analysis"`
	APIKey      string        `yaml:"apiKey"`
	Telegram    bool          `yaml:"telegram"`
	Schedule    string        `yaml:"schedule"`
	LastRun     cron.RunState `yaml:"lastRun"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	report := buildStatus(cfg, time.Now())
	switch strings.ToLower(statusFormatFlag) {
	case formatYAML:
		return writeYAML(out, report)
	case formatText, "":
		printStatus(out, report)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or yaml)", statusFormatFlag)
	}
}

func buildStatus(cfg *config.Config, now time.Time) statusReport {
	r := statusReport{
		Config:      config.ConfigPath(),
		Workspace:   cfg.Agent.Workspace,
		SessionsDir: cfg.Sessions.Dir,
		DailyDir:    cfg.DailyDir(),
		TodayLog:    -1,
		Reindex:     reindexDisplay(cfg),
		Analysis:    "disabled",
		APIKey:      maskKey(cfg.Analysis.Provider.APIKey),
		Telegram:    cfg.Notify.Telegram.Enabled,
		Schedule:    cfg.Schedule.Expr,
	}
	if cfg.Analysis.Enabled {
		r.Analysis = providerDisplay(cfg.Analysis.Provider.Type) + " / " + cfg.Analysis.Model
	}
	if info, err := os.Stat(filepath.Join(cfg.DailyDir(), now.Format("2006-01-02")+".md")); err == nil {
		r.TodayLog = info.Size()
	}
	if st, err := cron.LoadState(cfg.StatePath()); err == nil {
		r.LastRun = st
	}
	return r
}

func printStatus(w io.Writer, r statusReport) {
	line := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
	}
	fmt.Fprintln(w, headerStyle.Render("Librarian status"))
	line("Config", r.Config)
	line("Workspace", r.Workspace)
	line("Sessions", r.SessionsDir)
	line("Daily logs", r.DailyDir)
	if r.TodayLog >= 0 {
		line("Today", fmt.Sprintf("%d bytes", r.TodayLog))
	} else {
		line("Today", "no log yet")
	}
	line("Reindex", r.Reindex)
	line("Analysis", r.Analysis)
	line("API Key", r.APIKey)
	line("Telegram", fmt.Sprintf("enabled=%v", r.Telegram))
	line("Schedule", r.Schedule)

	if r.LastRun.RunCount == 0 {
		line("Last run", "never")
		return
	}
	at := time.UnixMilli(r.LastRun.LastRunAtMs).Format(time.RFC3339)
	status := successStyle.Render(r.LastRun.LastStatus)
	if r.LastRun.LastStatus != cron.StatusOK {
		status = warnStyle.Render(r.LastRun.LastStatus + ": " + r.LastRun.LastError)
	}
	line("Last run", fmt.Sprintf("%s (%s, %d runs)", at, status, r.LastRun.RunCount))
}

func reindexDisplay(cfg *config.Config) string {
	if cfg.Reindex.Mode == config.ReindexModeCommand {
		return cfg.Reindex.Mode + " (" + strings.Join(cfg.Reindex.Command, " ") + ")"
	}
	return cfg.Reindex.Mode
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}
