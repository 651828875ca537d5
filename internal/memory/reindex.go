package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/stellarlinkco/librarian/internal/config"
)

const maxReindexOutput = 500

// Reindexer refreshes whatever search index sits on top of the daily logs.
type Reindexer interface {
	Reindex(ctx context.Context) error
}

// NewReindexer picks the reindexer for cfg.Reindex.Mode.
func NewReindexer(cfg *config.Config) Reindexer {
	switch cfg.Reindex.Mode {
	case config.ReindexModeBuiltin:
		return &EngineReindexer{DBPath: cfg.DBPath(), DailyDir: cfg.DailyDir()}
	case config.ReindexModeNone:
		return NopReindexer{}
	default:
		return &CommandReindexer{Command: cfg.Reindex.Command}
	}
}

// CommandReindexer runs an external indexing command, such as `openclaw memory index`.
type CommandReindexer struct {
	Command []string
	Dir     string
}

func (r *CommandReindexer) Reindex(ctx context.Context) error {
	if len(r.Command) == 0 {
		return errors.New("reindex command is empty")
	}
	name := strings.Join(r.Command, " ")

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("[reindex] %q failed: %v, output: %s", name, err, truncate(strings.TrimSpace(string(out)), maxReindexOutput))
		return fmt.Errorf("run %q: %w", name, err)
	}
	log.Printf("[reindex] %q completed", name)
	return nil
}

// EngineReindexer indexes the daily logs into the built-in sqlite engine.
type EngineReindexer struct {
	DBPath   string
	DailyDir string
}

func (r *EngineReindexer) Reindex(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	engine, err := NewEngine(r.DBPath)
	if err != nil {
		return fmt.Errorf("open memory engine: %w", err)
	}
	defer engine.Close()

	if _, err := IndexDailyLogs(r.DailyDir, engine); err != nil {
		return fmt.Errorf("index daily logs: %w", err)
	}
	return nil
}

type NopReindexer struct{}

func (NopReindexer) Reindex(context.Context) error { return nil }

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
