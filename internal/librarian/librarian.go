// Package librarian runs the session-to-daily-log distillation pipeline.
package librarian

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stellarlinkco/librarian/internal/analysis"
	"github.com/stellarlinkco/librarian/internal/config"
	"github.com/stellarlinkco/librarian/internal/digest"
	"github.com/stellarlinkco/librarian/internal/memory"
	"github.com/stellarlinkco/librarian/internal/notify"
	"github.com/stellarlinkco/librarian/internal/session"
)

const (
	NoNewKnowledge = "No new knowledge to add."
	Completed      = "Librarian scan complete. Daily log updated."

	// summaryThreshold is the rendered digest length, in runes, above which a
	// standalone run records its summary.
	summaryThreshold = 100
)

// Options injects the collaborators of a Librarian. Nil Analyzer and Notifier
// disable those steps; a nil Reindexer is derived from the config.
type Options struct {
	Analyzer  analysis.Analyzer
	Reindexer memory.Reindexer
	Notifier  notify.Notifier
	Now       func() time.Time
}

type Librarian struct {
	cfg       *config.Config
	opts      digest.Options
	builder   *digest.Builder
	dailyLog  *memory.DailyLog
	analyzer  analysis.Analyzer
	reindexer memory.Reindexer
	notifier  notify.Notifier
	now       func() time.Time
}

func New(cfg *config.Config, o Options) *Librarian {
	dopts := digest.OptionsFromConfig(cfg.Digest)
	l := &Librarian{
		cfg:       cfg,
		opts:      dopts,
		builder:   digest.NewBuilder(dopts),
		dailyLog:  memory.NewDailyLog(cfg.DailyDir()),
		analyzer:  o.Analyzer,
		reindexer: o.Reindexer,
		notifier:  o.Notifier,
		now:       o.Now,
	}
	if l.reindexer == nil {
		l.reindexer = memory.NewReindexer(cfg)
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Digest scans the session store and returns the current digest with its rendering.
// Scan and index failures are logged and yield an empty digest.
func (l *Librarian) Digest() (digest.Digest, string) {
	files, err := session.Scan(l.cfg.Sessions.Dir, l.cfg.Sessions.Pattern)
	if err != nil {
		log.Printf("[librarian] scan sessions: %v", err)
		return nil, ""
	}
	index, err := session.LoadIndex(l.cfg.IndexPath())
	if err != nil {
		log.Printf("[librarian] load session index: %v", err)
		return nil, ""
	}

	d := l.builder.Build(files, index)
	if len(d) == 0 {
		return nil, ""
	}
	return d, digest.Format(d, l.opts)
}

// Run performs one full pass and returns a human-readable outcome. It never fails;
// problems are logged.
func (l *Librarian) Run(ctx context.Context) string {
	result, err := l.RunE(ctx)
	if err != nil {
		log.Printf("[librarian] run failed: %v", err)
		return "Librarian scan failed: " + err.Error()
	}
	return result
}

// RunE is Run for callers that track failures, such as the scheduler. Only a
// failed daily log write is reported as an error.
func (l *Librarian) RunE(ctx context.Context) (string, error) {
	log.Printf("[librarian] scanning sessions in %s", l.cfg.Sessions.Dir)

	d, formatted := l.Digest()
	if len(d) == 0 {
		log.Printf("[librarian] No session content found.")
		return NoNewKnowledge, nil
	}
	log.Printf("[librarian] found %d active sessions to analyze", len(d))

	prompt := BuildPrompt(l.cfg.Agent.Owner, l.cfg.Agent.KnownFacts, formatted)
	if err := writePrompt(l.cfg.PromptFile(), prompt); err != nil {
		log.Printf("[librarian] %v", err)
	}

	at := l.now()
	var entry string
	if l.analyzer != nil {
		out, err := l.analyzer.Analyze(ctx, prompt)
		switch {
		case err != nil:
			log.Printf("[librarian] analysis failed, recording summary instead: %v", err)
		case strings.TrimSpace(out) == Sentinel:
			log.Printf("[librarian] analyzer found no new knowledge")
			return NoNewKnowledge, nil
		default:
			entry = out
		}
	}
	if entry == "" && utf8.RuneCountInString(formatted) > summaryThreshold {
		entry = Summary(d, formatted)
	}

	if entry != "" {
		if _, err := l.dailyLog.Append(entry, at); err != nil {
			return "", fmt.Errorf("update daily log: %w", err)
		}
	}

	log.Printf("[librarian] reindexing memory")
	if err := l.reindexer.Reindex(ctx); err != nil {
		log.Printf("[librarian] reindex failed: %v", err)
	}

	if l.notifier != nil {
		report := Completed
		if entry != "" {
			report += "\n\n" + entry
		}
		if err := l.notifier.Notify(ctx, report); err != nil {
			log.Printf("[librarian] notify failed: %v", err)
		}
	}

	log.Printf("[librarian] complete")
	return Completed, nil
}

func writePrompt(path, prompt string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create prompt dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(prompt), 0644); err != nil {
		return fmt.Errorf("write prompt file: %w", err)
	}
	return nil
}
