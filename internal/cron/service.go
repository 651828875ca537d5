package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// RunState is the persisted outcome of the most recent scheduled run.
type RunState struct {
	LastRunID      string `json:"lastRunId,omitempty" yaml:"lastRunId"`
	LastRunAtMs    int64  `json:"lastRunAtMs,omitempty" yaml:"lastRunAtMs"`
	LastDurationMs int64  `json:"lastDurationMs,omitempty" yaml:"lastDurationMs"`
	LastStatus     string `json:"lastStatus,omitempty" yaml:"lastStatus"`
	LastError      string `json:"lastError,omitempty" yaml:"lastError"`
	LastResult     string `json:"lastResult,omitempty" yaml:"lastResult"`
	RunCount       int    `json:"runCount" yaml:"runCount"`
}

// RunFunc performs one run and returns a short human-readable result.
type RunFunc func(ctx context.Context) (string, error)

// Service runs OnRun on a cron schedule, one run at a time.
type Service struct {
	expr      string
	statePath string
	OnRun     RunFunc

	mu      sync.Mutex
	loaded  bool
	state   RunState
	cron    *rcron.Cron
	entryID rcron.EntryID
	cancel  context.CancelFunc
	stopCh  chan struct{}
}

func NewService(expr, statePath string, onRun RunFunc) *Service {
	return &Service{
		expr:      expr,
		statePath: statePath,
		OnRun:     onRun,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.ensureLoaded()

	logger := rcron.PrintfLogger(log.New(log.Writer(), "[cron] ", log.LstdFlags))
	c := rcron.New(
		rcron.WithSeconds(),
		rcron.WithLogger(logger),
		rcron.WithChain(rcron.Recover(logger), rcron.SkipIfStillRunning(logger)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	id, err := c.AddFunc(s.expr, func() {
		s.RunNow(runCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("parse schedule %q: %w", s.expr, err)
	}

	stopCh := make(chan struct{})
	s.mu.Lock()
	s.cron = c
	s.entryID = id
	s.cancel = cancel
	s.stopCh = stopCh
	s.mu.Unlock()

	c.Start()
	log.Printf("[cron] started with schedule %q, next run at %s", s.expr, s.Next().Format(time.RFC3339))

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
		}
	}()
	return nil
}

// RunNow executes one run immediately and records its outcome.
func (s *Service) RunNow(ctx context.Context) RunState {
	s.ensureLoaded()
	runID := uuid.NewString()
	log.Printf("[cron] executing run %s", runID)

	if s.OnRun == nil {
		log.Printf("[cron] no OnRun handler set")
		return s.State()
	}

	start := time.Now()
	result, err := s.OnRun(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.LastRunID = runID
	s.state.LastRunAtMs = start.UnixMilli()
	s.state.LastDurationMs = time.Since(start).Milliseconds()
	s.state.RunCount++
	if err != nil {
		s.state.LastStatus = StatusError
		s.state.LastError = err.Error()
		s.state.LastResult = ""
		log.Printf("[cron] run %s error: %v", runID, err)
	} else {
		s.state.LastStatus = StatusOK
		s.state.LastError = ""
		s.state.LastResult = result
		log.Printf("[cron] run %s result: %s", runID, truncate(result, 100))
	}

	if err := s.save(); err != nil {
		log.Printf("[cron] warning: failed to save state: %v", err)
	}
	return s.state
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	stopCh := s.stopCh
	c := s.cron
	s.cancel = nil
	s.stopCh = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if stopCh != nil {
		close(stopCh)
	}

	if c != nil {
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[cron] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[cron] stopped")
}

// Next returns the next scheduled run, or the zero time when not started.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Service) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadState reads the persisted run state; a missing file yields the zero state.
func LoadState(path string) (RunState, error) {
	var st RunState
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read run state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse run state: %w", err)
	}
	return st, nil
}

// ValidateSchedule reports whether expr is a valid six-field cron expression.
func ValidateSchedule(expr string) error {
	parser := rcron.NewParser(rcron.Second | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return nil
}

// ensureLoaded reads the persisted state once, before the first run or start.
func (s *Service) ensureLoaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}
	s.loaded = true
	st, err := LoadState(s.statePath)
	if err != nil {
		log.Printf("[cron] warning: failed to load state: %v", err)
		return
	}
	s.state = st
}

func (s *Service) save() error {
	dir := filepath.Dir(s.statePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.statePath, data, 0644)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
