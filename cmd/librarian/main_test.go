package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cexll/agentsdk-go/pkg/api"
	"github.com/spf13/cobra"

	"github.com/stellarlinkco/librarian/internal/analysis"
	"github.com/stellarlinkco/librarian/internal/config"
	"github.com/stellarlinkco/librarian/internal/cron"
)

// mockRuntime implements analysis.Runtime for testing
type mockRuntime struct {
	output string
	prompt string
}

func (m *mockRuntime) Run(ctx context.Context, req api.Request) (*api.Response, error) {
	m.prompt = req.Prompt
	return &api.Response{Result: &api.Result{Output: m.output}}, nil
}

func (m *mockRuntime) Close() {}

type recordingNotifier struct {
	texts []string
}

func (n *recordingNotifier) Notify(ctx context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

type testEnv struct {
	home     string
	sessions string
	daily    string
}

func setupEnv(t *testing.T) testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("TMPDIR", home)
	for _, k := range []string{
		"LIBRARIAN_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "LIBRARIAN_BASE_URL",
		"LIBRARIAN_MODEL", "LIBRARIAN_ANALYSIS_ENABLED", "LIBRARIAN_TELEGRAM_TOKEN",
		"LIBRARIAN_TELEGRAM_CHAT_ID", "LIBRARIAN_SCHEDULE",
	} {
		t.Setenv(k, "")
	}

	env := testEnv{
		home:     home,
		sessions: filepath.Join(home, "sessions"),
		daily:    filepath.Join(home, "workspace", "memory"),
	}
	if err := os.MkdirAll(env.sessions, 0755); err != nil {
		t.Fatalf("mkdir sessions: %v", err)
	}
	t.Setenv("LIBRARIAN_SESSIONS_DIR", env.sessions)
	t.Setenv("LIBRARIAN_WORKSPACE", filepath.Join(home, "workspace"))
	t.Setenv("LIBRARIAN_REINDEX_MODE", config.ReindexModeNone)
	return env
}

func (e testEnv) writeSession(t *testing.T, id, channelKey, content string) {
	t.Helper()
	index := fmt.Sprintf(`{%q: {"sessionId": %q}}`, channelKey, id)
	if err := os.WriteFile(filepath.Join(e.sessions, "sessions.json"), []byte(index), 0644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	line := fmt.Sprintf(`{"timestamp":"2026-03-04T08:00:00Z","message":{"role":"user","content":%q}}`+"\n", content)
	if err := os.WriteFile(filepath.Join(e.sessions, id+".jsonl"), []byte(line), 0644); err != nil {
		t.Fatalf("write session: %v", err)
	}
}

func (e testEnv) todayLog(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.daily, time.Now().Format("2006-01-02")+".md"))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read daily log: %v", err)
	}
	return string(data)
}

func newTestCommand(ctx context.Context) (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	if ctx != nil {
		cmd.SetContext(ctx)
	}
	return cmd, &buf
}

func setFlag[T any](t *testing.T, p *T, v T) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

func TestInit(t *testing.T) {
	want := map[string]bool{"run": false, "serve": false, "digest": false, "recall": false, "onboard": false, "status": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
	if rootCmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("verbose flag not registered")
	}
}

func TestRunRun_NoSessions(t *testing.T) {
	env := setupEnv(t)
	cmd, out := newTestCommand(nil)

	if err := runRunWithOptions(cmd, LibrarianOptions{}); err != nil {
		t.Fatalf("runRun error: %v", err)
	}
	if !strings.Contains(out.String(), "No new knowledge to add.") {
		t.Errorf("unexpected output: %s", out.String())
	}
	if _, err := os.Stat(env.daily); !os.IsNotExist(err) {
		t.Error("daily log dir should not be created")
	}
}

func TestRunRun_WithSession(t *testing.T) {
	env := setupEnv(t)
	env.writeSession(t, "abc123", "agent:main:telegram:dm:42", "I decided to move the team to Go")
	notifier := &recordingNotifier{}
	cmd, out := newTestCommand(context.Background())

	if err := runRunWithOptions(cmd, LibrarianOptions{Notifier: notifier}); err != nil {
		t.Fatalf("runRun error: %v", err)
	}
	if !strings.Contains(out.String(), "Librarian scan complete. Daily log updated.") {
		t.Errorf("unexpected output: %s", out.String())
	}
	logText := env.todayLog(t)
	if !strings.Contains(logText, "Channels: Telegram") {
		t.Errorf("daily log missing summary: %q", logText)
	}
	if len(notifier.texts) != 1 {
		t.Errorf("expected one notification, got %d", len(notifier.texts))
	}
	if _, err := os.Stat(filepath.Join(env.home, config.DefaultPromptFileName)); err != nil {
		t.Errorf("prompt file not written: %v", err)
	}
}

func TestRunRun_WithAnalyzer(t *testing.T) {
	env := setupEnv(t)
	t.Setenv("LIBRARIAN_ANALYSIS_ENABLED", "true")
	t.Setenv("LIBRARIAN_API_KEY", "sk-test-key")
	env.writeSession(t, "abc123", "agent:main:main", "I decided to move the team to Go")

	rt := &mockRuntime{output: "- 08:00 Team moves to Go"}
	factory := func(context.Context, *config.Config) (analysis.Runtime, error) { return rt, nil }
	cmd, _ := newTestCommand(context.Background())

	if err := runRunWithOptions(cmd, LibrarianOptions{RuntimeFactory: factory}); err != nil {
		t.Fatalf("runRun error: %v", err)
	}
	if !strings.Contains(rt.prompt, "## Channel: Web/CLI") {
		t.Errorf("prompt missing digest: %q", rt.prompt)
	}
	if logText := env.todayLog(t); !strings.Contains(logText, "- 08:00 Team moves to Go") {
		t.Errorf("daily log missing analysis: %q", logText)
	}
}

func TestRunDigest_Formats(t *testing.T) {
	env := setupEnv(t)
	env.writeSession(t, "abc123", "agent:main:whatsapp:1", "Remember the anniversary is in June")

	setFlag(t, &digestFormatFlag, formatText)
	cmd, out := newTestCommand(nil)
	if err := runDigest(cmd, nil); err != nil {
		t.Fatalf("runDigest text error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "# SESSION DIGEST (All Channels)") {
		t.Errorf("unexpected text digest: %s", out.String())
	}
	if env.todayLog(t) != "" {
		t.Error("digest must not write the daily log")
	}

	setFlag(t, &digestFormatFlag, formatJSON)
	cmd, out = newTestCommand(nil)
	if err := runDigest(cmd, nil); err != nil {
		t.Fatalf("runDigest json error: %v", err)
	}
	var bundles []map[string]any
	if err := json.Unmarshal(out.Bytes(), &bundles); err != nil {
		t.Fatalf("digest json invalid: %v\n%s", err, out.String())
	}
	if len(bundles) != 1 || bundles[0]["channel"] != "WhatsApp" {
		t.Errorf("unexpected json digest: %v", bundles)
	}

	setFlag(t, &digestFormatFlag, formatYAML)
	cmd, out = newTestCommand(nil)
	if err := runDigest(cmd, nil); err != nil {
		t.Fatalf("runDigest yaml error: %v", err)
	}
	if !strings.Contains(out.String(), "channel: WhatsApp") {
		t.Errorf("unexpected yaml digest: %s", out.String())
	}

	setFlag(t, &digestFormatFlag, "xml")
	cmd, _ = newTestCommand(nil)
	if err := runDigest(cmd, nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunDigest_Empty(t *testing.T) {
	setupEnv(t)
	setFlag(t, &digestFormatFlag, formatText)
	cmd, out := newTestCommand(nil)
	if err := runDigest(cmd, nil); err != nil {
		t.Fatalf("runDigest error: %v", err)
	}
	if !strings.Contains(out.String(), "No session content found.") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestRunDigest_IgnoresNotifierConfig(t *testing.T) {
	env := setupEnv(t)
	env.writeSession(t, "abc123", "agent:main:telegram:dm:7", "Dentist appointment moved to Friday")
	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	cfgJSON := `{"notify": {"telegram": {"enabled": true}}}`
	if err := os.WriteFile(config.ConfigPath(), []byte(cfgJSON), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	setFlag(t, &digestFormatFlag, formatText)
	cmd, out := newTestCommand(nil)
	if err := runDigest(cmd, nil); err != nil {
		t.Fatalf("runDigest error: %v", err)
	}
	if !strings.Contains(out.String(), "## Channel: Telegram") {
		t.Errorf("unexpected digest: %s", out.String())
	}

	cmd, _ = newTestCommand(nil)
	if err := runRunWithOptions(cmd, LibrarianOptions{}); err == nil {
		t.Error("run should reject a telegram notifier without a token")
	}
}

func TestRunRecall(t *testing.T) {
	env := setupEnv(t)
	if err := os.MkdirAll(env.daily, 0755); err != nil {
		t.Fatalf("mkdir daily: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.daily, "2026-02-10.md"), []byte("# 2026-02-10 — Daily Log\n\n- booked flight to Oslo\n"), 0644); err != nil {
		t.Fatalf("write daily log: %v", err)
	}

	setFlag(t, &recallIndexFlag, true)
	setFlag(t, &recallLimitFlag, 5)
	cmd, out := newTestCommand(nil)
	if err := runRecall(cmd, []string{"oslo"}); err != nil {
		t.Fatalf("runRecall error: %v", err)
	}
	if !strings.Contains(out.String(), "2026-02-10") {
		t.Errorf("expected hit, got: %s", out.String())
	}

	setFlag(t, &recallIndexFlag, false)
	cmd, out = newTestCommand(nil)
	if err := runRecall(cmd, []string{"lisbon"}); err != nil {
		t.Fatalf("runRecall error: %v", err)
	}
	if !strings.Contains(out.String(), "No matches") {
		t.Errorf("expected no matches, got: %s", out.String())
	}
}

func TestRunStatus(t *testing.T) {
	setupEnv(t)
	t.Setenv("LIBRARIAN_API_KEY", "sk-ant-1234567890")

	setFlag(t, &statusFormatFlag, formatText)
	cmd, out := newTestCommand(nil)
	if err := runStatus(cmd, nil); err != nil {
		t.Fatalf("runStatus error: %v", err)
	}
	output := out.String()
	for _, want := range []string{"Config:", "Sessions:", "Reindex: none", "API Key: sk-a...7890", "Last run: never", "Today: no log yet"} {
		if !strings.Contains(output, want) {
			t.Errorf("status missing %q:\n%s", want, output)
		}
	}
}

func TestRunStatus_YAMLWithLastRun(t *testing.T) {
	setupEnv(t)
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	svc := cron.NewService(cfg.Schedule.Expr, cfg.StatePath(), func(context.Context) (string, error) {
		return "No new knowledge to add.", nil
	})
	svc.RunNow(context.Background())

	setFlag(t, &statusFormatFlag, formatYAML)
	cmd, out := newTestCommand(nil)
	if err := runStatus(cmd, nil); err != nil {
		t.Fatalf("runStatus error: %v", err)
	}
	for _, want := range []string{"reindex: none", "runCount: 1", "lastStatus: ok", "apiKey: not set"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("yaml status missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunOnboard(t *testing.T) {
	env := setupEnv(t)
	cmd, out := newTestCommand(nil)

	if err := runOnboard(cmd, nil); err != nil {
		t.Fatalf("runOnboard error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.home, ".librarian", "config.json")); err != nil {
		t.Errorf("config file was not created: %v", err)
	}
	if _, err := os.Stat(env.daily); err != nil {
		t.Errorf("daily log dir was not created: %v", err)
	}
	if !strings.Contains(out.String(), "Created config") {
		t.Errorf("unexpected output: %s", out.String())
	}

	cmd, out = newTestCommand(nil)
	if err := runOnboard(cmd, nil); err != nil {
		t.Fatalf("second runOnboard error: %v", err)
	}
	if !strings.Contains(out.String(), "Config already exists") {
		t.Errorf("expected 'Config already exists', got: %s", out.String())
	}
}

func TestRunServe_InvalidSchedule(t *testing.T) {
	setupEnv(t)
	t.Setenv("LIBRARIAN_SCHEDULE", "every now and then")
	cmd, _ := newTestCommand(nil)
	if err := runServeWithOptions(cmd, LibrarianOptions{}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestRunServe_RunNowKeepsHistoryAndStops(t *testing.T) {
	env := setupEnv(t)
	env.writeSession(t, "abc123", "agent:main:discord:1", "The deploy checklist is now final")
	setFlag(t, &serveNowFlag, true)

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath()), 0755); err != nil {
		t.Fatalf("mkdir state dir: %v", err)
	}
	if err := os.WriteFile(cfg.StatePath(), []byte(`{"lastRunId":"prev","lastStatus":"ok","runCount":41}`), 0644); err != nil {
		t.Fatalf("write state: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd, out := newTestCommand(ctx)
	done := make(chan error, 1)
	go func() { done <- runServeWithOptions(cmd, LibrarianOptions{Notifier: &recordingNotifier{}}) }()

	time.Sleep(300 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}

	st, err := cron.LoadState(cfg.StatePath())
	if err != nil {
		t.Fatalf("LoadState error: %v", err)
	}
	if st.RunCount != 42 || st.LastStatus != cron.StatusOK || st.LastRunID == "prev" {
		t.Errorf("unexpected run state %+v", st)
	}
	if !strings.Contains(out.String(), "Next run:") {
		t.Errorf("unexpected output: %s", out.String())
	}
	if !strings.Contains(env.todayLog(t), "Channels: Discord") {
		t.Error("scheduled run did not update the daily log")
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":                  "not set",
		"short":             "set",
		"sk-ant-1234567890": "sk-a...7890",
	}
	for in, want := range tests {
		if got := maskKey(in); got != want {
			t.Errorf("maskKey(%q) = %q, want %q", in, got, want)
		}
	}
}
