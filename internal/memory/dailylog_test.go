package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDailyLog_AppendCreatesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "memory")
	l := NewDailyLog(dir)

	first := time.Date(2026, 2, 10, 9, 5, 0, 0, time.Local)
	second := time.Date(2026, 2, 10, 17, 45, 0, 0, time.Local)

	path, err := l.Append("- 09:00 user prefers tea", first)
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if want := filepath.Join(dir, "2026-02-10.md"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if _, err := l.Append("- 17:40 moved meeting to Friday", second); err != nil {
		t.Fatalf("second Append error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := "# 2026-02-10 — Daily Log\n\n" +
		"\n## 09:05 — Librarian Distillation\n- 09:00 user prefers tea\n" +
		"\n## 17:45 — Librarian Distillation\n- 17:40 moved meeting to Friday\n"
	if string(data) != want {
		t.Fatalf("log content mismatch:\n got: %q\nwant: %q", string(data), want)
	}
	if n := strings.Count(string(data), "Daily Log"); n != 1 {
		t.Errorf("expected a single header, got %d", n)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestDailyLog_AppendToEmptyFileAddsHeader(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 2, 11, 8, 0, 0, 0, time.Local)
	if err := os.WriteFile(filepath.Join(dir, "2026-02-11.md"), nil, 0644); err != nil {
		t.Fatalf("write empty log: %v", err)
	}

	path, err := NewDailyLog(dir).Append("entry", at)
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# 2026-02-11 — Daily Log\n\n") {
		t.Fatalf("expected header, got %q", string(data))
	}
}

func TestDailyLog_AppendKeepsExistingContent(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 2, 12, 8, 30, 0, 0, time.Local)
	existing := "hand written notes\n"
	if err := os.WriteFile(filepath.Join(dir, "2026-02-12.md"), []byte(existing), 0644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	path, err := NewDailyLog(dir).Append("new", at)
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if want := existing + "\n## 08:30 — Librarian Distillation\nnew\n"; string(data) != want {
		t.Fatalf("got %q, want %q", string(data), want)
	}
}

func TestDailyLog_SeparateDays(t *testing.T) {
	l := NewDailyLog(t.TempDir())
	day1 := time.Date(2026, 2, 10, 23, 59, 0, 0, time.Local)
	day2 := day1.Add(2 * time.Minute)

	p1, err := l.Append("late", day1)
	if err != nil {
		t.Fatalf("Append day1: %v", err)
	}
	p2, err := l.Append("early", day2)
	if err != nil {
		t.Fatalf("Append day2: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("expected different files, both %q", p1)
	}
}

func TestDailyLog_Read(t *testing.T) {
	l := NewDailyLog(t.TempDir())

	got, err := l.Read("2026-02-10")
	if err != nil {
		t.Fatalf("Read missing error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty content for missing day, got %q", got)
	}

	if _, err := l.Append("something worth keeping", time.Date(2026, 2, 10, 12, 0, 0, 0, time.Local)); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	got, err = l.Read("2026-02-10")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !strings.Contains(got, "something worth keeping") {
		t.Fatalf("unexpected content %q", got)
	}

	if _, err := l.Read("../etc/passwd"); err == nil {
		t.Fatal("expected error for invalid date")
	}
}

func TestDailyLog_AppendFailsWhenDirIsFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "memory")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if _, err := NewDailyLog(blocker).Append("x", time.Now()); err == nil {
		t.Fatal("expected error when log dir is a file")
	}
}
