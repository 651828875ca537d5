package memory

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const dateLayout = "2006-01-02"

// DailyLog appends distilled knowledge to one markdown file per calendar day.
//
// Append is a read-modify-write of the whole file. Callers writing the same day
// from different processes must serialize themselves.
type DailyLog struct {
	dir string
}

func NewDailyLog(dir string) *DailyLog {
	return &DailyLog{dir: dir}
}

func (l *DailyLog) Dir() string {
	return l.dir
}

// Path returns the file holding the log for the day of at.
func (l *DailyLog) Path(at time.Time) string {
	return filepath.Join(l.dir, at.Format(dateLayout)+".md")
}

// Append adds a timestamped section to the day's log, creating the file with its
// header on first use, and returns the file path.
func (l *DailyLog) Append(content string, at time.Time) (string, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", fmt.Errorf("create daily log dir: %w", err)
	}

	path := l.Path(at)
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read daily log: %w", err)
	}

	body := string(existing)
	if body == "" {
		body = fmt.Sprintf("# %s — Daily Log\n\n", at.Format(dateLayout))
	}
	body += fmt.Sprintf("\n## %s — Librarian Distillation\n%s\n", at.Format("15:04"), content)

	if err := writeFileAtomic(path, []byte(body)); err != nil {
		return "", err
	}
	log.Printf("[memory] updated daily log: %s", path)
	return path, nil
}

// Read returns the log for date (YYYY-MM-DD), or "" when none exists.
func (l *DailyLog) Read(date string) (string, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", fmt.Errorf("parse date %q: %w", date, err)
	}
	data, err := os.ReadFile(filepath.Join(l.dir, date+".md"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read daily log: %w", err)
	}
	return string(data), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
