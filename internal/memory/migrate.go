package memory

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var dailyFilePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.md$`)

// IndexStats summarizes one IndexDailyLogs pass.
type IndexStats struct {
	Files   int
	Updated int
	Removed int
}

// IndexDailyLogs syncs every YYYY-MM-DD.md file in dir into the engine. Days whose
// file disappeared are dropped from the index.
func IndexDailyLogs(dir string, engine *Engine) (IndexStats, error) {
	var stats IndexStats

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return stats, fmt.Errorf("read memory dir: %w", err)
	}

	var seen []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !dailyFilePattern.MatchString(name) {
			continue
		}
		date := strings.TrimSuffix(name, ".md")
		contentBytes, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", name, err)
		}
		content := strings.TrimSpace(string(contentBytes))
		if content == "" {
			continue
		}

		stats.Files++
		seen = append(seen, date)
		changed, err := engine.UpsertDay(date, content)
		if err != nil {
			return stats, err
		}
		if changed {
			stats.Updated++
		}
	}

	removed, err := engine.DeleteDaysExcept(seen)
	if err != nil {
		return stats, err
	}
	stats.Removed = removed

	log.Printf("[memory] indexed %d daily logs (%d updated, %d removed)", stats.Files, stats.Updated, stats.Removed)
	return stats, nil
}
