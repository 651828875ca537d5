package session

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// excludedMarkers flag soft-deleted or in-use session files.
var excludedMarkers = []string{".deleted", ".lock"}

// Scan lists the session files in dir whose name matches pattern, newest first.
// A missing directory yields no files and no error.
func Scan(dir, pattern string) ([]SessionFileRef, error) {
	if pattern == "" {
		pattern = "*.jsonl"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile session pattern %q: %w", pattern, err)
	}

	log.Printf("[scan] scanning directory: %s", dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[scan] directory not found, nothing to scan")
			return nil, nil
		}
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	var refs []SessionFileRef
	for _, e := range entries {
		if e.IsDir() || !g.Match(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if isExcluded(path) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			log.Printf("[scan] error reading %s: %v", path, err)
			continue
		}
		if info.IsDir() {
			continue
		}
		refs = append(refs, SessionFileRef{
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
		log.Printf("[scan] found: %s (%d bytes)", e.Name(), info.Size())
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].ModTime.After(refs[j].ModTime)
	})
	log.Printf("[scan] total sessions found: %d", len(refs))
	return refs, nil
}

func isExcluded(path string) bool {
	for _, marker := range excludedMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}
