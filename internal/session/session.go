// Package session reads conversation session logs from an agent's session store.
//
// A session store is a directory of line-delimited JSON files, one per conversation
// thread, plus a sessions.json index that maps channel keys to session ids.
package session

import (
	"log"
	"path/filepath"
	"strings"
	"time"
)

const (
	RoleUnknown    = "unknown"
	RoleToolResult = "toolResult"
	RoleToolCall   = "toolCall"
)

// SessionFileRef points at one session file found by Scan.
type SessionFileRef struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// ID is the session identifier encoded in the file name.
func (r SessionFileRef) ID() string {
	base := filepath.Base(r.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Message is one user-visible message extracted from a session file.
type Message struct {
	Role      string `json:"role" yaml:"role"`
	Content   string `json:"content" yaml:"content"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

var verbose bool

// SetVerbose enables per-line debug logging during extraction.
func SetVerbose(v bool) {
	verbose = v
}

func debugf(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}
