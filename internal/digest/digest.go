// Package digest aggregates recent session activity into a bounded, per-channel
// snapshot and renders it as text for analysis.
package digest

import (
	"fmt"
	"time"

	"github.com/stellarlinkco/librarian/internal/config"
	"github.com/stellarlinkco/librarian/internal/session"
)

// Bundle is the recent activity of one session.
type Bundle struct {
	Channel    string            `json:"channel" yaml:"channel"`
	SessionKey string            `json:"sessionKey" yaml:"sessionKey"`
	Modified   string            `json:"modified" yaml:"modified"`
	Messages   []session.Message `json:"messages" yaml:"messages"`
}

// Digest is an ordered set of bundles, most recently modified first.
type Digest []Bundle

// Channels lists the channel label of every bundle, in digest order.
func (d Digest) Channels() []string {
	out := make([]string, 0, len(d))
	for _, b := range d {
		out = append(out, b.Channel)
	}
	return out
}

// Options carries every cap applied while building and rendering a digest.
type Options struct {
	MaxSessions      int
	MaxMessages      int
	MaxDisplayLength int
	MaxDigestLength  int
	Extract          session.ExtractOptions
}

func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultDigestConfig())
}

func OptionsFromConfig(cfg config.DigestConfig) Options {
	return Options{
		MaxSessions:      cfg.MaxSessions,
		MaxMessages:      cfg.MaxMessages,
		MaxDisplayLength: cfg.MaxDisplayLength,
		MaxDigestLength:  cfg.MaxDigestLength,
		Extract: session.ExtractOptions{
			MaxLines:         cfg.MaxLines,
			MinContentLength: cfg.MinContentLength,
			MaxContentLength: cfg.MaxContentLength,
		},
	}
}

// isoLocal renders t in local time without a zone, with microseconds only when non-zero.
func isoLocal(t time.Time) string {
	t = t.Local()
	s := t.Format("2006-01-02T15:04:05")
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}
