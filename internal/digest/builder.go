package digest

import (
	"log"
	"strings"

	"github.com/stellarlinkco/librarian/internal/session"
)

const OtherChannel = "Other"

// ChannelRule labels a session whose channel key contains Marker.
type ChannelRule struct {
	Marker string
	Label  string
}

// DefaultChannelRules are checked in order; the first match wins.
var DefaultChannelRules = []ChannelRule{
	{Marker: "telegram", Label: "Telegram"},
	{Marker: "whatsapp", Label: "WhatsApp"},
	{Marker: "discord", Label: "Discord"},
	{Marker: "main", Label: "Web/CLI"},
}

// Classify returns the label of the first rule whose marker occurs in channelKey.
func Classify(channelKey string, rules []ChannelRule) string {
	for _, r := range rules {
		if strings.Contains(channelKey, r.Marker) {
			return r.Label
		}
	}
	return OtherChannel
}

type extractFunc func(session.SessionFileRef, session.ExtractOptions) ([]session.Message, error)

type Builder struct {
	opts    Options
	rules   []ChannelRule
	extract extractFunc
}

func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:    opts,
		rules:   DefaultChannelRules,
		extract: session.Extract,
	}
}

// WithRules replaces the channel classification rules.
func (b *Builder) WithRules(rules []ChannelRule) *Builder {
	b.rules = rules
	return b
}

// Build turns the scanned files (newest first) into a digest of at most
// MaxSessions bundles of at most MaxMessages messages each. Files that yield
// no messages are left out.
func (b *Builder) Build(files []session.SessionFileRef, index session.SessionIndex) Digest {
	if b.opts.MaxSessions > 0 && len(files) > b.opts.MaxSessions {
		files = files[:b.opts.MaxSessions]
	}

	var d Digest
	for _, f := range files {
		key := index.ChannelKey(f.ID())
		channel := Classify(key, b.rules)

		messages, err := b.extract(f, b.opts.Extract)
		if err != nil {
			log.Printf("[digest] error reading %s: %v", f.Path, err)
			continue
		}
		if len(messages) == 0 {
			continue
		}
		if b.opts.MaxMessages > 0 && len(messages) > b.opts.MaxMessages {
			messages = messages[len(messages)-b.opts.MaxMessages:]
		}

		d = append(d, Bundle{
			Channel:    channel,
			SessionKey: key,
			Modified:   isoLocal(f.ModTime),
			Messages:   messages,
		})
	}
	return d
}
