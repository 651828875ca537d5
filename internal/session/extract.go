package session

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// ExtractOptions bounds the work done per session file.
type ExtractOptions struct {
	MaxLines         int // lines read from the end of the file
	MinContentLength int // messages this short or shorter are dropped
	MaxContentLength int // longer messages are truncated
}

func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		MaxLines:         100,
		MinContentLength: 10,
		MaxContentLength: 2000,
	}
}

// Extract reads the tail of a session file and returns its user-visible messages in
// file order. Lines that are not JSON objects, tool traffic and trivial messages are
// skipped. On a read error it returns no messages and the error.
func Extract(ref SessionFileRef, opts ExtractOptions) ([]Message, error) {
	lines, err := readTail(ref.Path, opts.MaxLines)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", ref.Path, err)
	}

	var messages []Message
	for i, line := range lines {
		msg, ok := normalize(line, opts)
		if !ok {
			debugf("[extract] %s: skipped tail line %d", filepath.Base(ref.Path), i+1)
			continue
		}
		messages = append(messages, msg)
	}

	log.Printf("[extract] extracted %d messages from %s", len(messages), filepath.Base(ref.Path))
	return messages, nil
}

// recordShape is one accepted layout of a session record. resolve returns the
// object holding role/content, or false when the record does not have this shape.
type recordShape struct {
	name    string
	resolve func(record gjson.Result) (gjson.Result, bool)
}

// recordShapes are tried in order; the nested form wins when present.
var recordShapes = []recordShape{
	{
		name: "nested",
		resolve: func(record gjson.Result) (gjson.Result, bool) {
			m := record.Get("message")
			return m, m.IsObject()
		},
	},
	{
		name: "direct",
		resolve: func(record gjson.Result) (gjson.Result, bool) {
			return record, !record.Get("message").Exists()
		},
	},
}

func resolveShape(record gjson.Result) (gjson.Result, bool) {
	for _, shape := range recordShapes {
		if fields, ok := shape.resolve(record); ok {
			return fields, true
		}
	}
	return gjson.Result{}, false
}

// normalize turns one raw line into a Message.
func normalize(line string, opts ExtractOptions) (Message, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !gjson.Valid(line) {
		return Message{}, false
	}
	record := gjson.Parse(line)
	if !record.IsObject() {
		return Message{}, false
	}

	fields, ok := resolveShape(record)
	if !ok {
		return Message{}, false
	}

	role := fields.Get("role").String()
	if role == "" {
		role = RoleUnknown
	}
	if role == RoleToolResult || role == RoleToolCall {
		return Message{}, false
	}

	content := contentText(fields.Get("content"))
	if utf8.RuneCountInString(content) <= opts.MinContentLength {
		return Message{}, false
	}

	return Message{
		Role:      role,
		Content:   truncateRunes(content, opts.MaxContentLength),
		Timestamp: timestampOf(record, fields),
	}, true
}

// contentText flattens the content field. Lists keep only their text parts.
func contentText(c gjson.Result) string {
	switch {
	case !c.Exists():
		return ""
	case c.Type == gjson.String:
		return c.Str
	case c.IsArray():
		var parts []string
		for _, part := range c.Array() {
			if !part.IsObject() {
				continue
			}
			if text := part.Get("text"); text.Exists() {
				parts = append(parts, text.String())
			}
		}
		return strings.Join(parts, " ")
	case c.Type == gjson.Null, c.Type == gjson.False:
		return ""
	case c.Type == gjson.Number && c.Num == 0:
		return ""
	case c.IsObject() && len(c.Map()) == 0:
		return ""
	default:
		return c.Raw
	}
}

// timestampOf prefers the record-level timestamp over the nested one.
func timestampOf(record, fields gjson.Result) string {
	if ts := record.Get("timestamp"); ts.Exists() {
		return ts.String()
	}
	return fields.Get("timestamp").String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
