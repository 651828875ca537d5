package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// ErrMalformedIndex is returned when sessions.json is not a JSON object.
var ErrMalformedIndex = errors.New("malformed session index")

// SessionIndex maps a session id to the channel key it belongs to.
type SessionIndex map[string]string

// ChannelKey returns the channel key for id, or "unknown".
func (idx SessionIndex) ChannelKey(id string) string {
	if key, ok := idx[id]; ok {
		return key
	}
	return RoleUnknown
}

// LoadIndex reads the sessions.json metadata file and inverts it into a SessionIndex.
// A missing file is an empty index. When two keys claim the same session id the
// later one in the file wins.
func LoadIndex(path string) (SessionIndex, error) {
	idx := SessionIndex{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("read session index: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse session index %s: %w", path, ErrMalformedIndex)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("parse session index %s: top level is %s: %w", path, root.Type, ErrMalformedIndex)
	}

	root.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		id := value.Get("sessionId")
		if id.Type != gjson.String || id.Str == "" {
			return true
		}
		idx[id.Str] = key.String()
		return true
	})
	return idx, nil
}
