// Package patch rewrites single fields of JSON configuration documents.
package patch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	WorkspaceAccessPath = "agents.defaults.sandbox.workspaceAccess"
	WorkspaceAccessRW   = "rw"
)

var ErrInvalidConfig = errors.New("invalid config")

// Set returns doc with path set to value, re-indented with two spaces. Key order
// and every other field are preserved. Missing intermediate objects are created;
// an intermediate that exists but is not an object is an error.
func Set(doc []byte, path string, value any) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidConfig)
	}
	if root := gjson.ParseBytes(doc); !root.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidConfig)
	}

	keys := strings.Split(path, ".")
	for i := 1; i < len(keys); i++ {
		parent := strings.Join(keys[:i], ".")
		if r := gjson.GetBytes(doc, parent); r.Exists() && !r.IsObject() {
			return nil, fmt.Errorf("%w: %s is not an object", ErrInvalidConfig, parent)
		}
	}

	out, err := sjson.SetBytes(doc, path, value)
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(out), "", "  "); err != nil {
		return nil, fmt.Errorf("indent config: %w", err)
	}
	return buf.Bytes(), nil
}

// WorkspaceAccess reads a config from r, grants the sandbox read-write workspace
// access and writes the result to w.
func WorkspaceAccess(r io.Reader, w io.Writer) error {
	return Apply(r, w, WorkspaceAccessPath, WorkspaceAccessRW)
}

// Apply reads a config from r, sets path to value and writes the result to w.
// Nothing is written when the input is rejected.
func Apply(r io.Reader, w io.Writer, path string, value any) error {
	doc, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	out, err := Set(doc, path, value)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
