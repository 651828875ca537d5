package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func runWithInput(t *testing.T, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	err := runPatch(cmd, nil)
	return out.String(), err
}

func TestRunPatch_Default(t *testing.T) {
	out, err := runWithInput(t, `{"agents":{"defaults":{"model":"x"}}}`)
	if err != nil {
		t.Fatalf("runPatch error: %v", err)
	}
	want := "{\n  \"agents\": {\n    \"defaults\": {\n      \"model\": \"x\",\n      \"sandbox\": {\n        \"workspaceAccess\": \"rw\"\n      }\n    }\n  }\n}"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRunPatch_CustomField(t *testing.T) {
	oldPath, oldValue := pathFlag, valueFlag
	t.Cleanup(func() { pathFlag, valueFlag = oldPath, oldValue })
	pathFlag, valueFlag = "agents.defaults.sandbox.workspaceAccess", "ro"

	out, err := runWithInput(t, `{}`)
	if err != nil {
		t.Fatalf("runPatch error: %v", err)
	}
	if !strings.Contains(out, `"workspaceAccess": "ro"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRunPatch_InvalidInput(t *testing.T) {
	out, err := runWithInput(t, `{"agents":`)
	if err == nil {
		t.Fatal("expected error for malformed input")
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestFlagsRegistered(t *testing.T) {
	for _, name := range []string{"path", "value"} {
		if rootCmd.Flags().Lookup(name) == nil {
			t.Errorf("flag %q not registered", name)
		}
	}
}
