package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/librarian/internal/config"
	"github.com/stellarlinkco/librarian/internal/librarian"
	"github.com/stellarlinkco/librarian/internal/memory"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the current session digest without writing anything",
	RunE:  runDigest,
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search the indexed daily logs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecall,
}

func runDigest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Read-only: no analyzer or notifier is needed to render the digest.
	lib := librarian.New(cfg, librarian.Options{Reindexer: memory.NopReindexer{}})
	d, formatted := lib.Digest()
	out := cmd.OutOrStdout()

	switch strings.ToLower(digestFormatFlag) {
	case formatText, "":
		if len(d) == 0 {
			fmt.Fprintln(out, warnStyle.Render("No session content found."))
			return nil
		}
		fmt.Fprintln(out, formatted)
		return nil
	case formatJSON:
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal digest: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	case formatYAML:
		return writeYAML(out, d)
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", digestFormatFlag)
	}
}

func runRecall(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	engine, err := memory.NewEngine(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open memory engine: %w", err)
	}
	defer engine.Close()

	if recallIndexFlag {
		if _, err := memory.IndexDailyLogs(cfg.DailyDir(), engine); err != nil {
			return fmt.Errorf("index daily logs: %w", err)
		}
	}

	hits, err := engine.Search(strings.Join(args, " "), recallLimitFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(out, warnStyle.Render("No matches. Use --reindex or reindex.mode=builtin to index daily logs."))
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(out, "%s  %s\n", dateStyle.Render(h.Date), strings.ReplaceAll(h.Snippet, "\n", " "))
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
