package librarian

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/stellarlinkco/librarian/internal/config"
	"github.com/stellarlinkco/librarian/internal/digest"
)

// Sentinel is the exact analyzer answer meaning nothing worth keeping was found.
const Sentinel = "NO_NEW_KNOWLEDGE"

// BuildPrompt composes the knowledge-extraction request for owner around the rendered digest.
func BuildPrompt(owner string, knownFacts []string, formatted string) string {
	if strings.TrimSpace(owner) == "" {
		owner = config.DefaultOwner
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "ACT AS THE LIBRARIAN FOR %s.\n", strings.ToUpper(owner))
	sb.WriteString("You are analyzing conversation snippets from ALL channels (Telegram, Web, etc.).\n\n")

	sb.WriteString("EXTRACT ONLY PERMANENT KNOWLEDGE that should be remembered for 100 years:\n")
	fmt.Fprintf(&sb, "1. Personal facts about %s (preferences, beliefs, goals)\n", owner)
	sb.WriteString("2. Strategic business decisions\n")
	sb.WriteString("3. Ethical rules or operational protocols\n")
	sb.WriteString("4. Technical configurations that were finalized\n")
	sb.WriteString("5. New skills, tools, or integrations that were set up\n\n")

	sb.WriteString("SESSION DIGEST:\n")
	sb.WriteString(formatted)
	sb.WriteString("\n\n")

	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString("- Return a BULLETED LIST of NEW insights with timestamps\n")
	sb.WriteString("- Sort chronologically (oldest first)\n")
	fmt.Fprintf(&sb, "- If nothing permanent was discussed, return exactly: %s\n", Sentinel)
	if facts := nonEmpty(knownFacts); len(facts) > 0 {
		fmt.Fprintf(&sb, "- Do NOT repeat things already known (%s)\n", strings.Join(facts, ", "))
	} else {
		sb.WriteString("- Do NOT repeat things already known\n")
	}
	sb.WriteString("- Focus on ACTIONABLE and MEMORABLE items")
	return sb.String()
}

// Summary is the log entry written when no analyzer output is available.
func Summary(d digest.Digest, formatted string) string {
	return fmt.Sprintf("Librarian scanned %d sessions.\nTotal content size: %d chars.\nChannels: %s",
		len(d), utf8.RuneCountInString(formatted), strings.Join(d.Channels(), ", "))
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
