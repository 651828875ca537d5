package digest

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const digestTitle = "# SESSION DIGEST (All Channels)\n\n"

// Format renders d for analysis. Each message is cut to MaxDisplayLength, then the
// whole text is cut to MaxDigestLength. The final cut may land mid-entry, so later
// bundles are the ones that lose content.
func Format(d Digest, opts Options) string {
	var sb strings.Builder
	sb.WriteString(digestTitle)

	for _, b := range d {
		fmt.Fprintf(&sb, "## Channel: %s\n", b.Channel)
		fmt.Fprintf(&sb, "Last Updated: %s\n\n", b.Modified)

		for _, m := range b.Messages {
			fmt.Fprintf(&sb, "**%s**: %s\n\n", strings.ToUpper(m.Role), truncate(m.Content, opts.MaxDisplayLength))
		}

		sb.WriteString("---\n\n")
	}

	return truncate(sb.String(), opts.MaxDigestLength)
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
