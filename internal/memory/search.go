package memory

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	maxFTSTokens       = 16
	defaultSearchLimit = 10
)

// Hit is one daily log matching a search.
type Hit struct {
	Date    string  `json:"date" yaml:"date"`
	Snippet string  `json:"snippet" yaml:"snippet"`
	Score   float64 `json:"score" yaml:"score"`
}

// Search finds daily logs containing any of the words in query, best match first.
func (e *Engine) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	match := buildFTSMatchQuery(strings.Fields(query))
	if match == "" {
		return nil, nil
	}

	rows, err := e.db.Query(`
		SELECT d.log_date,
		       snippet(daily_logs_fts, 0, '[', ']', '...', 16),
		       bm25(daily_logs_fts)
		FROM daily_logs_fts
		JOIN daily_logs d ON d.id = daily_logs_fts.rowid
		WHERE daily_logs_fts MATCH ?
		ORDER BY bm25(daily_logs_fts), d.log_date DESC
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search fts: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Date, &h.Snippet, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

func buildFTSMatchQuery(tokens []string) string {
	safe := sanitizeFTSTokens(tokens)
	if len(safe) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(safe))
	for _, token := range safe {
		quoted = append(quoted, `"`+token+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func sanitizeFTSTokens(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	reserved := map[string]struct{}{
		"and":  {},
		"or":   {},
		"not":  {},
		"near": {},
	}

	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		for _, part := range strings.Fields(normalizeFTSToken(token)) {
			if _, blocked := reserved[part]; blocked {
				continue
			}
			if _, exists := seen[part]; exists {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}

	if len(out) > maxFTSTokens {
		out = out[:maxFTSTokens]
	}
	return out
}

// normalizeFTSToken lowercases letters and digits and turns everything else into spaces.
func normalizeFTSToken(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteByte(' ')
	}
	return b.String()
}
