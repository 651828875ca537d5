package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const latestSchemaVersion = 1

// Engine is a sqlite full-text index over the daily log files.
type Engine struct {
	db *sql.DB
	mu sync.Mutex
}

func NewEngine(dbPath string) (*Engine, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	e := &Engine{db: db}
	if err := e.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := e.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := e.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

func (e *Engine) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			log_date TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			indexed_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS daily_logs_fts USING fts5(
			content,
			content='daily_logs',
			content_rowid='id',
			tokenize='unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS daily_logs_ai AFTER INSERT ON daily_logs BEGIN
			INSERT INTO daily_logs_fts(rowid, content) VALUES (new.id, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS daily_logs_ad AFTER DELETE ON daily_logs BEGIN
			INSERT INTO daily_logs_fts(daily_logs_fts, rowid, content) VALUES('delete', old.id, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS daily_logs_au AFTER UPDATE ON daily_logs BEGIN
			INSERT INTO daily_logs_fts(daily_logs_fts, rowid, content) VALUES('delete', old.id, old.content);
			INSERT INTO daily_logs_fts(rowid, content) VALUES (new.id, new.content);
		END`,
		fmt.Sprintf(`PRAGMA user_version = %d`, latestSchemaVersion),
	}

	for _, stmt := range stmts {
		if _, err := e.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// UpsertDay stores the content of one day's log. It reports whether anything changed.
func (e *Engine) UpsertDay(date, content string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.db.Exec(`
		INSERT INTO daily_logs (log_date, content) VALUES (?, ?)
		ON CONFLICT(log_date) DO UPDATE SET
			content = excluded.content,
			indexed_at = datetime('now')
		WHERE daily_logs.content != excluded.content
	`, date, content)
	if err != nil {
		return false, fmt.Errorf("upsert daily log %s: %w", date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert daily log %s: %w", date, err)
	}
	return n > 0, nil
}

// DeleteDaysExcept removes indexed days that are not in keep.
func (e *Engine) DeleteDaysExcept(keep []string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	query := `DELETE FROM daily_logs`
	args := make([]any, 0, len(keep))
	if len(keep) > 0 {
		query += ` WHERE log_date NOT IN (` + placeholders(len(keep)) + `)`
		for _, d := range keep {
			args = append(args, d)
		}
	}
	res, err := e.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune daily logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune daily logs: %w", err)
	}
	return int(n), nil
}

// Days lists the indexed dates, newest first.
func (e *Engine) Days() ([]string, error) {
	rows, err := e.db.Query(`SELECT log_date FROM daily_logs ORDER BY log_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate days: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
