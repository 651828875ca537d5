package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultOwner             = "the owner"
	DefaultSessionPattern    = "*.jsonl"
	DefaultIndexFile         = "sessions.json"
	DefaultMaxSessions       = 5
	DefaultMaxMessages       = 50
	DefaultMaxLines          = 100
	DefaultMinContentLength  = 10
	DefaultMaxContentLength  = 2000
	DefaultMaxDisplayLength  = 500
	DefaultMaxDigestLength   = 15000
	DefaultModel             = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens         = 4096
	DefaultMaxToolIterations = 1
	DefaultSchedule          = "0 0 * * * *"
	DefaultPromptFileName    = "librarian_prompt.txt"

	ReindexModeCommand = "command"
	ReindexModeBuiltin = "builtin"
	ReindexModeNone    = "none"
)

// DefaultReindexCommand is run after every distillation unless reindex.mode says otherwise.
var DefaultReindexCommand = []string{"openclaw", "memory", "index"}

type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Sessions SessionsConfig `json:"sessions"`
	Digest   DigestConfig   `json:"digest"`
	Memory   MemoryConfig   `json:"memory"`
	Reindex  ReindexConfig  `json:"reindex"`
	Analysis AnalysisConfig `json:"analysis"`
	Notify   NotifyConfig   `json:"notify"`
	Schedule ScheduleConfig `json:"schedule"`
}

type AgentConfig struct {
	Workspace  string   `json:"workspace"`
	Owner      string   `json:"owner"`
	KnownFacts []string `json:"knownFacts,omitempty"`
}

type SessionsConfig struct {
	Dir       string `json:"dir"`
	Pattern   string `json:"pattern,omitempty"`
	IndexFile string `json:"indexFile,omitempty"`
}

// DigestConfig holds every per-run bound of the pipeline.
type DigestConfig struct {
	MaxSessions      int `json:"maxSessions"`
	MaxMessages      int `json:"maxMessages"`
	MaxLines         int `json:"maxLines"`
	MinContentLength int `json:"minContentLength"`
	MaxContentLength int `json:"maxContentLength"`
	MaxDisplayLength int `json:"maxDisplayLength"`
	MaxDigestLength  int `json:"maxDigestLength"`
}

type MemoryConfig struct {
	DailyDir string `json:"dailyDir,omitempty"`
	DBPath   string `json:"dbPath,omitempty"`
}

type ReindexConfig struct {
	Mode    string   `json:"mode"`
	Command []string `json:"command,omitempty"`
}

type AnalysisConfig struct {
	Enabled    bool           `json:"enabled"`
	Provider   ProviderConfig `json:"provider"`
	Model      string         `json:"model"`
	MaxTokens  int            `json:"maxTokens"`
	PromptFile string         `json:"promptFile,omitempty"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chatId"`
	Proxy   string `json:"proxy,omitempty"`
}

type ScheduleConfig struct {
	Expr      string `json:"expr"`
	StatePath string `json:"statePath,omitempty"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Agent: AgentConfig{
			Workspace: filepath.Join(home, "openclaw-workspace"),
			Owner:     DefaultOwner,
		},
		Sessions: SessionsConfig{
			Dir:       filepath.Join(home, ".openclaw", "agents", "main", "sessions"),
			Pattern:   DefaultSessionPattern,
			IndexFile: DefaultIndexFile,
		},
		Digest: DefaultDigestConfig(),
		Reindex: ReindexConfig{
			Mode:    ReindexModeCommand,
			Command: append([]string(nil), DefaultReindexCommand...),
		},
		Analysis: AnalysisConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Schedule: ScheduleConfig{
			Expr: DefaultSchedule,
		},
	}
}

func DefaultDigestConfig() DigestConfig {
	return DigestConfig{
		MaxSessions:      DefaultMaxSessions,
		MaxMessages:      DefaultMaxMessages,
		MaxLines:         DefaultMaxLines,
		MinContentLength: DefaultMinContentLength,
		MaxContentLength: DefaultMaxContentLength,
		MaxDisplayLength: DefaultMaxDisplayLength,
		MaxDigestLength:  DefaultMaxDigestLength,
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".librarian")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DailyDir is where the per-date knowledge logs live.
func (c *Config) DailyDir() string {
	if c.Memory.DailyDir != "" {
		return c.Memory.DailyDir
	}
	return filepath.Join(c.Agent.Workspace, "memory")
}

func (c *Config) DBPath() string {
	if c.Memory.DBPath != "" {
		return c.Memory.DBPath
	}
	return filepath.Join(ConfigDir(), "data", "memory.db")
}

func (c *Config) IndexPath() string {
	return filepath.Join(c.Sessions.Dir, c.Sessions.IndexFile)
}

func (c *Config) PromptFile() string {
	if c.Analysis.PromptFile != "" {
		return c.Analysis.PromptFile
	}
	return filepath.Join(os.TempDir(), DefaultPromptFileName)
}

func (c *Config) StatePath() string {
	if c.Schedule.StatePath != "" {
		return c.Schedule.StatePath
	}
	return filepath.Join(ConfigDir(), "data", "cron", "state.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if ws := os.Getenv("LIBRARIAN_WORKSPACE"); ws != "" {
		cfg.Agent.Workspace = ws
	}
	if dir := os.Getenv("LIBRARIAN_SESSIONS_DIR"); dir != "" {
		cfg.Sessions.Dir = dir
	}
	if key := os.Getenv("LIBRARIAN_API_KEY"); key != "" {
		cfg.Analysis.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Analysis.Provider.APIKey == "" {
		cfg.Analysis.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Analysis.Provider.APIKey == "" {
		cfg.Analysis.Provider.APIKey = key
		if cfg.Analysis.Provider.Type == "" {
			cfg.Analysis.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("LIBRARIAN_BASE_URL"); url != "" {
		cfg.Analysis.Provider.BaseURL = url
	}
	if model := os.Getenv("LIBRARIAN_MODEL"); model != "" {
		cfg.Analysis.Model = model
	}
	if enabled := os.Getenv("LIBRARIAN_ANALYSIS_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Analysis.Enabled = parsed
		}
	}
	if token := os.Getenv("LIBRARIAN_TELEGRAM_TOKEN"); token != "" {
		cfg.Notify.Telegram.Token = token
	}
	if chatID := os.Getenv("LIBRARIAN_TELEGRAM_CHAT_ID"); chatID != "" {
		if parsed, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.Notify.Telegram.ChatID = parsed
		}
	}
	if mode := os.Getenv("LIBRARIAN_REINDEX_MODE"); mode != "" {
		cfg.Reindex.Mode = mode
	}
	if expr := os.Getenv("LIBRARIAN_SCHEDULE"); expr != "" {
		cfg.Schedule.Expr = expr
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	defaults := DefaultConfig()
	if c.Agent.Workspace == "" {
		c.Agent.Workspace = defaults.Agent.Workspace
	}
	if strings.TrimSpace(c.Agent.Owner) == "" {
		c.Agent.Owner = DefaultOwner
	}
	if c.Sessions.Dir == "" {
		c.Sessions.Dir = defaults.Sessions.Dir
	}
	if c.Sessions.Pattern == "" {
		c.Sessions.Pattern = DefaultSessionPattern
	}
	if c.Sessions.IndexFile == "" {
		c.Sessions.IndexFile = DefaultIndexFile
	}

	d := &c.Digest
	if d.MaxSessions <= 0 {
		d.MaxSessions = DefaultMaxSessions
	}
	if d.MaxMessages <= 0 {
		d.MaxMessages = DefaultMaxMessages
	}
	if d.MaxLines <= 0 {
		d.MaxLines = DefaultMaxLines
	}
	if d.MinContentLength < 0 {
		d.MinContentLength = DefaultMinContentLength
	}
	if d.MaxContentLength <= 0 {
		d.MaxContentLength = DefaultMaxContentLength
	}
	if d.MaxDisplayLength <= 0 {
		d.MaxDisplayLength = DefaultMaxDisplayLength
	}
	if d.MaxDigestLength <= 0 {
		d.MaxDigestLength = DefaultMaxDigestLength
	}

	switch strings.ToLower(strings.TrimSpace(c.Reindex.Mode)) {
	case ReindexModeBuiltin:
		c.Reindex.Mode = ReindexModeBuiltin
	case ReindexModeNone:
		c.Reindex.Mode = ReindexModeNone
	default:
		c.Reindex.Mode = ReindexModeCommand
	}
	if c.Reindex.Mode == ReindexModeCommand && len(c.Reindex.Command) == 0 {
		c.Reindex.Command = append([]string(nil), DefaultReindexCommand...)
	}

	if c.Analysis.Model == "" {
		c.Analysis.Model = DefaultModel
	}
	if c.Analysis.MaxTokens <= 0 {
		c.Analysis.MaxTokens = DefaultMaxTokens
	}
	if c.Schedule.Expr == "" {
		c.Schedule.Expr = DefaultSchedule
	}
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
