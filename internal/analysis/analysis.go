// Package analysis sends the knowledge-extraction prompt to a language model.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/api"
	"github.com/cexll/agentsdk-go/pkg/model"

	"github.com/stellarlinkco/librarian/internal/config"
)

const (
	sessionID    = "librarian"
	systemPrompt = "You are a careful librarian. You read conversation digests and extract only durable, " +
		"actionable knowledge. Answer with exactly what the instructions ask for and nothing else."
)

var ErrEmptyResponse = errors.New("empty model response")

// Analyzer turns a prompt into distilled text.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// Runtime interface for agent runtime (allows mocking in tests)
type Runtime interface {
	Run(ctx context.Context, req api.Request) (*api.Response, error)
	Close()
}

type runtimeWrapper struct {
	rt *api.Runtime
}

func (r *runtimeWrapper) Run(ctx context.Context, req api.Request) (*api.Response, error) {
	return r.rt.Run(ctx, req)
}

func (r *runtimeWrapper) Close() {
	r.rt.Close()
}

// RuntimeFactory creates a Runtime instance
type RuntimeFactory func(ctx context.Context, cfg *config.Config) (Runtime, error)

// DefaultRuntimeFactory creates an agentsdk-go runtime for the configured provider.
func DefaultRuntimeFactory(ctx context.Context, cfg *config.Config) (Runtime, error) {
	p := cfg.Analysis.Provider
	if p.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Set analysis.provider.apiKey or LIBRARIAN_API_KEY / ANTHROPIC_API_KEY")
	}

	var provider api.ModelFactory
	switch p.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    p.APIKey,
			BaseURL:   p.BaseURL,
			ModelName: cfg.Analysis.Model,
			MaxTokens: cfg.Analysis.MaxTokens,
		}
	default:
		provider = &model.AnthropicProvider{
			APIKey:    p.APIKey,
			BaseURL:   p.BaseURL,
			ModelName: cfg.Analysis.Model,
			MaxTokens: cfg.Analysis.MaxTokens,
		}
	}

	rt, err := api.New(ctx, api.Options{
		ProjectRoot:   cfg.Agent.Workspace,
		ModelFactory:  provider,
		SystemPrompt:  systemPrompt,
		MaxIterations: config.DefaultMaxToolIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return &runtimeWrapper{rt: rt}, nil
}

// AgentAnalyzer runs each prompt through a fresh agent runtime.
type AgentAnalyzer struct {
	cfg     *config.Config
	factory RuntimeFactory
}

// New returns nil when analysis is disabled. A nil factory means DefaultRuntimeFactory.
func New(cfg *config.Config, factory RuntimeFactory) *AgentAnalyzer {
	if !cfg.Analysis.Enabled {
		return nil
	}
	if factory == nil {
		factory = DefaultRuntimeFactory
	}
	return &AgentAnalyzer{cfg: cfg, factory: factory}
}

func (a *AgentAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	rt, err := a.factory(ctx, a.cfg)
	if err != nil {
		return "", err
	}
	defer rt.Close()

	log.Printf("[analysis] sending prompt (%d chars) to %s", len(prompt), a.cfg.Analysis.Model)
	resp, err := rt.Run(ctx, api.Request{
		Prompt:    prompt,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("agent error: %w", err)
	}
	if resp == nil || resp.Result == nil {
		return "", ErrEmptyResponse
	}

	out := strings.TrimSpace(resp.Result.Output)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
