package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/ironclaw/internal/observability"
)

// Config holds adapter configuration
type Config struct {
	Provider  Provider
	Logger    zerolog.Logger
	Model     string
	MaxTokens int
}

// Adapter asks a planning provider to select at most one capability for a
// task. It never executes anything itself.
type Adapter struct {
	provider  Provider
	logger    zerolog.Logger
	model     string
	maxTokens int
}

// New creates a new oracle adapter
func New(cfg Config) (*Adapter, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &Adapter{
		provider:  cfg.Provider,
		logger:    cfg.Logger.With().Str("component", "oracle").Logger(),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Proposal is a single capability selection with its raw arguments.
type Proposal struct {
	Name    string
	RawArgs json.RawMessage
	Dropped int // selections discarded after the first
}

// Propose offers the capability menu to the provider and returns its
// selection, or nil when the provider answers in prose without selecting.
// When the provider proposes several selections only the first is kept.
func (a *Adapter) Propose(ctx context.Context, task string, tools []ToolSpec) (*Proposal, error) {
	request := Request{
		Model:     a.model,
		Task:      task,
		Tools:     tools,
		MaxTokens: a.maxTokens,
	}

	start := time.Now()
	response, err := a.provider.Call(ctx, request)
	observability.RecordOracleCall(a.provider.Provider(), time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	if len(response.Calls) == 0 {
		a.logger.Debug().
			Str("content", response.Content).
			Msg("Oracle selected no capability")
		return nil, nil
	}

	first := response.Calls[0]
	dropped := len(response.Calls) - 1
	if dropped > 0 {
		observability.AddDroppedProposals(dropped)
		a.logger.Warn().
			Int("dropped", dropped).
			Str("selected", first.Name).
			Msg("Oracle proposed multiple selections, keeping the first")
	}

	a.logger.Info().
		Str("capability", first.Name).
		Msg("Oracle selected a capability")

	return &Proposal{
		Name:    first.Name,
		RawArgs: first.RawArgs,
		Dropped: dropped,
	}, nil
}

// Ping makes a minimal call to verify the provider is reachable
func (a *Adapter) Ping(ctx context.Context) (string, error) {
	response, err := a.provider.Call(ctx, Request{
		Model:     a.model,
		Task:      "Hello! Reply with 'System Online'.",
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}
