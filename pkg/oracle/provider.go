package oracle

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider is an interface for planning model providers
type Provider interface {
	// Call makes a planning API call
	Call(ctx context.Context, request Request) (*Response, error)

	// Provider returns the provider name
	Provider() string
}

// Request contains the request parameters for a planning call
type Request struct {
	Model     string
	Task      string
	Tools     []ToolSpec
	MaxTokens int
}

// ToolSpec describes one capability offered to the model
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Response contains the decoded provider answer
type Response struct {
	Content string
	Calls   []Call
	Usage   *TokenUsage
}

// Call is one capability selection made by the model. RawArgs carries the
// arguments exactly as the model produced them; validation happens later.
type Call struct {
	Name    string
	RawArgs json.RawMessage
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Credentials holds what a provider needs to authenticate
type Credentials struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// ProviderFactory creates planning providers
type ProviderFactory struct{}

// NewProvider creates a new provider from credentials
func (f *ProviderFactory) NewProvider(creds Credentials) (Provider, error) {
	switch creds.Provider {
	case "anthropic":
		return NewAnthropicProvider(creds.APIKey, creds.BaseURL), nil
	case "openai":
		return NewOpenAIProvider(creds.APIKey, creds.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", creds.Provider)
	}
}
