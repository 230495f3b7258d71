// Package llm provides the completion clients used to classify transcripts.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ventia/console-gateway/pkg/metrics"
)

// ErrEmptyCompletion is returned when a provider answers without text.
var ErrEmptyCompletion = errors.New("provider returned no completion")

// CompletionRequest is a provider-neutral chat completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage is one turn of a chat.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles understood by every provider. Providers without a system role fold
// system messages into the first user message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionResponse is a provider-neutral completion.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is implemented by every provider.
type Client interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Name() string
}

// Provider names an LLM vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// defaultMaxTokens bounds answers when the caller sets no limit. Classifier
// answers are a single word.
const defaultMaxTokens = 16

// NewClient creates a client for provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

// settings resolves the model and token limit of req.
func settings(req *CompletionRequest, defaultModel string) (string, int) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return model, maxTokens
}

// observe records the outcome of one provider call.
func observe(provider Provider, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordBackendCall("llm_"+string(provider), status, time.Since(start).Seconds())
}
