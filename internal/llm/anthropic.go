package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-20241022"

// AnthropicClient completes through the Anthropic messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}

// Complete runs one message completion. System prompts are folded into the
// first user turn.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (resp *CompletionResponse, err error) {
	start := time.Now()
	defer func() { observe(ProviderAnthropic, start, err) }()

	model, maxTokens := settings(req, defaultAnthropicModel)
	turns := foldSystem(req.Messages)
	params := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		params = append(params, anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(m.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(m.Content),
				},
			}),
		})
	}

	out, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.F(model),
		MaxTokens:   anthropic.F(int64(maxTokens)),
		Messages:    anthropic.F(params),
		Temperature: anthropic.F(req.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, ErrEmptyCompletion
	}

	return &CompletionResponse{
		Content:    text.String(),
		Model:      out.Model,
		TokensIn:   int(out.Usage.InputTokens),
		TokensOut:  int(out.Usage.OutputTokens),
		StopReason: string(out.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// foldSystem merges system messages into the first user message.
func foldSystem(in []ChatMessage) []ChatMessage {
	var system []string
	out := make([]ChatMessage, 0, len(in))
	for _, m := range in {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		out = append(out, m)
	}
	if len(system) == 0 {
		return out
	}
	prefix := strings.Join(system, "\n\n")
	for i := range out {
		if out[i].Role == RoleUser {
			out[i].Content = prefix + "\n\n" + out[i].Content
			return out
		}
	}
	return append([]ChatMessage{{Role: RoleUser, Content: prefix}}, out...)
}
