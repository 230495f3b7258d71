// Package advisor suggests a lead temperature for a conversation by asking an
// LLM to read its transcript. It never writes the suggestion back.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ventia/console-gateway/internal/llm"
	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/pkg/logger"
)

// ErrDisabled is returned when no LLM provider is configured.
var ErrDisabled = errors.New("temperature suggestions are disabled")

// ErrUnclassified is returned when the model answer is not a temperature.
var ErrUnclassified = errors.New("model did not return a temperature")

const maxTranscriptMessages = 40

const instructions = `You qualify sales leads for an online store.
Read the conversation and answer with exactly one word:
cold (no buying intent), warm (interested, undecided) or hot (ready to buy).`

// Suggestion is the advisor's answer.
type Suggestion struct {
	ConversationID int64             `json:"conversation_id"`
	Temperature    model.Temperature `json:"temperature"`
	Provider       string            `json:"provider"`
	Model          string            `json:"model"`
}

// Advisor classifies transcripts.
type Advisor struct {
	client llm.Client
	model  string
	logger *logger.Logger
}

// New creates an advisor. A nil client yields an advisor that always returns
// ErrDisabled.
func New(client llm.Client, modelName string, log *logger.Logger) *Advisor {
	return &Advisor{client: client, model: modelName, logger: log}
}

// Enabled reports whether an LLM provider is configured.
func (a *Advisor) Enabled() bool {
	return a != nil && a.client != nil
}

// Suggest returns the temperature the model assigns to the transcript.
func (a *Advisor) Suggest(ctx context.Context, conv model.Conversation, messages []model.Message) (*Suggestion, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}

	resp, err := a.client.Complete(ctx, &llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: instructions},
			{Role: llm.RoleUser, Content: Transcript(messages)},
		},
		MaxTokens: 8,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to classify conversation %d: %w", conv.ID, err)
	}

	t, ok := ParseAnswer(resp.Content)
	if !ok {
		a.logger.Warn("unexpected classifier answer",
			zap.Int64("conversation_id", conv.ID),
			zap.String("answer", resp.Content),
		)
		return nil, ErrUnclassified
	}

	return &Suggestion{
		ConversationID: conv.ID,
		Temperature:    t,
		Provider:       a.client.Name(),
		Model:          resp.Model,
	}, nil
}

// Transcript renders the last messages as plain text, skipping private notes
// and activity entries.
func Transcript(messages []model.Message) string {
	if len(messages) > maxTranscriptMessages {
		messages = messages[len(messages)-maxTranscriptMessages:]
	}
	var b strings.Builder
	for _, m := range messages {
		if m.Private || m.MessageType == model.MessageTypeActivity {
			continue
		}
		who := "customer"
		if m.MessageType == model.MessageTypeOutgoing || m.MessageType == model.MessageTypeTemplate {
			who = "business"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, strings.TrimSpace(m.Content))
	}
	return b.String()
}

// ParseAnswer extracts a temperature from a free-form model answer.
func ParseAnswer(answer string) (model.Temperature, bool) {
	word := strings.ToLower(strings.Trim(strings.TrimSpace(answer), ".!\"'`"))
	for _, t := range model.Temperatures {
		if word == string(t) || strings.HasPrefix(word, string(t)+" ") {
			return t, true
		}
	}
	return model.TemperatureNone, false
}
