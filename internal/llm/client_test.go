package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldSystem(t *testing.T) {
	got := foldSystem([]ChatMessage{
		{Role: RoleSystem, Content: "classify"},
		{Role: RoleUser, Content: "customer: hola"},
		{Role: RoleAssistant, Content: "warm"},
	})
	assert.Equal(t, []ChatMessage{
		{Role: RoleUser, Content: "classify\n\ncustomer: hola"},
		{Role: RoleAssistant, Content: "warm"},
	}, got)

	got = foldSystem([]ChatMessage{{Role: RoleSystem, Content: "only"}})
	assert.Equal(t, []ChatMessage{{Role: RoleUser, Content: "only"}}, got)
}

func TestSettings(t *testing.T) {
	model, maxTokens := settings(&CompletionRequest{}, "default")
	assert.Equal(t, "default", model)
	assert.Equal(t, defaultMaxTokens, maxTokens)

	model, maxTokens = settings(&CompletionRequest{Model: "m", MaxTokens: 8}, "default")
	assert.Equal(t, "m", model)
	assert.Equal(t, 8, maxTokens)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("mistral", "key")
	assert.Error(t, err)

	_, err = NewClient(ProviderOpenAI, "")
	assert.Error(t, err)

	c, err := NewClient(ProviderAnthropic, "key")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())
}
