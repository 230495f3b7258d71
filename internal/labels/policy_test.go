package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy(t *testing.T) {
	p := NewPolicy([]string{" Bot ", "human", ""})

	assert.True(t, p.IsReserved("bot"))
	assert.True(t, p.IsReserved("BOT"))
	assert.True(t, p.IsReserved(" Human\n"))
	assert.False(t, p.IsReserved("bot-off"))
	assert.False(t, p.IsReserved(""))

	assert.NoError(t, p.CheckTitle("robot"))
	assert.ErrorIs(t, p.CheckTitle("Bot"), ErrReservedTitle)
	assert.ErrorIs(t, p.CheckTitle(""), ErrEmptyTitle)
}

func TestNormalizeColor(t *testing.T) {
	c, err := NormalizeColor("")
	require.NoError(t, err)
	assert.Equal(t, Palette[0], c)

	c, err = NormalizeColor(" #ABCDEF ")
	require.NoError(t, err)
	assert.Equal(t, "#abcdef", c)

	for _, bad := range []string{"abcdef", "#abcde", "#abcdeg", "#abcdef0"} {
		_, err := NormalizeColor(bad)
		assert.ErrorIs(t, err, ErrInvalidColor, bad)
	}
}

func TestPaletteIsValid(t *testing.T) {
	for _, c := range Palette {
		got, err := NormalizeColor(c)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}
