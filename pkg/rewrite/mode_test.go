package rewrite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	got, err := ParseMode(" Shorten ")
	require.NoError(t, err)
	assert.Equal(t, ModeShorten, got)

	_, err = ParseMode("poetic")
	assert.Error(t, err)
}

func TestInstruction(t *testing.T) {
	assert.Equal(t, "Shorten this text significantly while keeping key info.", Instruction(ModeShorten, "ignored"))
	assert.Equal(t, "Make it rhyme", Instruction(ModeCustom, "  Make it rhyme "))
	assert.Equal(t, "Improve this.", Instruction(ModeCustom, "   "))
}
