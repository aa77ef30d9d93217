package chat

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPrepareContent(t *testing.T) {
	t.Run("trims surrounding whitespace", func(t *testing.T) {
		content, ok := PrepareContent("  hello there \n")
		assert.True(t, ok)
		assert.Equal(t, "hello there", content)
	})

	t.Run("discards empty input", func(t *testing.T) {
		_, ok := PrepareContent("")
		assert.False(t, ok)
	})

	t.Run("discards whitespace-only input", func(t *testing.T) {
		_, ok := PrepareContent("   \t\n  ")
		assert.False(t, ok)
	})

	t.Run("truncates overlong input to the cap", func(t *testing.T) {
		content, ok := PrepareContent(strings.Repeat("a", 600))
		assert.True(t, ok)
		assert.Len(t, content, MaxContentLen)
	})

	t.Run("keeps content at exactly the cap", func(t *testing.T) {
		content, ok := PrepareContent(strings.Repeat("b", MaxContentLen))
		assert.True(t, ok)
		assert.Len(t, content, MaxContentLen)
	})

	t.Run("truncates by rune, not byte", func(t *testing.T) {
		content, ok := PrepareContent(strings.Repeat("é", 600))
		assert.True(t, ok)
		assert.Equal(t, MaxContentLen, utf8.RuneCountInString(content))
		assert.True(t, utf8.ValidString(content))
	})
}
