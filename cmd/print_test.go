package cmd

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClip(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		assert.Equal(t, "Brute Force", clip("Brute Force", 48))
	})

	t.Run("long strings are shortened with an ellipsis", func(t *testing.T) {
		got := clip("OS Credential Dumping", 10)
		assert.Equal(t, "OS Creden…", got)
		assert.Equal(t, 10, utf8.RuneCountInString(got))
	})

	t.Run("multi-byte runes are never split", func(t *testing.T) {
		got := clip("Técnica de volcado de credenciales vía LSASS", 12)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, 12, utf8.RuneCountInString(got))
	})

	t.Run("cut point inside a multi-byte rune stays valid", func(t *testing.T) {
		// Each rune is three bytes; a byte-based slice at 4 would split one.
		got := clip("日本語のテスト", 4)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, "日本語…", got)
	})
}
