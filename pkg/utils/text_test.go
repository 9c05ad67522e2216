package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateBytes(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"short text unchanged", "ok", 10, "ok"},
		{"exact length unchanged", "abcde", 5, "abcde"},
		{"ascii cut", "abcdefgh", 3, "abc..."},
		{"cut inside rune backs up", "aé", 2, "a..."},
		{"cut on rune start", "éa", 2, "é..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateBytes(tt.text, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateToTokenLimitKeepsValidUTF8(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)
	text := strings.Repeat("falhou: esperado é 3, obtido ç 4 ü ", 300)
	for _, limit := range []int{7, 13, 50, 101} {
		got := counter.TruncateToTokenLimit(text, limit)
		assert.True(t, utf8.ValidString(got), "limit %d", limit)
		assert.True(t, strings.HasPrefix(got, "..."))
	}
}
