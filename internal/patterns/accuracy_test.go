package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccuracyScore(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		want     int
	}{
		{"full overlap caps at 100", "launch product increase revenue", "increase revenue launch product", 100},
		{"empty expected", "", "anything", NeutralScore},
		{"empty actual", "anything", "", NeutralScore},
		{"punctuation only", "!!!", "words here", NeutralScore},
		{"no overlap", "double revenue", "lost customers", 0},
		{"half overlap", "grow revenue fast now", "revenue grew fast", 75},
		{"two thirds reaches cap", "ship faster code", "ship faster", 100},
		{"one third", "ship faster code", "ship", 50},
		{"case and punctuation ignored", "Revenue, GROWTH!", "revenue growth", 100},
		{"repeated words counted once", "sales sales sales more", "sales", 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AccuracyScore(tt.expected, tt.actual))
		})
	}
}

func TestWordSet(t *testing.T) {
	got := WordSet("Hire a VA, hire_fast; café 2x")
	assert.Len(t, got, 6)
	for _, w := range []string{"hire", "a", "va", "hire_fast", "café", "2x"} {
		_, ok := got[w]
		assert.True(t, ok, w)
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-5))
	assert.Equal(t, 42, ClampScore(42))
	assert.Equal(t, 100, ClampScore(180))
}
