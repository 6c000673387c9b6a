package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "single element",
			input:    []string{"US"},
			expected: []string{"US"},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  US  ", "CA  ", "  MX"},
			expected: []string{"US", "CA", "MX"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"US", "CA", "US", "MX", "CA"},
			expected: []string{"US", "CA", "MX"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"US", "", "  ", "CA"},
			expected: []string{"US", "CA"},
		},
		{
			name:     "combined: trim, dedupe, remove empty",
			input:    []string{"  US ", "CA", "US", "", "  ", "CA"},
			expected: []string{"US", "CA"},
		},
		{
			name:     "preserves case",
			input:    []string{"Us", "us", "US"},
			expected: []string{"Us", "us", "US"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrim(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
