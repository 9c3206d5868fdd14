package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeIn(t *testing.T) {
	aest := time.FixedZone("AEST", 10*3600)

	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{
			name:     "RFC3339 keeps its own offset",
			input:    "2025-10-13T09:30:00+00:00",
			expected: time.Date(2025, 10, 13, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "RFC3339 with nanoseconds",
			input:    "2025-10-13T09:30:00.123Z",
			expected: time.Date(2025, 10, 13, 9, 30, 0, 123000000, time.UTC),
		},
		{
			name:     "device layout uses location",
			input:    "2025-10-13 09:30:00",
			expected: time.Date(2025, 10, 13, 9, 30, 0, 0, aest),
		},
		{
			name:     "minutes only",
			input:    "2025-10-13 09:30",
			expected: time.Date(2025, 10, 13, 9, 30, 0, 0, aest),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeIn(tt.input, aest)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
		})
	}

	_, err := ParseTimeIn("", aest)
	assert.Error(t, err)
	_, err = ParseTimeIn("yesterday", aest)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
}
