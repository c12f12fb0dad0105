package track

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureValueTruncation(t *testing.T) {
	const limit = 1000

	tests := []struct {
		name      string
		value     any
		truncated bool
	}{
		{name: "just under limit", value: strings.Repeat("x", limit-2), truncated: false}, // 2 bytes of quotes
		{name: "over limit", value: strings.Repeat("x", limit*2), truncated: true},
		{name: "small map", value: map[string]any{"name": "Alice"}, truncated: false},
		{name: "large slice", value: strings.Split(strings.Repeat("word,", 500), ","), truncated: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := captureValue(tc.value, limit)

			if tc.truncated {
				s, ok := got.(string)
				require.True(t, ok, "truncated values are string representations")
				assert.True(t, strings.HasSuffix(s, TruncationMarker))
				assert.LessOrEqual(t, len(s), limit+len(TruncationMarker))
			} else {
				s, isString := got.(string)
				if isString {
					assert.False(t, strings.Contains(s, TruncationMarker))
				}
			}
		})
	}
}

func TestCaptureValueUnserializable(t *testing.T) {
	got := captureValue(func() {}, 1000)
	s, ok := got.(string)
	require.True(t, ok)
	assert.Contains(t, s, "unserializable")
}

func TestCaptureValueSnapshotsDeeply(t *testing.T) {
	original := map[string]any{"users": []any{"alice"}}
	got := captureValue(original, 0)

	original["users"] = []any{"mutated"}

	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"alice"}, m["users"])
}

func TestCaptureValueNil(t *testing.T) {
	assert.Nil(t, captureValue(nil, 1000))
}
