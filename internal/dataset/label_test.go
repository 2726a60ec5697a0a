package dataset

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel_Valid(t *testing.T) {
	label, err := ParseLabel("2 0.5 0.5 0.2 0.3")
	require.NoError(t, err)
	assert.Equal(t, 2, label.ClassID)
	assert.Equal(t, [4]float32{0.5, 0.5, 0.2, 0.3}, label.Box)
}

func TestParseLabel_ToleratesWhitespaceAndExtraTokens(t *testing.T) {
	label, err := ParseLabel("  0\t0.1   0.2 0.3 0.4 extra\n")
	require.NoError(t, err)
	assert.Equal(t, 0, label.ClassID)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 0.4}, label.Box)
}

func TestParseLabel_Invalid(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few tokens", "2 0.5 0.5"},
		{"empty", ""},
		{"float class", "2.0 0.5 0.5 0.2 0.3"},
		{"word class", "cat 0.5 0.5 0.2 0.3"},
		{"bad box", "1 0.5 x 0.2 0.3"},
		{"nan box", "1 0.5 NaN 0.2 0.3"},
		{"inf box", "1 0.5 0.5 +Inf 0.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLabel(tt.line)
			require.ErrorIs(t, err, ErrParse)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.line, perr.Line)
			assert.NotEmpty(t, perr.Reason)
		})
	}
}

func TestParseLabel_DoesNotCheckRange(t *testing.T) {
	label, err := ParseLabel("17 1.5 -0.2 0 2")
	require.NoError(t, err)
	assert.Equal(t, 17, label.ClassID)
}

func TestLabel_StringRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 200; i++ {
		want := Label{ClassID: rng.Intn(80)}
		for j := range want.Box {
			want.Box[j] = rng.Float32()
		}
		got, err := ParseLabel(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReadLabelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 0.1 0.2 0.3 0.4\n0 0.9 0.9 0.9 0.9\n"), 0o600))

	label, err := ReadLabelFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, label.ClassID)

	_, err = ReadLabelFile(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, ErrNotFound)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = ReadLabelFile(empty)
	assert.ErrorIs(t, err, ErrParse)
}
