package codec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchMissingFileYieldsEmpty(t *testing.T) {
	text, err := Fetch(filepath.Join(t.TempDir(), "missing.txt"), "")
	require.NoError(t, err)
	require.Equal(t, "", text)
}

func TestSaveFetchRoundTripPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entity.txt")
	require.NoError(t, Save(path, "posts;konnect;Posts;desc", ""))

	text, err := Fetch(path, "")
	require.NoError(t, err)
	require.Equal(t, "posts;konnect;Posts;desc", text)
}

func TestSaveFetchRoundTripEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entity.txt")
	key := "a-sufficiently-random-test-key!"
	require.NoError(t, Save(path, "secret content\nwith a newline", key))

	text, err := Fetch(path, key)
	require.NoError(t, err)
	require.Equal(t, "secret content\nwith a newline", text)

	raw, err := Fetch(path, "")
	require.NoError(t, err)
	require.NotEqual(t, "secret content\nwith a newline", raw)
}

func TestEscapeNewline(t *testing.T) {
	require.Equal(t, "a_newline_b", EscapeNewline("a\nb"))
	require.Equal(t, "a\nb", UnescapeNewline("a_newline_b"))
}

func TestEscapeRecordSeparator(t *testing.T) {
	require.Equal(t, "a---b", EscapeRecordSeparator("a----------b"))
	require.Equal(t, "a----------b", UnescapeRecordSeparator("a---b"))
}
