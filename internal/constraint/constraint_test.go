package constraint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "constraints.txt"), "")
}

func TestValidateIdAccepted(t *testing.T) {
	c := newTestCatalog(t)
	v, err := c.Validate("collection", "id", "posts")
	require.NoError(t, err)
	require.Equal(t, "posts", v)
}

func TestValidateIdLengthBoundaries(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Validate("collection", "id", oneChar())
	require.NoError(t, err)

	_, err = c.Validate("collection", "id", repeat("a", 100))
	require.NoError(t, err)

	_, err = c.Validate("collection", "id", repeat("a", 101))
	require.Error(t, err)
}

func TestValidateUnknownComponentIsNotFound(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Validate("nonexistent", "id", "x")
	require.Error(t, err)
}

func TestValidateIdempotent(t *testing.T) {
	c := newTestCatalog(t)
	first, err := c.Validate("project", "name", "  My Name  ")
	require.NoError(t, err)

	second, err := c.Validate("project", "name", first)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestValidateReplacesDisallowedChars(t *testing.T) {
	c := newTestCatalog(t)
	v, err := c.Validate("collection", "name", "a;b")
	require.NoError(t, err)
	require.Equal(t, "a_b", v)
}

func oneChar() string { return "a" }

func repeat(s string, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s[0])
	}
	return string(out)
}
