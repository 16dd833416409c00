package record

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ixode.dev/core/internal/constraint"
)

func newCatalog(t *testing.T) *constraint.Catalog {
	t.Helper()
	return constraint.New(filepath.Join(t.TempDir(), "constraints.txt"), "")
}

func TestDataPairValueEscapesSectionSign(t *testing.T) {
	c := newCatalog(t)
	p, err := NewDataPair("title", "", "a§b\nc", "TEXT", c)
	require.NoError(t, err)
	require.Equal(t, "a_b_newline_c", p.Value)
}

func TestDataRoundTrip(t *testing.T) {
	c := newCatalog(t)
	p, err := NewDataPair("title", "", "hello world", "TEXT", c)
	require.NoError(t, err)

	d := New("konnect", "posts", true, []DataPair{p})
	text := StringifyData(d)
	back, err := ParseData(text)
	require.NoError(t, err)
	require.Equal(t, d.ID, back.ID)
	require.Equal(t, d.Published, back.Published)
	require.Equal(t, p.Value, back.Pairs[0].Value)
}

func TestStringifyAllUsesDataSeparator(t *testing.T) {
	d1 := New("konnect", "posts", false, nil)
	d2 := New("konnect", "posts", false, nil)

	text := StringifyAll([]Data{d1, d2})
	back, err := ParseAll(text)
	require.NoError(t, err)
	require.Len(t, back, 2)
}

func TestStructureIDRenameCascadesIntoDataPairs(t *testing.T) {
	c := newCatalog(t)
	p, err := NewDataPair("title", "", "hi", "TEXT", c)
	require.NoError(t, err)
	d := New("konnect", "posts", false, []DataPair{p})

	rewritten := BulkUpdateStructureID([]Data{d}, "konnect", "posts", "title", "headline")
	require.Equal(t, "headline", rewritten[0].Pairs[0].StructureID)
}

func TestDeleteByCollectionRemovesMatchingData(t *testing.T) {
	d1 := New("konnect", "posts", false, nil)
	d2 := New("konnect", "comments", false, nil)

	remaining := DeleteByCollection([]Data{d1, d2}, "posts")
	require.Len(t, remaining, 1)
	require.Equal(t, "comments", remaining[0].CollectionID)
}
