package bridge

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ixode.dev/core/internal/constraint"
	"ixode.dev/core/internal/record"
	"ixode.dev/core/internal/schema"
)

func newCatalog(t *testing.T) *constraint.Catalog {
	t.Helper()
	return constraint.New(filepath.Join(t.TempDir(), "constraints.txt"), "")
}

func testCollection(t *testing.T, catalog *constraint.Catalog) schema.Collection {
	t.Helper()
	_, col, err := schema.CreateCollection(nil, catalog, "posts", "konnect", "Posts", "")
	require.NoError(t, err)
	structures, title, err := schema.CreateStructure(nil, catalog, "title", "Title", "", schema.TypeText, "", 1, 100, "", false, true, false, true)
	require.NoError(t, err)
	require.NotEmpty(t, title.ID)
	col.Structures = structures
	return col
}

func TestRawToDataAppliesDefaultWhenAbsent(t *testing.T) {
	catalog := newCatalog(t)
	_, col, err := schema.CreateCollection(nil, catalog, "posts", "konnect", "Posts", "")
	require.NoError(t, err)
	structures, _, err := schema.CreateStructure(nil, catalog, "status", "Status", "", schema.TypeText, "draft", 1, 100, "", false, false, false, false)
	require.NoError(t, err)
	col.Structures = structures

	d, err := RawToData(Tree{}, col, catalog, nil, false, "")
	require.NoError(t, err)
	require.Len(t, d.Pairs, 1)
	require.Equal(t, "draft", d.Pairs[0].Value)
}

func TestRawToDataMissingRequiredFieldFails(t *testing.T) {
	catalog := newCatalog(t)
	col := testCollection(t, catalog)

	_, err := RawToData(Tree{}, col, catalog, nil, false, "")
	require.Error(t, err)
}

func TestRawToDataRejectsDuplicateUniqueValue(t *testing.T) {
	catalog := newCatalog(t)
	col := testCollection(t, catalog)

	tree := Tree{Pairs: []RawPair{{ID: "title", Type: "TEXT", Value: "hello"}}}
	first, err := RawToData(tree, col, catalog, nil, false, "")
	require.NoError(t, err)

	_, err = RawToData(tree, col, catalog, []record.Data{first}, false, "")
	require.Error(t, err)
}

func TestDataToRawRoundTrip(t *testing.T) {
	catalog := newCatalog(t)
	col := testCollection(t, catalog)
	tree := Tree{Pairs: []RawPair{{ID: "title", Type: "TEXT", Value: "hello"}}}

	d, err := RawToData(tree, col, catalog, nil, false, "")
	require.NoError(t, err)

	back := DataToRaw(d, col)
	require.Len(t, back.Pairs, 1)
	require.Equal(t, "hello", back.Pairs[0].Value)
}
