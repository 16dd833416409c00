package schema

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

func TestCreateStructureRoundTrip(t *testing.T) {
	c := newCatalog(t)
	list, s, err := CreateStructure(nil, c, "title", "Title", "the title", TypeText, "", 1, 100, "", false, false, false, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "title", s.ID)

	text := StringifyStructure(s)
	back, err := ParseStructure(text)
	require.NoError(t, err)
	require.Equal(t, s, back)
}

func TestCreateStructureRejectsDuplicateID(t *testing.T) {
	c := newCatalog(t)
	list, _, err := CreateStructure(nil, c, "title", "Title", "", TypeText, "", 0, 100, "", false, false, false, false)
	require.NoError(t, err)

	_, _, err = CreateStructure(list, c, "title", "Title", "", TypeText, "", 0, 100, "", false, false, false, false)
	require.Error(t, err)
}

func TestUpdateMaxRejectsLessThanMin(t *testing.T) {
	c := newCatalog(t)
	list, _, err := CreateStructure(nil, c, "title", "Title", "", TypeText, "", 5, 10, "", false, false, false, false)
	require.NoError(t, err)

	_, err = UpdateStructureMinMax(list, "title", 5, 2)
	require.Error(t, err)
}

func TestUpdateRegexRejectsUncompilable(t *testing.T) {
	c := newCatalog(t)
	list, _, err := CreateStructure(nil, c, "title", "Title", "", TypeText, "", 0, 100, "", false, false, false, false)
	require.NoError(t, err)

	_, err = UpdateStructureRegex(list, "title", "(unterminated")
	require.Error(t, err)
}

func TestCollectionRoundTrip(t *testing.T) {
	c := newCatalog(t)
	list, col, err := CreateCollection(nil, c, "posts", "konnect", "Posts", "blog posts")
	require.NoError(t, err)

	slist, title, err := CreateStructure(nil, c, "title", "Title", "", TypeText, "", 1, 100, "", false, false, false, true)
	require.NoError(t, err)
	require.Len(t, slist, 1)
	list, err = SetStructures(list, col.ID, slist)
	require.NoError(t, err)

	text := StringifyCollections(list)
	back, err := ParseCollections(text)
	require.NoError(t, err)
	require.Len(t, back, 1)
	require.Equal(t, col.ID, back[0].ID)
	require.Equal(t, title.ID, back[0].Structures[0].ID)
}

func TestCollectionIDUniquenessIsGlobalNotProjectScoped(t *testing.T) {
	c := newCatalog(t)
	list, _, err := CreateCollection(nil, c, "posts", "konnect", "Posts", "")
	require.NoError(t, err)

	_, _, err = CreateCollection(list, c, "posts", "other-project", "Posts Again", "")
	require.Error(t, err, "collection ids are globally unique, matching the source's behaviour")
}

func TestGetCollectionCaseInsensitive(t *testing.T) {
	c := newCatalog(t)
	list, _, err := CreateCollection(nil, c, "posts", "konnect", "Posts", "")
	require.NoError(t, err)

	_, ok := GetCollection(list, "POSTS")
	require.True(t, ok)
}

func TestParseTypeUnknownBecomesCustom(t *testing.T) {
	typ := ParseType("weird_name")
	require.Equal(t, TypeCustom, typ.Kind)
	require.Equal(t, "weird_name", typ.Custom)
}
