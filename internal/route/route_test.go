package route

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ixode.dev/core/internal/constraint"
	"ixode.dev/core/internal/flow"
	"ixode.dev/core/internal/record"
)

func newCatalog(t *testing.T) *constraint.Catalog {
	t.Helper()
	return constraint.New(filepath.Join(t.TempDir(), "constraints.txt"), "")
}

func samplePlan() flow.Program {
	return flow.NewProgram([]flow.Block{
		{GlobalIndex: 0, BlockIndex: 0, Kind: flow.BlockFetch, LocalName: "posts", RefCol: "posts"},
		{
			GlobalIndex: 1, BlockIndex: 0, Kind: flow.BlockFilter,
			LocalName: "published", RefVar: "posts", RefProperty: "published",
			Filters: []flow.Filter{{
				RefProperty: "published", Operator: flow.EqualTo,
				Value: flow.RefData{Data: "true", Rtype: flow.KindString},
			}},
		},
		{
			GlobalIndex: 2, BlockIndex: 0, Kind: flow.BlockProperty,
			LocalName: "RETURN", RefVar: "published", RefProperty: "",
		},
	})
}

func TestCreateRouteRoundTrip(t *testing.T) {
	c := newCatalog(t)
	list, r, err := Create(nil, c, "list-posts", "/posts", "blog", samplePlan())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "list-posts", r.RouteID)

	text := StringifyRoute(r)
	back, err := ParseRoute(text, c, nil)
	require.NoError(t, err)
	require.Equal(t, r.RouteID, back.RouteID)
	require.Equal(t, r.RoutePath, back.RoutePath)
	require.Equal(t, r.ProjectID, back.ProjectID)
	require.Equal(t, len(r.Flow.Blocks), len(back.Flow.Blocks))
	for i := range r.Flow.Blocks {
		require.Equal(t, r.Flow.Blocks[i].Kind, back.Flow.Blocks[i].Kind)
		require.Equal(t, r.Flow.Blocks[i].LocalName, back.Flow.Blocks[i].LocalName)
	}
}

func TestCreateRouteRejectsDuplicateID(t *testing.T) {
	c := newCatalog(t)
	list, _, err := Create(nil, c, "list-posts", "/posts", "blog", samplePlan())
	require.NoError(t, err)

	_, _, err = Create(list, c, "list-posts", "/other", "blog", samplePlan())
	require.Error(t, err)
}

func TestCreateRouteRejectsDuplicatePath(t *testing.T) {
	c := newCatalog(t)
	list, _, err := Create(nil, c, "list-posts", "/posts", "blog", samplePlan())
	require.NoError(t, err)

	_, _, err = Create(list, c, "other-route", "/posts", "blog", samplePlan())
	require.Error(t, err)
}

func TestUpdateRouteIDRejectsDuplicate(t *testing.T) {
	c := newCatalog(t)
	list, _, err := Create(nil, c, "a", "/a", "blog", samplePlan())
	require.NoError(t, err)
	list, _, err = Create(list, c, "b", "/b", "blog", samplePlan())
	require.NoError(t, err)

	_, err = UpdateRouteID(list, "a", "b", c)
	require.Error(t, err)
}

func TestBulkUpdateCollectionIDRewritesAuthJWTAndFetch(t *testing.T) {
	c := newCatalog(t)
	list, r, err := Create(nil, c, "list-posts", "/posts", "blog", samplePlan())
	require.NoError(t, err)

	auth, err := NewAuthJWT(true, "author", "posts", c)
	require.NoError(t, err)
	list, err = UpdateAuthJWT(list, r.RouteID, &auth)
	require.NoError(t, err)

	updated := BulkUpdateCollectionID(list, "posts", "articles")
	got, err := Get(updated, "blog", "list-posts")
	require.NoError(t, err)
	require.Equal(t, "articles", got.AuthJWT.RefCol)
	require.Equal(t, "articles", got.Flow.Blocks[0].RefCol)
}

type fakeHost struct {
	data map[string][]record.Data
	saved map[string][]record.Data
}

func newFakeHost() *fakeHost {
	return &fakeHost{data: map[string][]record.Data{}, saved: map[string][]record.Data{}}
}

func (h *fakeHost) FetchData(collectionID string) ([]record.Data, error) {
	return h.data[collectionID], nil
}

func (h *fakeHost) SaveData(collectionID string, data []record.Data) error {
	h.saved[collectionID] = data
	return nil
}

func TestExecuteReturnsFilteredSequence(t *testing.T) {
	c := newCatalog(t)
	_, r, err := Create(nil, c, "list-posts", "/posts", "blog", samplePlan())
	require.NoError(t, err)

	host := newFakeHost()
	host.data["posts"] = []record.Data{
		{ID: "1", Pairs: []record.DataPair{{StructureID: "published", Value: "true"}}},
		{ID: "2", Pairs: []record.DataPair{{StructureID: "published", Value: "false"}}},
	}

	sig, err := Execute(r, host, 0)
	require.NoError(t, err)
	require.Equal(t, flow.SignalReturn, sig.Kind)
	list, ok := sig.Value.Data.([]record.Data)
	require.True(t, ok)
	require.Len(t, list, 1)
	require.Equal(t, "1", list[0].ID)
}

func TestRequireAuthRejectsMissingClaim(t *testing.T) {
	c := newCatalog(t)
	auth, err := NewAuthJWT(true, "author", "posts", c)
	require.NoError(t, err)
	r := RouteComponent{RouteID: "list-posts", AuthJWT: &auth}

	host := newFakeHost()
	host.data["posts"] = []record.Data{{ID: "1", Pairs: []record.DataPair{{StructureID: "author", Value: "jane"}}}}

	require.NoError(t, RequireAuth(r, "jane", host))
	require.Error(t, RequireAuth(r, "nobody", host))
}
