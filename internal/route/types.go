// Package route implements RouteComponent, the declarative HTTP route
// that wraps a flow.Program (spec §3/§4.G). It depends on flow one-way:
// flow never imports route, so the interpreter can be driven without
// pulling in the route lifecycle or its KDL-like serialisation.
package route

import (
	"strings"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/constraint"
	"ixode.dev/core/internal/flow"
)

// AuthJWT gates a route behind a bearer token carrying field, looked up
// against the collection ref_col (spec §3).
type AuthJWT struct {
	Active bool
	Field  string
	RefCol string
}

func NewAuthJWT(active bool, field, refCol string, catalog *constraint.Catalog) (AuthJWT, error) {
	vfield, err := catalog.Validate("auth_jwt", "field", field)
	if err != nil {
		return AuthJWT{}, err
	}
	vrefcol, err := catalog.Validate("auth_jwt", "id", refCol)
	if err != nil {
		return AuthJWT{}, err
	}
	return AuthJWT{Active: active, Field: vfield, RefCol: vrefcol}, nil
}

// BodyData is one declared field of a route's expected JSON body.
type BodyData struct {
	ID    string
	Dtype string
}

func NewBodyData(id, dtype string, catalog *constraint.Catalog) (BodyData, error) {
	vid, err := catalog.Validate("body_data", "id", id)
	if err != nil {
		return BodyData{}, err
	}
	vdtype, err := catalog.Validate("body_data", "dtype", dtype)
	if err != nil {
		return BodyData{}, err
	}
	return BodyData{ID: vid, Dtype: vdtype}, nil
}

// ParamData is the declared shape of a route's query string: a delimiter
// plus an ordered list of (id, type) pairs.
type ParamData struct {
	Delimiter string
	Pairs     []BodyData
}

func NewParamData(delimiter string, catalog *constraint.Catalog) (ParamData, error) {
	v, err := catalog.Validate("param_data", "delimiter", delimiter)
	if err != nil {
		return ParamData{}, err
	}
	return ParamData{Delimiter: v}, nil
}

// RouteComponent is the full declaration of one custom HTTP route (spec
// §3).
type RouteComponent struct {
	RouteID   string
	RoutePath string
	ProjectID string
	AuthJWT   *AuthJWT
	Body      []BodyData
	Params    *ParamData
	Flow      flow.Program
}

func existsRoute(list []RouteComponent, routeID string) bool {
	for _, r := range list {
		if r.RouteID == routeID {
			return true
		}
	}
	return false
}

func existsRoutePath(list []RouteComponent, routePath string) bool {
	for _, r := range list {
		if r.RoutePath == routePath {
			return true
		}
	}
	return false
}

// Exists matches the source's case-sensitive id scan used by create's
// duplicate check.
func Exists(list []RouteComponent, routeID string) bool {
	return existsRoute(list, routeID)
}

// Get performs a case-insensitive scan by (project_id, route_id) (spec
// §4.D: "get is case-insensitive").
func Get(list []RouteComponent, projectID, routeID string) (RouteComponent, error) {
	for _, r := range list {
		if strings.EqualFold(r.RouteID, routeID) && strings.EqualFold(r.ProjectID, projectID) {
			return r, nil
		}
	}
	return RouteComponent{}, apperr.NotFoundf("Error: Route not found")
}

func indexOf(list []RouteComponent, routeID string) int {
	for i, r := range list {
		if r.RouteID == routeID {
			return i
		}
	}
	return -1
}

// Create validates route_id/route_path/project_id and only then appends
// the new RouteComponent, the Go replacement for the source's
// placeholder-id-then-rollback pattern (see DESIGN.md).
func Create(list []RouteComponent, catalog *constraint.Catalog, routeID, routePath, projectID string, program flow.Program) ([]RouteComponent, RouteComponent, error) {
	if existsRoute(list, routeID) {
		return list, RouteComponent{}, apperr.Conflictf("Error: id is already in use")
	}
	if existsRoutePath(list, routePath) {
		return list, RouteComponent{}, apperr.Conflictf("Error: route_path is already in use")
	}
	vid, err := catalog.Validate("route_component", "id", routeID)
	if err != nil {
		return list, RouteComponent{}, err
	}
	vpath, err := catalog.Validate("route_component", "route_path", routePath)
	if err != nil {
		return list, RouteComponent{}, err
	}
	vproject, err := catalog.Validate("route_component", "project_id", projectID)
	if err != nil {
		return list, RouteComponent{}, err
	}
	r := RouteComponent{RouteID: vid, RoutePath: vpath, ProjectID: vproject, Flow: program}
	return append(list, r), r, nil
}

func UpdateRouteID(list []RouteComponent, routeID, newRouteID string, catalog *constraint.Catalog) ([]RouteComponent, error) {
	if existsRoute(list, newRouteID) {
		return list, apperr.Conflictf("Error: id is already in use")
	}
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	v, err := catalog.Validate("route_component", "id", newRouteID)
	if err != nil {
		return list, err
	}
	list[idx].RouteID = v
	return list, nil
}

func UpdateRoutePath(list []RouteComponent, routeID, routePath string, catalog *constraint.Catalog) ([]RouteComponent, error) {
	if existsRoutePath(list, routePath) {
		return list, apperr.Conflictf("Error: route_path is already in use")
	}
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	v, err := catalog.Validate("route_component", "route_path", routePath)
	if err != nil {
		return list, err
	}
	list[idx].RoutePath = v
	return list, nil
}

func UpdateProjectID(list []RouteComponent, routeID, projectID string, catalog *constraint.Catalog) ([]RouteComponent, error) {
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	v, err := catalog.Validate("route_component", "project_id", projectID)
	if err != nil {
		return list, err
	}
	list[idx].ProjectID = v
	return list, nil
}

func UpdateAuthJWT(list []RouteComponent, routeID string, authJWT *AuthJWT) ([]RouteComponent, error) {
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	list[idx].AuthJWT = authJWT
	return list, nil
}

func AddBodyData(list []RouteComponent, routeID string, body BodyData) ([]RouteComponent, error) {
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	list[idx].Body = append(list[idx].Body, body)
	return list, nil
}

func RemoveBodyData(list []RouteComponent, routeID string, bodyIndex int) ([]RouteComponent, error) {
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	if bodyIndex < 0 || bodyIndex >= len(list[idx].Body) {
		return list, apperr.BadInputf("Error: Index goes over the amount of body datas present")
	}
	list[idx].Body = append(list[idx].Body[:bodyIndex], list[idx].Body[bodyIndex+1:]...)
	return list, nil
}

func SetBody(list []RouteComponent, routeID string, body []BodyData) ([]RouteComponent, error) {
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	list[idx].Body = body
	return list, nil
}

func UpdateParams(list []RouteComponent, routeID string, params *ParamData) ([]RouteComponent, error) {
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	list[idx].Params = params
	return list, nil
}

func UpdateFlow(list []RouteComponent, routeID string, program flow.Program) ([]RouteComponent, error) {
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	list[idx].Flow = program
	return list, nil
}

func Delete(list []RouteComponent, routeID string) ([]RouteComponent, error) {
	idx := indexOf(list, routeID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: Route not found")
	}
	return append(list[:idx], list[idx+1:]...), nil
}

// BulkUpdateCollectionID rewrites auth_jwt.ref_col and the ref_col of every
// FETCH, UPDATE and CREATE block across every route, the cascade
// Collection.update_id triggers (spec §3).
func BulkUpdateCollectionID(list []RouteComponent, collectionID, newCollectionID string) []RouteComponent {
	out := make([]RouteComponent, len(list))
	copy(out, list)
	for i, r := range out {
		if r.AuthJWT != nil && r.AuthJWT.RefCol == collectionID {
			updated := *r.AuthJWT
			updated.RefCol = newCollectionID
			out[i].AuthJWT = &updated
		}

		blocks := make([]flow.Block, len(r.Flow.Blocks))
		copy(blocks, r.Flow.Blocks)
		for j, b := range blocks {
			if (b.Kind == flow.BlockFetch || b.Kind == flow.BlockUpdate || b.Kind == flow.BlockCreate) && b.RefCol == collectionID {
				blocks[j].RefCol = newCollectionID
			}
		}
		out[i].Flow = flow.NewProgram(blocks)
	}
	return out
}
