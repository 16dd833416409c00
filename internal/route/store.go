package route

import (
	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/constraint"
	"ixode.dev/core/internal/flow"
	"ixode.dev/core/internal/lock"
	"ixode.dev/core/internal/record"
)

// Store persists one project's routes under routes/{project_id}.txt (spec
// §6), keyed off the mapping registry's "routes" directory.
type Store struct {
	routesDir string
	key       string
	catalog   *constraint.Catalog
	locks     *lock.Manager
}

func NewStore(routesDir, encryptionKey string, catalog *constraint.Catalog, locks *lock.Manager) *Store {
	return &Store{routesDir: routesDir, key: encryptionKey, catalog: catalog, locks: locks}
}

func (s *Store) path(projectID string) string {
	return s.routesDir + "/" + projectID + ".txt"
}

func (s *Store) fetchAll(projectID string) ([]RouteComponent, error) {
	p := s.path(projectID)
	unlock := s.locks.RLock(p)
	defer unlock()
	text, err := codec.Fetch(p, s.key)
	if err != nil {
		return nil, err
	}
	list := ParseRoutes(text, s.catalog, nil)
	return list, nil
}

func (s *Store) saveAll(projectID string, list []RouteComponent) error {
	p := s.path(projectID)
	unlock := s.locks.Lock(p)
	defer unlock()
	return codec.Save(p, StringifyRoutes(list), s.key)
}

func (s *Store) All(projectID string) ([]RouteComponent, error) {
	return s.fetchAll(projectID)
}

func (s *Store) Get(projectID, routeID string) (RouteComponent, error) {
	list, err := s.fetchAll(projectID)
	if err != nil {
		return RouteComponent{}, err
	}
	return Get(list, projectID, routeID)
}

func (s *Store) Create(projectID, routeID, routePath string, program flow.Program) (RouteComponent, error) {
	list, err := s.fetchAll(projectID)
	if err != nil {
		return RouteComponent{}, err
	}
	updated, r, err := Create(list, s.catalog, routeID, routePath, projectID, program)
	if err != nil {
		return RouteComponent{}, err
	}
	if err := s.saveAll(projectID, updated); err != nil {
		return RouteComponent{}, err
	}
	return r, nil
}

func (s *Store) Delete(projectID, routeID string) error {
	list, err := s.fetchAll(projectID)
	if err != nil {
		return err
	}
	updated, err := Delete(list, routeID)
	if err != nil {
		return err
	}
	return s.saveAll(projectID, updated)
}

// Mutate re-reads a project's routes, applies fn, and persists the
// result, for the narrower per-field update operations (UpdateAuthJWT,
// AddBodyData, UpdateFlow, …) that all share this read-modify-write shape.
func (s *Store) Mutate(projectID string, fn func([]RouteComponent) ([]RouteComponent, error)) error {
	list, err := s.fetchAll(projectID)
	if err != nil {
		return err
	}
	updated, err := fn(list)
	if err != nil {
		return err
	}
	return s.saveAll(projectID, updated)
}

// dataHost adapts a record.Store to flow.Host for one (project,
// collection) scope, the binding RouteComponent.Flow's FETCH/UPDATE/
// CREATE blocks need at request time.
type dataHost struct {
	store     *record.Store
	projectID string
}

func NewDataHost(store *record.Store, projectID string) flow.Host {
	return &dataHost{store: store, projectID: projectID}
}

func (h *dataHost) FetchData(collectionID string) ([]record.Data, error) {
	return h.store.FetchAll(h.projectID, collectionID)
}

func (h *dataHost) SaveData(collectionID string, data []record.Data) error {
	return h.store.SaveAll(h.projectID, collectionID, data)
}

// Execute runs a route's flow to completion against the given host,
// returning the terminal signal (spec §4.G: "return the value of the
// first RETURN block, or 200 if none").
func Execute(r RouteComponent, host flow.Host, iterationCap int) (flow.Signal, error) {
	ip := flow.NewInterpreter(host)
	if iterationCap > 0 {
		ip.IterationCap = iterationCap
	}
	return ip.Run(r.Flow)
}

// RequireAuth checks a route's declared AuthJWT gate: when active, the
// caller must present a JWT whose Field claim matches an existing record
// in ref_col keyed by that same field. The token verification itself is
// the HTTP layer's concern (SPEC_FULL.md ambient stack); this only checks
// the declarative gate the route carries.
func RequireAuth(r RouteComponent, claimValue string, host flow.Host) error {
	if r.AuthJWT == nil || !r.AuthJWT.Active {
		return nil
	}
	records, err := host.FetchData(r.AuthJWT.RefCol)
	if err != nil {
		return err
	}
	for _, d := range records {
		for _, p := range d.Pairs {
			if p.StructureID == r.AuthJWT.Field && p.Value == claimValue {
				return nil
			}
		}
	}
	return apperr.NotFoundf("Error: no matching record for auth_jwt field")
}
