// Command ixoded is the server entry point: it wires configuration,
// logging, the mapping registry, the constraint catalog, the schema/
// record/route stores, and the HTTP surface together, then serves the
// /x/<path...> route-flow dispatcher plus the schema/collection/route
// administrative CRUD endpoints.
package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"ixode.dev/core/auth"
	"ixode.dev/core/common"
	"ixode.dev/core/config"
	boltcache "ixode.dev/core/db/bolt"
	echohttp "ixode.dev/core/http"
	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/constraint"
	"ixode.dev/core/internal/flow"
	"ixode.dev/core/internal/lock"
	"ixode.dev/core/internal/mediastore"
	"ixode.dev/core/internal/record"
	"ixode.dev/core/internal/registry"
	"ixode.dev/core/internal/route"
	"ixode.dev/core/internal/schema"
)

// server bundles every wired dependency a request handler needs.
type server struct {
	cfg       config.IxodeConfig
	logger    *common.ContextLogger
	reg       *registry.Registry
	catalog   *constraint.Catalog
	locks     *lock.Manager
	projects  *schema.ProjectStore
	collections *schema.CollectionStore
	records   *record.Store
	routes    *route.Store
	media     mediastore.Store
	verifier  *auth.Verifier
}

func main() {
	logger := common.ComponentLogger("ixoded")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.Infof("starting ixoded: port=%d media_backend=%s encryption_key=%s jwt_secret=%s",
		cfg.Port, cfg.MediaBackend, common.MaskSecret(cfg.EncryptionKey), common.MaskSecret(cfg.JWTSecret))

	locks := lock.NewManager()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("invalid IXODE_REDIS_URL")
		}
		locks = lock.WithRedis(redis.NewClient(opts), 0)
	}

	reg := registry.New(cfg.CurrentPath, cfg.EncryptionKey)
	catalog := constraint.New(mustPath(reg, registry.Constraints), cfg.EncryptionKey)

	if cache, err := boltcache.OpenSnapshotCache(cfg.CurrentPath + "/data/.snapshot_cache.bolt"); err == nil {
		reg.WithCache(cache)
		catalog.WithCache(cache)
	} else {
		logger.WithError(err).Warn("snapshot cache unavailable, falling back to direct codec reads")
	}

	srv := &server{
		cfg:      cfg,
		logger:   logger,
		reg:      reg,
		catalog:  catalog,
		locks:    locks,
		projects: schema.NewProjectStore(mustPath(reg, registry.Projects), cfg.EncryptionKey, catalog, locks),
		collections: schema.NewCollectionStore(
			mustPath(reg, registry.Collections), cfg.EncryptionKey, cfg.CurrentPath+"/data", catalog, locks,
		),
		records: record.NewStore(cfg.CurrentPath+"/data", cfg.EncryptionKey, locks),
		routes: route.NewStore(mustPath(reg, registry.Routes), cfg.EncryptionKey, catalog, locks),
		media: newMediaStore(cfg, logger),
		verifier: auth.NewVerifier(cfg.JWTSecret, "ixode.dev/core"),
	}

	runCfg := echohttp.DefaultRunServerConfig("ixoded", "0.1.0")
	runCfg.Port = cfg.Port
	runCfg.Logger = logger

	if err := echohttp.RunServer(runCfg, srv.routesSetup); err != nil {
		logger.WithError(err).Fatal("server exited with error")
	}
}

func newMediaStore(cfg config.IxodeConfig, logger *common.ContextLogger) mediastore.Store {
	if cfg.MediaBackend == "s3" {
		store, err := mediastore.NewS3Store(context.Background(), cfg.MediaBucket)
		if err != nil {
			logger.WithError(err).Fatal("failed to initialise S3 media store")
		}
		return store
	}
	return mediastore.NewLocalStore(cfg.CurrentPath + "/data/media")
}

func mustPath(reg *registry.Registry, name string) string {
	p, err := reg.Path(name)
	if err != nil {
		panic(err)
	}
	return p
}

// routesSetup registers the thin dispatcher over every custom route a
// project has defined, plus the administrative CRUD surface. The route
// flow language itself (internal/flow, internal/route) carries all request
// semantics; these handlers only translate HTTP <-> flow.Host.
func (s *server) routesSetup(e *echo.Echo) error {
	e.GET("/x/:project/*", s.dispatch)
	e.POST("/x/:project/*", s.dispatch)
	e.PUT("/x/:project/*", s.dispatch)
	e.DELETE("/x/:project/*", s.dispatch)

	e.POST("/projects", s.createProject)
	e.GET("/projects/:id", s.getProject)

	e.POST("/projects/:project/collections", s.createCollection)
	e.GET("/projects/:project/collections/:id", s.getCollection)

	e.POST("/projects/:project/routes", s.createRoute)
	e.GET("/projects/:project/routes/:id", s.getRoute)
	return nil
}

func (s *server) createProject(c echo.Context) error {
	var body struct{ ID, Name, Description, APIPath string }
	if err := c.Bind(&body); err != nil {
		return apperr.BadInputf("Error: invalid request body")
	}
	p, err := s.projects.Create(body.ID, body.Name, body.Description, body.APIPath)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *server) getProject(c echo.Context) error {
	p, err := s.projects.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *server) createCollection(c echo.Context) error {
	var body struct{ ID, Name, Description string }
	if err := c.Bind(&body); err != nil {
		return apperr.BadInputf("Error: invalid request body")
	}
	col, err := s.collections.Create(body.ID, c.Param("project"), body.Name, body.Description)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, col)
}

func (s *server) getCollection(c echo.Context) error {
	col, err := s.collections.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, col)
}

func (s *server) createRoute(c echo.Context) error {
	var body struct {
		RouteID, RoutePath string
	}
	if err := c.Bind(&body); err != nil {
		return apperr.BadInputf("Error: invalid request body")
	}
	r, err := s.routes.Create(c.Param("project"), body.RouteID, body.RoutePath, flow.NewProgram(nil))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (s *server) getRoute(c echo.Context) error {
	r, err := s.routes.Get(c.Param("project"), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// dispatch matches an incoming request path against the project's declared
// routes by RoutePath, runs the matched route's flow, and writes back its
// terminal signal.
func (s *server) dispatch(c echo.Context) error {
	projectID := c.Param("project")
	requestPath := "/" + c.Param("*")

	routes, err := s.routes.All(projectID)
	if err != nil {
		return err
	}

	var matched *route.RouteComponent
	for i := range routes {
		if routes[i].RoutePath == requestPath {
			matched = &routes[i]
			break
		}
	}
	if matched == nil {
		return apperr.NotFoundf("Error: no route matches this path")
	}

	host := route.NewDataHost(s.records, projectID)

	if matched.AuthJWT != nil && matched.AuthJWT.Active {
		token := extractBearerToken(c.Request())
		claim, err := s.verifier.ClaimValue(token, matched.AuthJWT.Field)
		if err != nil {
			return apperr.NotFoundf("Error: unauthorized")
		}
		if err := route.RequireAuth(*matched, claim, host); err != nil {
			return err
		}
	}

	sig, err := route.Execute(*matched, host, s.cfg.LoopCap)
	if err != nil {
		return err
	}

	switch sig.Kind {
	case flow.SignalFail:
		return c.JSON(sig.Status, map[string]string{"message": sig.Message})
	case flow.SignalReturn:
		return c.JSON(http.StatusOK, valueToJSON(sig.Value))
	default:
		return c.NoContent(http.StatusOK)
	}
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func valueToJSON(v flow.Value) any {
	switch v.Kind {
	case flow.KindNull, flow.KindUndefined:
		return nil
	case flow.KindBoolean:
		return v.Bool
	case flow.KindInteger:
		return v.Int
	case flow.KindFloat:
		return v.Float
	case flow.KindString:
		return v.Str
	default:
		return v.Data
	}
}
