package api

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/darkh14/vmjobs/engine"
)

// API wires the HTTP handlers together for an Engine.
type API struct {
	eng         *engine.Engine
	logger      *slog.Logger
	serviceName string
	version     string

	connSeq atomic.Int64
}

// Option configures an API.
type Option func(*API)

// WithServiceName overrides the service name requests must carry. It
// defaults to the dispatcher's configured name; empty disables the check.
func WithServiceName(name string) Option {
	return func(a *API) { a.serviceName = name }
}

// WithVersion sets the version reported in the OpenAPI document.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// New creates an API for eng.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{
		eng:         eng,
		logger:      eng.Dispatcher().Logger(),
		serviceName: eng.Dispatcher().Config().ServiceName,
		version:     "dev",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns a new echo instance with every route registered.
func (a *API) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	a.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers all routes on e.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	e.POST("/", a.process)
	e.GET("/health", a.health)

	v1 := e.Group("/v1")
	// Registered before huma so the static path wins over /jobs/{jobId}.
	v1.GET("/jobs/stream", a.streamJobs)

	config := huma.DefaultConfig("vmjobs API", a.version)
	config.Servers = []*huma.Server{{URL: "/v1"}}
	config.Info.Description = "Background job inspection for the vector model service"
	humaAPI := humaecho.NewWithGroup(e, v1, config)
	a.registerJobRoutes(humaAPI)
}
