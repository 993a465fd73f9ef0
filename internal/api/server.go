// Package api exposes the engine's localhost ops surface: the UI shell reads
// cached data, triggers syncs, and subscribes to events here; the rest is for
// debugging a device in hand.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/integrity"
	"github.com/channelbriefapp/channelbrief-engine/internal/search"
	"github.com/channelbriefapp/channelbrief-engine/internal/sse"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	enginesync "github.com/channelbriefapp/channelbrief-engine/internal/sync"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

const apiVersion = "1.0.0"

// Deps groups what the server needs. Search and SSE may be nil in tests;
// the affected routes degrade rather than panic.
type Deps struct {
	KV           store.KV
	Repo         *cache.Repository
	Orchestrator *enginesync.Orchestrator
	Txns         *txn.Manager
	Validator    *integrity.Validator
	Recovery     *integrity.Recovery
	Search       *search.Index
	SSEManager   *sse.Manager
	SSEHandler   *sse.Handler
	Logger       *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	kv           store.KV
	repo         *cache.Repository
	orchestrator *enginesync.Orchestrator
	txns         *txn.Manager
	validator    *integrity.Validator
	recovery     *integrity.Recovery
	search       *search.Index
	sseManager   *sse.Manager
	sseHandler   *sse.Handler
	router       *chi.Mux
	api          huma.API
	logger       *slog.Logger
}

// NewServer creates the ops HTTP server with all routes configured.
func NewServer(deps Deps) *Server {
	router := chi.NewRouter()

	humaConfig := huma.DefaultConfig("ChannelBrief Engine", apiVersion)
	humaConfig.DocsPath = "/docs"

	s := &Server{
		kv:           deps.KV,
		repo:         deps.Repo,
		orchestrator: deps.Orchestrator,
		txns:         deps.Txns,
		validator:    deps.Validator,
		recovery:     deps.Recovery,
		search:       deps.Search,
		sseManager:   deps.SSEManager,
		sseHandler:   deps.SSEHandler,
		router:       router,
		logger:       deps.Logger,
	}

	s.setupMiddleware()
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerVideoRoutes()
	s.registerChannelRoutes()
	s.registerSyncRoutes()
	s.registerSearchRoutes()
	s.registerMaintenanceRoutes()

	// Raw routes: SSE needs a streaming handler, Prometheus ships its own.
	if s.sseHandler != nil {
		router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack. The server binds to
// loopback; CORS is for the UI shell's webview origin.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "capacitor://localhost", "ionic://localhost"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}
