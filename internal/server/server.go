// Package server exposes the compute-and-cache core over HTTP.
package server

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"

	"github.com/OUgly/GEXCalculator/api"
	"github.com/OUgly/GEXCalculator/internal/cache"
	"github.com/OUgly/GEXCalculator/internal/gex"
	"github.com/OUgly/GEXCalculator/internal/store"
	"github.com/OUgly/GEXCalculator/internal/ws"
)

// Server wires the symbol cache, the pure GEX engine, and the note store
// behind the HTTP handlers.
type Server struct {
	cache  *cache.SymbolCache
	engine *gex.Engine
	store  *store.Store
	logger *zap.Logger
}

func NewServer(symbolCache *cache.SymbolCache, engine *gex.Engine, st *store.Store, logger *zap.Logger) *Server {
	return &Server{
		cache:  symbolCache,
		engine: engine,
		store:  st,
		logger: logger,
	}
}

// NewRouter builds the chi router. API routes are validated against the
// embedded OpenAPI document; the websocket upgrade and health probe sit
// outside validation. hub may be nil when streaming is disabled.
func NewRouter(server *Server, hub *ws.Hub, logger *zap.Logger) (http.Handler, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.OpenAPISpec)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, err
	}
	doc.Servers = nil // Allow any host

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(zapLoggerMiddleware(logger))

	// Non-validated routes
	r.Get("/healthz", server.handleHealth)
	r.Get("/openapi.yaml", openapiHandler)
	if hub != nil {
		r.Get("/ws/{symbol}", hub.HandleWS)
	}

	// API routes with OpenAPI validation
	r.Group(func(apiRouter chi.Router) {
		apiRouter.Use(oapimiddleware.OapiRequestValidator(doc))

		apiRouter.Get("/gex/{symbol}", server.handleGetGex)
		apiRouter.Get("/gex/{symbol}/csv", server.handleGetGexCSV)
		apiRouter.Post("/chains/upload", server.handleUpload)
		apiRouter.Get("/symbols", server.handleListSymbols)
		apiRouter.Get("/notes/{symbol}", server.handleListNotes)
		apiRouter.Post("/notes/{symbol}", server.handleAddNote)
		apiRouter.Delete("/notes/id/{id}", server.handleDeleteNote)
	})

	return r, nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
			)
			next.ServeHTTP(w, r)
		})
	}
}

func openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(api.OpenAPISpec)
}
