// Package server exposes the generation pipeline, speech-to-text and project
// storage over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/zhengjr9/vibes/internal/config"
	"github.com/zhengjr9/vibes/internal/orchestrator"
	"github.com/zhengjr9/vibes/internal/project"
	"github.com/zhengjr9/vibes/internal/provider"
	"github.com/zhengjr9/vibes/internal/transcribe"
)

// Generator starts a generation. *orchestrator.Orchestrator implements it.
type Generator interface {
	Generate(ctx context.Context, req *provider.Request) (*orchestrator.Result, error)
}

// Deps are the collaborators the handlers call. Transcriber and Projects may
// be nil; the corresponding endpoints then report they are unavailable.
type Deps struct {
	Generator   Generator
	Transcriber transcribe.Transcriber
	Projects    *project.Store
}

// Server is the HTTP server.
type Server struct {
	httpServer *http.Server
}

// New constructs a Server from the given config.
func New(cfg *config.Config, deps Deps) *Server {
	gen := &generateHandler{gen: deps.Generator, timeout: cfg.ProviderTimeout}
	tr := &transcribeHandler{transcriber: deps.Transcriber}
	pr := &projectHandler{store: deps.Projects}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/generate", gen).Methods(http.MethodPost)
	api.Handle("/transcribe", tr).Methods(http.MethodPost)

	api.HandleFunc("/projects", pr.list).Methods(http.MethodGet)
	api.HandleFunc("/projects", pr.save).Methods(http.MethodPost)
	api.HandleFunc("/projects", pr.clear).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}", pr.get).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", pr.rename).Methods(http.MethodPatch)
	api.HandleFunc("/projects/{id}", pr.delete).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/export", pr.export).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = loggingMiddleware(handler)
	handler = recoveryMiddleware(handler)

	// Streams run as long as the provider keeps sending; only bound them
	// when a provider timeout is configured.
	var writeTimeout time.Duration
	if cfg.ProviderTimeout > 0 {
		writeTimeout = cfg.ProviderTimeout + 10*time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins listening and blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the underlying http.Handler (for use in tests with httptest.NewServer).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
