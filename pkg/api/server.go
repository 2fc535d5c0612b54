// Package api implements the thin HTTP admission surface in front of
// pkg/orchestrator (spec.md §6): submit a run, poll its status, cancel
// it, and a liveness/readiness probe. Grounded on the teacher's
// pkg/api/handlers.go (gin.Context handler signatures, Server as the
// single receiver holding every collaborator) — the rest of the
// teacher's pkg/api (server.go, handler_*.go, websocket.go) is built on
// labstack/echo, a dependency this module never picked up, so the gin
// style already present in the teacher's handlers.go is the one
// generalized here.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// Pool is the narrow admission seam the API drives; *orchestrator.Pool
// satisfies it.
type Pool interface {
	Admit(ctx context.Context, cfg models.Config, group models.RunGroup) (string, error)
	CancelSession(runID string) bool
}

// RunStore is the narrow read seam the API drives; *store.Store
// satisfies it.
type RunStore interface {
	GetAgentRun(ctx context.Context, runID string) (models.AgentRun, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP API server; one instance per process.
type Server struct {
	pool  Pool
	store RunStore
	http  *http.Server
}

// NewServer builds the gin engine, registers routes, and wraps it in
// an *http.Server bound to addr.
func NewServer(addr string, pool Pool, st RunStore) *Server {
	s := &Server{pool: pool, store: st}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	v1 := engine.Group("/api/v1")
	v1.POST("/runs", s.submitRunHandler)
	v1.GET("/runs/:id", s.getRunHandler)
	v1.POST("/runs/:id/cancel", s.cancelRunHandler)
	engine.GET("/health", s.healthHandler)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
