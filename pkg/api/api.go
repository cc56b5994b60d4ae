// Package api exposes the scheduler's public operations as an HTTP+JSON
// surface over github.com/go-chi/chi/v5, with Prometheus request metrics
// and structured access logging. Every route is a thin adapter: decode
// the request, build a host.RequestContext, call into pkg/engine, encode
// the result.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cuemby/cronfleet/pkg/engine"
	"github.com/cuemby/cronfleet/pkg/log"
	"github.com/cuemby/cronfleet/pkg/metrics"
)

// Server is the scheduler's HTTP server.
type Server struct {
	httpServer *http.Server
	engine     *engine.Engine
	log        zerolog.Logger
}

// NewServer builds a Server wired to eng, listening on addr.
func NewServer(eng *engine.Engine, addr string) *Server {
	s := &Server{
		engine: eng,
		log:    log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(s.instrument)

	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/info", s.handleGetInfo)
		r.Patch("/settings", s.handleUpdateSettings)
		r.Get("/version", s.handleVersion)

		r.Post("/tick", s.handleTick)
		r.Post("/dispatch", s.handleProxyCall)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleGetTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{fp}", s.handleGetTask)
			r.Delete("/{fp}", s.handleRemoveTask)
			r.Post("/{fp}/refill", s.handleRefillBalance)
			r.Get("/{fp}/probe", s.handleProbeTask)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handleGetAgentIDs)
			r.Post("/", s.handleRegisterAgent)
			r.Get("/{principal}", s.handleGetAgent)
			r.Patch("/{principal}", s.handleUpdateAgent)
			r.Delete("/{principal}", s.handleUnregisterAgent)
			r.Post("/{principal}/withdraw", s.handleWithdrawTaskBalance)
		})

		r.Get("/slots", s.handleGetSlotIDs)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("api: listen: %w", err)
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("api server listening")
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the server's root http.Handler, for use with
// httptest.NewServer in tests and for embedding under another mux.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
