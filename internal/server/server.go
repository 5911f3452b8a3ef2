package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cddevrks/code-run/internal/config"
	"github.com/cddevrks/code-run/internal/job"
	"github.com/cddevrks/code-run/internal/language"
	"github.com/cddevrks/code-run/internal/storage"
)

// Dispatcher hands an accepted submission to whatever executes it: the
// in-process runner pool or a bus feeding external runners.
type Dispatcher interface {
	Submit(sub job.Submission) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(sub job.Submission) error

func (f DispatcherFunc) Submit(sub job.Submission) error { return f(sub) }

// Server is the HTTP server for the code-run API.
type Server struct {
	cfg      *config.Config
	store    storage.Store
	catalog  *language.Catalog
	dispatch Dispatcher
	registry *JobRegistry
	hub      *Hub
	router   chi.Router
	http     *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, store storage.Store, catalog *language.Catalog, dispatch Dispatcher) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		catalog:  catalog,
		dispatch: dispatch,
		registry: NewJobRegistry(),
		hub:      NewHub(),
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		// WebSocket push channel (no JSON content-type)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)

			r.Post("/execute", s.handleExecute)
			r.Get("/status/{jobID}", s.handleStatus)

			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{jobID}", s.handleGetJob)

			r.Get("/languages", s.handleListLanguages)
		})
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// HandleEvent is the single intake for runner events. It updates the live
// registry, persists terminal outcomes and fans the event out to push
// subscribers. Wire it as the runner pool's emit callback or as the bus
// event subscription.
func (s *Server) HandleEvent(ev job.Event) {
	if !ev.Terminal() {
		s.registry.Apply(ev)
		s.hub.Broadcast(ev)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	j, err := s.store.GetJob(ctx, ev.JobID)
	if err != nil {
		log.Printf("server: terminal event for unknown job %s: %v", ev.JobID, err)
	} else {
		if ev.Type == job.EventCompleted {
			j.Status = job.StatusCompleted
		} else {
			j.Status = job.StatusFailed
			j.Error = ev.Error
		}
		if ev.Result != nil {
			j.Output = ev.Result.Output
			j.ExecutionTimeMs = ev.Result.ExecutionTimeMs
			j.MemoryBytes = ev.Result.MemoryBytes
			if ev.Result.Error != "" {
				j.Error = ev.Result.Error
			}
		}
		if err := s.store.UpdateJob(ctx, j); err != nil {
			log.Printf("server: saving job %s: %v", ev.JobID, err)
		}
	}

	s.registry.Remove(ev.JobID)
	s.hub.Broadcast(ev)
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("code-run server starting on http://localhost%s", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	s.hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
