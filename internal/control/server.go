// Package control exposes a running pipeline over a small local HTTP API so
// another process (or a browser panel) can watch and steer it.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/results"
)

// Runner is the part of *pipeline.Pipeline the API drives.
type Runner interface {
	State() pipeline.State
	Status() (pipeline.Progress, bool)
	Pause(ctx context.Context) error
	Resume() error
	Stop(ctx context.Context) error
	Results() *results.Store
}

// Options configures a Server.
type Options struct {
	// AllowedOrigins lists the origins allowed by CORS. Empty allows none.
	AllowedOrigins []string
	Now            func() time.Time
}

// Server routes control requests to a Runner.
type Server struct {
	runner Runner
	opts   Options
}

// NewServer builds a Server for runner.
func NewServer(runner Runner, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{runner: runner, opts: opts}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/results.csv", s.handleExport)
	r.Post("/pause", s.handlePause)
	r.Post("/resume", s.handleResume)
	r.Post("/stop", s.handleStop)
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("control: listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusResponse struct {
	State    pipeline.State     `json:"state"`
	Progress *pipeline.Progress `json:"progress,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	prog, ok := s.runner.Status()
	resp := statusResponse{State: prog.State}
	if ok {
		resp.Progress = &prog
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transition(w, s.runner.Pause(r.Context()))
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.transition(w, s.runner.Resume())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.transition(w, s.runner.Stop(r.Context()))
}

func (s *Server) transition(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusResponse{State: s.runner.State()})
	case errors.Is(err, pipeline.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
	default:
		zap.L().Error("control: transition failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	store := s.runner.Results()
	if store == nil || store.Len() == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no results yet"})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+results.FileName(s.opts.Now())+`"`)
	if err := store.Export(w); err != nil {
		zap.L().Error("control: export failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
