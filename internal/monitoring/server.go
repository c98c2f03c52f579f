// internal/monitoring/server.go

// Package monitoring exposes run metrics, health and progress over HTTP.
// The server only reads shared state; it never touches the browser page.
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// LessonLookup answers per-lesson queries, typically the relational index
type LessonLookup interface {
	Lesson(ctx context.Context, key string) (types.LessonSummary, bool, error)
	TypeCounts(ctx context.Context, key string) (map[string]int, error)
}

// Server serves /metrics, /healthz, /progress and /lessons/{key}
type Server struct {
	router  *mux.Router
	metrics *Metrics
	health  *HealthManager
	tracker *RunTracker
	lessons LessonLookup
	logger  utils.Logger
}

// NewServer wires the handlers
func NewServer(metrics *Metrics, health *HealthManager, tracker *RunTracker, logger utils.Logger) *Server {
	if health == nil {
		health = NewHealthManager(0)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	s := &Server{
		router:  mux.NewRouter(),
		metrics: metrics,
		health:  health,
		tracker: tracker,
		logger:  logger.WithField("component", "status_server"),
	}

	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", health.HealthHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/progress", s.progressHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/lessons/{key}", s.lessonHandler).Methods(http.MethodGet)
	return s
}

// SetLessonLookup enables /lessons/{key}
func (s *Server) SetLessonLookup(lookup LessonLookup) {
	s.lessons = lookup
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on address until ctx is cancelled
func (s *Server) Start(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Infof("status server listening on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) lessonHandler(w http.ResponseWriter, r *http.Request) {
	if s.lessons == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "lesson index disabled"})
		return
	}
	key := mux.Vars(r)["key"]

	summary, ok, err := s.lessons.Lesson(r.Context(), key)
	if err != nil {
		s.logger.Warnf("lesson lookup failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "lesson not found"})
		return
	}
	counts, err := s.lessons.TypeCounts(r.Context(), key)
	if err != nil {
		s.logger.Warnf("type count lookup failed: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lesson": summary,
		"types":  counts,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
