// Package api serves the run ledger over a read-only JSON HTTP API.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/streetcover/internal/model"
	"github.com/sells-group/streetcover/internal/store"
	"github.com/sells-group/streetcover/internal/summary"
)

// Options configures the HTTP handler.
type Options struct {
	// AllowedOrigins lists CORS origins; empty allows any origin.
	AllowedOrigins []string
}

// Server exposes stored runs, observations, summaries and skips.
type Server struct {
	store store.Store
	opts  Options
}

// New creates a Server backed by st.
func New(st store.Store, opts Options) *Server {
	return &Server{store: st, opts: opts}
}

// Routes wires middleware and endpoints.
func (s *Server) Routes() http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/runs", func(rr chi.Router) {
		rr.Get("/", s.handleListRuns)
		rr.Route("/{id}", func(ir chi.Router) {
			ir.Get("/", s.handleGetRun)
			ir.Get("/observations", s.handleObservations)
			ir.Get("/summary", s.handleSummary)
			ir.Get("/skips", s.handleSkips)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:   model.RunStatus(q.Get("status")),
		InputDir: q.Get("input_dir"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	obs, err := s.store.ListObservations(r.Context(), run.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if obs == nil {
		obs = []model.Observation{}
	}
	writeJSON(w, http.StatusOK, obs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	obs, err := s.store.ListObservations(r.Context(), run.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows := summary.Summarize(obs)
	if rows == nil {
		rows = []model.SummaryRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSkips(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	skips, err := s.store.ListSkips(r.Context(), run.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if skips == nil {
		skips = []model.Skip{}
	}
	writeJSON(w, http.StatusOK, skips)
}

// run loads the run named in the URL, writing a 404 or 500 when it cannot.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return run, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error("api: request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("api: invalid integer %q", v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
