// Package server exposes analysis sessions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/report-analyst/internal/analyst"
	"github.com/sells-group/report-analyst/internal/config"
	"github.com/sells-group/report-analyst/internal/export"
	"github.com/sells-group/report-analyst/internal/model"
)

// SessionFactory creates isolated sessions.
type SessionFactory interface {
	NewSession(ctx context.Context) (*analyst.Session, error)
}

// Server routes requests to sessions kept in memory. Sessions never share
// cache or history.
type Server struct {
	factory   SessionFactory
	maxUpload int64
	origins   []string
	router    chi.Router

	mu       sync.Mutex
	sessions map[string]*analyst.Session
}

// New creates a Server.
func New(factory SessionFactory, cfg config.ServerConfig) *Server {
	s := &Server{
		factory:   factory,
		maxUpload: int64(cfg.MaxUploadMB) << 20,
		origins:   cfg.AllowedOrigins,
		sessions:  make(map[string]*analyst.Session),
	}
	if s.maxUpload <= 0 {
		s.maxUpload = analyst.MaxUploadBytes
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close closes every open session.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, sess := range s.sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, eris.Wrapf(err, "server: close session %s", id))
		}
		delete(s.sessions, id)
	}
	return errors.Join(errs...)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.withSession)
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/document", s.uploadDocument)
			r.Post("/pages", s.loadPages)
			r.Post("/metrics", s.extractMetrics)
			r.Get("/metrics.csv", s.exportCSV)
			r.Get("/metrics.xlsx", s.exportXLSX)
			r.Post("/analysis", s.generateAnalysis)
			r.Post("/refinements", s.refine)
			r.Get("/history", s.getHistory)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type ctxKey struct{}

func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s.mu.Lock()
		sess, ok := s.sessions[id]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "session not found", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *analyst.Session {
	return r.Context().Value(ctxKey{}).(*analyst.Session)
}

type sessionView struct {
	ID      string                  `json:"id"`
	State   string                  `json:"state"`
	Pages   int                     `json:"pages"`
	Result  *model.ExtractionResult `json:"result,omitempty"`
	History []model.AnalysisVersion `json:"history"`
}

func viewOf(sess *analyst.Session) sessionView {
	return sessionView{
		ID:      sess.ID(),
		State:   sess.State().String(),
		Pages:   sess.PageCount(),
		Result:  sess.Result(),
		History: sess.History(),
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.factory.NewSession(r.Context())
	if err != nil {
		zap.L().Error("server: create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create session", nil)
		return
	}
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(sessionFrom(r)))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
	if err := sess.Close(); err != nil {
		zap.L().Warn("server: close session", zap.String("session_id", sess.ID()), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))

	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, eris.Wrapf(analyst.ErrUploadTooLarge, "server: body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required", nil)
		return
	}
	defer file.Close() //nolint:errcheck

	if err := analyst.ValidateUpload(hdr.Filename, hdr.Size, s.maxUpload); err != nil {
		s.fail(w, err)
		return
	}

	tmp, err := os.CreateTemp("", "report-*.pdf")
	if err != nil {
		s.fail(w, eris.Wrap(err, "server: create temp file"))
		return
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		s.fail(w, eris.Wrap(err, "server: save upload"))
		return
	}
	if err := tmp.Close(); err != nil {
		s.fail(w, eris.Wrap(err, "server: save upload"))
		return
	}

	if err := sess.LoadDocument(r.Context(), tmp.Name()); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) loadPages(w http.ResponseWriter, r *http.Request) {
	var pages []model.Page
	if err := json.NewDecoder(r.Body).Decode(&pages); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	sess := sessionFrom(r)
	if err := sess.LoadPages(pages); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) extractMetrics(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	extract := sess.ExtractMetrics
	if r.URL.Query().Get("retry") == "true" {
		extract = sess.RetryExtraction
	}
	if _, err := extract(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "text/csv", "metrics.csv", export.WriteCSV)
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "metrics.xlsx", export.WriteXLSX)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, contentType, filename string, write func(io.Writer, *model.ExtractionResult) error) {
	result := sessionFrom(r).Result()
	if result.Empty() {
		writeError(w, http.StatusConflict, "no metrics extracted", nil)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := write(w, result); err != nil {
		zap.L().Error("server: export metrics", zap.String("file", filename), zap.Error(err))
	}
}

func (s *Server) generateAnalysis(w http.ResponseWriter, r *http.Request) {
	v, err := sessionFrom(r).GenerateAnalysis(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type refineRequest struct {
	Version      *int   `json:"version"`
	Instructions string `json:"instructions"`
}

func (s *Server) refine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	sess := sessionFrom(r)
	var (
		v   model.AnalysisVersion
		err error
	)
	if req.Version == nil {
		v, err = sess.RefineLatest(r.Context(), req.Instructions)
	} else {
		v, err = sess.Refine(r.Context(), *req.Version, req.Instructions)
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).History())
}

// fail maps an analyst failure to a status code.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var empty *analyst.ExtractionEmptyError
	switch analyst.KindOf(err) {
	case analyst.FailureInput:
		status := http.StatusBadRequest
		if errors.Is(err, analyst.ErrUploadTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, rootMessage(err), nil)
	case analyst.FailureState:
		writeError(w, http.StatusConflict, rootMessage(err), nil)
	case analyst.FailureDataShape:
		errors.As(err, &empty)
		writeError(w, http.StatusUnprocessableEntity, empty.Error(), map[string]string{"raw": empty.Raw})
	case analyst.FailurePermanent:
		zap.L().Error("server: completion rejected", zap.Error(err))
		writeError(w, http.StatusBadGateway, "completion service rejected the request", nil)
	default:
		zap.L().Error("server: completion unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "completion service unavailable, try again", nil)
	}
}

// rootMessage returns the innermost error message, which for analyst
// sentinels is the user-facing text.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, extra map[string]string) {
	body := map[string]string{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}
