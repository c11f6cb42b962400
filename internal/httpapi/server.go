package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/enrollassist/internal/config"
	"github.com/ent0n29/enrollassist/internal/knowledge"
	"github.com/ent0n29/enrollassist/internal/observability"
	"github.com/ent0n29/enrollassist/internal/session"
)

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	registry *knowledge.Registry
	metrics  *observability.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
	static   http.Handler
}

func New(cfg config.Config, sessions *session.Manager, registry *knowledge.Registry, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		static:   newStaticHandler(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if origins := s.corsOrigins(); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/status", s.handleStatus)

	r.Route("/v1/assist", func(r chi.Router) {
		r.Get("/widget", s.handleWidgetSettings)
		r.Post("/session", s.handleCreateSession)
		r.Get("/session/ws", s.handleSessionWS)
		r.Get("/session/{id}", s.handleGetSession)
		r.Post("/session/{id}/messages", s.handleSubmitMessage)
		r.Post("/session/{id}/end", s.handleEndSession)
	})

	r.Route("/v1/knowledge", func(r chi.Router) {
		r.Get("/", s.handleKnowledgeInfo)
		r.Get("/schema", s.handleKnowledgeSchema)
		r.Post("/match", s.handleKnowledgeMatch)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	table := s.registry.Current()
	if table == nil || table.Len() == 0 {
		respondError(w, http.StatusServiceUnavailable, "knowledge_unavailable", "no knowledge table loaded")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"knowledge_version": table.Version(),
		"knowledge_entries": table.Len(),
	})
}

// checkOrigin allows same-origin browsers, non-browser clients and configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

func (s *Server) corsOrigins() []string {
	if s.cfg.AllowAnyOrigin {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondSessionError maps manager errors onto HTTP status codes.
func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrEnded):
		respondError(w, http.StatusConflict, "session_ended", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
