package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Genzhalo/idp-console/internal/config"
	"github.com/Genzhalo/idp-console/internal/operations"
)

type Server struct {
	svc       *operations.Service
	log       *logrus.Logger
	limiter   *clientLimiter
	staticDir string
}

func NewServer(cfg config.Config, svc *operations.Service, log *logrus.Logger) *Server {
	return &Server{
		svc:       svc,
		log:       log,
		limiter:   newClientLimiter(rate.Limit(cfg.LoginRateLimit), cfg.LoginRateBurst, log),
		staticDir: cfg.StaticDir,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(s.limiter.Handler).Post("/auth/signin", s.handleSignIn)
		r.With(s.authMiddleware).Post("/auth/signout", s.handleSignOut)

		r.Route("/forms", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.handleListForms)
			r.Post("/", s.handleCreateForm)
			r.Get("/{formId}", s.handleGetForm)
			r.Patch("/{formId}", s.handleUpdateForm)
			r.Delete("/{formId}", s.handleDeleteForm)
			r.Post("/{formId}/open", s.handleOpenForm)
			r.Post("/{formId}/close", s.handleCloseForm)
			r.Get("/{formId}/submissions", s.handleListFormSubmissions)
			r.Post("/{formId}/submissions", s.handleCreateSubmission)
		})

		r.Route("/respondents", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.handleListRespondents)
			r.Post("/", s.handleCreateRespondent)
			r.Get("/{respondentId}", s.handleGetRespondent)
			r.Patch("/{respondentId}", s.handleUpdateRespondent)
			r.Delete("/{respondentId}", s.handleDeleteRespondent)
			r.Post("/{respondentId}/merge", s.handleMergeRespondents)
			r.Get("/{respondentId}/submissions", s.handleListRespondentSubmissions)
		})

		r.Route("/submissions", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/{submissionId}", s.handleGetSubmission)
			r.Post("/{submissionId}/status", s.handleUpdateSubmissionStatus)
			r.Delete("/{submissionId}", s.handleDeleteSubmission)
		})

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "route_not_found")
		})
	})

	if s.staticDir != "" {
		r.NotFound(s.serveStatic)
	}
	return r
}

// serveStatic serves files from the static directory and falls back to index.html so
// client side routes resolve.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusNotFound, "route_not_found")
		return
	}
	name := filepath.Join(s.staticDir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		http.ServeFile(w, r, name)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.staticDir, "index.html"))
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, operations.ErrMissingToken)
			return
		}
		ctx := context.WithValue(r.Context(), tokenKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type tokenKey struct{}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type dataResponse struct {
	Data interface{} `json:"data"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, dataResponse{Data: data})
}

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// writeOpError renders a failure returned by the operations layer.
func writeOpError(w http.ResponseWriter, err error) {
	var opErr *operations.Error
	if !errors.As(err, &opErr) {
		writeError(w, http.StatusInternalServerError, operations.ErrServerError)
		return
	}
	writeJSON(w, statusForKind(opErr.Kind), errorResponse{
		Error:   opErr.Code,
		Message: opErr.Message,
		Fields:  opErr.Fields,
	})
}

func statusForKind(kind operations.Kind) int {
	switch kind {
	case operations.KindValidation:
		return http.StatusBadRequest
	case operations.KindUnauthenticated:
		return http.StatusUnauthorized
	case operations.KindForbidden:
		return http.StatusForbidden
	case operations.KindNotFound:
		return http.StatusNotFound
	case operations.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
