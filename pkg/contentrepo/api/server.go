package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
)

// Server exposes a content-repository Service over HTTP.
type Server struct {
	service contentrepo.Service
	logger  *slog.Logger
	auth    *jwtauth.JWTAuth
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithJWTSecret enables bearer-token authentication with an HS256 secret.
// Without it the server trusts the X-Principal header.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.auth = jwtauth.New("HS256", []byte(secret), nil)
		}
	}
}

// NewServer creates an HTTP server wrapper around the service.
func NewServer(service contentrepo.Service, opts ...Option) *Server {
	s := &Server{
		service: service,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes sets up the HTTP routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if s.auth != nil {
			r.Use(jwtauth.Verifier(s.auth))
			r.Use(jwtauth.Authenticator(s.auth))
		}

		r.Get("/repository", s.handleGetRepositoryInfo)

		// Create operations
		r.Post("/folders", s.handleCreateFolder)
		r.Post("/documents", s.handleCreateDocument)
		r.Post("/versioned-documents", s.handleCreateVersionedDocument)

		// Lookup
		r.Get("/objects/by-path", s.handleGetObjectByPath)
		r.Get("/objects/{objectID}", s.handleGetObject)
		r.Get("/objects/{objectID}/children", s.handleGetChildren)
		r.Get("/objects/{objectID}/path", s.handleGetFolderPath)

		// Mutation
		r.Patch("/objects/{objectID}", s.handleUpdateProperties)
		r.Delete("/objects/{objectID}", s.handleDeleteObject)
		r.Delete("/objects/{objectID}/tree", s.handleDeleteTree)

		// Filing
		r.Post("/objects/{objectID}/move", s.handleMove)
		r.Put("/objects/{objectID}/parents/{folderID}", s.handleAddToFolder)
		r.Delete("/objects/{objectID}/parents/{folderID}", s.handleRemoveFromFolder)

		// Versioning
		r.Post("/objects/{objectID}/checkout", s.handleCheckOut)
		r.Post("/objects/{objectID}/checkin", s.handleCheckIn)
		r.Delete("/objects/{objectID}/checkout", s.handleCancelCheckOut)
		r.Get("/objects/{objectID}/versions", s.handleGetAllVersions)
		r.Get("/objects/{objectID}/versions/latest", s.handleGetLatestVersion)

		// Content
		r.Put("/objects/{objectID}/content", s.handleSetContent)
		r.Get("/objects/{objectID}/content", s.handleGetContent)
		r.Get("/objects/{objectID}/content-url", s.handleGetContentURL)

		// ACL and capabilities
		r.Get("/objects/{objectID}/acl", s.handleGetACL)
		r.Post("/objects/{objectID}/acl", s.handleApplyACL)
		r.Get("/objects/{objectID}/allowable-actions", s.handleGetAllowableActions)

		// Types
		r.Get("/types", s.handleListTypes)
		r.Get("/types/{typeID}", s.handleGetType)
		r.Post("/types", s.handleRegisterType)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}

// logRequests emits one structured log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// principal resolves the calling principal: the JWT subject when
// authentication is enabled, the X-Principal header otherwise.
func (s *Server) principal(r *http.Request) string {
	if s.auth != nil {
		if _, claims, err := jwtauth.FromContext(r.Context()); err == nil {
			if sub, ok := claims["sub"].(string); ok && sub != "" {
				return sub
			}
		}
	}
	return r.Header.Get("X-Principal")
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError maps service error kinds onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	switch {
	case errors.Is(err, contentrepo.ErrInvalidArgument):
		status, kind = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, contentrepo.ErrObjectNotFound):
		status, kind = http.StatusNotFound, "object_not_found"
	case errors.Is(err, contentrepo.ErrPermissionDenied):
		status, kind = http.StatusForbidden, "permission_denied"
	case errors.Is(err, contentrepo.ErrUpdateConflict):
		status, kind = http.StatusConflict, "update_conflict"
	case errors.Is(err, contentrepo.ErrContentAlreadyExists):
		status, kind = http.StatusConflict, "content_already_exists"
	case errors.Is(err, contentrepo.ErrConstraintViolation):
		status, kind = http.StatusConflict, "constraint_violation"
	case errors.Is(err, contentrepo.ErrNotSupported):
		status, kind = http.StatusNotImplemented, "not_supported"
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error(), Kind: kind})
}
