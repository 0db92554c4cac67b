package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"jobportal/auth"
	"jobportal/logging"
)

// identityService is the subset of *auth.Service the handlers use.
type identityService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.PublicUser, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	UpdateProfile(ctx context.Context, userID string, upd auth.ProfileUpdate) (auth.PublicUser, error)
	GetUser(ctx context.Context, userID string) (auth.PublicUser, error)
	RequireRole(ctx context.Context, userID string, roles ...auth.Role) (auth.User, error)
}

// Protected resource groups served by other parts of the portal.
const (
	GroupCompany     = "company"
	GroupJob         = "job"
	GroupApplication = "application"
)

// groupRoles lists the roles allowed into a group beyond being signed in.
var groupRoles = map[string][]auth.Role{
	GroupCompany: {auth.RoleRecruiter},
}

// ServerOptions holds transport settings taken from config.
type ServerOptions struct {
	TokenTTL       time.Duration
	CookieSecure   bool
	MaxUploadBytes int64
}

// Server wires the identity service and the session gate to HTTP routes.
type Server struct {
	identity       identityService
	gate           *auth.Gate
	log            logging.Logger
	tokenTTL       time.Duration
	cookieSecure   bool
	maxUploadBytes int64
	groups         map[string]http.Handler
}

// NewServer builds a Server. Zero options fall back to the session defaults.
func NewServer(identity identityService, gate *auth.Gate, log logging.Logger, opts ServerOptions) *Server {
	if log == nil {
		log = logging.Nop{}
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = auth.DefaultTokenTTL
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Server{
		identity:       identity,
		gate:           gate,
		log:            log,
		tokenTTL:       opts.TokenTTL,
		cookieSecure:   opts.CookieSecure,
		maxUploadBytes: opts.MaxUploadBytes,
		groups:         make(map[string]http.Handler),
	}
}

// Mount plugs the handler for a protected group. It must be called before Routes.
func (s *Server) Mount(group string, h http.Handler) error {
	switch group {
	case GroupCompany, GroupJob, GroupApplication:
		s.groups[group] = h
		return nil
	default:
		return fmt.Errorf("api: unknown group %q", group)
	}
}

// Routes returns the root handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/users/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/users/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/users/logout", s.handleLogout)
	mux.HandleFunc("POST /api/v1/users/logout", s.handleLogout)
	mux.Handle("POST /api/v1/users/profile/update", s.gate.Middleware(http.HandlerFunc(s.handleUpdateProfile)))
	mux.Handle("GET /api/v1/users/me", s.gate.Middleware(http.HandlerFunc(s.handleMe)))

	for _, group := range []string{GroupCompany, GroupJob, GroupApplication} {
		h := s.groups[group]
		if h == nil {
			h = http.HandlerFunc(handleNotImplemented)
		}
		if roles := groupRoles[group]; len(roles) > 0 {
			h = s.requireRole(h, roles...)
		}
		mux.Handle("/api/v1/"+group+"/", s.gate.Middleware(h))
	}

	return s.recoverer(mux)
}

// requireRole re-reads the caller's role from the store on every request.
func (s *Server) requireRole(next http.Handler, roles ...auth.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			s.writeError(w, r, auth.ErrTokenInvalid, "")
			return
		}
		if _, err := s.identity.RequireRole(r.Context(), id.UserID, roles...); err != nil {
			s.writeError(w, r, err, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error(r.Context(), "panic in handler", "method", r.Method, "path", r.URL.Path, "panic", fmt.Sprint(rec))
				writeJSON(w, http.StatusInternalServerError, envelope{Message: msgInternal})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type envelope struct {
	Message string           `json:"message"`
	Success bool             `json:"success"`
	User    *auth.PublicUser `json:"user,omitempty"`
}

const (
	msgRegisterMissing = "All Fields Required!"
	msgMissing         = "Something is Missing."
	msgInvalidField    = "Some fields have invalid values."
	msgDuplicateEmail  = "User already Exists with this Email."
	msgInvalidCreds    = "Invalid Email or Password."
	msgRoleMismatch    = "User doesn't exist with current role."
	msgForbidden       = "Access denied for current role."
	msgNotFound        = "User Not Found!"
	msgUnauthenticated = "User not authenticated."
	msgStorage         = "File upload failed."
	msgTooLarge        = "Request body too large."
	msgBadBody         = "Invalid request body."
	msgInternal        = "Internal server error."
	msgNotImplemented  = "Not implemented."
)

// writeError maps err to a status and stable message. missingMsg overrides
// the message for missing fields when non-empty.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, missingMsg string) {
	status, msg := http.StatusInternalServerError, msgInternal

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, auth.ErrMissingField):
		status, msg = http.StatusBadRequest, msgMissing
		if missingMsg != "" {
			msg = missingMsg
		}
	case errors.Is(err, auth.ErrInvalidField):
		status, msg = http.StatusBadRequest, msgInvalidField
	case errors.Is(err, errBadBody):
		status, msg = http.StatusBadRequest, msgBadBody
	case errors.As(err, &tooLarge):
		status, msg = http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.Is(err, auth.ErrDuplicateEmail):
		status, msg = http.StatusConflict, msgDuplicateEmail
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, msgInvalidCreds
	case errors.Is(err, auth.ErrTokenInvalid):
		status, msg = http.StatusUnauthorized, msgUnauthenticated
	case errors.Is(err, auth.ErrRoleMismatch):
		status, msg = http.StatusForbidden, msgRoleMismatch
	case errors.Is(err, auth.ErrForbidden):
		status, msg = http.StatusForbidden, msgForbidden
	case errors.Is(err, auth.ErrUserNotFound):
		status, msg = http.StatusNotFound, msgNotFound
	case errors.Is(err, auth.ErrStorageFailure):
		status, msg = http.StatusBadGateway, msgStorage
		s.log.Warn(r.Context(), "attachment upload failed", "method", r.Method, "path", r.URL.Path, "error", err)
	default:
		s.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, envelope{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotImplemented, envelope{Message: msgNotImplemented})
}
