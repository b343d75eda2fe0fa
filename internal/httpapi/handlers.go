package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lmhq-94/parkit-sub000/internal/auth"
	"github.com/lmhq-94/parkit-sub000/internal/obs"
	"github.com/lmhq-94/parkit-sub000/internal/ratelimit"
)

// ReadyProbe reports backing-store readiness for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options wires the API's collaborators. Everything is injected so tests can
// substitute doubles.
type Options struct {
	Logger      *zap.Logger
	Auth        *auth.Service
	Users       auth.UserStore
	Resources   auth.ResourceStore
	Tokens      *auth.TokenService
	AuthLimiter *ratelimit.Limiter
	APILimiter  *ratelimit.Limiter
	ReadyProbe  ReadyProbe
	Version     string
}

// API is the HTTP layer.
type API struct {
	mux         *http.ServeMux
	log         *zap.Logger
	auth        *auth.Service
	users       auth.UserStore
	resources   auth.ResourceStore
	tokens      *auth.TokenService
	authLimiter *ratelimit.Limiter
	apiLimiter  *ratelimit.Limiter
	readyProbe  ReadyProbe
	version     string
}

func New(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a := &API{
		mux:         http.NewServeMux(),
		log:         opts.Logger,
		auth:        opts.Auth,
		users:       opts.Users,
		resources:   opts.Resources,
		tokens:      opts.Tokens,
		authLimiter: opts.AuthLimiter,
		apiLimiter:  opts.APILimiter,
		readyProbe:  opts.ReadyProbe,
		version:     opts.Version,
	}

	// Credential endpoints sit behind the tight limiter; they never pass
	// through the bearer middleware because there is no prior identity.
	a.mux.Handle("/v1/auth/register", a.sensitive(http.HandlerFunc(a.handleRegister)))
	a.mux.Handle("/v1/auth/login", a.sensitive(http.HandlerFunc(a.handleLogin)))
	a.mux.Handle("/v1/auth/refresh", a.sensitive(http.HandlerFunc(a.handleRefresh)))
	a.mux.Handle("/v1/auth/logout", a.sensitive(http.HandlerFunc(a.handleLogout)))
	a.mux.Handle("/v1/auth/forgot-password", a.sensitive(http.HandlerFunc(a.handleForgotPassword)))
	a.mux.Handle("/v1/auth/reset-password", a.sensitive(http.HandlerFunc(a.handleResetPassword)))

	a.mux.Handle("/v1/auth/change-password", a.RequireAuth(http.HandlerFunc(a.handleChangePassword)))
	a.mux.Handle("/v1/auth/me", a.RequireAuth(http.HandlerFunc(a.handleMe)))

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/v1/info", a.OptionalAuth(http.HandlerFunc(a.Info)))
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	if a.apiLimiter != nil {
		h = a.rateLimit(a.apiLimiter, "api", h)
	}
	h = obs.Instrument(h)
	h = a.logging(h)
	h = SecurityHeaders(h)
	h = a.recoverer(h)
	h = RequestID(h)
	return h
}

func (a *API) sensitive(next http.Handler) http.Handler {
	if a.authLimiter == nil {
		return next
	}
	return a.rateLimit(a.authLimiter, "auth", next)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "parkit-auth",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// Info is reachable anonymously; with a valid bearer token the response also
// names the caller.
func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"name":    "parkit-auth",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	}
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		payload["user_id"] = principal.User.ID
	}
	writeJSON(w, http.StatusOK, payload)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the coded error envelope clients branch on.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	payload := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

// writeAuthError maps any error through the auth taxonomy; non-coded errors
// become an opaque 500.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	coded := auth.AsError(err)
	writeError(w, r, coded.Status, coded.Code, coded.Message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}
