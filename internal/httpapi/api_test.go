package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lmhq-94/parkit-sub000/internal/auth"
	"github.com/lmhq-94/parkit-sub000/internal/ratelimit"
)

// testEnv assembles the API with in-memory collaborators and a fake clock
// shared by the token service, the auth service and the limiters.
type testEnv struct {
	api     *API
	handler http.Handler
	store   *auth.MemoryStore
	tokens  *auth.TokenService
	svc     *auth.Service
	now     *time.Time
	resets  []string
}

func newTestEnv(t *testing.T, modify ...func(*Options)) *testEnv {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{
		store: auth.NewMemoryStore(),
		now:   &now,
	}
	clock := func() time.Time { return *env.now }

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte("api-access-secret"),
		RefreshSecret: []byte("api-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		ResetTTL:      30 * time.Minute,
		Issuer:        "parkit-test",
	}, auth.WithTokenClock(clock))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	env.tokens = tokens

	sink := auth.ResetSinkFunc(func(_ context.Context, _, token string, _ time.Time) error {
		env.resets = append(env.resets, token)
		return nil
	})
	svc, err := auth.NewService(env.store, env.store, tokens, auth.NewHasher(4),
		auth.WithResetSink(sink),
		auth.WithClock(clock))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	env.svc = svc

	opts := Options{
		Auth:      svc,
		Users:     env.store,
		Resources: env.store,
		Tokens:    tokens,
		Version:   "test",
	}
	for _, m := range modify {
		m(&opts)
	}
	env.api = New(opts)
	env.handler = env.api.Handler()
	return env
}

// register creates an account through the service directly so handler tests
// do not consume rate-limit budget on setup.
func (env *testEnv) register(t *testing.T, email, password string) (*auth.User, auth.TokenPair) {
	t.Helper()
	user, pair, err := env.svc.Register(context.Background(), auth.RegisterInput{Email: email, Password: password})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user, pair
}

func (env *testEnv) do(method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID  string `json:"request_id"`
	RetryAfter int    `json:"retry_after"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorEnvelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, status, rec.Body.String())
	}
	env := decodeError(t, rec)
	if env.Error.Code != code {
		t.Fatalf("error code = %q, want %q", env.Error.Code, code)
	}
	if env.RequestID == "" {
		t.Fatalf("error envelope is missing request_id")
	}
	return env
}

func withTightAuthLimiter(max int) func(*Options) {
	return func(o *Options) {
		o.AuthLimiter = ratelimit.New(ratelimit.Config{Window: 15 * time.Minute, Max: max})
	}
}
