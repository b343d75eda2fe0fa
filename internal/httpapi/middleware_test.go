package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/lmhq-94/parkit-sub000/internal/ratelimit"
)

func TestRequestIDGenerated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a generated X-Request-ID")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", "", http.Header{"X-Request-Id": []string{"caller-supplied"}})
	if got := rec.Header().Get("X-Request-ID"); got != "caller-supplied" {
		t.Fatalf("X-Request-ID = %q, want caller-supplied", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", "", nil)
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRateLimitHeadersAndRejection(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.APILimiter = ratelimit.New(ratelimit.Config{Window: time.Minute, Max: 2})
	})

	first := env.do(http.MethodGet, "/healthz", "", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", first.Code)
	}
	if got := first.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Fatalf("X-RateLimit-Limit = %q, want 2", got)
	}
	if got := first.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Fatalf("X-RateLimit-Remaining = %q, want 1", got)
	}
	if first.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatalf("expected X-RateLimit-Reset")
	}

	env.do(http.MethodGet, "/healthz", "", nil)
	third := env.do(http.MethodGet, "/healthz", "", nil)
	envl := wantError(t, third, http.StatusTooManyRequests, "RATE_LIMITED")
	if envl.RetryAfter < 1 || envl.RetryAfter > 60 {
		t.Fatalf("retry_after = %d, want within the one-minute window", envl.RetryAfter)
	}
	ra, err := strconv.Atoi(third.Header().Get("Retry-After"))
	if err != nil || ra != envl.RetryAfter {
		t.Fatalf("Retry-After header = %q, want %d", third.Header().Get("Retry-After"), envl.RetryAfter)
	}
	if got := third.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q, want 0", got)
	}
}

func TestRateLimitKeysOnForwardedFor(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.APILimiter = ratelimit.New(ratelimit.Config{Window: time.Minute, Max: 1})
	})

	a := env.do(http.MethodGet, "/healthz", "", http.Header{"X-Forwarded-For": []string{"10.0.0.1"}})
	if a.Code != http.StatusOK {
		t.Fatalf("first client status = %d, want 200", a.Code)
	}
	blocked := env.do(http.MethodGet, "/healthz", "", http.Header{"X-Forwarded-For": []string{"10.0.0.1, 172.16.0.9"}})
	if blocked.Code != http.StatusTooManyRequests {
		t.Fatalf("same client status = %d, want 429", blocked.Code)
	}
	other := env.do(http.MethodGet, "/healthz", "", http.Header{"X-Forwarded-For": []string{"10.0.0.2"}})
	if other.Code != http.StatusOK {
		t.Fatalf("distinct client status = %d, want 200", other.Code)
	}
}

func TestRecovererConvertsPanics(t *testing.T) {
	env := newTestEnv(t)

	h := RequestID(env.api.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	wantError(t, rec, http.StatusInternalServerError, "INTERNAL")
}

func TestUnknownPathIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
