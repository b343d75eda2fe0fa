// Package audit emits structured security events (logins, password changes,
// token refreshes) to the shared logger. Events are a sink only; nothing in
// the request path depends on them succeeding.
package audit

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lmhq-94/parkit-sub000/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// SetLogger installs the destination logger. Call once at startup.
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event writes a security event enriched with request and user context.
func Event(ctx context.Context, event string, fields ...zap.Field) {
	event = strings.TrimSpace(event)
	if event == "" {
		return
	}
	enriched := make([]zap.Field, 0, len(fields)+3)
	enriched = append(enriched, zap.String("type", "audit"))
	if rid := requestIDFromContext(ctx); rid != "" {
		enriched = append(enriched, zap.String("request_id", rid))
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		enriched = append(enriched, zap.String("user_id", userID))
	}
	enriched = append(enriched, fields...)

	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Info(event, enriched...)
}
