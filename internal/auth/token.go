package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token classes. The token_type claim is checked explicitly on verification
// so an access token can never stand in for a refresh or reset token even
// though all three share the JWT encoding.
const (
	TokenTypeAccess        = "access"
	TokenTypeRefresh       = "refresh"
	TokenTypePasswordReset = "password_reset"
)

const bearerPrefix = "bearer "

// Claims is the identity payload embedded in every signed token.
type Claims struct {
	Email          string `json:"email,omitempty"`
	Role           Role   `json:"role,omitempty"`
	OrganizationID string `json:"org,omitempty"`
	TokenType      string `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID is the token subject.
func (c *Claims) UserID() string { return c.Subject }

// TokenConfig carries per-class signing material and lifetimes. Access and
// refresh secrets must differ so that a leak of one cannot forge the other;
// the reset secret falls back to the refresh secret when unset.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	ResetSecret   []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
	Issuer        string
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
	defaultResetTTL   = 30 * time.Minute
)

// TokenService issues and verifies signed bearer tokens. All operations are
// pure computations; no I/O happens here.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// TokenOption configures TokenService.
type TokenOption func(*TokenService)

// WithTokenClock overrides the time source, for tests.
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService validates the signing configuration and applies defaults.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if len(cfg.ResetSecret) == 0 {
		cfg.ResetSecret = cfg.RefreshSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = defaultResetTTL
	}
	svc := &TokenService{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// IssueAccessToken signs a short-lived access token for the user.
func (s *TokenService) IssueAccessToken(user *User) (string, time.Time, error) {
	return s.issue(user, TokenTypeAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for the user.
func (s *TokenService) IssueRefreshToken(user *User) (string, time.Time, error) {
	return s.issue(user, TokenTypeRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
}

// IssuePasswordResetToken signs a short-lived single-purpose reset token.
func (s *TokenService) IssuePasswordResetToken(user *User) (string, time.Time, error) {
	return s.issue(user, TokenTypePasswordReset, s.cfg.ResetSecret, s.cfg.ResetTTL)
}

func (s *TokenService) issue(user *User, tokenType string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Email:          user.Email,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		TokenType:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccessToken checks signature, expiry and class of an access token.
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	return s.verify(token, TokenTypeAccess, s.cfg.AccessSecret)
}

// VerifyRefreshToken checks signature, expiry and class of a refresh token.
func (s *TokenService) VerifyRefreshToken(token string) (*Claims, error) {
	return s.verify(token, TokenTypeRefresh, s.cfg.RefreshSecret)
}

// VerifyPasswordResetToken checks signature, expiry and the password_reset
// discriminator, so an access or refresh token cannot be replayed into the
// reset flow.
func (s *TokenService) VerifyPasswordResetToken(token string) (*Claims, error) {
	return s.verify(token, TokenTypePasswordReset, s.cfg.ResetSecret)
}

func (s *TokenService) verify(token, wantType string, secret []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// Expired is reported distinctly so clients know to refresh rather
		// than re-login.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if s.cfg.Issuer != "" && claims.Issuer != s.cfg.Issuer {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt != nil && claims.ExpiresAt.Before(claims.IssuedAt.Time) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractBearer parses a "Bearer <token>" header value. It is a best-effort
// parse, not a validation step: missing or malformed input yields "".
func ExtractBearer(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
