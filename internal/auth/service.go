package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

const minPasswordLength = 8

// ResetSink receives password-reset tokens for out-of-band delivery.
// Email/SMS transport is an external collaborator; the service never puts
// the token into an HTTP response.
type ResetSink interface {
	DeliverResetToken(ctx context.Context, email, token string, expiresAt time.Time) error
}

// ResetSinkFunc adapts a function to the ResetSink interface.
type ResetSinkFunc func(ctx context.Context, email, token string, expiresAt time.Time) error

func (f ResetSinkFunc) DeliverResetToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	return f(ctx, email, token, expiresAt)
}

// Service composes hasher, token service and stores into the
// register/login/refresh/password use cases. It holds no per-request state.
type Service struct {
	users     UserStore
	revoked   RefreshTokenStore
	tokens    *TokenService
	hasher    *Hasher
	resetSink ResetSink
	now       func() time.Time
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithResetSink sets the reset-token delivery collaborator.
func WithResetSink(sink ResetSink) ServiceOption {
	return func(s *Service) { s.resetSink = sink }
}

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the orchestration service. All dependencies are explicit
// so tests can inject doubles.
func NewService(users UserStore, revoked RefreshTokenStore, tokens *TokenService, hasher *Hasher, opts ...ServiceOption) (*Service, error) {
	if users == nil || revoked == nil || tokens == nil || hasher == nil {
		return nil, errors.New("auth: users, revoked store, tokens and hasher are required")
	}
	svc := &Service{users: users, revoked: revoked, tokens: tokens, hasher: hasher, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterInput is the profile accepted on self-registration. Role is always
// client here; privileged roles are provisioned by an administrator.
type RegisterInput struct {
	Email          string
	Password       string
	OrganizationID string
}

// Register creates an account and issues the first token pair.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, TokenPair, error) {
	email, password := normalizeEmail(in.Email), in.Password
	if email == "" || password == "" {
		return nil, TokenPair{}, ErrMissingCredentials
	}
	if !validEmail(email) {
		return nil, TokenPair{}, ErrValidation.WithMessage("email is not valid")
	}
	if len(password) < minPasswordLength {
		return nil, TokenPair{}, ErrValidation.WithMessage("password must be at least 8 characters")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	now := s.now().UTC()
	user := &User{
		Email:          email,
		PasswordHash:   hash,
		Role:           RoleClient,
		OrganizationID: strings.TrimSpace(in.OrganizationID),
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.mintPair(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Login authenticates credentials and issues a token pair. Unknown email,
// inactive account and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*User, TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, TokenPair{}, ErrMissingCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if !user.Active {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, TokenPair{}, err
	}
	user.LastLoginAt = &now
	pair, err := s.mintPair(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token: the account is reloaded so role and
// active-status changes since issuance take effect, the consumed token's
// jti is revoked, and a fresh pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*User, TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, TokenPair{}, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if revoked {
		return nil, TokenPair{}, ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, TokenPair{}, ErrInvalidToken
		}
		return nil, TokenPair{}, err
	}
	if !user.Active {
		return nil, TokenPair{}, ErrInvalidToken
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.mintPair(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Logout revokes the presented refresh token. Already-invalid tokens are a
// no-op so the endpoint stays idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// ChangePassword swaps the stored hash after verifying the current password.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return ErrMissingCredentials
	}
	if len(next) < minPasswordLength {
		return ErrValidation.WithMessage("password must be at least 8 characters")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return ErrInvalidCredentials.WithMessage("current password is incorrect")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

// ForgotPassword always reports success. When the account exists and is
// active a single-purpose reset token goes to the configured sink; unknown
// emails are a deliberate no-op to prevent account enumeration.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrValidation.WithMessage("email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.Active || s.resetSink == nil {
		return nil
	}
	token, expiresAt, err := s.tokens.IssuePasswordResetToken(user)
	if err != nil {
		return err
	}
	return s.resetSink.DeliverResetToken(ctx, user.Email, token, expiresAt)
}

// ResetPassword consumes a reset token and stores the new password hash.
// The token_type discriminator is enforced by VerifyPasswordResetToken, so
// access and refresh tokens are rejected here even with a valid signature.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if newPassword == "" {
		return ErrMissingCredentials
	}
	if len(newPassword) < minPasswordLength {
		return ErrValidation.WithMessage("password must be at least 8 characters")
	}
	claims, err := s.tokens.VerifyPasswordResetToken(resetToken)
	if err != nil {
		return err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if !user.Active {
		return ErrInvalidToken
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	// Single use: a consumed reset token cannot be replayed.
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *Service) mintPair(user *User) (TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
