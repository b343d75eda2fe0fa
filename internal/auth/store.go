package auth

import (
	"context"
	"time"
)

// UserStore describes the account persistence consumed by this subsystem.
// The relational store behind it is an external collaborator; only these
// operations are required.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// RefreshTokenStore is the denylist for consumed refresh and reset tokens.
// Tokens are stateless JWTs; rotation and logout revoke the consumed jti so
// a stolen token cannot be replayed until natural expiry.
type RefreshTokenStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResourceStore resolves the owning user of a domain resource. It is used
// only by the ownership middleware; resource CRUD lives elsewhere.
type ResourceStore interface {
	OwnerID(ctx context.Context, resourceType, resourceID string) (string, error)
}
