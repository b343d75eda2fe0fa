package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lmhq-94/parkit-sub000/internal/ids"
)

// MemoryStore is an in-memory UserStore/RefreshTokenStore/ResourceStore.
// It backs tests and secret-less local runs; production wiring uses the
// PostgreSQL implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string
	revoked map[string]time.Time
	owners  map[string]string // resourceType/resourceID -> owner user id
}

var (
	_ UserStore         = (*MemoryStore)(nil)
	_ RefreshTokenStore = (*MemoryStore)(nil)
	_ ResourceStore     = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		revoked: make(map[string]time.Time),
		owners:  make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return ErrUserAlreadyExists
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	clone := *u
	s.users[u.ID] = &clone
	s.byEmail[email] = u.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *s.users[id]
	return &clone, nil
}

func (s *MemoryStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	t := at
	u.LastLoginAt = &t
	return nil
}

// SetActive flips the account flag; deactivation blocks authentication
// without deleting the record.
func (s *MemoryStore) SetActive(userID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.Active = active
	}
}

// SetRole reassigns the account's role. Role provisioning is an
// administrative action outside the self-service surface.
func (s *MemoryStore) SetRole(userID string, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.Role = role
	}
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
			purged++
		}
	}
	return purged, nil
}

// SetOwner registers a resource owner for ownership checks.
func (s *MemoryStore) SetOwner(resourceType, resourceID, ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[resourceType+"/"+resourceID] = ownerID
}

func (s *MemoryStore) OwnerID(_ context.Context, resourceType, resourceID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.owners[resourceType+"/"+resourceID]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}
