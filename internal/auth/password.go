package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hasher wraps bcrypt with a cost taken from configuration so verification
// cost can be raised over time without breaking previously stored hashes.
type Hasher struct {
	cost int
}

// NewHasher clamps cost into bcrypt's supported range; zero selects the
// bcrypt default.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash produces a salted hash of the plaintext. Repeated calls with the same
// plaintext yield different hashes.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored hash. A malformed or
// empty stored hash simply verifies false; nothing about the account leaks
// to the caller.
func (h *Hasher) Verify(password, storedHash string) bool {
	if storedHash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}
