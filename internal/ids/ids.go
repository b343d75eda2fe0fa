// Package ids generates the sortable identifiers used for accounts and
// request correlation.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Monotonic entropy keeps ids strictly increasing within the same
// millisecond; the OS CSPRNG seeds it so ids are not guessable.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable ULID.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
