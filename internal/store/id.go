package store

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

// NewID returns a lexically sortable ULID, optionally prefixed ("off_", "trd_").
func NewID(prefix string) string {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return prefix + ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}
