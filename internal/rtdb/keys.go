// ABOUTME: Push-key generation for store-assigned child keys
// ABOUTME: ULIDs with monotonic entropy so keys sort in generation order

package rtdb

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// keyGenerator issues ULIDs that are strictly increasing even within the
// same millisecond. ulid.Monotonic is not safe for concurrent use, so reads
// are serialized here.
type keyGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newKeyGenerator() *keyGenerator {
	return &keyGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *keyGenerator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}
