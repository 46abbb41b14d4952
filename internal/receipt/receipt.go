// Package receipt generates the opaque receipt handles handed to consumers.
//
// Handles are ULID strings: 26 characters, Crockford base32, time-sortable.
// A generator draws from one monotonic entropy source, so two handles minted
// in the same millisecond still sort in creation order.
package receipt

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator mints receipt handles and recognises well-formed ones.
type Generator interface {
	NewHandle() (string, error)
	// Validate returns an error if h could not have come from NewHandle.
	Validate(h string) error
}

// ULIDGenerator is the default Generator.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewULIDGenerator returns a generator backed by crypto/rand.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewHandle returns a fresh handle. The mutex keeps the monotonic entropy
// source consistent across concurrent callers.
func (g *ULIDGenerator) NewHandle() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("receipt: generate handle: %w", err)
	}
	return id.String(), nil
}

// Validate returns an error if h is not a well-formed ULID.
func (g *ULIDGenerator) Validate(h string) error {
	if _, err := ulid.ParseStrict(h); err != nil {
		return fmt.Errorf("receipt: invalid handle %q: %w", h, err)
	}
	return nil
}
