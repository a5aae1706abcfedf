// Package cache provides pluggable byte caches for verdicts and
// snapshots.
//
// The evaluator's in-process memo table is always authoritative; the
// Cache interface is the optional cross-process layer on top of it.
// Backends:
//   - FileCache: directory-backed, for CLI usage
//   - LRUCache: bounded in-memory, for embedding
//   - RedisCache: shared, for multi-instance deployments
//   - NullCache: disabled caching
//
// Keys are generated by a Keyer. Verdict keys embed the snapshot
// fingerprint, so any registry or graph mutation naturally misses the
// stale entries instead of requiring cross-process invalidation wiring.
package cache

import (
	"context"
	"time"

	"github.com/matzehuels/stackgate/pkg/timeline"
)

// Default TTLs per key class.
const (
	// TTLVerdict bounds how long a computed verdict may be served from a
	// shared backend. Fingerprinted keys make staleness structural rather
	// than temporal, so this is generous.
	TTLVerdict = 24 * time.Hour

	// TTLSnapshot bounds cached snapshot documents.
	TTLSnapshot = 7 * 24 * time.Hour
)

// Cache is the interface for cache backends.
type Cache interface {
	// Get retrieves a value. The second return value reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// VerdictKeyOpts captures the evaluation options that change a verdict's
// identity. Verdicts computed under different policies must not share
// cache entries.
type VerdictKeyOpts struct {
	DeprecatedIsUnstable bool
}

// Keyer generates cache keys for the engine's cacheable artifacts.
type Keyer interface {
	// VerdictKey generates a key for one package verdict within a
	// snapshot identified by its content fingerprint.
	VerdictKey(fingerprint, packageID string, release timeline.Release, opts VerdictKeyOpts) string

	// SnapshotKey generates a key for a serialized snapshot document.
	SnapshotKey(id string) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

// VerdictKey generates a key for one package verdict.
func (k *DefaultKeyer) VerdictKey(fingerprint, packageID string, release timeline.Release, opts VerdictKeyOpts) string {
	return hashKey("verdict", fingerprint, packageID, string(release), opts.DeprecatedIsUnstable)
}

// SnapshotKey generates a key for a snapshot document.
func (k *DefaultKeyer) SnapshotKey(id string) string {
	return hashKey("snapshot", id)
}

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation,
// so different ecosystems sharing one Redis instance get separate
// namespaces.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// VerdictKey generates a prefixed verdict key.
func (k *ScopedKeyer) VerdictKey(fingerprint, packageID string, release timeline.Release, opts VerdictKeyOpts) string {
	return k.prefix + k.inner.VerdictKey(fingerprint, packageID, release, opts)
}

// SnapshotKey generates a prefixed snapshot key.
func (k *ScopedKeyer) SnapshotKey(id string) string {
	return k.prefix + k.inner.SnapshotKey(id)
}
