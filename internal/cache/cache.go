// Package cache is the content-addressed render cache. Entries are keyed
// by digest and append-only: once written under a key they are never
// mutated, so concurrent readers can never observe a partial entry.
// The persistent store survives across runs; the Resolver adds per-run
// coordination (single-flight rendering, negative caching of failures).
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is one persisted cache record.
type Entry struct {
	Key       string // digest hex
	Name      string // artifact file name, e.g. "<hex>.svg"
	Path      string // absolute on-disk path ("" for in-memory stores)
	MediaType string
	CreatedAt time.Time
}

// Store persists rendered artifacts keyed by digest.
// Implementations must make Put atomic: a Get must never observe a
// partially written artifact.
type Store interface {
	// Get returns the entry for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Put stores content under key and returns the resulting entry.
	// Putting an existing key returns the existing entry unchanged.
	Put(ctx context.Context, key string, content []byte, mediaType string) (Entry, error)
	Close() error
}

// RenderFunc produces artifact content and its media type on a cache miss.
type RenderFunc func(ctx context.Context) (content []byte, mediaType string, err error)

// Resolver provides get-or-render semantics on top of a Store.
// For a given key, at most one render is in flight at a time within a
// run; concurrent requests for the same key wait on the single render.
// A render failure is remembered for the rest of the run (never
// persisted) so a broken span is reported once per document set, not
// re-rendered per occurrence.
type Resolver struct {
	store Store
	group singleflight.Group

	mu       sync.Mutex
	failures map[string]error
}

// NewResolver wraps store with single-flight coordination.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:    store,
		failures: make(map[string]error),
	}
}

// Resolve returns the cached entry for key, rendering and storing it
// first if absent. The error from a failed render is returned to every
// waiter and to all later callers in the same run.
func (r *Resolver) Resolve(ctx context.Context, key string, render RenderFunc) (Entry, error) {
	v, err, _ := r.group.Do(key, func() (any, error) {
		if e, ok, err := r.store.Get(ctx, key); err != nil {
			return Entry{}, err
		} else if ok {
			return e, nil
		}

		r.mu.Lock()
		if ferr, ok := r.failures[key]; ok {
			r.mu.Unlock()
			return Entry{}, ferr
		}
		r.mu.Unlock()

		content, mediaType, err := render(ctx)
		if err != nil {
			r.mu.Lock()
			r.failures[key] = err
			r.mu.Unlock()
			return Entry{}, err
		}
		return r.store.Put(ctx, key, content, mediaType)
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

// extensionFor maps a media type to an artifact file extension.
func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/svg+xml":
		return "svg"
	case "image/png":
		return "png"
	default:
		return "bin"
	}
}
