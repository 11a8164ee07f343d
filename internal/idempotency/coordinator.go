// Package idempotency guarantees at-most-one effective execution per
// client-supplied idempotency key and replays prior responses for retries.
package idempotency

import (
	"context"
	"errors"
	"log"
	"time"
)

const (
	// ResponseTTL bounds how long a completed response is replayable.
	ResponseTTL = 24 * time.Hour

	// LockTTL bounds how long a key stays locked while processing. A unit
	// of work running longer than this can race a retry with the same key;
	// the bound exists to unstick keys held by crashed callers.
	LockTTL = 30 * time.Second
)

// ErrConflict signals a concurrent duplicate: the key's lock is held by an
// in-flight request, so this attempt must not execute.
var ErrConflict = errors.New("a request with this idempotency key is already being processed")

// Outcome is the result of Execute: either a fresh execution or a replay.
type Outcome struct {
	Replayed bool
	Response Response
}

// Coordinator applies the idempotency protocol around a unit of work.
// Idempotency is best-effort: store read failures are treated as cache
// misses, and store write failures are logged and swallowed, so the caller's
// legitimate request is never failed by an unavailable store.
type Coordinator struct {
	store Store
}

// NewCoordinator creates a coordinator over the given store.
func NewCoordinator(store Store) *Coordinator {
	if store == nil {
		panic("store is required")
	}
	return &Coordinator{store: store}
}

// Execute runs fn at most once for the key among concurrent callers.
//
// A cached response with a matching fingerprint is replayed verbatim. A
// cached response with a different fingerprint means the key was reused for
// a new request: the stale entries are cleared and fn runs fresh. If the
// lock is held by another in-flight request, ErrConflict is returned and fn
// does not run. A successful (2xx) result is persisted for replay; any other
// result clears the key so the same key can be retried cleanly.
func (c *Coordinator) Execute(ctx context.Context, key, fingerprint string, fn func() (Response, error)) (*Outcome, error) {
	cached, found, err := c.store.GetResponse(ctx, key)
	if err != nil {
		log.Printf("idempotency: response lookup failed, continuing without cache: %v", err)
		found = false
	}

	if found {
		storedFingerprint, have, err := c.store.GetFingerprint(ctx, key)
		if err != nil {
			log.Printf("idempotency: fingerprint lookup failed, continuing without cache: %v", err)
			have = false
		}
		if have && storedFingerprint == fingerprint {
			log.Printf("idempotency: serving cached response for key %s", key)
			return &Outcome{Replayed: true, Response: *cached}, nil
		}
		// Same key, different request: discard the old entries and treat
		// this as a fresh request.
		log.Printf("idempotency: key %s reused with a different request, clearing", key)
		if err := c.store.Clear(ctx, key); err != nil {
			log.Printf("idempotency: failed to clear key %s: %v", key, err)
		}
	}

	acquired, err := c.store.AcquireLock(ctx, key, LockTTL)
	if err != nil {
		// Fail open: run fn without idempotency protection rather than
		// rejecting a legitimate request.
		log.Printf("idempotency: lock acquisition failed, executing without protection: %v", err)
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		return &Outcome{Response: resp}, nil
	}
	if !acquired {
		return nil, ErrConflict
	}

	resp, err := fn()
	if err != nil {
		if clearErr := c.store.Clear(ctx, key); clearErr != nil {
			log.Printf("idempotency: failed to clear key %s after error: %v", key, clearErr)
		}
		return nil, err
	}

	c.complete(ctx, key, fingerprint, resp)
	return &Outcome{Response: resp}, nil
}

// complete persists a successful response for replay, or clears the key for
// non-2xx results so the same key can be retried.
func (c *Coordinator) complete(ctx context.Context, key, fingerprint string, resp Response) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		resp.StoredAt = time.Now()
		if err := c.store.StoreResponse(ctx, key, fingerprint, &resp, ResponseTTL); err != nil {
			log.Printf("idempotency: failed to store response for key %s: %v", key, err)
		}
		return
	}
	if err := c.store.Clear(ctx, key); err != nil {
		log.Printf("idempotency: failed to clear key %s on error status: %v", key, err)
	}
}
