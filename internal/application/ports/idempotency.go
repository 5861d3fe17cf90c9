package ports

import (
	"context"
	"encoding/json"
)

// CachedResponse is the non-authoritative replay payload stored in the fast
// idempotency cache. The transactions table remains the source of truth.
type CachedResponse struct {
	Fingerprint string          `json:"fingerprint"`
	StatusCode  int             `json:"statusCode"`
	Body        json.RawMessage `json:"body"`
}

// IdempotencyCache is a best-effort key -> CachedResponse store with TTL.
// A miss falls through to the transactions table; errors are logged by the
// implementation and must never fail a mutation.
type IdempotencyCache interface {
	// Get returns nil (and no error) on a miss.
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Set(ctx context.Context, key string, response *CachedResponse) error
}

// LockHandle identifies one successful distributed-lock acquisition.
// The token scopes the release: a key whose TTL expired and was reacquired
// by another caller is not spuriously deleted.
type LockHandle struct {
	Keys  []string
	Token string
}

// WalletLock is the cross-instance mutual exclusion over a wallet set.
type WalletLock interface {
	// Acquire locks the deduplicated, lexicographically sorted wallet set.
	// It fails with DISTRIBUTED_LOCK_NOT_ACQUIRED after bounded retries and
	// with LOCK_KEYS_MISSING for an empty set.
	Acquire(ctx context.Context, walletIDs []string) (*LockHandle, error)

	// Release drops every key still held by the handle's token. Errors are
	// logged, never propagated; Release is safe to defer on all exit paths.
	Release(ctx context.Context, handle *LockHandle)
}
