// Package locking holds the deterministic ordering and verification
// primitives shared by the distributed lock and the row-lock protocol.
// Every locker must agree on this ordering; it is what prevents deadlock
// when mutations touch overlapping wallet sets.
package locking

import (
	"sort"

	apperrors "github.com/coinvault/coinvault/internal/domain/errors"
)

// WalletLockKeyPrefix namespaces distributed lock keys.
const WalletLockKeyPrefix = "lock:wallet:"

// SortUniqueWalletIDs deduplicates and sorts wallet ids ascending by code
// point. This is the canonical lock and row-lock order used everywhere.
func SortUniqueWalletIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ToWalletLockKeys derives the distributed-lock keys for a wallet set.
func ToWalletLockKeys(ids []string) []string {
	sorted := SortUniqueWalletIDs(ids)
	keys := make([]string, len(sorted))
	for i, id := range sorted {
		keys[i] = WalletLockKeyPrefix + id
	}
	return keys
}

// OptimisticUpdate is the outcome of one conditional version bump.
type OptimisticUpdate struct {
	WalletID     string
	UpdatedCount int64
}

// AssertOptimisticUpdates fails with OPTIMISTIC_LOCK_CONFLICT if any bump
// affected a row count other than exactly one, naming the offending wallet.
func AssertOptimisticUpdates(results []OptimisticUpdate) error {
	for _, r := range results {
		if r.UpdatedCount != 1 {
			return apperrors.OptimisticLockConflict(r.WalletID)
		}
	}
	return nil
}
