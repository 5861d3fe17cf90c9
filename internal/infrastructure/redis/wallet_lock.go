package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coinvault/coinvault/internal/application/locking"
	"github.com/coinvault/coinvault/internal/application/ports"
	apperrors "github.com/coinvault/coinvault/internal/domain/errors"
)

// releaseScript deletes a lock key only while it still holds our token, so a
// key whose TTL expired and was reacquired elsewhere is never deleted.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

var _ ports.WalletLock = (*WalletLock)(nil)

var (
	lockRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinvault",
		Subsystem: "wallet",
		Name:      "lock_retries_total",
		Help:      "Lock acquisition attempts that found a key held and backed off",
	})

	lockExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinvault",
		Subsystem: "wallet",
		Name:      "lock_exhausted_total",
		Help:      "Lock acquisitions that gave up after the full retry budget",
	})
)

// WalletLock is the cross-instance mutual exclusion over wallet sets,
// built on SET NX PX with per-acquisition tokens.
//
// Keys are always acquired in sorted order, so two instances contending for
// overlapping wallet pairs cannot deadlock; the loser backs off and retries.
type WalletLock struct {
	client     Commands
	ttl        time.Duration
	retryCount int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewWalletLock creates the lock. ttl bounds how long a crashed holder can
// block others; retryCount is the total attempt budget and retryDelay the
// base backoff between attempts.
func NewWalletLock(client Commands, ttl time.Duration, retryCount int, retryDelay time.Duration, log *slog.Logger) *WalletLock {
	if log == nil {
		log = slog.Default()
	}
	return &WalletLock{
		client:     client,
		ttl:        ttl,
		retryCount: retryCount,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Acquire locks the deduplicated, sorted wallet set all-or-nothing. A partial
// acquisition is rolled back before backing off. After retryCount attempts in
// total it gives up with DISTRIBUTED_LOCK_NOT_ACQUIRED.
func (l *WalletLock) Acquire(ctx context.Context, walletIDs []string) (*ports.LockHandle, error) {
	keys := locking.ToWalletLockKeys(walletIDs)
	if len(keys) == 0 {
		return nil, apperrors.LockKeysMissing()
	}

	attempts := l.retryCount
	if attempts < 1 {
		attempts = 1
	}

	token := uuid.NewString()
	for attempt := 1; attempt <= attempts; attempt++ {
		acquired, err := l.tryAcquire(ctx, keys, token)
		if err != nil {
			return nil, err
		}
		if acquired {
			return &ports.LockHandle{Keys: keys, Token: token}, nil
		}

		lockRetriesTotal.Inc()
		if attempt == attempts {
			break
		}
		// Linear backoff: delay, 2*delay, 3*delay, ...
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay * time.Duration(attempt)):
		}
	}

	lockExhaustedTotal.Inc()
	return nil, apperrors.DistributedLockNotAcquired()
}

func (l *WalletLock) tryAcquire(ctx context.Context, keys []string, token string) (bool, error) {
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.releaseKeys(ctx, held, token)
			return false, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if !ok {
			l.releaseKeys(ctx, held, token)
			return false, nil
		}
		held = append(held, key)
	}
	return true, nil
}

// Release drops every key still held by the handle's token. Errors are
// logged, never returned; the TTL reclaims anything left behind.
func (l *WalletLock) Release(ctx context.Context, handle *ports.LockHandle) {
	if handle == nil {
		return
	}
	l.releaseKeys(ctx, handle.Keys, handle.Token)
}

func (l *WalletLock) releaseKeys(ctx context.Context, keys []string, token string) {
	for _, key := range keys {
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			l.log.WarnContext(ctx, "wallet lock release failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}
