package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinvault/coinvault/internal/application/ports"
	apperrors "github.com/coinvault/coinvault/internal/domain/errors"
)

// fakeRedis is an in-memory Commands implementation covering exactly the
// commands the package issues: GET, SET, SET NX PX and the conditional
// delete script.
type fakeRedis struct {
	mu        sync.Mutex
	data      map[string]string
	setNXSeen map[string]int
	failGet   bool
	failSet   bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, setNXSeen: map[string]int{}}
}

func asString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	f.data[key] = asString(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setNXSeen[key]++
	if f.failSet {
		return redis.NewBoolResult(false, errors.New("connection refused"))
	}
	if _, taken := f.data[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = asString(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Conditional delete: DEL only while the key holds our token.
	if f.data[keys[0]] == asString(args[0]) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) holds(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeRedis) setNXCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setNXSeen[key]
}

func TestIdempotencyCacheRoundtrip(t *testing.T) {
	client := newFakeRedis()
	cache := NewIdempotencyCache(client, time.Hour, nil)
	ctx := context.Background()

	// Miss before any write.
	got, err := cache.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	stored := &ports.CachedResponse{
		Fingerprint: "fp-1",
		StatusCode:  http.StatusOK,
		Body:        json.RawMessage(`{"balance":"100"}`),
	}
	require.NoError(t, cache.Set(ctx, "key-1", stored))

	// Entries live under the idem:response: namespace.
	assert.True(t, client.holds("idem:response:key-1"))

	got, err = cache.Get(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fp-1", got.Fingerprint)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.JSONEq(t, `{"balance":"100"}`, string(got.Body))
}

func TestIdempotencyCacheCorruptEntryIsAMiss(t *testing.T) {
	client := newFakeRedis()
	client.data["idem:response:key-1"] = "{not json"
	cache := NewIdempotencyCache(client, time.Hour, nil)

	got, err := cache.Get(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdempotencyCacheErrors(t *testing.T) {
	client := newFakeRedis()
	client.failGet = true
	client.failSet = true
	cache := NewIdempotencyCache(client, time.Hour, nil)
	ctx := context.Background()

	_, err := cache.Get(ctx, "key-1")
	assert.Error(t, err)

	err = cache.Set(ctx, "key-1", &ports.CachedResponse{StatusCode: http.StatusOK})
	assert.Error(t, err)
}

func newTestLock(client Commands) *WalletLock {
	return NewWalletLock(client, 5*time.Second, 3, time.Millisecond, nil)
}

func TestWalletLockAcquireRelease(t *testing.T) {
	client := newFakeRedis()
	lock := newTestLock(client)
	ctx := context.Background()

	handle, err := lock.Acquire(ctx, []string{"w2", "w1", "w2"})
	require.NoError(t, err)

	// Deduplicated and sorted.
	assert.Equal(t, []string{"lock:wallet:w1", "lock:wallet:w2"}, handle.Keys)
	assert.NotEmpty(t, handle.Token)
	assert.True(t, client.holds("lock:wallet:w1"))
	assert.True(t, client.holds("lock:wallet:w2"))

	lock.Release(ctx, handle)
	assert.False(t, client.holds("lock:wallet:w1"))
	assert.False(t, client.holds("lock:wallet:w2"))

	// Released keys are immediately acquirable again.
	handle, err = lock.Acquire(ctx, []string{"w1", "w2"})
	require.NoError(t, err)
	lock.Release(ctx, handle)
}

func TestWalletLockEmptySet(t *testing.T) {
	lock := newTestLock(newFakeRedis())

	_, err := lock.Acquire(context.Background(), nil)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeLockKeysMissing, appErr.Code)

	_, err = lock.Acquire(context.Background(), []string{""})
	appErr, ok = apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeLockKeysMissing, appErr.Code)
}

func TestWalletLockContentionExhaustsRetries(t *testing.T) {
	client := newFakeRedis()
	client.data["lock:wallet:w2"] = "someone-else"
	lock := newTestLock(client)

	_, err := lock.Acquire(context.Background(), []string{"w1", "w2"})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeLockNotAcquired, appErr.Code)
	assert.Equal(t, http.StatusLocked, appErr.HTTPStatus)

	// Partial acquisition was rolled back on every attempt, and the retry
	// count bounds the total number of attempts.
	assert.False(t, client.holds("lock:wallet:w1"))
	assert.Equal(t, "someone-else", client.data["lock:wallet:w2"])
	assert.Equal(t, 3, client.setNXCount("lock:wallet:w2"))
}

func TestWalletLockZeroRetryCountStillTriesOnce(t *testing.T) {
	client := newFakeRedis()
	lock := NewWalletLock(client, 5*time.Second, 0, time.Millisecond, nil)

	handle, err := lock.Acquire(context.Background(), []string{"w1"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.setNXCount("lock:wallet:w1"))
	lock.Release(context.Background(), handle)

	held := newFakeRedis()
	held.data["lock:wallet:w1"] = "someone-else"
	lock = NewWalletLock(held, 5*time.Second, 0, time.Millisecond, nil)

	_, err = lock.Acquire(context.Background(), []string{"w1"})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeLockNotAcquired, appErr.Code)
	assert.Equal(t, 1, held.setNXCount("lock:wallet:w1"))
}

func TestWalletLockRetriesUntilHolderReleases(t *testing.T) {
	client := newFakeRedis()
	client.data["lock:wallet:w1"] = "someone-else"
	lock := NewWalletLock(client, 5*time.Second, 10, time.Millisecond, nil)

	go func() {
		time.Sleep(3 * time.Millisecond)
		client.mu.Lock()
		delete(client.data, "lock:wallet:w1")
		client.mu.Unlock()
	}()

	handle, err := lock.Acquire(context.Background(), []string{"w1"})
	require.NoError(t, err)
	lock.Release(context.Background(), handle)
}

func TestWalletLockReleaseIsTokenScoped(t *testing.T) {
	client := newFakeRedis()
	lock := newTestLock(client)
	ctx := context.Background()

	handle, err := lock.Acquire(ctx, []string{"w1"})
	require.NoError(t, err)

	// Simulate TTL expiry plus reacquisition by another instance.
	client.mu.Lock()
	client.data["lock:wallet:w1"] = "other-token"
	client.mu.Unlock()

	lock.Release(ctx, handle)
	assert.Equal(t, "other-token", client.data["lock:wallet:w1"])

	// Releasing a nil handle is a no-op.
	lock.Release(ctx, nil)
}

func TestWalletLockCancelledContext(t *testing.T) {
	client := newFakeRedis()
	client.data["lock:wallet:w1"] = "someone-else"
	lock := NewWalletLock(client, 5*time.Second, 100, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lock.Acquire(ctx, []string{"w1"})
	assert.ErrorIs(t, err, context.Canceled)
}
