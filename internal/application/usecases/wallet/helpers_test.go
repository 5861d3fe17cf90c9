package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinvault/coinvault/internal/application/ports"
	"github.com/coinvault/coinvault/internal/domain/entities"
	"github.com/coinvault/coinvault/internal/domain/events"
	"github.com/coinvault/coinvault/internal/domain/valueobjects"
)

// memStore is an in-memory stand-in for the whole persistence layer. It
// implements every repository port plus a snapshotting unit of work, so the
// engine's rollback behaviour is observable in tests.
type memStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*entities.User
	assets  map[string]*entities.AssetType
	wallets map[uuid.UUID]*entities.Wallet
	txs     map[string]*entities.Transaction // by idempotency key
	entries []*entities.LedgerEntry
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[uuid.UUID]*entities.User{},
		assets:  map[string]*entities.AssetType{},
		wallets: map[uuid.UUID]*entities.Wallet{},
		txs:     map[string]*entities.Transaction{},
	}
}

// UserRepository

func (s *memStore) Create(ctx context.Context, u *entities.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID()] = u
	return nil
}

func (s *memStore) FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, ports.ErrNotFound
}

func (s *memStore) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (s *memStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

// assetRepo adapts memStore to ports.AssetTypeRepository (Create collides
// with the user repository method, hence the wrapper).
type assetRepo struct{ s *memStore }

func (r assetRepo) Create(ctx context.Context, a *entities.AssetType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.assets[a.Code()] = a
	return nil
}

func (r assetRepo) FindByCode(ctx context.Context, code string) (*entities.AssetType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.assets[code]; ok {
		return a, nil
	}
	return nil, ports.ErrNotFound
}

// walletRepo adapts memStore to ports.WalletRepository.
type walletRepo struct{ s *memStore }

func (r walletRepo) Create(ctx context.Context, w *entities.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.wallets[w.ID()] = w
	return nil
}

func (r walletRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.wallets[id]; ok {
		return w, nil
	}
	return nil, ports.ErrNotFound
}

func (r walletRepo) FindUserWallet(ctx context.Context, userID, assetTypeID uuid.UUID) (*entities.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.wallets {
		if w.OwnerType() == entities.OwnerTypeUser && w.UserID() == userID && w.AssetTypeID() == assetTypeID {
			return w, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r walletRepo) FindSystemWallet(ctx context.Context, systemCode string, assetTypeID uuid.UUID) (*entities.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.wallets {
		if w.OwnerType() == entities.OwnerTypeSystem && w.SystemCode() == systemCode && w.AssetTypeID() == assetTypeID {
			return w, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r walletRepo) LockWallets(ctx context.Context, ids []uuid.UUID) ([]ports.LockedWallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	locked := make([]ports.LockedWallet, 0, len(ids))
	for _, id := range ids {
		if w, ok := r.s.wallets[id]; ok {
			locked = append(locked, ports.LockedWallet{ID: id, Version: w.Version()})
		}
	}
	return locked, nil
}

func (r walletRepo) BumpVersion(ctx context.Context, id uuid.UUID, expectedVersion int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok || w.Version() != expectedVersion {
		return 0, nil
	}
	uid := w.UserID()
	var uidPtr *uuid.UUID
	if uid != uuid.Nil {
		uidPtr = &uid
	}
	bumped, err := entities.ReconstructWallet(
		w.ID(), w.OwnerType(), uidPtr, w.SystemCode(), w.AssetTypeID(),
		w.Version()+1, w.CreatedAt(), time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	r.s.wallets[id] = bumped
	return 1, nil
}

// txRepo adapts memStore to ports.TransactionRepository.
type txRepo struct{ s *memStore }

func (r txRepo) InsertProcessing(ctx context.Context, tx *entities.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.txs[tx.IdempotencyKey()]; ok {
		return ports.ErrDuplicateIdempotencyKey
	}
	r.s.txs[tx.IdempotencyKey()] = tx
	return nil
}

func (r txRepo) FindByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tx, ok := r.s.txs[key]; ok {
		return tx, nil
	}
	return nil, ports.ErrNotFound
}

func (r txRepo) SetResult(ctx context.Context, id uuid.UUID, status entities.TransactionStatus,
	responseCode int, responseBody json.RawMessage, errorCode string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for key, tx := range r.s.txs {
		if tx.ID() == id {
			code := responseCode
			r.s.txs[key] = entities.ReconstructTransaction(
				tx.ID(), tx.IdempotencyKey(), tx.RequestFingerprint(), tx.Type(), status,
				tx.Amount(), tx.AssetTypeID(), tx.SourceWalletID(), tx.DestinationWalletID(),
				&code, responseBody, errorCode, tx.CreatedAt(), time.Now().UTC(),
			)
			return nil
		}
	}
	return ports.ErrNotFound
}

// ledgerRepo adapts memStore to ports.LedgerRepository.
type ledgerRepo struct{ s *memStore }

func (r ledgerRepo) Append(ctx context.Context, entries ...*entities.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.entries = append(r.s.entries, entries...)
	return nil
}

func (r ledgerRepo) WalletBalance(ctx context.Context, walletID, assetTypeID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum int64
	for _, e := range r.s.entries {
		if e.WalletID() == walletID && e.AssetTypeID() == assetTypeID {
			sum += e.SignedAmount()
		}
	}
	return sum, nil
}

func (r ledgerRepo) UserBalances(ctx context.Context, userID uuid.UUID, assetCode string) ([]ports.AssetBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	byAsset := map[string]*ports.AssetBalance{}
	for _, w := range r.s.wallets {
		if w.OwnerType() != entities.OwnerTypeUser || w.UserID() != userID {
			continue
		}
		var asset *entities.AssetType
		for _, a := range r.s.assets {
			if a.ID() == w.AssetTypeID() {
				asset = a
			}
		}
		if asset == nil || (assetCode != "" && asset.Code() != assetCode) {
			continue
		}
		row := &ports.AssetBalance{AssetCode: asset.Code(), AssetName: asset.Name()}
		for _, e := range r.s.entries {
			if e.WalletID() == w.ID() && e.AssetTypeID() == w.AssetTypeID() {
				row.Balance += e.SignedAmount()
			}
		}
		byAsset[asset.Code()] = row
	}

	out := make([]ports.AssetBalance, 0, len(byAsset))
	for _, code := range sortedKeys(byAsset) {
		out = append(out, *byAsset[code])
	}
	return out, nil
}

func sortedKeys(m map[string]*ports.AssetBalance) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}

// memUoW emulates transactional semantics by snapshotting the store and
// restoring it when the callback errors.
type memUoW struct{ s *memStore }

func (u memUoW) Execute(ctx context.Context, fn func(context.Context) error) error {
	u.s.mu.Lock()
	txsSnap := make(map[string]*entities.Transaction, len(u.s.txs))
	for k, v := range u.s.txs {
		txsSnap[k] = v
	}
	walletsSnap := make(map[uuid.UUID]*entities.Wallet, len(u.s.wallets))
	for k, v := range u.s.wallets {
		walletsSnap[k] = v
	}
	entriesSnap := append([]*entities.LedgerEntry(nil), u.s.entries...)
	u.s.mu.Unlock()

	if err := fn(ctx); err != nil {
		u.s.mu.Lock()
		u.s.txs = txsSnap
		u.s.wallets = walletsSnap
		u.s.entries = entriesSnap
		u.s.mu.Unlock()
		return err
	}
	return nil
}

// memLock is a single-process wallet lock with the same blocking shape as
// the Redis implementation: all-or-nothing acquisition with retries.
type memLock struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLock() *memLock {
	return &memLock{held: map[string]string{}}
}

func (l *memLock) Acquire(ctx context.Context, walletIDs []string) (*ports.LockHandle, error) {
	keys := make([]string, 0, len(walletIDs))
	seen := map[string]struct{}{}
	for _, id := range walletIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, "lock:wallet:"+id)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no wallet ids supplied")
	}

	token := uuid.NewString()
	for attempt := 0; attempt < 5000; attempt++ {
		if l.tryAll(keys, token) {
			return &ports.LockHandle{Keys: keys, Token: token}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil, fmt.Errorf("lock unavailable")
}

func (l *memLock) tryAll(keys []string, token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	acquired := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, taken := l.held[k]; taken {
			for _, a := range acquired {
				delete(l.held, a)
			}
			return false
		}
		l.held[k] = token
		acquired = append(acquired, k)
	}
	return true
}

func (l *memLock) Release(ctx context.Context, handle *ports.LockHandle) {
	if handle == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range handle.Keys {
		if l.held[k] == handle.Token {
			delete(l.held, k)
		}
	}
}

// memCache is an in-memory idempotency cache; failures can be injected.
type memCache struct {
	mu      sync.Mutex
	data    map[string]*ports.CachedResponse
	failGet bool
	failSet bool
}

func newMemCache() *memCache {
	return &memCache{data: map[string]*ports.CachedResponse{}}
}

func (c *memCache) Get(ctx context.Context, key string) (*ports.CachedResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, fmt.Errorf("cache unavailable")
	}
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, nil
}

func (c *memCache) Set(ctx context.Context, key string, response *ports.CachedResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return fmt.Errorf("cache unavailable")
	}
	c.data[key] = response
	return nil
}

func (c *memCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string]*ports.CachedResponse{}
}

// memPublisher records published events.
type memPublisher struct {
	mu     sync.Mutex
	posted []events.TransactionPosted
}

func (p *memPublisher) PublishTransactionPosted(ctx context.Context, e events.TransactionPosted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posted = append(p.posted, e)
	return nil
}

// fixture bundles the engine and its fakes with a seeded world.
type fixture struct {
	engine    *Engine
	store     *memStore
	cache     *memCache
	lock      *memLock
	publisher *memPublisher

	user     *entities.User
	gold     *entities.AssetType
	diamonds *entities.AssetType
	goldWallet     *entities.Wallet
	diamondWallet  *entities.Wallet
	goldTreasury   *entities.Wallet
	diamondTreasury *entities.Wallet
}

// newFixture seeds a user holding two assets, with both treasuries funded.
func newFixture() *fixture {
	store := newMemStore()
	cache := newMemCache()
	lock := newMemLock()
	publisher := &memPublisher{}

	f := &fixture{
		store:     store,
		cache:     cache,
		lock:      lock,
		publisher: publisher,
	}

	f.user, _ = entities.NewUser("alice@example.com")
	store.users[f.user.ID()] = f.user

	f.gold, _ = entities.NewAssetType("GOLD_COINS", "Gold Coins")
	f.diamonds, _ = entities.NewAssetType("DIAMONDS", "Diamonds")
	store.assets[f.gold.Code()] = f.gold
	store.assets[f.diamonds.Code()] = f.diamonds

	f.goldWallet, _ = entities.NewUserWallet(f.user.ID(), f.gold.ID())
	f.diamondWallet, _ = entities.NewUserWallet(f.user.ID(), f.diamonds.ID())
	f.goldTreasury, _ = entities.NewSystemWallet(entities.SystemCodeTreasury, f.gold.ID())
	f.diamondTreasury, _ = entities.NewSystemWallet(entities.SystemCodeTreasury, f.diamonds.ID())
	for _, w := range []*entities.Wallet{f.goldWallet, f.diamondWallet, f.goldTreasury, f.diamondTreasury} {
		store.wallets[w.ID()] = w
	}

	f.engine = NewEngine(
		store, assetRepo{store}, walletRepo{store}, txRepo{store}, ledgerRepo{store},
		cache, lock, memUoW{store}, publisher, nil,
	)
	return f
}

// fund appends a credit entry outside any transaction, emulating the
// issuance bootstrap of the seed script.
func (f *fixture) fund(w *entities.Wallet, assetID uuid.UUID, amount int64) {
	a, _ := valueobjects.NewAmount(amount)
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.entries = append(f.store.entries, entities.NewCredit(uuid.New(), w.ID(), assetID, a))
}

func mustAmount(v int64) valueobjects.Amount {
	a, err := valueobjects.NewAmount(v)
	if err != nil {
		panic(err)
	}
	return a
}

func (f *fixture) request(key, fp string, amount int64) MutationRequest {
	return MutationRequest{
		UserID:         f.user.ID(),
		AssetCode:      "GOLD_COINS",
		Amount:         mustAmount(amount),
		IdempotencyKey: key,
		Fingerprint:    fp,
	}
}

func (f *fixture) ledgerEntryCount() int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return len(f.store.entries)
}
