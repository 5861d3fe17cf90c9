// Package ports declares the interfaces the application layer depends on.
// Infrastructure packages implement them; tests substitute in-memory fakes.
package ports

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/coinvault/coinvault/internal/domain/entities"
)

// Sentinel errors surfaced by repositories.
var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicateIdempotencyKey is returned when inserting a transaction
	// whose idempotency key already exists. It is the serialization point
	// for competing first-time requests.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already exists")
)

// UserRepository stores users.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	FindByEmail(ctx context.Context, email string) (*entities.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// AssetTypeRepository stores asset types. Codes are unique and uppercase.
type AssetTypeRepository interface {
	Create(ctx context.Context, asset *entities.AssetType) error
	FindByCode(ctx context.Context, code string) (*entities.AssetType, error)
}

// LockedWallet is the (id, version) pair returned by a row lock.
type LockedWallet struct {
	ID      uuid.UUID
	Version int64
}

// WalletRepository stores wallets and implements the in-database half of the
// concurrency protocol: ordered row locks and the conditional version bump.
type WalletRepository interface {
	Create(ctx context.Context, wallet *entities.Wallet) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
	FindUserWallet(ctx context.Context, userID, assetTypeID uuid.UUID) (*entities.Wallet, error)
	FindSystemWallet(ctx context.Context, systemCode string, assetTypeID uuid.UUID) (*entities.Wallet, error)

	// LockWallets acquires FOR UPDATE row locks on the given wallets,
	// ordered by id ascending, holding them until the enclosing transaction
	// ends. It returns one LockedWallet per row actually locked.
	LockWallets(ctx context.Context, ids []uuid.UUID) ([]LockedWallet, error)

	// BumpVersion runs the optimistic update
	// `SET version = version+1 WHERE id = $1 AND version = $2`
	// and returns the number of rows affected (0 or 1).
	BumpVersion(ctx context.Context, id uuid.UUID, expectedVersion int64) (int64, error)
}

// TransactionRepository stores the audit/idempotency records.
type TransactionRepository interface {
	// InsertProcessing inserts a new PROCESSING row. A duplicate idempotency
	// key surfaces as ErrDuplicateIdempotencyKey and must leave any enclosing
	// transaction usable, so the caller can read the existing row for replay.
	InsertProcessing(ctx context.Context, tx *entities.Transaction) error

	FindByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error)

	// SetResult records the terminal status and response on the row.
	SetResult(ctx context.Context, id uuid.UUID, status entities.TransactionStatus,
		responseCode int, responseBody json.RawMessage, errorCode string) error
}

// AssetBalance is one row of a grouped balance query.
type AssetBalance struct {
	AssetCode string
	AssetName string
	Balance   int64
}

// LedgerRepository appends postings and derives balances. There is no cached
// balance column anywhere; these aggregates are the only balance source.
type LedgerRepository interface {
	Append(ctx context.Context, entries ...*entities.LedgerEntry) error
	WalletBalance(ctx context.Context, walletID, assetTypeID uuid.UUID) (int64, error)

	// UserBalances aggregates per-asset balances over all the user's wallets,
	// optionally filtered by asset code (empty string means all), sorted by
	// asset code ascending. Wallets with no entries yield a zero balance.
	UserBalances(ctx context.Context, userID uuid.UUID, assetCode string) ([]AssetBalance, error)
}
