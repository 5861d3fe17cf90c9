package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinvault/coinvault/internal/application/ports"
	"github.com/coinvault/coinvault/internal/domain/entities"
)

var _ ports.WalletRepository = (*WalletRepository)(nil)

// WalletRepository implements ports.WalletRepository on PostgreSQL,
// including the in-database half of the concurrency protocol: ordered
// FOR UPDATE row locks and the conditional version bump.
type WalletRepository struct {
	pool *pgxpool.Pool
}

func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

func (r *WalletRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *WalletRepository) Create(ctx context.Context, wallet *entities.Wallet) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO wallets (
			id, owner_type, user_id, system_code, asset_type_id,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var userID *uuid.UUID
	if uid := wallet.UserID(); uid != uuid.Nil {
		userID = &uid
	}
	var systemCode *string
	if sc := wallet.SystemCode(); sc != "" {
		systemCode = &sc
	}

	_, err := q.Exec(ctx, query,
		wallet.ID(),
		string(wallet.OwnerType()),
		userID,
		systemCode,
		wallet.AssetTypeID(),
		wallet.Version(),
		wallet.CreatedAt(),
		wallet.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "wallets_user_asset") {
			return fmt.Errorf("wallet already exists for user %s and asset %s",
				wallet.UserID(), wallet.AssetTypeID())
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("wallet references missing user or asset type: %w", err)
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

func (r *WalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)

	query := walletSelect + ` WHERE id = $1`
	return scanWallet(q.QueryRow(ctx, query, id))
}

func (r *WalletRepository) FindUserWallet(ctx context.Context, userID, assetTypeID uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)

	query := walletSelect + ` WHERE owner_type = 'USER' AND user_id = $1 AND asset_type_id = $2`
	return scanWallet(q.QueryRow(ctx, query, userID, assetTypeID))
}

func (r *WalletRepository) FindSystemWallet(ctx context.Context, systemCode string, assetTypeID uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)

	query := walletSelect + ` WHERE owner_type = 'SYSTEM' AND system_code = $1 AND asset_type_id = $2`
	return scanWallet(q.QueryRow(ctx, query, systemCode, assetTypeID))
}

// LockWallets takes FOR UPDATE locks on the given wallets in ascending id
// order. The fixed ordering keeps concurrent mutations over overlapping
// wallet pairs deadlock-free; locks are held until the transaction ends.
func (r *WalletRepository) LockWallets(ctx context.Context, ids []uuid.UUID) ([]ports.LockedWallet, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, version
		FROM wallets
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("lock wallets: %w", err)
	}
	defer rows.Close()

	locked := make([]ports.LockedWallet, 0, len(ids))
	for rows.Next() {
		var lw ports.LockedWallet
		if err := rows.Scan(&lw.ID, &lw.Version); err != nil {
			return nil, fmt.Errorf("scan locked wallet: %w", err)
		}
		locked = append(locked, lw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked wallets: %w", err)
	}
	return locked, nil
}

// BumpVersion applies the optimistic update and returns the affected row
// count. Zero means the version moved since it was read.
func (r *WalletRepository) BumpVersion(ctx context.Context, id uuid.UUID, expectedVersion int64) (int64, error) {
	q := r.getQuerier(ctx)

	query := `
		UPDATE wallets
		SET version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`

	tag, err := q.Exec(ctx, query, id, expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("bump wallet version: %w", err)
	}
	return tag.RowsAffected(), nil
}

const walletSelect = `
	SELECT id, owner_type, user_id, system_code, asset_type_id,
	       version, created_at, updated_at
	FROM wallets`

func scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var (
		id, assetTypeID      uuid.UUID
		ownerType            string
		userID               *uuid.UUID
		systemCode           *string
		version              int64
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&id, &ownerType, &userID, &systemCode, &assetTypeID,
		&version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}

	code := ""
	if systemCode != nil {
		code = *systemCode
	}

	wallet, err := entities.ReconstructWallet(
		id, entities.OwnerType(ownerType), userID, code, assetTypeID,
		version, createdAt, updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet row: %w", err)
	}
	return wallet, nil
}
