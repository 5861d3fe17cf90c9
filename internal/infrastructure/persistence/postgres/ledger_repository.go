package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinvault/coinvault/internal/application/ports"
	"github.com/coinvault/coinvault/internal/domain/entities"
)

var _ ports.LedgerRepository = (*LedgerRepository)(nil)

// LedgerRepository implements ports.LedgerRepository on PostgreSQL. Entries
// are append-only; balances exist only as aggregates over them.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *LedgerRepository) Append(ctx context.Context, entries ...*entities.LedgerEntry) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO ledger_entries (
			id, transaction_id, wallet_id, asset_type_id,
			entry_type, amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query,
			e.ID(), e.TransactionID(), e.WalletID(), e.AssetTypeID(),
			string(e.EntryType()), e.Amount().Int64(), e.CreatedAt(),
		)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
	}
	return nil
}

// WalletBalance derives the balance as SUM(credits) - SUM(debits). Zero for
// a wallet with no entries.
func (r *LedgerRepository) WalletBalance(ctx context.Context, walletID, assetTypeID uuid.UUID) (int64, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT COALESCE(SUM(
			CASE WHEN entry_type = 'CREDIT' THEN amount ELSE -amount END
		), 0)
		FROM ledger_entries
		WHERE wallet_id = $1 AND asset_type_id = $2
	`

	var balance int64
	if err := q.QueryRow(ctx, query, walletID, assetTypeID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("derive wallet balance: %w", err)
	}
	return balance, nil
}

// UserBalances aggregates per-asset balances over the user's wallets. The
// LEFT JOIN keeps wallets with no entries in the result with a zero balance.
func (r *LedgerRepository) UserBalances(ctx context.Context, userID uuid.UUID, assetCode string) ([]ports.AssetBalance, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT a.code, a.name, COALESCE(SUM(
			CASE WHEN e.entry_type = 'CREDIT' THEN e.amount
			     WHEN e.entry_type = 'DEBIT' THEN -e.amount
			     ELSE 0 END
		), 0)
		FROM wallets w
		JOIN asset_types a ON a.id = w.asset_type_id
		LEFT JOIN ledger_entries e ON e.wallet_id = w.id
		WHERE w.owner_type = 'USER' AND w.user_id = $1
		  AND ($2 = '' OR a.code = $2)
		GROUP BY a.code, a.name
		ORDER BY a.code ASC
	`

	rows, err := q.Query(ctx, query, userID, assetCode)
	if err != nil {
		return nil, fmt.Errorf("aggregate user balances: %w", err)
	}
	defer rows.Close()

	var balances []ports.AssetBalance
	for rows.Next() {
		var b ports.AssetBalance
		if err := rows.Scan(&b.AssetCode, &b.AssetName, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance rows: %w", err)
	}
	return balances, nil
}
