package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinvault/coinvault/internal/application/ports"
	"github.com/coinvault/coinvault/internal/domain/entities"
	"github.com/coinvault/coinvault/internal/domain/valueobjects"
)

var _ ports.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository implements ports.TransactionRepository on PostgreSQL.
// The unique index on idempotency_key is the serialization point for
// competing first-time requests with the same key.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *TransactionRepository) InsertProcessing(ctx context.Context, tx *entities.Transaction) error {
	q := r.getQuerier(ctx)

	// DO NOTHING instead of catching 23505: a raised unique violation would
	// abort the surrounding transaction and poison the replay lookup that
	// follows a duplicate.
	query := `
		INSERT INTO transactions (
			id, idempotency_key, request_fingerprint, type, status,
			amount, asset_type_id, source_wallet_id, destination_wallet_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	tag, err := q.Exec(ctx, query,
		tx.ID(),
		tx.IdempotencyKey(),
		tx.RequestFingerprint(),
		string(tx.Type()),
		string(tx.Status()),
		tx.Amount().Int64(),
		tx.AssetTypeID(),
		tx.SourceWalletID(),
		tx.DestinationWalletID(),
		tx.CreatedAt(),
		tx.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrDuplicateIdempotencyKey
	}
	return nil
}

func (r *TransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, idempotency_key, request_fingerprint, type, status,
		       amount, asset_type_id, source_wallet_id, destination_wallet_id,
		       response_code, response_body, error_code, created_at, updated_at
		FROM transactions
		WHERE idempotency_key = $1
	`

	return scanTransaction(q.QueryRow(ctx, query, key))
}

// SetResult records the terminal status and the response to replay.
func (r *TransactionRepository) SetResult(ctx context.Context, id uuid.UUID,
	status entities.TransactionStatus, responseCode int,
	responseBody json.RawMessage, errorCode string) error {
	q := r.getQuerier(ctx)

	query := `
		UPDATE transactions
		SET status = $2, response_code = $3, response_body = $4,
		    error_code = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, id, string(status), responseCode, responseBody, errorCode)
	if err != nil {
		return fmt.Errorf("set transaction result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (*entities.Transaction, error) {
	var (
		id, assetTypeID      uuid.UUID
		sourceID, destID     uuid.UUID
		key, fingerprint     string
		txType, status       string
		amount               int64
		responseCode         *int
		responseBody         []byte
		errorCode            *string
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&id, &key, &fingerprint, &txType, &status,
		&amount, &assetTypeID, &sourceID, &destID,
		&responseCode, &responseBody, &errorCode, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	ec := ""
	if errorCode != nil {
		ec = *errorCode
	}

	return entities.ReconstructTransaction(
		id, key, fingerprint,
		entities.TransactionType(txType),
		entities.TransactionStatus(status),
		valueobjects.Amount(amount),
		assetTypeID, sourceID, destID,
		responseCode, responseBody, ec,
		createdAt, updatedAt,
	), nil
}
