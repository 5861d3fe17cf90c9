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

var _ ports.AssetTypeRepository = (*AssetTypeRepository)(nil)

// AssetTypeRepository implements ports.AssetTypeRepository on PostgreSQL.
type AssetTypeRepository struct {
	pool *pgxpool.Pool
}

func NewAssetTypeRepository(pool *pgxpool.Pool) *AssetTypeRepository {
	return &AssetTypeRepository{pool: pool}
}

func (r *AssetTypeRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *AssetTypeRepository) Create(ctx context.Context, asset *entities.AssetType) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO asset_types (id, code, name, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := q.Exec(ctx, query, asset.ID(), asset.Code(), asset.Name(), asset.CreatedAt())
	if err != nil {
		if isUniqueViolation(err, "asset_types_code_key") {
			return fmt.Errorf("asset type %s already exists", asset.Code())
		}
		return fmt.Errorf("insert asset type: %w", err)
	}
	return nil
}

func (r *AssetTypeRepository) FindByCode(ctx context.Context, code string) (*entities.AssetType, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, code, name, created_at
		FROM asset_types
		WHERE code = $1
	`

	var (
		id        uuid.UUID
		assetCode string
		name      string
		createdAt time.Time
	)
	err := q.QueryRow(ctx, query, code).Scan(&id, &assetCode, &name, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("scan asset type: %w", err)
	}

	return entities.ReconstructAssetType(id, assetCode, name, createdAt), nil
}
