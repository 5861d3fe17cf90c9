package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/coinvault/coinvault/internal/application/ports"
	apperrors "github.com/coinvault/coinvault/internal/domain/errors"
	"github.com/coinvault/coinvault/internal/domain/valueobjects"
)

// BalanceResponse is the balance query payload.
type BalanceResponse struct {
	UserID   string         `json:"userId"`
	Balances []AssetBalance `json:"balances"`
}

// AssetBalance is one per-asset balance, serialized as a decimal string.
type AssetBalance struct {
	AssetCode string `json:"assetCode"`
	AssetName string `json:"assetName"`
	Balance   string `json:"balance"`
}

// GetBalance aggregates the per-asset balances of all the user's wallets,
// optionally filtered by asset code. Results come back sorted by asset code.
func (e *Engine) GetBalance(ctx context.Context, userID uuid.UUID, assetCode string) (*BalanceResponse, error) {
	if userID == uuid.Nil {
		return nil, apperrors.Validation("userId is required")
	}

	exists, err := e.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user existence: %w", err)
	}
	if !exists {
		return nil, apperrors.UserNotFound(userID.String())
	}

	filter := ""
	if assetCode != "" {
		filter, err = valueobjects.NormalizeAssetCode(assetCode)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
	}

	rows, err := e.ledger.UserBalances(ctx, userID, filter)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			rows = nil
		} else {
			return nil, fmt.Errorf("aggregate balances: %w", err)
		}
	}

	if filter != "" && len(rows) == 0 {
		return nil, apperrors.AssetWalletNotFound(filter)
	}

	balances := make([]AssetBalance, 0, len(rows))
	for _, r := range rows {
		balances = append(balances, AssetBalance{
			AssetCode: r.AssetCode,
			AssetName: r.AssetName,
			Balance:   valueobjects.FormatBalance(r.Balance),
		})
	}

	return &BalanceResponse{
		UserID:   userID.String(),
		Balances: balances,
	}, nil
}
