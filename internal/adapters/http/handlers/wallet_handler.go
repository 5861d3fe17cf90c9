// Package handlers contains the gin handlers that translate HTTP requests
// into use case calls.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coinvault/coinvault/internal/adapters/http/common"
	"github.com/coinvault/coinvault/internal/adapters/http/middleware"
	"github.com/coinvault/coinvault/internal/application/usecases/wallet"
	apperrors "github.com/coinvault/coinvault/internal/domain/errors"
	"github.com/coinvault/coinvault/internal/domain/valueobjects"
)

// WalletService is the slice of the wallet engine the handler needs.
type WalletService interface {
	Topup(ctx context.Context, req wallet.MutationRequest) (*wallet.MutationResult, error)
	Bonus(ctx context.Context, req wallet.MutationRequest) (*wallet.MutationResult, error)
	Spend(ctx context.Context, req wallet.MutationRequest) (*wallet.MutationResult, error)
	GetBalance(ctx context.Context, userID uuid.UUID, assetCode string) (*wallet.BalanceResponse, error)
}

// WalletHandler serves the wallet mutation and balance endpoints.
type WalletHandler struct {
	engine WalletService
	log    *slog.Logger
}

// NewWalletHandler builds a WalletHandler.
func NewWalletHandler(engine WalletService, log *slog.Logger) *WalletHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WalletHandler{engine: engine, log: log}
}

// mutationBody is the shared request shape of topup, bonus and spend.
// Amount accepts a JSON number or a decimal string.
type mutationBody struct {
	UserID    string              `json:"userId" binding:"required,uuid"`
	AssetCode string              `json:"assetCode" binding:"required,asset_code"`
	Amount    valueobjects.Amount `json:"amount"`
}

type mutationFunc func(ctx context.Context, req wallet.MutationRequest) (*wallet.MutationResult, error)

// Topup handles POST /wallet/topup.
func (h *WalletHandler) Topup(c *gin.Context) {
	h.mutate(c, "topup", h.engine.Topup)
}

// Bonus handles POST /wallet/bonus.
func (h *WalletHandler) Bonus(c *gin.Context) {
	h.mutate(c, "bonus", h.engine.Bonus)
}

// Spend handles POST /wallet/spend.
func (h *WalletHandler) Spend(c *gin.Context) {
	h.mutate(c, "spend", h.engine.Spend)
}

func (h *WalletHandler) mutate(c *gin.Context, operation string, fn mutationFunc) {
	var body mutationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.RecordMutation(operation, http.StatusBadRequest, false)
		common.WriteError(c, apperrors.Validation(err.Error()))
		return
	}

	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		middleware.RecordMutation(operation, http.StatusBadRequest, false)
		common.WriteError(c, apperrors.Validation("userId must be a valid UUID"))
		return
	}

	key := c.GetString(common.IdempotencyKeyContextKey)
	fp := c.GetString(common.FingerprintContextKey)
	if key == "" || fp == "" {
		middleware.RecordMutation(operation, http.StatusInternalServerError, false)
		common.WriteError(c, apperrors.IdempotencyContextMissing())
		return
	}

	result, err := fn(c.Request.Context(), wallet.MutationRequest{
		UserID:         userID,
		AssetCode:      body.AssetCode,
		Amount:         body.Amount,
		IdempotencyKey: key,
		Fingerprint:    fp,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if appErr, ok := apperrors.AsAppError(err); ok {
			status = appErr.HTTPStatus
		}
		middleware.RecordMutation(operation, status, false)
		common.WriteError(c, err)
		return
	}

	middleware.RecordMutation(operation, result.StatusCode, result.Replayed)
	common.WriteRaw(c, result.StatusCode, result.Body, result.Replayed)
}

// GetBalance handles GET /wallet/:userId/balance. An optional assetCode
// query parameter narrows the response to one asset.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		common.WriteError(c, apperrors.Validation("userId must be a valid UUID"))
		return
	}

	resp, err := h.engine.GetBalance(c.Request.Context(), userID, c.Query("assetCode"))
	if err != nil {
		common.WriteError(c, err)
		return
	}

	common.WriteJSON(c, http.StatusOK, resp)
}
