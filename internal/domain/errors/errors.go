// Package errors defines the typed application errors for the wallet core.
//
// Every failure that can reach a client is an *AppError carrying a stable
// machine code and an HTTP status. A single boundary in the HTTP layer maps
// AppError to the wire envelope; everything below it just returns errors.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable external error codes.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeIdempotencyKeyMissing  = "IDEMPOTENCY_KEY_MISSING"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeAssetTypeNotFound      = "ASSET_TYPE_NOT_FOUND"
	CodeUserWalletNotFound     = "USER_WALLET_NOT_FOUND"
	CodeAssetWalletNotFound    = "ASSET_WALLET_NOT_FOUND"
	CodeIdempotencyKeyReused   = "IDEMPOTENCY_KEY_REUSED_WITH_DIFFERENT_REQUEST"
	CodeRequestInProgress      = "REQUEST_ALREADY_IN_PROGRESS"
	CodeIdempotencyStateLost   = "IDEMPOTENCY_STATE_NOT_FOUND"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeOptimisticLockConflict = "OPTIMISTIC_LOCK_CONFLICT"
	CodeLockedWalletMismatch   = "LOCKED_WALLET_MISMATCH"
	CodeLockNotAcquired        = "DISTRIBUTED_LOCK_NOT_ACQUIRED"
	CodeLockKeysMissing        = "LOCK_KEYS_MISSING"
	CodeTreasuryNotConfigured  = "TREASURY_WALLET_NOT_CONFIGURED"
	CodeIdempotencyCtxMissing  = "IDEMPOTENCY_CONTEXT_MISSING"
	CodeInternal               = "INTERNAL_SERVER_ERROR"
	CodeRouteNotFound          = "ROUTE_NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
)

// AppError is the single error variant that crosses layer boundaries.
type AppError struct {
	Code       string
	HTTPStatus int
	Message    string
	Details    map[string]interface{}
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail returns the error with one more detail attached.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// New creates an AppError with an explicit code and status.
func New(code string, status int, message string) *AppError {
	return &AppError{Code: code, HTTPStatus: status, Message: message}
}

// AsAppError extracts an *AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Constructors per taxonomy entry. Keeping them here (instead of scattering
// New calls around) pins each code to exactly one status.

func Validation(message string) *AppError {
	return New(CodeValidation, http.StatusBadRequest, message)
}

func IdempotencyKeyMissing() *AppError {
	return New(CodeIdempotencyKeyMissing, http.StatusBadRequest, "Idempotency-Key header is required")
}

func UserNotFound(userID string) *AppError {
	return New(CodeUserNotFound, http.StatusNotFound, "user not found").
		WithDetail("userId", userID)
}

func AssetTypeNotFound(code string) *AppError {
	return New(CodeAssetTypeNotFound, http.StatusNotFound, "asset type not found").
		WithDetail("assetCode", code)
}

func UserWalletNotFound(userID, assetCode string) *AppError {
	return New(CodeUserWalletNotFound, http.StatusNotFound, "user has no wallet for this asset").
		WithDetail("userId", userID).
		WithDetail("assetCode", assetCode)
}

func AssetWalletNotFound(assetCode string) *AppError {
	return New(CodeAssetWalletNotFound, http.StatusNotFound, "no wallet found for the requested asset").
		WithDetail("assetCode", assetCode)
}

func IdempotencyKeyReused(key string) *AppError {
	return New(CodeIdempotencyKeyReused, http.StatusConflict, "idempotency key was already used with a different request").
		WithDetail("idempotencyKey", key)
}

func RequestAlreadyInProgress(key string) *AppError {
	return New(CodeRequestInProgress, http.StatusConflict, "a request with this idempotency key is still being processed").
		WithDetail("idempotencyKey", key)
}

func IdempotencyStateNotFound(key string) *AppError {
	return New(CodeIdempotencyStateLost, http.StatusInternalServerError, "idempotency record disappeared mid-flight").
		WithDetail("idempotencyKey", key)
}

func InsufficientFunds(balance, requested int64) *AppError {
	return New(CodeInsufficientFunds, http.StatusConflict, "insufficient funds").
		WithDetail("balance", fmt.Sprintf("%d", balance)).
		WithDetail("requested", fmt.Sprintf("%d", requested))
}

func OptimisticLockConflict(walletID string) *AppError {
	return New(CodeOptimisticLockConflict, http.StatusConflict, "wallet was modified concurrently, retry the request").
		WithDetail("walletId", walletID)
}

func LockedWalletMismatch(expected, got int) *AppError {
	return New(CodeLockedWalletMismatch, http.StatusConflict, "row-locked wallet count does not match the requested set").
		WithDetail("expected", expected).
		WithDetail("got", got)
}

func DistributedLockNotAcquired() *AppError {
	return New(CodeLockNotAcquired, http.StatusLocked, "could not acquire wallet lock, retry later")
}

func LockKeysMissing() *AppError {
	return New(CodeLockKeysMissing, http.StatusBadRequest, "no wallet ids supplied for locking")
}

func TreasuryWalletNotConfigured(assetCode string) *AppError {
	return New(CodeTreasuryNotConfigured, http.StatusInternalServerError, "treasury wallet is not configured for this asset").
		WithDetail("assetCode", assetCode)
}

func IdempotencyContextMissing() *AppError {
	return New(CodeIdempotencyCtxMissing, http.StatusInternalServerError, "idempotency context was not populated by the gate")
}

func Internal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		HTTPStatus: http.StatusInternalServerError,
		Message:    "an unexpected error occurred",
		Err:        err,
	}
}

func RouteNotFound(method, path string) *AppError {
	return New(CodeRouteNotFound, http.StatusNotFound, "endpoint not found").
		WithDetail("method", method).
		WithDetail("path", path)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}
