// Package wallet implements the transactional mutation engine: topup, bonus
// and spend as atomic double-entry postings, plus balance queries.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coinvault/coinvault/internal/application/locking"
	"github.com/coinvault/coinvault/internal/application/ports"
	"github.com/coinvault/coinvault/internal/domain/entities"
	apperrors "github.com/coinvault/coinvault/internal/domain/errors"
	"github.com/coinvault/coinvault/internal/domain/events"
	"github.com/coinvault/coinvault/internal/domain/valueobjects"
)

// Engine orchestrates the mutation pipeline. All collaborators are injected;
// tests substitute in-memory fakes.
type Engine struct {
	users   ports.UserRepository
	assets  ports.AssetTypeRepository
	wallets ports.WalletRepository
	txs     ports.TransactionRepository
	ledger  ports.LedgerRepository
	cache   ports.IdempotencyCache
	locks   ports.WalletLock
	uow     ports.UnitOfWork
	events  ports.EventPublisher
	log     *slog.Logger
}

// NewEngine wires the mutation engine.
func NewEngine(
	users ports.UserRepository,
	assets ports.AssetTypeRepository,
	wallets ports.WalletRepository,
	txs ports.TransactionRepository,
	ledger ports.LedgerRepository,
	cache ports.IdempotencyCache,
	locks ports.WalletLock,
	uow ports.UnitOfWork,
	publisher ports.EventPublisher,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		users:   users,
		assets:  assets,
		wallets: wallets,
		txs:     txs,
		ledger:  ledger,
		cache:   cache,
		locks:   locks,
		uow:     uow,
		events:  publisher,
		log:     log,
	}
}

// MutationRequest is a validated mutation command.
type MutationRequest struct {
	UserID         uuid.UUID
	AssetCode      string
	Amount         valueobjects.Amount
	IdempotencyKey string
	Fingerprint    string
}

// MutationResult carries the response exactly as it must reach the client.
// Body is either the success payload or the error envelope; replays return
// the persisted bytes unchanged.
type MutationResult struct {
	StatusCode int
	Body       json.RawMessage
	Replayed   bool

	transactionID uuid.UUID
}

// mutationResponse is the success payload of wallet mutations. Amounts and
// balances travel as decimal strings.
type mutationResponse struct {
	TransactionID  string `json:"transactionId"`
	IdempotencyKey string `json:"idempotencyKey"`
	Operation      string `json:"operation"`
	UserID         string `json:"userId"`
	AssetCode      string `json:"assetCode"`
	Amount         string `json:"amount"`
	Balance        string `json:"balance"`
	FromWalletID   string `json:"fromWalletId"`
	ToWalletID     string `json:"toWalletId"`
	CreatedAt      string `json:"createdAt"`
}

// Topup credits a user wallet from the treasury.
func (e *Engine) Topup(ctx context.Context, req MutationRequest) (*MutationResult, error) {
	return e.mutate(ctx, entities.TransactionTypeTopup, req)
}

// Bonus is ledger-equivalent to Topup; the type discriminates for reporting.
func (e *Engine) Bonus(ctx context.Context, req MutationRequest) (*MutationResult, error) {
	return e.mutate(ctx, entities.TransactionTypeBonus, req)
}

// Spend debits a user wallet into the treasury.
func (e *Engine) Spend(ctx context.Context, req MutationRequest) (*MutationResult, error) {
	return e.mutate(ctx, entities.TransactionTypeSpend, req)
}

func (e *Engine) mutate(ctx context.Context, txType entities.TransactionType, req MutationRequest) (*MutationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Fast replay: non-authoritative, a miss falls through to the
	// transactions table inside the DB transaction.
	if cached, err := e.cache.Get(ctx, req.IdempotencyKey); err != nil {
		e.log.WarnContext(ctx, "idempotency cache read failed",
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.String("error", err.Error()))
	} else if cached != nil {
		if cached.Fingerprint != req.Fingerprint {
			return nil, apperrors.IdempotencyKeyReused(req.IdempotencyKey)
		}
		return &MutationResult{StatusCode: cached.StatusCode, Body: cached.Body, Replayed: true}, nil
	}

	assetCode, err := valueobjects.NormalizeAssetCode(req.AssetCode)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	asset, err := e.assets.FindByCode(ctx, assetCode)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperrors.AssetTypeNotFound(assetCode)
		}
		return nil, fmt.Errorf("load asset type: %w", err)
	}

	userWallet, err := e.wallets.FindUserWallet(ctx, req.UserID, asset.ID())
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperrors.UserWalletNotFound(req.UserID.String(), assetCode)
		}
		return nil, fmt.Errorf("load user wallet: %w", err)
	}

	treasury, err := e.wallets.FindSystemWallet(ctx, entities.SystemCodeTreasury, asset.ID())
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperrors.TreasuryWalletNotConfigured(assetCode)
		}
		return nil, fmt.Errorf("load treasury wallet: %w", err)
	}

	source, destination := treasury, userWallet
	if txType == entities.TransactionTypeSpend {
		source, destination = userWallet, treasury
	}

	// Cross-instance lock over the wallet pair. Release is deferred so it
	// runs on every exit path, including panics and cancellation.
	handle, err := e.locks.Acquire(ctx, []string{source.ID().String(), destination.ID().String()})
	if err != nil {
		return nil, err
	}
	defer e.locks.Release(ctx, handle)

	var result *MutationResult
	err = e.uow.Execute(ctx, func(txCtx context.Context) error {
		res, execErr := e.executeMutation(txCtx, txType, req, asset, userWallet, source, destination)
		if execErr != nil {
			return execErr
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The commit above is the linearization point; everything after it is
	// best-effort.
	if !result.Replayed {
		e.writeThrough(ctx, req, result)
		if result.StatusCode == http.StatusOK {
			e.publishPosted(ctx, result.transactionID, txType, req, assetCode)
		}
	}

	return result, nil
}

// executeMutation runs inside the database transaction.
func (e *Engine) executeMutation(
	txCtx context.Context,
	txType entities.TransactionType,
	req MutationRequest,
	asset *entities.AssetType,
	userWallet, source, destination *entities.Wallet,
) (*MutationResult, error) {
	tx, err := entities.NewTransaction(
		req.IdempotencyKey, req.Fingerprint, txType, req.Amount,
		asset.ID(), source.ID(), destination.ID(),
	)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	// Insert-or-replay: the unique index on idempotency_key serializes
	// competing first-time requests; losers replay the winner's outcome.
	if err := e.txs.InsertProcessing(txCtx, tx); err != nil {
		if errors.Is(err, ports.ErrDuplicateIdempotencyKey) {
			return e.replayExisting(txCtx, req)
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	lockOrder := lockOrderUUIDs(source.ID(), destination.ID())
	locked, err := e.wallets.LockWallets(txCtx, lockOrder)
	if err != nil {
		return nil, fmt.Errorf("row-lock wallets: %w", err)
	}
	if len(locked) != len(lockOrder) {
		return nil, apperrors.LockedWalletMismatch(len(lockOrder), len(locked))
	}

	// Balance is derived under the row locks, so it cannot move until commit.
	sourceBalance, err := e.ledger.WalletBalance(txCtx, source.ID(), asset.ID())
	if err != nil {
		return nil, fmt.Errorf("derive source balance: %w", err)
	}

	if sourceBalance < req.Amount.Int64() {
		// Insufficient funds is the one failure persisted as terminal
		// FAILED so that replays return the identical 409.
		appErr := apperrors.InsufficientFunds(sourceBalance, req.Amount.Int64())
		if err := tx.MarkFailed(appErr.HTTPStatus, appErr.MarshalEnvelope(), appErr.Code); err != nil {
			return nil, fmt.Errorf("fail transaction: %w", err)
		}
		if err := e.persistResult(txCtx, tx); err != nil {
			return nil, fmt.Errorf("persist failed transaction: %w", err)
		}
		return &MutationResult{StatusCode: appErr.HTTPStatus, Body: tx.ResponseBody()}, nil
	}

	if err := e.ledger.Append(txCtx,
		entities.NewDebit(tx.ID(), source.ID(), asset.ID(), req.Amount),
		entities.NewCredit(tx.ID(), destination.ID(), asset.ID(), req.Amount),
	); err != nil {
		return nil, fmt.Errorf("append ledger entries: %w", err)
	}

	updates := make([]locking.OptimisticUpdate, 0, len(locked))
	for _, lw := range locked {
		count, err := e.wallets.BumpVersion(txCtx, lw.ID, lw.Version)
		if err != nil {
			return nil, fmt.Errorf("bump wallet version: %w", err)
		}
		updates = append(updates, locking.OptimisticUpdate{WalletID: lw.ID.String(), UpdatedCount: count})
	}
	if err := locking.AssertOptimisticUpdates(updates); err != nil {
		return nil, err
	}

	userBalance, err := e.ledger.WalletBalance(txCtx, userWallet.ID(), asset.ID())
	if err != nil {
		return nil, fmt.Errorf("derive user balance: %w", err)
	}

	body, err := json.Marshal(mutationResponse{
		TransactionID:  tx.ID().String(),
		IdempotencyKey: req.IdempotencyKey,
		Operation:      strings.ToLower(string(txType)),
		UserID:         req.UserID.String(),
		AssetCode:      asset.Code(),
		Amount:         req.Amount.String(),
		Balance:        valueobjects.FormatBalance(userBalance),
		FromWalletID:   source.ID().String(),
		ToWalletID:     destination.ID().String(),
		CreatedAt:      tx.CreatedAt().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal success payload: %w", err)
	}

	if err := tx.MarkPosted(http.StatusOK, body); err != nil {
		return nil, fmt.Errorf("post transaction: %w", err)
	}
	if err := e.persistResult(txCtx, tx); err != nil {
		return nil, fmt.Errorf("persist posted transaction: %w", err)
	}

	return &MutationResult{StatusCode: http.StatusOK, Body: body, transactionID: tx.ID()}, nil
}

// persistResult writes a terminal transition back to the store.
func (e *Engine) persistResult(txCtx context.Context, tx *entities.Transaction) error {
	return e.txs.SetResult(txCtx, tx.ID(), tx.Status(), *tx.ResponseCode(),
		tx.ResponseBody(), tx.ErrorCode())
}

// replayExisting resolves a unique-violation loser against the winner's row.
func (e *Engine) replayExisting(txCtx context.Context, req MutationRequest) (*MutationResult, error) {
	existing, err := e.txs.FindByIdempotencyKey(txCtx, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperrors.IdempotencyStateNotFound(req.IdempotencyKey)
		}
		return nil, fmt.Errorf("load existing transaction: %w", err)
	}
	if existing.RequestFingerprint() != req.Fingerprint {
		return nil, apperrors.IdempotencyKeyReused(req.IdempotencyKey)
	}
	if !existing.IsTerminal() || existing.ResponseCode() == nil {
		return nil, apperrors.RequestAlreadyInProgress(req.IdempotencyKey)
	}
	return &MutationResult{
		StatusCode: *existing.ResponseCode(),
		Body:       existing.ResponseBody(),
		Replayed:   true,
	}, nil
}

func (e *Engine) writeThrough(ctx context.Context, req MutationRequest, result *MutationResult) {
	err := e.cache.Set(ctx, req.IdempotencyKey, &ports.CachedResponse{
		Fingerprint: req.Fingerprint,
		StatusCode:  result.StatusCode,
		Body:        result.Body,
	})
	if err != nil {
		e.log.WarnContext(ctx, "idempotency cache write failed",
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) publishPosted(ctx context.Context, txID uuid.UUID, txType entities.TransactionType, req MutationRequest, assetCode string) {
	if e.events == nil {
		return
	}
	err := e.events.PublishTransactionPosted(ctx, events.TransactionPosted{
		TransactionID: txID,
		Type:          string(txType),
		UserID:        req.UserID,
		AssetCode:     assetCode,
		Amount:        req.Amount.String(),
		PostedAt:      time.Now().UTC(),
	})
	if err != nil {
		e.log.WarnContext(ctx, "posted-transaction event publish failed",
			slog.String("error", err.Error()))
	}
}

func validateRequest(req MutationRequest) error {
	if req.UserID == uuid.Nil {
		return apperrors.Validation("userId is required")
	}
	if req.Amount.Int64() <= 0 {
		return apperrors.Validation("amount must be a positive integer")
	}
	if req.IdempotencyKey == "" {
		return apperrors.IdempotencyKeyMissing()
	}
	if req.Fingerprint == "" {
		return apperrors.IdempotencyContextMissing()
	}
	return nil
}

// lockOrderUUIDs maps the canonical string ordering back onto uuid values.
func lockOrderUUIDs(ids ...uuid.UUID) []uuid.UUID {
	raw := make([]string, len(ids))
	byString := make(map[string]uuid.UUID, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
		byString[id.String()] = id
	}
	sorted := locking.SortUniqueWalletIDs(raw)
	out := make([]uuid.UUID, len(sorted))
	for i, s := range sorted {
		out[i] = byString[s]
	}
	return out
}
