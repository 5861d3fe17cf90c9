package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coinvault/coinvault/internal/domain/valueobjects"
)

// TransactionType discriminates mutations for auditing and reporting.
// TOPUP and BONUS are ledger-equivalent; only SPEND reverses the direction.
type TransactionType string

const (
	TransactionTypeTopup TransactionType = "TOPUP"
	TransactionTypeBonus TransactionType = "BONUS"
	TransactionTypeSpend TransactionType = "SPEND"
)

// TransactionStatus is the idempotency state machine:
//
//	PROCESSING -> POSTED   (ledger entries written)
//	PROCESSING -> FAILED   (insufficient funds, no entries)
//
// POSTED and FAILED are terminal.
type TransactionStatus string

const (
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusPosted     TransactionStatus = "POSTED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

// Transaction is both the audit record and the idempotency log. The row is
// inserted as PROCESSING under the unique idempotency-key index; its terminal
// state carries the exact response replayed to retries.
type Transaction struct {
	id                  uuid.UUID
	idempotencyKey      string
	requestFingerprint  string
	txType              TransactionType
	status              TransactionStatus
	amount              valueobjects.Amount
	assetTypeID         uuid.UUID
	sourceWalletID      uuid.UUID
	destinationWalletID uuid.UUID
	responseCode        *int
	responseBody        json.RawMessage
	errorCode           string
	createdAt           time.Time
	updatedAt           time.Time
}

// NewTransaction creates a PROCESSING transaction ready for insertion.
func NewTransaction(
	idempotencyKey, requestFingerprint string,
	txType TransactionType,
	amount valueobjects.Amount,
	assetTypeID, sourceWalletID, destinationWalletID uuid.UUID,
) (*Transaction, error) {
	if idempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key must not be empty")
	}
	if requestFingerprint == "" {
		return nil, fmt.Errorf("request fingerprint must not be empty")
	}
	switch txType {
	case TransactionTypeTopup, TransactionTypeBonus, TransactionTypeSpend:
	default:
		return nil, fmt.Errorf("unknown transaction type %q", txType)
	}
	if sourceWalletID == destinationWalletID {
		return nil, fmt.Errorf("source and destination wallets must differ")
	}
	now := time.Now().UTC()
	return &Transaction{
		id:                  uuid.New(),
		idempotencyKey:      idempotencyKey,
		requestFingerprint:  requestFingerprint,
		txType:              txType,
		status:              TransactionStatusProcessing,
		amount:              amount,
		assetTypeID:         assetTypeID,
		sourceWalletID:      sourceWalletID,
		destinationWalletID: destinationWalletID,
		createdAt:           now,
		updatedAt:           now,
	}, nil
}

// ReconstructTransaction rebuilds a transaction from storage.
func ReconstructTransaction(
	id uuid.UUID,
	idempotencyKey, requestFingerprint string,
	txType TransactionType,
	status TransactionStatus,
	amount valueobjects.Amount,
	assetTypeID, sourceWalletID, destinationWalletID uuid.UUID,
	responseCode *int,
	responseBody json.RawMessage,
	errorCode string,
	createdAt, updatedAt time.Time,
) *Transaction {
	return &Transaction{
		id:                  id,
		idempotencyKey:      idempotencyKey,
		requestFingerprint:  requestFingerprint,
		txType:              txType,
		status:              status,
		amount:              amount,
		assetTypeID:         assetTypeID,
		sourceWalletID:      sourceWalletID,
		destinationWalletID: destinationWalletID,
		responseCode:        responseCode,
		responseBody:        responseBody,
		errorCode:           errorCode,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}
}

// MarkPosted records the successful response and moves to POSTED.
func (t *Transaction) MarkPosted(responseCode int, responseBody json.RawMessage) error {
	if t.status != TransactionStatusProcessing {
		return fmt.Errorf("cannot post transaction in status %s", t.status)
	}
	t.status = TransactionStatusPosted
	t.responseCode = &responseCode
	t.responseBody = responseBody
	t.updatedAt = time.Now().UTC()
	return nil
}

// MarkFailed records a terminal failure response (insufficient funds).
func (t *Transaction) MarkFailed(responseCode int, responseBody json.RawMessage, errorCode string) error {
	if t.status != TransactionStatusProcessing {
		return fmt.Errorf("cannot fail transaction in status %s", t.status)
	}
	t.status = TransactionStatusFailed
	t.responseCode = &responseCode
	t.responseBody = responseBody
	t.errorCode = errorCode
	t.updatedAt = time.Now().UTC()
	return nil
}

// IsTerminal reports whether the transaction already carries a response.
func (t *Transaction) IsTerminal() bool {
	return t.status == TransactionStatusPosted || t.status == TransactionStatusFailed
}

func (t *Transaction) ID() uuid.UUID                   { return t.id }
func (t *Transaction) IdempotencyKey() string          { return t.idempotencyKey }
func (t *Transaction) RequestFingerprint() string      { return t.requestFingerprint }
func (t *Transaction) Type() TransactionType           { return t.txType }
func (t *Transaction) Status() TransactionStatus       { return t.status }
func (t *Transaction) Amount() valueobjects.Amount     { return t.amount }
func (t *Transaction) AssetTypeID() uuid.UUID          { return t.assetTypeID }
func (t *Transaction) SourceWalletID() uuid.UUID       { return t.sourceWalletID }
func (t *Transaction) DestinationWalletID() uuid.UUID  { return t.destinationWalletID }
func (t *Transaction) ResponseCode() *int              { return t.responseCode }
func (t *Transaction) ResponseBody() json.RawMessage   { return t.responseBody }
func (t *Transaction) ErrorCode() string               { return t.errorCode }
func (t *Transaction) CreatedAt() time.Time            { return t.createdAt }
func (t *Transaction) UpdatedAt() time.Time            { return t.updatedAt }
