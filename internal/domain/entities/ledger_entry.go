package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/coinvault/coinvault/internal/domain/valueobjects"
)

// EntryType marks a ledger leg.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// LedgerEntry is one leg of a posting. Entries are append-only; a POSTED
// transaction owns exactly one DEBIT and one CREDIT of equal amount.
type LedgerEntry struct {
	id            uuid.UUID
	transactionID uuid.UUID
	walletID      uuid.UUID
	assetTypeID   uuid.UUID
	entryType     EntryType
	amount        valueobjects.Amount
	createdAt     time.Time
}

// NewDebit builds the debit leg of a posting.
func NewDebit(transactionID, walletID, assetTypeID uuid.UUID, amount valueobjects.Amount) *LedgerEntry {
	return newEntry(transactionID, walletID, assetTypeID, EntryTypeDebit, amount)
}

// NewCredit builds the credit leg of a posting.
func NewCredit(transactionID, walletID, assetTypeID uuid.UUID, amount valueobjects.Amount) *LedgerEntry {
	return newEntry(transactionID, walletID, assetTypeID, EntryTypeCredit, amount)
}

func newEntry(transactionID, walletID, assetTypeID uuid.UUID, entryType EntryType, amount valueobjects.Amount) *LedgerEntry {
	return &LedgerEntry{
		id:            uuid.New(),
		transactionID: transactionID,
		walletID:      walletID,
		assetTypeID:   assetTypeID,
		entryType:     entryType,
		amount:        amount,
		createdAt:     time.Now().UTC(),
	}
}

// ReconstructLedgerEntry rebuilds an entry from storage.
func ReconstructLedgerEntry(
	id, transactionID, walletID, assetTypeID uuid.UUID,
	entryType EntryType,
	amount valueobjects.Amount,
	createdAt time.Time,
) *LedgerEntry {
	return &LedgerEntry{
		id:            id,
		transactionID: transactionID,
		walletID:      walletID,
		assetTypeID:   assetTypeID,
		entryType:     entryType,
		amount:        amount,
		createdAt:     createdAt,
	}
}

func (e *LedgerEntry) ID() uuid.UUID                { return e.id }
func (e *LedgerEntry) TransactionID() uuid.UUID     { return e.transactionID }
func (e *LedgerEntry) WalletID() uuid.UUID          { return e.walletID }
func (e *LedgerEntry) AssetTypeID() uuid.UUID       { return e.assetTypeID }
func (e *LedgerEntry) EntryType() EntryType         { return e.entryType }
func (e *LedgerEntry) Amount() valueobjects.Amount  { return e.amount }
func (e *LedgerEntry) CreatedAt() time.Time         { return e.createdAt }

// SignedAmount returns the entry amount as credit-positive.
func (e *LedgerEntry) SignedAmount() int64 {
	if e.entryType == EntryTypeCredit {
		return e.amount.Int64()
	}
	return -e.amount.Int64()
}
