package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OwnerType discriminates the two wallet shapes.
type OwnerType string

const (
	OwnerTypeUser   OwnerType = "USER"
	OwnerTypeSystem OwnerType = "SYSTEM"
)

// Well-known system wallet codes.
const (
	// SystemCodeTreasury is the counterparty for every user-visible mutation.
	SystemCodeTreasury = "TREASURY"
	// SystemCodeIssuance is the one-time bootstrap source for treasury funding.
	// The runtime never selects it as a counterparty.
	SystemCodeIssuance = "ISSUANCE"
)

// Wallet is a balance container. It carries no cached balance: the balance is
// derived from ledger entries. The version column backs the optimistic check
// and increments by exactly one per successful mutation touching the wallet.
//
// Shape invariant: a USER wallet has a userId and no systemCode; a SYSTEM
// wallet has a systemCode and no userId.
type Wallet struct {
	id          uuid.UUID
	ownerType   OwnerType
	userID      *uuid.UUID
	systemCode  string
	assetTypeID uuid.UUID
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewUserWallet creates a wallet owned by a user for one asset.
func NewUserWallet(userID, assetTypeID uuid.UUID) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user wallet requires a user id")
	}
	if assetTypeID == uuid.Nil {
		return nil, fmt.Errorf("wallet requires an asset type id")
	}
	now := time.Now().UTC()
	return &Wallet{
		id:          uuid.New(),
		ownerType:   OwnerTypeUser,
		userID:      &userID,
		assetTypeID: assetTypeID,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// NewSystemWallet creates a system-owned wallet for one asset.
func NewSystemWallet(systemCode string, assetTypeID uuid.UUID) (*Wallet, error) {
	if systemCode != SystemCodeTreasury && systemCode != SystemCodeIssuance {
		return nil, fmt.Errorf("unknown system wallet code %q", systemCode)
	}
	if assetTypeID == uuid.Nil {
		return nil, fmt.Errorf("wallet requires an asset type id")
	}
	now := time.Now().UTC()
	return &Wallet{
		id:          uuid.New(),
		ownerType:   OwnerTypeSystem,
		systemCode:  systemCode,
		assetTypeID: assetTypeID,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructWallet rebuilds a wallet from storage, re-validating the shape.
func ReconstructWallet(
	id uuid.UUID,
	ownerType OwnerType,
	userID *uuid.UUID,
	systemCode string,
	assetTypeID uuid.UUID,
	version int64,
	createdAt, updatedAt time.Time,
) (*Wallet, error) {
	switch ownerType {
	case OwnerTypeUser:
		if userID == nil || systemCode != "" {
			return nil, fmt.Errorf("wallet %s: USER wallet must have userId and no systemCode", id)
		}
	case OwnerTypeSystem:
		if userID != nil || systemCode == "" {
			return nil, fmt.Errorf("wallet %s: SYSTEM wallet must have systemCode and no userId", id)
		}
	default:
		return nil, fmt.Errorf("wallet %s: unknown owner type %q", id, ownerType)
	}
	return &Wallet{
		id:          id,
		ownerType:   ownerType,
		userID:      userID,
		systemCode:  systemCode,
		assetTypeID: assetTypeID,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}, nil
}

func (w *Wallet) ID() uuid.UUID            { return w.id }
func (w *Wallet) OwnerType() OwnerType     { return w.ownerType }
func (w *Wallet) SystemCode() string       { return w.systemCode }
func (w *Wallet) AssetTypeID() uuid.UUID   { return w.assetTypeID }
func (w *Wallet) Version() int64           { return w.version }
func (w *Wallet) CreatedAt() time.Time     { return w.createdAt }
func (w *Wallet) UpdatedAt() time.Time     { return w.updatedAt }
func (w *Wallet) IsSystem() bool           { return w.ownerType == OwnerTypeSystem }

// UserID returns the owning user id, or uuid.Nil for system wallets.
func (w *Wallet) UserID() uuid.UUID {
	if w.userID == nil {
		return uuid.Nil
	}
	return *w.userID
}
