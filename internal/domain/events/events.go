// Package events defines the integration events emitted after commit.
package events

import (
	"time"

	"github.com/google/uuid"
)

// SubjectTransactionPosted is the broker subject for posted transactions.
const SubjectTransactionPosted = "coinvault.transactions.posted"

// TransactionPosted is published (best-effort) after a mutation commits.
// Consumers use it for reporting; the ledger itself is the source of truth.
type TransactionPosted struct {
	TransactionID uuid.UUID `json:"transactionId"`
	Type          string    `json:"type"`
	UserID        uuid.UUID `json:"userId"`
	AssetCode     string    `json:"assetCode"`
	Amount        string    `json:"amount"`
	PostedAt      time.Time `json:"postedAt"`
}
