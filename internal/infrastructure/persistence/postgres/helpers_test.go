package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	uniqueErr := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "transactions_idempotency_key"}

	assert.True(t, isUniqueViolation(uniqueErr, ""))
	assert.True(t, isUniqueViolation(uniqueErr, "transactions_idempotency_key"))
	assert.True(t, isUniqueViolation(uniqueErr, "idempotency_key"))
	assert.False(t, isUniqueViolation(uniqueErr, "users_email_key"))

	// Wrapped errors are still recognized.
	wrapped := fmt.Errorf("insert transaction: %w", uniqueErr)
	assert.True(t, isUniqueViolation(wrapped, "idempotency_key"))

	assert.False(t, isUniqueViolation(nil, ""))
	assert.False(t, isUniqueViolation(fmt.Errorf("plain error"), ""))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: pgForeignKeyViolation}, ""))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, isForeignKeyViolation(&pgconn.PgError{Code: pgForeignKeyViolation}))
	assert.False(t, isForeignKeyViolation(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, isForeignKeyViolation(nil))
}

func TestTxContextPropagation(t *testing.T) {
	ctx := context.Background()
	assert.False(t, hasTx(ctx))
	assert.Nil(t, extractTx(ctx))
}
