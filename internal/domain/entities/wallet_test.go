package entities

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserWallet(t *testing.T) {
	userID := uuid.New()
	assetID := uuid.New()

	w, err := NewUserWallet(userID, assetID)
	require.NoError(t, err)
	assert.Equal(t, OwnerTypeUser, w.OwnerType())
	assert.Equal(t, userID, w.UserID())
	assert.Empty(t, w.SystemCode())
	assert.Equal(t, int64(0), w.Version())
	assert.False(t, w.IsSystem())
}

func TestNewUserWalletRequiresIDs(t *testing.T) {
	_, err := NewUserWallet(uuid.Nil, uuid.New())
	assert.Error(t, err)

	_, err = NewUserWallet(uuid.New(), uuid.Nil)
	assert.Error(t, err)
}

func TestNewSystemWallet(t *testing.T) {
	assetID := uuid.New()

	for _, code := range []string{SystemCodeTreasury, SystemCodeIssuance} {
		w, err := NewSystemWallet(code, assetID)
		require.NoError(t, err)
		assert.Equal(t, OwnerTypeSystem, w.OwnerType())
		assert.Equal(t, code, w.SystemCode())
		assert.Equal(t, uuid.Nil, w.UserID())
		assert.True(t, w.IsSystem())
	}

	_, err := NewSystemWallet("VAULT", assetID)
	assert.Error(t, err)
}

func TestReconstructWalletEnforcesShape(t *testing.T) {
	now := time.Now().UTC()
	id := uuid.New()
	assetID := uuid.New()
	userID := uuid.New()

	// USER wallet with a system code is malformed.
	_, err := ReconstructWallet(id, OwnerTypeUser, &userID, SystemCodeTreasury, assetID, 0, now, now)
	assert.Error(t, err)

	// USER wallet without a user id is malformed.
	_, err = ReconstructWallet(id, OwnerTypeUser, nil, "", assetID, 0, now, now)
	assert.Error(t, err)

	// SYSTEM wallet with a user id is malformed.
	_, err = ReconstructWallet(id, OwnerTypeSystem, &userID, SystemCodeTreasury, assetID, 0, now, now)
	assert.Error(t, err)

	// SYSTEM wallet without a code is malformed.
	_, err = ReconstructWallet(id, OwnerTypeSystem, nil, "", assetID, 0, now, now)
	assert.Error(t, err)

	// Unknown owner type.
	_, err = ReconstructWallet(id, OwnerType("ROBOT"), nil, "", assetID, 0, now, now)
	assert.Error(t, err)

	// Valid shapes round-trip.
	w, err := ReconstructWallet(id, OwnerTypeUser, &userID, "", assetID, 7, now, now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), w.Version())

	w, err = ReconstructWallet(id, OwnerTypeSystem, nil, SystemCodeTreasury, assetID, 3, now, now)
	require.NoError(t, err)
	assert.Equal(t, SystemCodeTreasury, w.SystemCode())
}
