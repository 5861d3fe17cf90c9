package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coinvault/coinvault/internal/domain/valueobjects"
)

// AssetType names a virtual currency. Immutable once created.
type AssetType struct {
	id        uuid.UUID
	code      string
	name      string
	createdAt time.Time
}

// NewAssetType creates an asset type with a normalized (uppercase) code.
func NewAssetType(code, name string) (*AssetType, error) {
	normalized, err := valueobjects.NormalizeAssetCode(code)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("asset name must not be empty")
	}
	return &AssetType{
		id:        uuid.New(),
		code:      normalized,
		name:      name,
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructAssetType rebuilds an asset type from storage.
func ReconstructAssetType(id uuid.UUID, code, name string, createdAt time.Time) *AssetType {
	return &AssetType{id: id, code: code, name: name, createdAt: createdAt}
}

func (a *AssetType) ID() uuid.UUID        { return a.id }
func (a *AssetType) Code() string         { return a.code }
func (a *AssetType) Name() string         { return a.name }
func (a *AssetType) CreatedAt() time.Time { return a.createdAt }
