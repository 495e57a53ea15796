package repositories

import (
	"context"

	"stream-donate.backend/internal/domain/entities"
)

// AssetCatalog resolves supported (symbol, network) pairs. An unsupported
// pair is a normal outcome and surfaces as ErrUnsupportedAsset.
type AssetCatalog interface {
	Resolve(ctx context.Context, symbol, network string) (*entities.AssetDescriptor, error)
	GetAll(ctx context.Context) ([]*entities.AssetDescriptor, error)
}
