package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"stream-donate.backend/internal/domain/entities"
	"stream-donate.backend/internal/domain/errors"
	"stream-donate.backend/internal/infrastructure/models"
)

// AssetCatalogImpl resolves supported assets from the database
type AssetCatalogImpl struct {
	db *gorm.DB
}

func NewAssetCatalog(db *gorm.DB) *AssetCatalogImpl {
	return &AssetCatalogImpl{db: db}
}

func (c *AssetCatalogImpl) Resolve(ctx context.Context, symbol, network string) (*entities.AssetDescriptor, error) {
	var m models.Asset
	err := c.db.WithContext(ctx).
		Where("symbol = ? AND network = ?", strings.ToUpper(symbol), strings.ToLower(network)).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.UnsupportedAsset(symbol + " on " + network + " is not supported")
		}
		return nil, errors.InternalError(err)
	}
	return c.toEntity(&m), nil
}

func (c *AssetCatalogImpl) GetAll(ctx context.Context) ([]*entities.AssetDescriptor, error) {
	var ms []models.Asset
	if err := c.db.WithContext(ctx).Order("network, symbol").Find(&ms).Error; err != nil {
		return nil, errors.InternalError(err)
	}

	assets := make([]*entities.AssetDescriptor, 0, len(ms))
	for i := range ms {
		assets = append(assets, c.toEntity(&ms[i]))
	}
	return assets, nil
}

func (c *AssetCatalogImpl) toEntity(m *models.Asset) *entities.AssetDescriptor {
	return &entities.AssetDescriptor{
		Symbol:          m.Symbol,
		Network:         m.Network,
		Decimals:        m.Decimals,
		ContractAddress: m.ContractAddress,
		Native:          m.IsNative,
		DisplayName:     m.Name,
	}
}

// seedAsset describes one row of the default catalog
type seedAsset struct {
	symbol   string
	network  string
	name     string
	decimals int
	contract string
	native   bool
}

var defaultAssets = []seedAsset{
	{"ETH", "ethereum", "Ether", 18, "", true},
	{"USDT", "ethereum", "Tether USD", 6, "0xdAC17F958D2ee523a2206206994597C13D831ec7", false},
	{"USDC", "ethereum", "USD Coin", 6, "0xA0b86a33E6417c1Bec9FB6C7b0D88c11b426Bb67", false},
	{"BNB", "bsc", "BNB", 18, "", true},
	{"USDT", "bsc", "Tether USD", 18, "0x55d398326f99059fF775485246999027B3197955", false},
	{"USDC", "bsc", "USD Coin", 18, "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", false},
	{"MATIC", "polygon", "Polygon", 18, "", true},
	{"USDT", "polygon", "Tether USD", 6, "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", false},
	{"USDC", "polygon", "USD Coin", 6, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", false},
	{"TRX", "tron", "TRON", 6, "", true},
}

// Migrate creates the assets table and seeds it with the default supported
// pairs when empty.
func (c *AssetCatalogImpl) Migrate(ctx context.Context) error {
	if err := c.db.WithContext(ctx).AutoMigrate(&models.Asset{}); err != nil {
		return err
	}

	var count int64
	if err := c.db.WithContext(ctx).Model(&models.Asset{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, seed := range defaultAssets {
		m := models.Asset{
			ID:              uuid.New(),
			Symbol:          seed.symbol,
			Network:         seed.network,
			Name:            seed.name,
			Decimals:        seed.decimals,
			ContractAddress: seed.contract,
			IsNative:        seed.native,
		}
		if err := c.db.WithContext(ctx).Create(&m).Error; err != nil {
			return err
		}
	}
	return nil
}
