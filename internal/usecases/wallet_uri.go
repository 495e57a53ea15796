package usecases

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"stream-donate.backend/internal/domain/entities"
	"stream-donate.backend/internal/domain/errors"
	"stream-donate.backend/pkg/logger"
)

// chainIDs maps supported network names onto EVM-style chain ids.
// Unknown networks are rejected, never guessed.
var chainIDs = map[string]int64{
	"ethereum": 1,
	"bsc":      56,
	"polygon":  137,
	"tron":     728126428,
}

// ChainID resolves the chain id for a network name
func ChainID(network string) (int64, error) {
	id, ok := chainIDs[network]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errors.ErrUnknownNetwork, network)
	}
	return id, nil
}

// toBaseUnits converts a decimal amount to the asset's integer base units.
// The conversion floors: a payment URI must never ask the payer for more
// than the settlement amount.
func toBaseUnits(amount decimal.Decimal, decimals int) string {
	return amount.Shift(int32(decimals)).Floor().String()
}

// BuildWalletURI renders a wallet-openable payment URI for the settlement
// amount. Native assets get a value-transfer URI, token assets a
// contract-transfer URI with the nonce carried as a correlation-only query
// parameter. A token asset missing its contract address degrades to a
// generic pay URI; the degraded flag must reach the caller.
func BuildWalletURI(ctx context.Context, recipient string, settlement decimal.Decimal, asset *entities.AssetDescriptor, nonce string) (uri string, degraded bool, err error) {
	chainID, err := ChainID(asset.Network)
	if err != nil {
		return "", false, err
	}

	if asset.IsNative() {
		baseUnits := toBaseUnits(settlement, asset.Decimals)
		uri = fmt.Sprintf("%s:%s@%d?value=%s&gas=%d&nonce=%s",
			URIScheme, recipient, chainID, baseUnits, FixedGasHint, url.QueryEscape(nonce))
		return uri, false, nil
	}

	if asset.HasCatalogGap() {
		logger.Warn(ctx, "no contract address for token asset, emitting degraded payment URI",
			zap.String("symbol", asset.Symbol),
			zap.String("network", asset.Network))
		uri = fmt.Sprintf("pay://%s?amount=%s&currency=%s&nonce=%s",
			recipient, settlement.String(), asset.Symbol, url.QueryEscape(nonce))
		return uri, true, nil
	}

	baseUnits := toBaseUnits(settlement, asset.Decimals)
	uri = fmt.Sprintf("%s:%s/transfer?address=%s&uint256=%s&nonce=%s",
		URIScheme, asset.ContractAddress, recipient, baseUnits, url.QueryEscape(nonce))
	return uri, false, nil
}
