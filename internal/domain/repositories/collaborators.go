package repositories

import (
	"context"

	"github.com/shopspring/decimal"
	"stream-donate.backend/internal/domain/entities"
)

// ConfirmationSource decides whether a payment has settled on-chain.
// The bundled implementation is a simulation; production deployments plug
// in a real chain watcher.
type ConfirmationSource interface {
	IsConfirmed(ctx context.Context, record *entities.PaymentRecord) (bool, string, error)
}

// OverlayEvent is the payload delivered to the overlay on a state change
type OverlayEvent struct {
	Nonce          string                  `json:"nonce"`
	DonationRef    string                  `json:"donationRef"`
	Status         entities.DonationStatus `json:"status"`
	TransactionRef string                  `json:"transactionRef,omitempty"`
	PayeeLabel     string                  `json:"payeeLabel,omitempty"`
	Amount         decimal.Decimal         `json:"amount"`
	AssetSymbol    string                  `json:"assetSymbol"`
	Note           string                  `json:"note,omitempty"`
}

// OverlayNotifier pushes state changes to the display overlay. Best-effort:
// failures are logged by callers and never roll back ledger state.
type OverlayNotifier interface {
	Notify(ctx context.Context, event OverlayEvent) error
}

// PriceSource quotes an asset in USD for display purposes.
// Returns ErrPriceUnavailable when no quote can be produced.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}
