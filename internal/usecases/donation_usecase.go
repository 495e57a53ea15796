package usecases

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"stream-donate.backend/internal/domain/entities"
	"stream-donate.backend/internal/domain/errors"
	domainRepos "stream-donate.backend/internal/domain/repositories"
	"stream-donate.backend/internal/noncemint"
	"stream-donate.backend/pkg/logger"
	"stream-donate.backend/pkg/qrcode"
)

// DonationUsecase builds payment requests and answers status queries over
// the ledger. All wallet URI and settlement amount shaping happens here;
// handlers only translate HTTP.
type DonationUsecase struct {
	ledger  domainRepos.PaymentLedger
	catalog domainRepos.AssetCatalog
	mint    *noncemint.Mint
	prices  domainRepos.PriceSource

	timeout time.Duration
	now     func() time.Time
}

func NewDonationUsecase(
	ledger domainRepos.PaymentLedger,
	catalog domainRepos.AssetCatalog,
	mint *noncemint.Mint,
	prices domainRepos.PriceSource,
) *DonationUsecase {
	return &DonationUsecase{
		ledger:  ledger,
		catalog: catalog,
		mint:    mint,
		prices:  prices,
		timeout: PaymentTimeout,
		now:     time.Now,
	}
}

// WithTimeout overrides the default payment deadline
func (uc *DonationUsecase) WithTimeout(d time.Duration) *DonationUsecase {
	uc.timeout = d
	return uc
}

type CreateDonationInput struct {
	DonationRef      string `json:"donationId" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	AssetSymbol      string `json:"currency" binding:"required"`
	Network          string `json:"network" binding:"required"`
	RecipientAddress string `json:"recipientAddress" binding:"required"`
	PayeeLabel       string `json:"payeeLabel"`
	Note             string `json:"note"`
}

type CreateDonationOutput struct {
	Nonce            string    `json:"nonce"`
	PaymentURI       string    `json:"paymentUri"`
	QRPath           string    `json:"qrPath"`
	SettlementAmount string    `json:"settlementAmount"`
	AssetSymbol      string    `json:"currency"`
	Network          string    `json:"network"`
	Status           string    `json:"status"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ExpiresInSecs    int       `json:"expiresInSeconds"`
	Degraded         bool      `json:"degraded,omitempty"`
}

// evmNetworks lists networks whose recipient addresses are 0x-hex; tron
// uses base58 and only gets a non-empty check.
var evmNetworks = map[string]bool{
	"ethereum": true,
	"bsc":      true,
	"polygon":  true,
}

func validateRecipient(address, network string) error {
	if address == "" {
		return errors.BadRequest("recipientAddress is required")
	}
	if evmNetworks[network] && !common.IsHexAddress(address) {
		return errors.BadRequest("recipientAddress is not a valid address for " + network)
	}
	return nil
}

// CreateDonation resolves the asset, mints a nonce with its perturbed
// settlement amount, builds the wallet URI and stores the record at pending.
// Nothing is stored when any step fails; a minted nonce is released again.
func (uc *DonationUsecase) CreateDonation(ctx context.Context, input CreateDonationInput) (*CreateDonationOutput, error) {
	requested, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return nil, errors.BadRequest("amount is not a valid decimal number")
	}
	if !requested.IsPositive() {
		return nil, errors.BadRequest("amount must be greater than zero")
	}
	if input.DonationRef == "" {
		return nil, errors.BadRequest("donationId is required")
	}

	asset, err := uc.catalog.Resolve(ctx, input.AssetSymbol, input.Network)
	if err != nil {
		return nil, err
	}
	if err := validateRecipient(input.RecipientAddress, asset.Network); err != nil {
		return nil, err
	}

	nonce, settlement := uc.mint.Mint(ctx, requested, asset.Decimals)

	uri, degraded, err := BuildWalletURI(ctx, input.RecipientAddress, settlement, asset, nonce)
	if err != nil {
		uc.mint.Release(nonce)
		return nil, errors.BadRequest(err.Error())
	}

	now := uc.now()
	record := &entities.PaymentRecord{
		Nonce:            nonce,
		DonationRef:      input.DonationRef,
		RecipientAddress: input.RecipientAddress,
		RequestedAmount:  requested,
		SettlementAmount: settlement,
		AssetSymbol:      asset.Symbol,
		Network:          asset.Network,
		AssetDecimals:    asset.Decimals,
		ContractAddress:  asset.ContractAddress,
		PayeeLabel:       input.PayeeLabel,
		Note:             input.Note,
		PaymentURI:       uri,
		Status:           entities.DonationStatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(uc.timeout),
	}
	if err := uc.ledger.Create(ctx, record); err != nil {
		uc.mint.Release(nonce)
		return nil, err
	}

	logger.Info(ctx, "payment request created",
		zap.String("nonce", nonce),
		zap.String("donation_ref", input.DonationRef),
		zap.String("asset", asset.Symbol),
		zap.String("network", asset.Network),
		zap.String("settlement_amount", settlement.String()),
		zap.Bool("degraded", degraded))

	return &CreateDonationOutput{
		Nonce:            nonce,
		PaymentURI:       uri,
		QRPath:           "/qr/" + nonce,
		SettlementAmount: settlement.String(),
		AssetSymbol:      asset.Symbol,
		Network:          asset.Network,
		Status:           string(record.Status),
		ExpiresAt:        record.ExpiresAt,
		ExpiresInSecs:    int(uc.timeout / time.Second),
		Degraded:         degraded,
	}, nil
}

type DonationStatusOutput struct {
	Nonce          string     `json:"nonce"`
	DonationRef    string     `json:"donationRef"`
	Status         string     `json:"status"`
	Confirmed      bool       `json:"confirmed"`
	TransactionRef string     `json:"transactionRef,omitempty"`
	ConfirmedAt    *time.Time `json:"confirmedAt,omitempty"`
	ExpiresAt      time.Time  `json:"expiresAt"`
}

// CheckStatus reports the lifecycle position of a payment request. An
// unknown nonce is ErrNotFound, distinct from a cancelled record which is
// still reported until garbage collection removes it.
func (uc *DonationUsecase) CheckStatus(ctx context.Context, nonce string) (*DonationStatusOutput, error) {
	record, err := uc.ledger.Get(ctx, nonce)
	if err != nil {
		return nil, err
	}
	return &DonationStatusOutput{
		Nonce:          record.Nonce,
		DonationRef:    record.DonationRef,
		Status:         string(record.Status),
		Confirmed:      record.ConfirmedAt != nil,
		TransactionRef: record.TransactionRef,
		ConfirmedAt:    record.ConfirmedAt,
		ExpiresAt:      record.ExpiresAt,
	}, nil
}

type DonationView struct {
	*entities.PaymentRecord
	USDEstimate string `json:"usdEstimate,omitempty"`
}

// GetDonation returns the full record, decorated with a USD estimate when
// the price source can quote the asset. Price failures never fail the read.
func (uc *DonationUsecase) GetDonation(ctx context.Context, nonce string) (*DonationView, error) {
	record, err := uc.ledger.Get(ctx, nonce)
	if err != nil {
		return nil, err
	}

	view := &DonationView{PaymentRecord: record}
	if uc.prices != nil {
		if price, err := uc.prices.Price(ctx, record.AssetSymbol); err == nil {
			view.USDEstimate = record.SettlementAmount.Mul(price).Round(2).String()
		} else {
			logger.Debug(ctx, "usd estimate unavailable",
				zap.String("symbol", record.AssetSymbol), zap.Error(err))
		}
	}
	return view, nil
}

// ListDonations returns a snapshot of every held record, newest first.
func (uc *DonationUsecase) ListDonations(ctx context.Context) ([]*entities.PaymentRecord, error) {
	records, err := uc.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// OverrideStatus applies an externally requested status change, subject to
// the same forward-only transition rule the monitor follows.
func (uc *DonationUsecase) OverrideStatus(ctx context.Context, nonce, rawStatus, transactionRef string) (*DonationStatusOutput, error) {
	target, ok := entities.ParseDonationStatus(rawStatus)
	if !ok {
		return nil, errors.BadRequest("unknown status: " + rawStatus)
	}
	if err := uc.ledger.Transition(ctx, nonce, target, transactionRef); err != nil {
		return nil, err
	}
	logger.Info(ctx, "status override applied",
		zap.String("nonce", nonce),
		zap.String("status", rawStatus))
	return uc.CheckStatus(ctx, nonce)
}

// QRImage renders the stored payment URI as a PNG.
func (uc *DonationUsecase) QRImage(ctx context.Context, nonce string) ([]byte, error) {
	record, err := uc.ledger.Get(ctx, nonce)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.GeneratePNG(record.PaymentURI, QRImageSize)
	if err != nil {
		return nil, errors.InternalError(fmt.Errorf("render qr for %s: %w", nonce, err))
	}
	return png, nil
}

type ServiceInfo struct {
	Service         string                      `json:"service"`
	Version         string                      `json:"version"`
	PendingRequests int                         `json:"pendingRequests"`
	TotalRequests   int                         `json:"totalRequests"`
	SupportedAssets []*entities.AssetDescriptor `json:"supportedAssets"`
}

// Info summarises the running service for the root endpoint.
func (uc *DonationUsecase) Info(ctx context.Context) (*ServiceInfo, error) {
	pending, total, err := uc.ledger.Counts(ctx)
	if err != nil {
		return nil, err
	}
	assets, err := uc.catalog.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return &ServiceInfo{
		Service:         "stream-donate-payments",
		Version:         "1.0.0",
		PendingRequests: pending,
		TotalRequests:   total,
		SupportedAssets: assets,
	}, nil
}
