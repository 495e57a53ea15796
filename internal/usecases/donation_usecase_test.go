package usecases

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stream-donate.backend/internal/domain/entities"
	"stream-donate.backend/internal/domain/errors"
	domainRepos "stream-donate.backend/internal/domain/repositories"
	"stream-donate.backend/internal/infrastructure/ledger"
	"stream-donate.backend/internal/noncemint"
)

type stubCatalog struct {
	assets map[string]*entities.AssetDescriptor
}

func (s *stubCatalog) key(symbol, network string) string {
	return strings.ToUpper(symbol) + "/" + strings.ToLower(network)
}

func (s *stubCatalog) Resolve(_ context.Context, symbol, network string) (*entities.AssetDescriptor, error) {
	asset, ok := s.assets[s.key(symbol, network)]
	if !ok {
		return nil, errors.UnsupportedAsset(symbol + " on " + network + " is not supported")
	}
	return asset, nil
}

func (s *stubCatalog) GetAll(_ context.Context) ([]*entities.AssetDescriptor, error) {
	all := make([]*entities.AssetDescriptor, 0, len(s.assets))
	for _, a := range s.assets {
		all = append(all, a)
	}
	return all, nil
}

type stubPrices struct {
	price decimal.Decimal
	err   error
}

func (s *stubPrices) Price(context.Context, string) (decimal.Decimal, error) {
	return s.price, s.err
}

func testCatalog() *stubCatalog {
	c := &stubCatalog{assets: map[string]*entities.AssetDescriptor{}}
	for _, a := range []*entities.AssetDescriptor{
		{Symbol: "ETH", Network: "ethereum", Decimals: 18, Native: true, DisplayName: "Ether"},
		{Symbol: "USDT", Network: "ethereum", Decimals: 6, ContractAddress: "0xdAC17F958D2ee523a2206206994597C13D831ec7", DisplayName: "Tether USD"},
		{Symbol: "FOO", Network: "polygon", Decimals: 6, DisplayName: "Foo Token"},
		{Symbol: "BAR", Network: "goerli", Decimals: 18, Native: true, DisplayName: "Bar"},
	} {
		c.assets[c.key(a.Symbol, a.Network)] = a
	}
	return c
}

func newTestUsecase(t *testing.T, prices *stubPrices) (*DonationUsecase, *noncemint.Mint) {
	t.Helper()
	mint := noncemint.New()

	// keep a typed nil out of the interface field
	var priceSource domainRepos.PriceSource
	if prices != nil {
		priceSource = prices
	}
	uc := NewDonationUsecase(ledger.NewMemoryLedger(GracePeriod), testCatalog(), mint, priceSource)
	return uc, mint
}

const recipient = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func TestCreateDonation_TokenRequest(t *testing.T) {
	uc, mint := newTestUsecase(t, nil)

	out, err := uc.CreateDonation(context.Background(), CreateDonationInput{
		DonationRef:      "donation-1",
		Amount:           "1.0",
		AssetSymbol:      "usdt",
		Network:          "Ethereum",
		RecipientAddress: recipient,
		PayeeLabel:       "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "pending", out.Status)
	assert.Equal(t, "USDT", out.AssetSymbol)
	assert.Equal(t, 900, out.ExpiresInSecs)
	assert.False(t, out.Degraded)
	assert.Equal(t, "/qr/"+out.Nonce, out.QRPath)
	assert.True(t, strings.HasPrefix(out.PaymentURI,
		"ethereum:0xdAC17F958D2ee523a2206206994597C13D831ec7/transfer?address="+recipient))
	assert.Contains(t, out.PaymentURI, "nonce="+out.Nonce)

	// settlement lands strictly inside [1.0, 1.000001)
	settlement := decimal.RequireFromString(out.SettlementAmount)
	assert.True(t, settlement.GreaterThan(decimal.NewFromInt(1)))
	assert.True(t, settlement.LessThan(decimal.RequireFromString("1.000001")))

	assert.True(t, mint.Reserved(out.Nonce))

	record, err := uc.ledger.Get(context.Background(), out.Nonce)
	require.NoError(t, err)
	assert.Equal(t, entities.DonationStatusPending, record.Status)
	assert.Equal(t, "donation-1", record.DonationRef)
}

func TestCreateDonation_NativeRequest(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)

	out, err := uc.CreateDonation(context.Background(), CreateDonationInput{
		DonationRef:      "donation-2",
		Amount:           "0.25",
		AssetSymbol:      "ETH",
		Network:          "ethereum",
		RecipientAddress: recipient,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.PaymentURI, "ethereum:"+recipient+"@1?value="))
	assert.Contains(t, out.PaymentURI, "gas=21000")
}

func TestCreateDonation_DegradedURI(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)

	out, err := uc.CreateDonation(context.Background(), CreateDonationInput{
		DonationRef:      "donation-3",
		Amount:           "2",
		AssetSymbol:      "FOO",
		Network:          "polygon",
		RecipientAddress: recipient,
	})
	require.NoError(t, err)
	assert.True(t, out.Degraded)
	assert.True(t, strings.HasPrefix(out.PaymentURI, "pay://"+recipient))
}

func TestCreateDonation_UnsupportedAsset(t *testing.T) {
	uc, mint := newTestUsecase(t, nil)

	_, err := uc.CreateDonation(context.Background(), CreateDonationInput{
		DonationRef:      "donation-4",
		Amount:           "1",
		AssetSymbol:      "DOGE",
		Network:          "ethereum",
		RecipientAddress: recipient,
	})
	assert.ErrorIs(t, err, errors.ErrUnsupportedAsset)

	// nothing reserved, nothing stored
	assert.Equal(t, 0, mint.ReservedCount())
	_, total, err := uc.ledger.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestCreateDonation_InvalidInput(t *testing.T) {
	uc, mint := newTestUsecase(t, nil)
	ctx := context.Background()

	cases := []CreateDonationInput{
		{DonationRef: "d", Amount: "abc", AssetSymbol: "ETH", Network: "ethereum", RecipientAddress: recipient},
		{DonationRef: "d", Amount: "0", AssetSymbol: "ETH", Network: "ethereum", RecipientAddress: recipient},
		{DonationRef: "d", Amount: "-1", AssetSymbol: "ETH", Network: "ethereum", RecipientAddress: recipient},
		{DonationRef: "", Amount: "1", AssetSymbol: "ETH", Network: "ethereum", RecipientAddress: recipient},
		{DonationRef: "d", Amount: "1", AssetSymbol: "ETH", Network: "ethereum", RecipientAddress: ""},
		{DonationRef: "d", Amount: "1", AssetSymbol: "ETH", Network: "ethereum", RecipientAddress: "not-an-address"},
	}
	for _, input := range cases {
		_, err := uc.CreateDonation(ctx, input)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, "input %+v", input)
	}
	assert.Equal(t, 0, mint.ReservedCount())
}

func TestCreateDonation_ReleasesNonceOnURIFailure(t *testing.T) {
	uc, mint := newTestUsecase(t, nil)

	// BAR lives on a network with no chain id, so URI building fails after
	// the nonce was already minted.
	_, err := uc.CreateDonation(context.Background(), CreateDonationInput{
		DonationRef:      "donation-5",
		Amount:           "1",
		AssetSymbol:      "BAR",
		Network:          "goerli",
		RecipientAddress: recipient,
	})
	require.Error(t, err)
	assert.Equal(t, 0, mint.ReservedCount())
}

func TestCreateDonation_SameTickRequestsStayDistinct(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)
	ctx := context.Background()

	input := CreateDonationInput{
		DonationRef:      "donation-6",
		Amount:           "1.0",
		AssetSymbol:      "USDT",
		Network:          "ethereum",
		RecipientAddress: recipient,
	}
	first, err := uc.CreateDonation(ctx, input)
	require.NoError(t, err)
	second, err := uc.CreateDonation(ctx, input)
	require.NoError(t, err)

	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.SettlementAmount, second.SettlementAmount)
}

func TestCheckStatus(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)
	ctx := context.Background()

	out, err := uc.CreateDonation(ctx, CreateDonationInput{
		DonationRef:      "donation-7",
		Amount:           "1",
		AssetSymbol:      "ETH",
		Network:          "ethereum",
		RecipientAddress: recipient,
	})
	require.NoError(t, err)

	status, err := uc.CheckStatus(ctx, out.Nonce)
	require.NoError(t, err)
	assert.Equal(t, "pending", status.Status)
	assert.Equal(t, "donation-7", status.DonationRef)
	assert.False(t, status.Confirmed)
	assert.Empty(t, status.TransactionRef)

	_, err = uc.CheckStatus(ctx, "no-such-nonce")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestOverrideStatus(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)
	ctx := context.Background()

	out, err := uc.CreateDonation(ctx, CreateDonationInput{
		DonationRef:      "donation-8",
		Amount:           "1",
		AssetSymbol:      "ETH",
		Network:          "ethereum",
		RecipientAddress: recipient,
	})
	require.NoError(t, err)

	status, err := uc.OverrideStatus(ctx, out.Nonce, "confirmed", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", status.Status)
	assert.True(t, status.Confirmed)
	assert.Equal(t, "0xabc", status.TransactionRef)

	// skipping a step is rejected
	_, err = uc.OverrideStatus(ctx, out.Nonce, "completed", "")
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = uc.OverrideStatus(ctx, out.Nonce, "paid", "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestGetDonation_USDEstimate(t *testing.T) {
	uc, _ := newTestUsecase(t, &stubPrices{price: decimal.NewFromInt(2000)})
	ctx := context.Background()

	out, err := uc.CreateDonation(ctx, CreateDonationInput{
		DonationRef:      "donation-9",
		Amount:           "0.5",
		AssetSymbol:      "ETH",
		Network:          "ethereum",
		RecipientAddress: recipient,
	})
	require.NoError(t, err)

	view, err := uc.GetDonation(ctx, out.Nonce)
	require.NoError(t, err)
	assert.NotEmpty(t, view.USDEstimate)
	estimate := decimal.RequireFromString(view.USDEstimate)
	assert.True(t, estimate.GreaterThanOrEqual(decimal.NewFromInt(1000)))
}

func TestGetDonation_PriceFailureIsNonFatal(t *testing.T) {
	uc, _ := newTestUsecase(t, &stubPrices{err: errors.ErrPriceUnavailable})
	ctx := context.Background()

	out, err := uc.CreateDonation(ctx, CreateDonationInput{
		DonationRef:      "donation-10",
		Amount:           "1",
		AssetSymbol:      "ETH",
		Network:          "ethereum",
		RecipientAddress: recipient,
	})
	require.NoError(t, err)

	view, err := uc.GetDonation(ctx, out.Nonce)
	require.NoError(t, err)
	assert.Empty(t, view.USDEstimate)
	assert.Equal(t, out.Nonce, view.Nonce)
}

func TestListDonations_NewestFirst(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, ref := range []string{"a", "b", "c"} {
		createdAt := base.Add(time.Duration(i) * time.Minute)
		uc.now = func() time.Time { return createdAt }
		_, err := uc.CreateDonation(ctx, CreateDonationInput{
			DonationRef:      ref,
			Amount:           "1",
			AssetSymbol:      "ETH",
			Network:          "ethereum",
			RecipientAddress: recipient,
		})
		require.NoError(t, err)
	}

	records, err := uc.ListDonations(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "c", records[0].DonationRef)
	assert.Equal(t, "b", records[1].DonationRef)
	assert.Equal(t, "a", records[2].DonationRef)
}

func TestQRImage(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)
	ctx := context.Background()

	out, err := uc.CreateDonation(ctx, CreateDonationInput{
		DonationRef:      "donation-11",
		Amount:           "1",
		AssetSymbol:      "ETH",
		Network:          "ethereum",
		RecipientAddress: recipient,
	})
	require.NoError(t, err)

	png, err := uc.QRImage(ctx, out.Nonce)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])

	_, err = uc.QRImage(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestInfo(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)
	ctx := context.Background()

	_, err := uc.CreateDonation(ctx, CreateDonationInput{
		DonationRef:      "donation-12",
		Amount:           "1",
		AssetSymbol:      "ETH",
		Network:          "ethereum",
		RecipientAddress: recipient,
	})
	require.NoError(t, err)

	info, err := uc.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stream-donate-payments", info.Service)
	assert.Equal(t, 1, info.PendingRequests)
	assert.Equal(t, 1, info.TotalRequests)
	assert.Len(t, info.SupportedAssets, 4)
}

func TestCreateDonation_ExpiresAtFifteenMinutes(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return fixed }

	out, err := uc.CreateDonation(context.Background(), CreateDonationInput{
		DonationRef:      "donation-13",
		Amount:           "1",
		AssetSymbol:      "ETH",
		Network:          "ethereum",
		RecipientAddress: recipient,
	})
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(15*time.Minute), out.ExpiresAt)
}
