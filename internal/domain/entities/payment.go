package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationStatus represents the lifecycle status of a payment record
type DonationStatus string

const (
	DonationStatusCreated   DonationStatus = "created"
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusConfirmed DonationStatus = "confirmed"
	DonationStatusDisplayed DonationStatus = "displayed"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusCancelled DonationStatus = "cancelled"
)

// statusRank orders the forward lifecycle. Cancelled sits outside the chain.
var statusRank = map[DonationStatus]int{
	DonationStatusCreated:   0,
	DonationStatusPending:   1,
	DonationStatusConfirmed: 2,
	DonationStatusDisplayed: 3,
	DonationStatusCompleted: 4,
}

// ParseDonationStatus validates a raw status string
func ParseDonationStatus(s string) (DonationStatus, bool) {
	status := DonationStatus(s)
	switch status {
	case DonationStatusCreated, DonationStatusPending, DonationStatusConfirmed,
		DonationStatusDisplayed, DonationStatusCompleted, DonationStatusCancelled:
		return status, true
	}
	return "", false
}

// IsTerminal reports whether no further transition is allowed from s
func (s DonationStatus) IsTerminal() bool {
	return s == DonationStatusCompleted || s == DonationStatusCancelled
}

// CanTransitionTo reports whether a record may move from s to target.
// Transitions are forward-only, one step at a time; the only exit to
// cancelled is from pending.
func (s DonationStatus) CanTransitionTo(target DonationStatus) bool {
	if target == DonationStatusCancelled {
		return s == DonationStatusPending
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[target]
	if !okFrom || !okTo {
		return false
	}
	return to == from+1
}

// PaymentRecord is a trackable donation payment request. Identity is the
// nonce; everything except status, transactionRef and confirmedAt is fixed
// at creation.
type PaymentRecord struct {
	Nonce            string          `json:"nonce"`
	DonationRef      string          `json:"donationRef"`
	RecipientAddress string          `json:"recipientAddress"`
	RequestedAmount  decimal.Decimal `json:"requestedAmount"`
	SettlementAmount decimal.Decimal `json:"settlementAmount"`
	AssetSymbol      string          `json:"assetSymbol"`
	Network          string          `json:"network"`
	AssetDecimals    int             `json:"assetDecimals"`
	ContractAddress  string          `json:"contractAddress,omitempty"` // empty => native asset
	PayeeLabel       string          `json:"payeeLabel,omitempty"`
	Note             string          `json:"note,omitempty"`
	PaymentURI       string          `json:"paymentUri"`
	TransactionRef   string          `json:"transactionRef,omitempty"`
	Status           DonationStatus  `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	ExpiresAt        time.Time       `json:"expiresAt"`
	ConfirmedAt      *time.Time      `json:"confirmedAt,omitempty"`
}

// Expired reports whether the request deadline has passed
func (r *PaymentRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Clone returns a copy safe to hand out across the ledger boundary
func (r *PaymentRecord) Clone() *PaymentRecord {
	c := *r
	if r.ConfirmedAt != nil {
		at := *r.ConfirmedAt
		c.ConfirmedAt = &at
	}
	return &c
}
