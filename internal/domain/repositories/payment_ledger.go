package repositories

import (
	"context"
	"time"

	"stream-donate.backend/internal/domain/entities"
)

// PaymentLedger stores payment records keyed by nonce and enforces the
// lifecycle state machine. Implementations must be safe for concurrent use
// and must never hold internal locks across calls into collaborators.
type PaymentLedger interface {
	// Create inserts a record at pending. Fails with ErrAlreadyExists if
	// the nonce is already present.
	Create(ctx context.Context, record *entities.PaymentRecord) error

	// Get returns a copy of the record, or ErrNotFound.
	Get(ctx context.Context, nonce string) (*entities.PaymentRecord, error)

	// Snapshot returns a point-in-time copy of all records for scanning.
	Snapshot(ctx context.Context) ([]*entities.PaymentRecord, error)

	// AdvanceToConfirmed moves pending -> confirmed, recording the
	// transaction ref and confirmation time. Idempotent if the record is
	// already confirmed or later; rejected if cancelled.
	AdvanceToConfirmed(ctx context.Context, nonce, transactionRef string, at time.Time) error

	// AdvanceToDisplayed moves confirmed -> displayed.
	AdvanceToDisplayed(ctx context.Context, nonce string) error

	// AdvanceToCompleted moves displayed -> completed.
	AdvanceToCompleted(ctx context.Context, nonce string) error

	// Transition applies an arbitrary target status, still subject to the
	// forward-only rule. Used by the external status override path.
	Transition(ctx context.Context, nonce string, target entities.DonationStatus, transactionRef string) error

	// Expire moves pending -> cancelled once the deadline has passed.
	// A second call on an already-cancelled record is a no-op.
	Expire(ctx context.Context, nonce string, now time.Time) error

	// Cleanup removes every record whose expiresAt plus the grace period is
	// before now, regardless of status, and returns the removed nonces so
	// the caller can release their reservations.
	Cleanup(ctx context.Context, now time.Time) ([]string, error)

	// Counts returns the number of pending records and the total held.
	Counts(ctx context.Context) (pending int, total int, err error)
}
