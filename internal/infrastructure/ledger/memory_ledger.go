package ledger

import (
	"context"
	"sync"
	"time"

	"stream-donate.backend/internal/domain/entities"
	"stream-donate.backend/internal/domain/errors"
)

// MemoryLedger is the in-memory payment ledger. A single mutex guards the
// record map; records are handed out as copies so callers can never mutate
// ledger state outside a transition method.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*entities.PaymentRecord
	grace   time.Duration
}

func NewMemoryLedger(grace time.Duration) *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]*entities.PaymentRecord),
		grace:   grace,
	}
}

func (l *MemoryLedger) Create(ctx context.Context, record *entities.PaymentRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[record.Nonce]; exists {
		return errors.Conflict("nonce already present in ledger")
	}

	stored := record.Clone()
	stored.Status = entities.DonationStatusPending
	l.records[record.Nonce] = stored
	return nil
}

func (l *MemoryLedger) Get(ctx context.Context, nonce string) (*entities.PaymentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[nonce]
	if !exists {
		return nil, errors.NotFound("payment not found")
	}
	return record.Clone(), nil
}

// Snapshot returns a stable point-in-time copy for monitor scanning
func (l *MemoryLedger) Snapshot(ctx context.Context) ([]*entities.PaymentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*entities.PaymentRecord, 0, len(l.records))
	for _, record := range l.records {
		out = append(out, record.Clone())
	}
	return out, nil
}

func (l *MemoryLedger) AdvanceToConfirmed(ctx context.Context, nonce, transactionRef string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[nonce]
	if !exists {
		return errors.NotFound("payment not found")
	}

	switch record.Status {
	case entities.DonationStatusConfirmed, entities.DonationStatusDisplayed, entities.DonationStatusCompleted:
		return nil // already at or past confirmed
	case entities.DonationStatusCancelled:
		return errors.InvalidTransition("payment already cancelled")
	}

	if !record.Status.CanTransitionTo(entities.DonationStatusConfirmed) {
		return errors.InvalidTransition(string(record.Status) + " -> confirmed")
	}

	record.Status = entities.DonationStatusConfirmed
	record.TransactionRef = transactionRef
	confirmedAt := at
	record.ConfirmedAt = &confirmedAt
	return nil
}

func (l *MemoryLedger) AdvanceToDisplayed(ctx context.Context, nonce string) error {
	return l.advance(nonce, entities.DonationStatusDisplayed)
}

func (l *MemoryLedger) AdvanceToCompleted(ctx context.Context, nonce string) error {
	return l.advance(nonce, entities.DonationStatusCompleted)
}

func (l *MemoryLedger) advance(nonce string, target entities.DonationStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[nonce]
	if !exists {
		return errors.NotFound("payment not found")
	}
	if !record.Status.CanTransitionTo(target) {
		return errors.InvalidTransition(string(record.Status) + " -> " + string(target))
	}
	record.Status = target
	return nil
}

// Transition applies an externally requested status, subject to the same
// forward-only rule as the monitor's transitions.
func (l *MemoryLedger) Transition(ctx context.Context, nonce string, target entities.DonationStatus, transactionRef string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[nonce]
	if !exists {
		return errors.NotFound("payment not found")
	}
	if !record.Status.CanTransitionTo(target) {
		return errors.InvalidTransition(string(record.Status) + " -> " + string(target))
	}

	record.Status = target
	if transactionRef != "" {
		record.TransactionRef = transactionRef
	}
	if target == entities.DonationStatusConfirmed && record.ConfirmedAt == nil {
		now := time.Now()
		record.ConfirmedAt = &now
	}
	return nil
}

func (l *MemoryLedger) Expire(ctx context.Context, nonce string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[nonce]
	if !exists {
		return errors.NotFound("payment not found")
	}
	if record.Status == entities.DonationStatusCancelled {
		return nil // expiry is idempotent
	}
	if record.Status != entities.DonationStatusPending {
		return errors.InvalidTransition("only pending payments expire")
	}
	if !record.Expired(now) {
		return errors.InvalidTransition("payment deadline has not passed")
	}

	record.Status = entities.DonationStatusCancelled
	return nil
}

// Cleanup drops every record past its grace window and reports the freed
// nonces so their mint reservations can be released.
func (l *MemoryLedger) Cleanup(ctx context.Context, now time.Time) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []string
	for nonce, record := range l.records {
		if now.After(record.ExpiresAt.Add(l.grace)) {
			delete(l.records, nonce)
			removed = append(removed, nonce)
		}
	}
	return removed, nil
}

func (l *MemoryLedger) Counts(ctx context.Context) (int, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending := 0
	for _, record := range l.records {
		if record.Status == entities.DonationStatusPending {
			pending++
		}
	}
	return pending, len(l.records), nil
}
