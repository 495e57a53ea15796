package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"stream-donate.backend/internal/domain/entities"
	"stream-donate.backend/internal/domain/repositories"
	"stream-donate.backend/internal/noncemint"
	"stream-donate.backend/pkg/logger"
)

// SettlementMonitor periodically scans the ledger: it expires stale pending
// payments, asks the confirmation source about the rest, advances confirmed
// payments once the overlay acknowledges, and garbage-collects records past
// their grace window.
type SettlementMonitor struct {
	ledger   repositories.PaymentLedger
	mint     *noncemint.Mint
	source   repositories.ConfirmationSource
	notifier repositories.OverlayNotifier
	interval time.Duration
	backoff  time.Duration
	stop     chan struct{}

	now func() time.Time
}

func NewSettlementMonitor(
	ledger repositories.PaymentLedger,
	mint *noncemint.Mint,
	source repositories.ConfirmationSource,
	notifier repositories.OverlayNotifier,
	interval time.Duration,
	backoff time.Duration,
) *SettlementMonitor {
	return &SettlementMonitor{
		ledger:   ledger,
		mint:     mint,
		source:   source,
		notifier: notifier,
		interval: interval,
		backoff:  backoff,
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

func (m *SettlementMonitor) Start(ctx context.Context) {
	logger.Info(ctx, "starting settlement monitor", zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "settlement monitor stopped (context cancelled)")
			return
		case <-m.stop:
			logger.Info(ctx, "settlement monitor stopped")
			return
		case <-ticker.C:
			m.runTick(ctx)
		}
	}
}

func (m *SettlementMonitor) Stop() {
	close(m.stop)
}

// runTick shields the loop from a panicking tick: the failure is logged and
// the monitor sleeps briefly before the next tick instead of terminating.
func (m *SettlementMonitor) runTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "settlement monitor tick panicked", zap.Any("panic", r))
			time.Sleep(m.backoff)
		}
	}()
	m.Tick(ctx)
}

// Tick runs one scan pass. Exported so tests can drive the monitor
// deterministically without the ticker.
func (m *SettlementMonitor) Tick(ctx context.Context) {
	now := m.now()

	snapshot, err := m.ledger.Snapshot(ctx)
	if err != nil {
		logger.Error(ctx, "failed to snapshot ledger", zap.Error(err))
		return
	}

	for _, record := range snapshot {
		// a failure on one record must not starve the rest of the tick
		switch record.Status {
		case entities.DonationStatusPending:
			if record.Expired(now) {
				m.expireRecord(ctx, record, now)
			} else {
				m.checkRecord(ctx, record, now)
			}
		case entities.DonationStatusConfirmed:
			// a confirmed record still waiting on the overlay ack from an
			// earlier tick
			m.displayRecord(ctx, record)
		}
	}

	m.cleanup(ctx, now)
}

func (m *SettlementMonitor) expireRecord(ctx context.Context, record *entities.PaymentRecord, now time.Time) {
	if err := m.ledger.Expire(ctx, record.Nonce, now); err != nil {
		logger.Error(ctx, "failed to expire payment", zap.String("nonce", record.Nonce), zap.Error(err))
		return
	}

	logger.Info(ctx, "payment expired",
		zap.String("nonce", record.Nonce),
		zap.String("donation_ref", record.DonationRef))

	m.notify(ctx, record, entities.DonationStatusCancelled, "")
}

func (m *SettlementMonitor) checkRecord(ctx context.Context, record *entities.PaymentRecord, now time.Time) {
	// confirmation-source call happens on a snapshot copy, never under the
	// ledger lock
	confirmed, transactionRef, err := m.source.IsConfirmed(ctx, record)
	if err != nil {
		logger.Error(ctx, "confirmation source failed", zap.String("nonce", record.Nonce), zap.Error(err))
		return
	}
	if !confirmed {
		return
	}

	if err := m.ledger.AdvanceToConfirmed(ctx, record.Nonce, transactionRef, now); err != nil {
		logger.Error(ctx, "failed to confirm payment", zap.String("nonce", record.Nonce), zap.Error(err))
		return
	}

	logger.Info(ctx, "payment confirmed",
		zap.String("nonce", record.Nonce),
		zap.String("tx_ref", transactionRef))

	// the overlay ack gates the displayed transition; on failure the record
	// stays confirmed and is retried next tick
	if ok := m.notify(ctx, record, entities.DonationStatusConfirmed, transactionRef); !ok {
		return
	}

	if err := m.ledger.AdvanceToDisplayed(ctx, record.Nonce); err != nil {
		logger.Error(ctx, "failed to mark payment displayed", zap.String("nonce", record.Nonce), zap.Error(err))
	}
}

func (m *SettlementMonitor) displayRecord(ctx context.Context, record *entities.PaymentRecord) {
	if ok := m.notify(ctx, record, entities.DonationStatusConfirmed, record.TransactionRef); !ok {
		return
	}
	if err := m.ledger.AdvanceToDisplayed(ctx, record.Nonce); err != nil {
		logger.Error(ctx, "failed to mark payment displayed", zap.String("nonce", record.Nonce), zap.Error(err))
	}
}

func (m *SettlementMonitor) cleanup(ctx context.Context, now time.Time) {
	removed, err := m.ledger.Cleanup(ctx, now)
	if err != nil {
		logger.Error(ctx, "ledger cleanup failed", zap.Error(err))
		return
	}
	if len(removed) == 0 {
		return
	}

	m.mint.Release(removed...)
	logger.Info(ctx, "cleaned up stale payments", zap.Int("count", len(removed)))
}

// notify pushes a state change to the overlay. Best-effort: a failure is
// logged and reported to the caller but never undoes the transition.
func (m *SettlementMonitor) notify(ctx context.Context, record *entities.PaymentRecord, status entities.DonationStatus, transactionRef string) bool {
	event := repositories.OverlayEvent{
		Nonce:          record.Nonce,
		DonationRef:    record.DonationRef,
		Status:         status,
		TransactionRef: transactionRef,
		PayeeLabel:     record.PayeeLabel,
		Amount:         record.SettlementAmount,
		AssetSymbol:    record.AssetSymbol,
		Note:           record.Note,
	}

	if err := m.notifier.Notify(ctx, event); err != nil {
		logger.Warn(ctx, "overlay notification failed",
			zap.String("nonce", record.Nonce),
			zap.String("status", string(status)),
			zap.Error(err))
		return false
	}
	return true
}
