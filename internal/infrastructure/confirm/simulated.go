package confirm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math/rand/v2"
	"time"

	"stream-donate.backend/internal/domain/entities"
)

// SimulatedSource is a stand-in confirmation source: it confirms a pending
// payment with a fixed probability once the request has aged past a minimum.
// Production deployments replace it with a real chain watcher.
type SimulatedSource struct {
	minAge      time.Duration
	confirmRate float64

	now  func() time.Time
	roll func() float64
}

func NewSimulatedSource(minAge time.Duration, confirmRate float64) *SimulatedSource {
	return &SimulatedSource{
		minAge:      minAge,
		confirmRate: confirmRate,
		now:         time.Now,
		roll:        rand.Float64,
	}
}

func (s *SimulatedSource) IsConfirmed(ctx context.Context, record *entities.PaymentRecord) (bool, string, error) {
	if s.now().Sub(record.CreatedAt) < s.minAge {
		return false, "", nil
	}
	if s.roll() >= s.confirmRate {
		return false, "", nil
	}

	sum := md5.Sum([]byte(record.Nonce))
	return true, "0x" + hex.EncodeToString(sum[:]), nil
}
