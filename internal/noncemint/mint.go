package noncemint

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"stream-donate.backend/pkg/logger"
)

const (
	// maxAttempts bounds the collision re-roll loop before falling back to
	// a random wide nonce.
	maxAttempts = 100

	// sliceSeconds is the width of the coarse time slice embedded in the
	// nonce.
	sliceSeconds = 60

	// perturbationSpan is the number of distinct sub-unit perturbation
	// steps. Together with perturbationShift it keeps the addition
	// strictly below one smallest representable unit of the asset.
	perturbationSpan  = 999
	perturbationShift = 3
)

// Mint produces nonces unique across all live payment requests, together
// with a micro-perturbed settlement amount that makes the transfer
// identifiable on-chain without a memo field.
type Mint struct {
	mu      sync.Mutex
	counter uint64
	inUse   map[string]struct{}

	now func() time.Time
	tie func() uint64
}

func New() *Mint {
	return &Mint{
		inUse: make(map[string]struct{}),
		now:   time.Now,
		tie:   func() uint64 { return 100000 + rand.Uint64N(900000) },
	}
}

// Mint returns a fresh nonce, already reserved in the in-use set, and the
// settlement amount for the request. It always succeeds: if the bounded
// re-roll loop is exhausted a cryptographically random wide nonce is used
// instead (collision probability negligible at that width).
func (m *Mint) Mint(ctx context.Context, requested decimal.Decimal, decimals int) (string, decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	now := m.now()
	micros := now.UnixMicro()
	slice := now.Unix() / sliceSeconds

	nonce := fmt.Sprintf("%d_%d_%d_%d", micros, slice, m.counter, m.tie())
	attempts := 0
	for {
		if _, taken := m.inUse[nonce]; !taken {
			break
		}
		attempts++
		if attempts >= maxAttempts {
			nonce = fmt.Sprintf("uuid_%x", uuid.New())
			logger.Warn(ctx, "nonce re-roll attempts exhausted, using random wide nonce",
				zap.Int("attempts", attempts))
			break
		}
		nonce = fmt.Sprintf("%d_%d_%d_%d", micros, slice, m.counter, m.tie())
	}

	m.inUse[nonce] = struct{}{}

	return nonce, requested.Add(perturbation(m.counter, decimals))
}

// perturbation derives the sub-unit amount addition from the mint sequence
// number carried in the nonce. It is strictly positive and strictly less
// than 10^-decimals, so the settlement amount never exceeds the requested
// amount by a full smallest unit.
func perturbation(seq uint64, decimals int) decimal.Decimal {
	units := int64(seq%perturbationSpan) + 1
	return decimal.New(units, -int32(decimals+perturbationShift))
}

// Release frees a nonce reservation once its ledger record has been
// garbage-collected.
func (m *Mint) Release(nonces ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, nonce := range nonces {
		delete(m.inUse, nonce)
	}
}

// Reserved reports whether a nonce is currently held
func (m *Mint) Reserved(nonce string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inUse[nonce]
	return ok
}

// ReservedCount returns the size of the in-use set
func (m *Mint) ReservedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inUse)
}
