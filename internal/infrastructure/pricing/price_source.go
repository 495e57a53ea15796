package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"stream-donate.backend/internal/domain/errors"
	"stream-donate.backend/pkg/logger"
	"stream-donate.backend/pkg/redis"
)

const cacheKeyPrefix = "price:usd:"

// CachedPriceSource quotes assets in USD from an aggregator endpoint,
// caching quotes in redis. Quotes are display-only; unavailability is a
// normal recoverable outcome.
type CachedPriceSource struct {
	endpoint string
	client   *http.Client
	cacheTTL time.Duration
}

func NewCachedPriceSource(endpoint string, cacheTTL time.Duration) *CachedPriceSource {
	return &CachedPriceSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL: cacheTTL,
	}
}

type quoteResponse struct {
	Symbol string `json:"symbol"`
	USD    string `json:"usd"`
}

func (s *CachedPriceSource) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)

	if redis.Available() {
		if cached, err := redis.Get(ctx, cacheKeyPrefix+symbol); err == nil {
			if price, perr := decimal.NewFromString(cached); perr == nil {
				return price, nil
			}
		}
	}

	price, err := s.fetch(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	if redis.Available() {
		if err := redis.Set(ctx, cacheKeyPrefix+symbol, price.String(), s.cacheTTL); err != nil {
			logger.Warn(ctx, "failed to cache price quote", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return price, nil
}

func (s *CachedPriceSource) fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if s.endpoint == "" {
		return decimal.Zero, errors.ErrPriceUnavailable
	}

	url := fmt.Sprintf("%s?symbol=%s", s.endpoint, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, errors.ErrPriceUnavailable
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, errors.ErrPriceUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, errors.ErrPriceUnavailable
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return decimal.Zero, errors.ErrPriceUnavailable
	}

	price, err := decimal.NewFromString(quote.USD)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, errors.ErrPriceUnavailable
	}
	return price, nil
}
