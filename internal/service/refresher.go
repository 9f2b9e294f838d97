package service

import (
	"context"
	"time"

	"github.com/GoldCode001/vela/internal/logging"
	"github.com/GoldCode001/vela/internal/models"
	"github.com/GoldCode001/vela/internal/storage"
)

// RefresherStore is the position surface the refresher needs.
type RefresherStore interface {
	ListActiveWithTokens(ctx context.Context) ([]*models.Position, error)
	UpdateCurrentPrice(ctx context.Context, id string, price float64) error
}

// PriceRefresher periodically re-marks active positions at the exchange's
// best ask. This is an informational read path: any failure is logged and
// skipped, never surfaced.
type PriceRefresher struct {
	positions RefresherStore
	engine    *TradeEngine
	cache     *storage.RedisCache
	interval  time.Duration
	logger    *logging.Logger
}

// NewPriceRefresher creates a price refresher.
func NewPriceRefresher(positions RefresherStore, engine *TradeEngine, cache *storage.RedisCache, interval time.Duration, logger *logging.Logger) *PriceRefresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PriceRefresher{
		positions: positions,
		engine:    engine,
		cache:     cache,
		interval:  interval,
		logger:    logger,
	}
}

// Run refreshes prices on the interval until the context is cancelled.
func (r *PriceRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce re-marks every active position that carries an outcome token.
func (r *PriceRefresher) RefreshOnce(ctx context.Context) {
	positions, err := r.positions.ListActiveWithTokens(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("price refresh: listing positions failed")
		return
	}

	// One book fetch per distinct token, cached briefly across cycles.
	prices := make(map[string]float64)
	for _, position := range positions {
		price, ok := prices[position.TokenID]
		if !ok {
			price, ok = r.lookupPrice(ctx, position.TokenID)
			if !ok {
				continue
			}
			prices[position.TokenID] = price
		}

		if price == position.CurrentPrice {
			continue
		}
		if err := r.positions.UpdateCurrentPrice(ctx, position.ID, price); err != nil {
			r.logger.WithError(err).WithField("positionId", position.ID).Warn("price refresh: update failed")
		}
	}
}

func (r *PriceRefresher) lookupPrice(ctx context.Context, tokenID string) (float64, bool) {
	cacheKey := "price:" + tokenID
	if r.cache != nil {
		var cached float64
		if found, err := r.cache.GetJSON(ctx, cacheKey, &cached); err == nil && found {
			return cached, true
		}
	}

	price, err := r.engine.CurrentPrice(ctx, tokenID)
	if err != nil {
		r.logger.WithError(err).WithField("tokenId", tokenID).Warn("price refresh: book lookup failed")
		return 0, false
	}

	if r.cache != nil {
		_ = r.cache.SetJSON(ctx, cacheKey, price, 30*time.Second)
	}

	return price, true
}
