package service

import (
	"context"
	"crypto/ecdsa"
	stderrors "errors"

	"github.com/GoldCode001/vela/internal/adapter"
	"github.com/GoldCode001/vela/internal/errors"
	"github.com/GoldCode001/vela/internal/logging"
)

// OrderExchange is the order-book exchange surface the engine needs.
type OrderExchange interface {
	FetchOrderBook(ctx context.Context, tokenID string) (*adapter.OrderBook, error)
	CreateOrder(ctx context.Context, key *ecdsa.PrivateKey, order *adapter.OrderRequest) (*adapter.OrderResult, error)
}

// TradeResult is the normalized outcome of an executed or simulated buy.
type TradeResult struct {
	OrderID   string  `json:"orderId,omitempty"`
	FillPrice float64 `json:"fillPrice"`
	Shares    float64 `json:"shares"`
	CostUSD   float64 `json:"costUsd"`
	Real      bool    `json:"real"`
}

// TradeEngine executes market buys against the order book.
type TradeEngine struct {
	exchange       OrderExchange
	simulatedPrice float64
	logger         *logging.Logger
}

// NewTradeEngine creates a trade engine over the exchange client.
func NewTradeEngine(exchange OrderExchange, simulatedPrice float64, logger *logging.Logger) *TradeEngine {
	return &TradeEngine{
		exchange:       exchange,
		simulatedPrice: simulatedPrice,
		logger:         logger,
	}
}

// PlaceBuy fills a buy at the best ask. An empty ask side is NO_LIQUIDITY;
// there is no stale or default price on the real path. An exchange rejection
// surfaces as ORDER_REJECTED with the exchange's reason.
func (e *TradeEngine) PlaceBuy(ctx context.Context, key *ecdsa.PrivateKey, tokenID string, usdAmount float64) (*TradeResult, error) {
	if usdAmount <= 0 {
		return nil, errors.NewInvalidParameterError("amount", "must be positive")
	}
	if tokenID == "" {
		return nil, errors.NewInvalidParameterError("tokenId", "is required")
	}

	book, err := e.exchange.FetchOrderBook(ctx, tokenID)
	if err != nil {
		return nil, errors.NewInternalError("order book fetch failed", err)
	}

	bestAsk, err := book.BestAsk()
	if err != nil {
		return nil, errors.NewNoLiquidityError(tokenID)
	}

	fillPrice := bestAsk.Price
	shares := usdAmount / fillPrice

	result, err := e.exchange.CreateOrder(ctx, key, &adapter.OrderRequest{
		TokenID:    tokenID,
		Price:      fillPrice,
		Size:       shares,
		Side:       "BUY",
		FeeRateBps: 0,
	})
	if err != nil {
		var rejection *adapter.RejectionError
		if stderrors.As(err, &rejection) {
			return nil, errors.NewOrderRejectedError(rejection.Reason, err)
		}
		return nil, errors.NewInternalError("order submission failed", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"tokenId":   tokenID,
		"orderId":   result.OrderID,
		"fillPrice": fillPrice,
		"shares":    shares,
	}).Info("buy order placed")

	return &TradeResult{
		OrderID:   result.OrderID,
		FillPrice: fillPrice,
		Shares:    shares,
		CostUSD:   usdAmount,
		Real:      true,
	}, nil
}

// SimulatedBuy produces a fill at the fixed simulated price. Used when no
// signing key is obtainable; the result is marked not real and carries no
// order ID.
func (e *TradeEngine) SimulatedBuy(usdAmount float64) *TradeResult {
	return &TradeResult{
		FillPrice: e.simulatedPrice,
		Shares:    usdAmount / e.simulatedPrice,
		CostUSD:   usdAmount,
		Real:      false,
	}
}

// CurrentPrice returns the best ask for a token, for position revaluation.
func (e *TradeEngine) CurrentPrice(ctx context.Context, tokenID string) (float64, error) {
	book, err := e.exchange.FetchOrderBook(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	bestAsk, err := book.BestAsk()
	if err != nil {
		return 0, err
	}
	return bestAsk.Price, nil
}
