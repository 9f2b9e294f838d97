// Package models defines the persisted aggregates of the orchestrator.
package models

import (
	"time"

	"github.com/GoldCode001/vela/internal/types"
)

// User represents a registered user identified by their primary wallet.
type User struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"` // primary (funding-chain) address
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// WalletLink maps a user's primary wallet to their generated trading-chain
// wallet. One row per user; the trading address is immutable once assigned.
type WalletLink struct {
	UserID         string    `json:"userId"`
	PrimaryAddress string    `json:"primaryAddress"`
	TradingAddress string    `json:"tradingAddress"`
	// SigningMaterial is whatever the custody integration hands back for the
	// trading wallet. Custody of this material is an external concern.
	SigningMaterial string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
}

// BridgeTransfer is the durable record of one cross-chain transfer attempt.
// Mutated only by the bridge orchestrator; settled and failed are terminal.
type BridgeTransfer struct {
	ID            string               `json:"id"`
	UserID        string               `json:"userId"`
	SourceChain   types.ChainID        `json:"sourceChain"`
	DestChain     types.ChainID        `json:"destChain"`
	AmountUSD     float64              `json:"amountUsd"`
	SourceTxHash  string               `json:"sourceTxHash,omitempty"`
	DestTxHash    string               `json:"destTxHash,omitempty"`
	Status        types.TransferStatus `json:"status"`
	FailureReason string               `json:"failureReason,omitempty"`
	EstimatedTime int                  `json:"estimatedTime"` // seconds, from the quote
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// Position is a user's recorded stake in a market outcome. Created exactly
// once per successful order intent, real or simulated. CurrentPrice is
// refreshed out of band; Status flips to closed only on market resolution.
type Position struct {
	ID             string               `json:"id"`
	UserID         string               `json:"userId"`
	MarketID       string               `json:"marketId"`
	MarketQuestion string               `json:"marketQuestion,omitempty"`
	Side           types.Side           `json:"side"`
	AmountUSD      float64              `json:"amountUsd"`
	Shares         float64              `json:"shares"`
	EntryPrice     float64              `json:"entryPrice"`
	CurrentPrice   float64              `json:"currentPrice"`
	Status         types.PositionStatus `json:"status"`
	OrderID        string               `json:"orderId,omitempty"` // empty for simulated fills
	TokenID        string               `json:"tokenId,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// Real reports whether the position is backed by a real exchange order.
func (p *Position) Real() bool {
	return p.OrderID != ""
}

// Valuation describes the payout math for a position at a price.
// Each winning share pays out $1.
type Valuation struct {
	Payout       float64 `json:"payout"`
	CurrentValue float64 `json:"currentValue"`
	Profit       float64 `json:"profit"`
}

// ValueAt computes the position's valuation at the given price.
func (p *Position) ValueAt(price float64) Valuation {
	return Valuation{
		Payout:       p.Shares,
		CurrentValue: p.Shares * price,
		Profit:       p.Shares*price - p.AmountUSD,
	}
}
