package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/GoldCode001/vela/internal/service"
)

// placeBetRequest is the bet placement payload.
type placeBetRequest struct {
	WalletAddress  string   `json:"walletAddress"`
	MarketID       string   `json:"marketId"`
	MarketQuestion string   `json:"marketQuestion"`
	Outcome        *int     `json:"outcome"`
	Amount         float64  `json:"amount"`
	TokenIDs       []string `json:"tokenIds"`
	PrivateKey     string   `json:"privateKey"`
}

// tradeView is the trade portion of the bet placement response.
type tradeView struct {
	Shares     string `json:"shares"`
	EntryPrice string `json:"entryPrice"`
	Real       bool   `json:"real"`
	OrderID    string `json:"orderId,omitempty"`
}

// handlePlaceBet handles POST /api/bets/place.
func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid request body", nil)
		return
	}
	if req.Outcome == nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAMETER", "outcome is required", nil)
		return
	}

	result, err := s.betting.PlaceBet(r.Context(), &service.BetIntent{
		WalletAddress:  req.WalletAddress,
		MarketID:       req.MarketID,
		MarketQuestion: req.MarketQuestion,
		Outcome:        *req.Outcome,
		AmountUSD:      req.Amount,
		TokenIDs:       req.TokenIDs,
		SuppliedKey:    req.PrivateKey,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Bet placed successfully!",
		"trade": tradeView{
			Shares:     fmt.Sprintf("%.4f", result.Trade.Shares),
			EntryPrice: fmt.Sprintf("%.4f", result.Trade.FillPrice),
			Real:       result.Trade.Real,
			OrderID:    result.Trade.OrderID,
		},
	})
}

// positionView is one position in the list response, with its valuation at
// the current marked price.
type positionView struct {
	ID             string  `json:"id"`
	MarketID       string  `json:"marketId"`
	MarketQuestion string  `json:"marketQuestion,omitempty"`
	Side           string  `json:"side"`
	AmountUSD      float64 `json:"amountUsd"`
	Shares         float64 `json:"shares"`
	EntryPrice     float64 `json:"entryPrice"`
	CurrentPrice   float64 `json:"currentPrice"`
	CurrentValue   float64 `json:"currentValue"`
	Profit         float64 `json:"profit"`
	Real           bool    `json:"real"`
	OrderID        string  `json:"orderId,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

// handleListPositions handles GET /api/bets/positions/{walletAddress}.
func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	walletAddress := mux.Vars(r)["walletAddress"]

	positions, err := s.betting.ListPositions(r.Context(), walletAddress)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		valuation := p.ValueAt(p.CurrentPrice)
		views = append(views, positionView{
			ID:             p.ID,
			MarketID:       p.MarketID,
			MarketQuestion: p.MarketQuestion,
			Side:           string(p.Side),
			AmountUSD:      p.AmountUSD,
			Shares:         p.Shares,
			EntryPrice:     p.EntryPrice,
			CurrentPrice:   p.CurrentPrice,
			CurrentValue:   valuation.CurrentValue,
			Profit:         valuation.Profit,
			Real:           p.Real(),
			OrderID:        p.OrderID,
			CreatedAt:      p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"positions": views,
	})
}
