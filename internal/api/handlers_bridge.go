package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// bridgeRequest is the funding transfer payload. The private key is the
// user-approved export of their funding wallet; it is consumed for this one
// transfer and never stored.
type bridgeRequest struct {
	WalletAddress string  `json:"walletAddress"`
	Amount        float64 `json:"amount"`
	PrivateKey    string  `json:"privateKey"`
}

// handleBridge handles POST /api/bridge/base-to-polygon.
func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	var req bridgeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid request body", nil)
		return
	}
	if req.WalletAddress == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAMETER", "walletAddress is required", nil)
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PARAMETER", "amount must be positive", nil)
		return
	}
	// The quote is built for the caller's funding wallet; only its own key
	// can sign the spend. Stored trading-wallet material controls a
	// different address and must never be substituted here.
	if req.PrivateKey == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAMETER", "privateKey is required", nil)
		return
	}

	user, link, err := s.wallets.EnsureTradingWallet(r.Context(), req.WalletAddress)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	key, err := s.broker.ObtainSigningKey(r.Context(), user.ID, req.PrivateKey)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "KEY_UNAVAILABLE",
			"No signing key available for this transfer", nil)
		return
	}
	defer key.Release()

	transfer, err := s.bridge.Execute(r.Context(), user.ID, key.Key(), req.WalletAddress, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"polygonAddress": link.TradingAddress,
		"transferId":     transfer.ID,
		"sourceTxHash":   transfer.SourceTxHash,
		"estimatedTime":  transfer.EstimatedTime,
	})
}

// handleBridgeStatus handles GET /api/bridge/status/{txHash}?chainId=.
// Informational: a missing receipt reads as unconfirmed, never an error.
func (s *Server) handleBridgeStatus(w http.ResponseWriter, r *http.Request) {
	txHash := mux.Vars(r)["txHash"]
	chain := chainFromQuery(r.URL.Query().Get("chainId"))

	status := s.bridge.Status(r.Context(), txHash, chain)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"confirmed":   status.Confirmed,
		"blockNumber": status.BlockNumber,
	})
}
