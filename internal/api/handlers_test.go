package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GoldCode001/vela/internal/errors"
	"github.com/GoldCode001/vela/internal/keys"
	"github.com/GoldCode001/vela/internal/logging"
	"github.com/GoldCode001/vela/internal/models"
	"github.com/GoldCode001/vela/internal/service"
	"github.com/GoldCode001/vela/internal/types"
)

type stubBetting struct {
	result    *service.BetResult
	positions []*models.Position
	err       error
	gotIntent *service.BetIntent
}

func (s *stubBetting) PlaceBet(ctx context.Context, intent *service.BetIntent) (*service.BetResult, error) {
	s.gotIntent = intent
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubBetting) ListPositions(ctx context.Context, walletAddress string) ([]*models.Position, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.positions, nil
}

type stubBridge struct {
	transfer *models.BridgeTransfer
	status   *service.BridgeStatus
	err      error
}

func (s *stubBridge) Execute(ctx context.Context, userID string, key *ecdsa.PrivateKey, walletAddress string, amountUSD float64) (*models.BridgeTransfer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.transfer, nil
}

func (s *stubBridge) Status(ctx context.Context, txHash string, chain types.ChainID) *service.BridgeStatus {
	return s.status
}

type stubWallets struct {
	user *models.User
	link *models.WalletLink
	err  error
}

func (s *stubWallets) EnsureTradingWallet(ctx context.Context, walletAddress string) (*models.User, *models.WalletLink, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.user, s.link, nil
}

type stubBroker struct {
	err   error
	calls int
}

func (s *stubBroker) ObtainSigningKey(ctx context.Context, walletID, suppliedMaterial string) (*keys.SigningKey, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	key, _, err := keys.GenerateKey()
	return key, err
}

func testServer(betting BettingServiceInterface, bridge BridgeServiceInterface, wallets WalletServiceInterface, broker KeyBrokerInterface) *Server {
	return NewServer(
		DefaultServerConfig("127.0.0.1", "0"),
		betting,
		bridge,
		wallets,
		broker,
		logging.NewLogger(logging.LevelFatal, logging.FormatText),
	)
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	server := testServer(&stubBetting{}, &stubBridge{}, &stubWallets{}, &stubBroker{})

	recorder := doJSON(t, server, "GET", "/health", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestPlaceBetEndpoint(t *testing.T) {
	betting := &stubBetting{
		result: &service.BetResult{
			PositionID: "position-1",
			Side:       types.SideYes,
			Trade: &service.TradeResult{
				OrderID:   "ord-1",
				FillPrice: 0.47,
				Shares:    21.2766,
				CostUSD:   10,
				Real:      true,
			},
		},
	}
	server := testServer(betting, &stubBridge{}, &stubWallets{}, &stubBroker{})

	outcome := 0
	recorder := doJSON(t, server, "POST", "/api/bets/place", map[string]interface{}{
		"walletAddress": "0x1111111111111111111111111111111111111111",
		"marketId":      "mkt-1",
		"outcome":       outcome,
		"amount":        10,
		"tokenIds":      []string{"tok-yes", "tok-no"},
	})

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		Success bool `json:"success"`
		Trade   struct {
			Shares  string `json:"shares"`
			Real    bool   `json:"real"`
			OrderID string `json:"orderId"`
		} `json:"trade"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !response.Success || !response.Trade.Real || response.Trade.OrderID != "ord-1" {
		t.Errorf("response = %+v", response)
	}
	if response.Trade.Shares != "21.2766" {
		t.Errorf("shares = %q, want 21.2766", response.Trade.Shares)
	}
	if betting.gotIntent.MarketID != "mkt-1" || betting.gotIntent.Outcome != 0 {
		t.Errorf("intent = %+v", betting.gotIntent)
	}
}

func TestPlaceBetMissingOutcome(t *testing.T) {
	server := testServer(&stubBetting{}, &stubBridge{}, &stubWallets{}, &stubBroker{})

	recorder := doJSON(t, server, "POST", "/api/bets/place", map[string]interface{}{
		"walletAddress": "0x1111111111111111111111111111111111111111",
		"marketId":      "mkt-1",
		"amount":        10,
	})

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}
}

func TestPlaceBetErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"insufficient funds", errors.NewInsufficientFundsError(10, 4, 1), http.StatusBadRequest, "INSUFFICIENT_FUNDS"},
		{"no liquidity", errors.NewNoLiquidityError("tok-1"), http.StatusUnprocessableEntity, "NO_LIQUIDITY"},
		{"order rejected", errors.NewOrderRejectedError("market closed", nil), http.StatusUnprocessableEntity, "ORDER_REJECTED"},
		{"user not found", errors.NewNotFoundError("user", "0xabc"), http.StatusNotFound, "NOT_FOUND"},
		{"persistence", errors.NewPersistenceError("insert", nil), http.StatusInternalServerError, "PERSISTENCE_ERROR"},
	}

	outcome := 0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testServer(&stubBetting{err: tt.err}, &stubBridge{}, &stubWallets{}, &stubBroker{})

			recorder := doJSON(t, server, "POST", "/api/bets/place", map[string]interface{}{
				"walletAddress": "0x1111111111111111111111111111111111111111",
				"marketId":      "mkt-1",
				"outcome":       outcome,
				"amount":        10,
			})

			if recorder.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", recorder.Code, tt.wantStatus)
			}

			var response ErrorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if response.Error.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", response.Error.Code, tt.wantCode)
			}
			if response.Success {
				t.Error("success = true on error response")
			}
		})
	}
}

func TestListPositionsEndpoint(t *testing.T) {
	betting := &stubBetting{
		positions: []*models.Position{
			{
				ID:           "position-1",
				MarketID:     "mkt-1",
				Side:         types.SideYes,
				AmountUSD:    10,
				Shares:       20,
				EntryPrice:   0.50,
				CurrentPrice: 0.60,
				Status:       types.PositionActive,
				OrderID:      "ord-1",
				CreatedAt:    time.Now(),
			},
		},
	}
	server := testServer(betting, &stubBridge{}, &stubWallets{}, &stubBroker{})

	recorder := doJSON(t, server, "GET", "/api/bets/positions/0x1111111111111111111111111111111111111111", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	var response struct {
		Success   bool           `json:"success"`
		Positions []positionView `json:"positions"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(response.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(response.Positions))
	}

	p := response.Positions[0]
	if p.CurrentValue != 12 { // 20 shares at 0.60
		t.Errorf("CurrentValue = %v, want 12", p.CurrentValue)
	}
	if p.Profit != 2 {
		t.Errorf("Profit = %v, want 2", p.Profit)
	}
	if !p.Real {
		t.Error("Real = false for position with order id")
	}
}

func TestBridgeEndpoint(t *testing.T) {
	wallets := &stubWallets{
		user: &models.User{ID: "user-1", WalletAddress: "0x1111111111111111111111111111111111111111"},
		link: &models.WalletLink{
			UserID:         "user-1",
			TradingAddress: "0x2222222222222222222222222222222222222222",
		},
	}
	bridge := &stubBridge{
		transfer: &models.BridgeTransfer{
			ID:            "transfer-1",
			SourceTxHash:  "0xsend1",
			Status:        types.TransferSettling,
			EstimatedTime: 180,
		},
	}
	server := testServer(&stubBetting{}, bridge, wallets, &stubBroker{})

	recorder := doJSON(t, server, "POST", "/api/bridge/base-to-polygon", map[string]interface{}{
		"walletAddress": "0x1111111111111111111111111111111111111111",
		"amount":        25,
		"privateKey":    "unused-by-stub",
	})

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		Success        bool   `json:"success"`
		PolygonAddress string `json:"polygonAddress"`
		TransferID     string `json:"transferId"`
		EstimatedTime  int    `json:"estimatedTime"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.PolygonAddress != wallets.link.TradingAddress {
		t.Errorf("polygonAddress = %s", response.PolygonAddress)
	}
	if response.TransferID != "transfer-1" || response.EstimatedTime != 180 {
		t.Errorf("response = %+v", response)
	}
}

func TestBridgeEndpointRequiresPrivateKey(t *testing.T) {
	wallets := &stubWallets{
		user: &models.User{ID: "user-1"},
		link: &models.WalletLink{UserID: "user-1", TradingAddress: "0x22"},
	}
	broker := &stubBroker{err: keys.ErrCustodyDisabled}
	server := testServer(&stubBetting{}, &stubBridge{}, wallets, broker)

	// Without the funding wallet's own key the request is invalid; stored
	// trading-wallet material controls a different address.
	recorder := doJSON(t, server, "POST", "/api/bridge/base-to-polygon", map[string]interface{}{
		"walletAddress": "0x1111111111111111111111111111111111111111",
		"amount":        25,
	})

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}
	var response ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Error.Code != "INVALID_PARAMETER" {
		t.Errorf("error code = %s, want INVALID_PARAMETER", response.Error.Code)
	}
	if broker.calls != 0 {
		t.Errorf("broker consulted %d times for a keyless request", broker.calls)
	}
}

func TestBridgeEndpointBadKey(t *testing.T) {
	wallets := &stubWallets{
		user: &models.User{ID: "user-1"},
		link: &models.WalletLink{UserID: "user-1", TradingAddress: "0x22"},
	}
	server := testServer(&stubBetting{}, &stubBridge{}, wallets, &stubBroker{err: keys.ErrNoKeyMaterial})

	recorder := doJSON(t, server, "POST", "/api/bridge/base-to-polygon", map[string]interface{}{
		"walletAddress": "0x1111111111111111111111111111111111111111",
		"amount":        25,
		"privateKey":    "not-a-key",
	})

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", recorder.Code)
	}
}

func TestBridgeEndpointValidation(t *testing.T) {
	server := testServer(&stubBetting{}, &stubBridge{}, &stubWallets{}, &stubBroker{})

	recorder := doJSON(t, server, "POST", "/api/bridge/base-to-polygon", map[string]interface{}{
		"walletAddress": "0x1111111111111111111111111111111111111111",
		"amount":        -5,
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}
}

func TestBridgeStatusEndpoint(t *testing.T) {
	bridge := &stubBridge{status: &service.BridgeStatus{Confirmed: true, BlockNumber: 123}}
	server := testServer(&stubBetting{}, bridge, &stubWallets{}, &stubBroker{})

	recorder := doJSON(t, server, "GET", "/api/bridge/status/0xhash?chainId=137", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	var response struct {
		Success     bool   `json:"success"`
		Confirmed   bool   `json:"confirmed"`
		BlockNumber uint64 `json:"blockNumber"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !response.Confirmed || response.BlockNumber != 123 {
		t.Errorf("response = %+v", response)
	}
}
