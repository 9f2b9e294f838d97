package adapter

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoldCode001/vela/internal/types"
)

func testQuoteRequest() *QuoteRequest {
	return &QuoteRequest{
		SourceChain: types.ChainBase,
		DestChain:   types.ChainPolygon,
		SourceToken: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		DestToken:   "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		AmountUnits: big.NewInt(5_000_000),
		UserAddress: "0x1111111111111111111111111111111111111111",
	}
}

func TestBridgeQuoteSuccess(t *testing.T) {
	var gotPath string
	var gotAPIKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("API-KEY")

		q := r.URL.Query()
		if q.Get("fromChainId") != "8453" {
			t.Errorf("fromChainId = %q, want 8453", q.Get("fromChainId"))
		}
		if q.Get("toChainId") != "137" {
			t.Errorf("toChainId = %q, want 137", q.Get("toChainId"))
		}
		if q.Get("fromAmount") != "5000000" {
			t.Errorf("fromAmount = %q, want 5000000", q.Get("fromAmount"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"result": {
				"route": {
					"routeId": "route-abc",
					"estimatedTime": 240,
					"userTxs": [{
						"txTarget": "0x3a23F943181408EAC424116Af7b7790c94Cb97a5",
						"txData": "0xdeadbeef",
						"value": "0",
						"steps": [{
							"approvalData": {
								"allowanceTarget": "0x2222222222222222222222222222222222222222"
							}
						}]
					}]
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL, "secret-key")
	quote, err := client.Quote(context.Background(), testQuoteRequest())
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	if gotPath != "/quote" {
		t.Errorf("request path = %q, want /quote", gotPath)
	}
	if gotAPIKey != "secret-key" {
		t.Errorf("API-KEY header = %q, want secret-key", gotAPIKey)
	}
	if quote.RouteID != "route-abc" {
		t.Errorf("RouteID = %q, want route-abc", quote.RouteID)
	}
	if quote.EstimatedTime != 240 {
		t.Errorf("EstimatedTime = %d, want 240", quote.EstimatedTime)
	}
	if quote.AllowanceTarget != "0x2222222222222222222222222222222222222222" {
		t.Errorf("AllowanceTarget = %q", quote.AllowanceTarget)
	}
	if len(quote.TxData) != 4 {
		t.Errorf("TxData length = %d, want 4", len(quote.TxData))
	}
	if quote.TxValue.Sign() != 0 {
		t.Errorf("TxValue = %s, want 0", quote.TxValue)
	}
}

func TestBridgeQuoteNoRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "result": {}}`))
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL, "")
	_, err := client.Quote(context.Background(), testQuoteRequest())
	if !errors.Is(err, ErrNoRoute) {
		t.Errorf("Quote() error = %v, want ErrNoRoute", err)
	}
}

func TestBridgeQuoteEmptyUserTxs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "result": {"route": {"routeId": "r", "userTxs": []}}}`))
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL, "")
	_, err := client.Quote(context.Background(), testQuoteRequest())
	if !errors.Is(err, ErrNoRoute) {
		t.Errorf("Quote() error = %v, want ErrNoRoute", err)
	}
}

func TestBridgeQuoteBadTxData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"success": true,
			"result": {"route": {"routeId": "r", "userTxs": [{"txTarget": "0xabc", "txData": "not-hex"}]}}
		}`))
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL, "")
	_, err := client.Quote(context.Background(), testQuoteRequest())
	if err == nil {
		t.Fatal("Quote() expected error for invalid txData hex")
	}
	if errors.Is(err, ErrNoRoute) {
		t.Error("invalid hex should not be reported as no-route")
	}
}

func TestBridgeQuoteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busted", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL, "")
	_, err := client.Quote(context.Background(), testQuoteRequest())
	if err == nil {
		t.Fatal("Quote() expected error for 502")
	}
}

func TestBridgeQuoteDefaultEstimatedTime(t *testing.T) {
	parsed := &quoteResponse{
		Success: true,
		Result: quoteResult{
			Route: &quoteRoute{
				RouteID: "r",
				UserTxs: []quoteUserTx{{TxTarget: "0xabc", TxData: "0x00"}},
			},
		},
	}

	quote, err := normalizeQuote(parsed)
	if err != nil {
		t.Fatalf("normalizeQuote() error = %v", err)
	}
	if quote.EstimatedTime != 180 {
		t.Errorf("EstimatedTime = %d, want default 180", quote.EstimatedTime)
	}
}

func TestBridgeTransferStatusDelivered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bridge-status" {
			t.Errorf("path = %q, want /bridge-status", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("transactionHash") != "0xsource" {
			t.Errorf("transactionHash = %q, want 0xsource", q.Get("transactionHash"))
		}
		if q.Get("fromChainId") != "8453" || q.Get("toChainId") != "137" {
			t.Errorf("chain ids = %q/%q, want 8453/137", q.Get("fromChainId"), q.Get("toChainId"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"result": {
				"sourceTxStatus": "COMPLETED",
				"destinationTxStatus": "COMPLETED",
				"destinationTransactionHash": "0xdelivered"
			}
		}`))
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL, "test-key")
	status, err := client.TransferStatus(context.Background(), "0xsource", types.ChainBase, types.ChainPolygon)
	if err != nil {
		t.Fatalf("TransferStatus() error = %v", err)
	}
	if !status.SourceComplete || !status.DestComplete {
		t.Errorf("status = %+v, want both legs complete", status)
	}
	if status.DestTxHash != "0xdelivered" {
		t.Errorf("DestTxHash = %q, want 0xdelivered", status.DestTxHash)
	}
}

func TestBridgeTransferStatusPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"result": {
				"sourceTxStatus": "COMPLETED",
				"destinationTxStatus": "PENDING",
				"destinationTransactionHash": ""
			}
		}`))
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL, "")
	status, err := client.TransferStatus(context.Background(), "0xsource", types.ChainBase, types.ChainPolygon)
	if err != nil {
		t.Fatalf("TransferStatus() error = %v", err)
	}
	if !status.SourceComplete {
		t.Error("source leg should read complete")
	}
	if status.DestComplete {
		t.Error("destination leg should read pending")
	}
}

func TestBridgeTransferStatusRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false}`))
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL, "")
	if _, err := client.TransferStatus(context.Background(), "0xsource", types.ChainBase, types.ChainPolygon); err == nil {
		t.Fatal("expected error for rejected lookup")
	}
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"12345", "12345", true},
		{"0x0", "0", true},
		{"0xff", "255", true},
		{"", "", false},
		{"abc", "", false},
	}

	for _, tt := range tests {
		got, ok := parseNumeric(tt.input)
		if ok != tt.ok {
			t.Errorf("parseNumeric(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("parseNumeric(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}
