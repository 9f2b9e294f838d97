package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestFetchOrderBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") != "tok-1" {
			t.Errorf("token_id = %q, want tok-1", r.URL.Query().Get("token_id"))
		}
		w.Write([]byte(`{
			"bids": [{"price": "0.44", "size": "100"}],
			"asks": [{"price": "0.47", "size": "250"}, {"price": "0.45", "size": "80"}]
		}`))
	}))
	defer server.Close()

	client := NewExchangeClient(server.URL)
	book, err := client.FetchOrderBook(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("FetchOrderBook() error = %v", err)
	}

	if len(book.Bids) != 1 || len(book.Asks) != 2 {
		t.Fatalf("book sides = %d bids / %d asks, want 1/2", len(book.Bids), len(book.Asks))
	}

	best, err := book.BestAsk()
	if err != nil {
		t.Fatalf("BestAsk() error = %v", err)
	}
	if best.Price != 0.45 {
		t.Errorf("best ask = %v, want 0.45", best.Price)
	}
	if best.Size != 80 {
		t.Errorf("best ask size = %v, want 80", best.Size)
	}
}

func TestFetchOrderBookBadLevel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids": [], "asks": [{"price": "n/a", "size": "10"}]}`))
	}))
	defer server.Close()

	client := NewExchangeClient(server.URL)
	_, err := client.FetchOrderBook(context.Background(), "tok-1")
	if err == nil {
		t.Fatal("FetchOrderBook() expected error for non-numeric price")
	}
}

func TestBestAskEmptyBook(t *testing.T) {
	book := &OrderBook{TokenID: "tok-1"}
	_, err := book.BestAsk()
	if !errors.Is(err, ErrEmptyBook) {
		t.Errorf("BestAsk() error = %v, want ErrEmptyBook", err)
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wantOwner := crypto.PubkeyToAddress(key.PublicKey).Hex()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/order" {
			t.Errorf("got %s %s, want POST /order", r.Method, r.URL.Path)
		}

		var payload orderPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.TokenID != "tok-1" {
			t.Errorf("tokenID = %q, want tok-1", payload.TokenID)
		}
		if payload.Side != "BUY" {
			t.Errorf("side = %q, want BUY", payload.Side)
		}
		if payload.Price != "0.45" {
			t.Errorf("price = %q, want 0.45", payload.Price)
		}
		if payload.FeeRateBps != "0" {
			t.Errorf("feeRateBps = %q, want 0", payload.FeeRateBps)
		}
		if payload.Owner != wantOwner {
			t.Errorf("owner = %q, want %q", payload.Owner, wantOwner)
		}
		if payload.Signature == "" {
			t.Error("signature is empty")
		}

		w.Write([]byte(`{"orderID": "ord-99"}`))
	}))
	defer server.Close()

	client := NewExchangeClient(server.URL)
	result, err := client.CreateOrder(context.Background(), key, &OrderRequest{
		TokenID: "tok-1",
		Price:   0.45,
		Size:    22.22,
		Side:    "BUY",
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if result.OrderID != "ord-99" {
		t.Errorf("OrderID = %q, want ord-99", result.OrderID)
	}
}

func TestCreateOrderRejected(t *testing.T) {
	key, _ := crypto.GenerateKey()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "not enough balance"}`))
	}))
	defer server.Close()

	client := NewExchangeClient(server.URL)
	_, err := client.CreateOrder(context.Background(), key, &OrderRequest{
		TokenID: "tok-1",
		Price:   0.45,
		Size:    10,
		Side:    "BUY",
	})

	var rejection *RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("CreateOrder() error = %v, want RejectionError", err)
	}
	if rejection.Reason != "not enough balance" {
		t.Errorf("Reason = %q, want %q", rejection.Reason, "not enough balance")
	}
}

func TestCreateOrderMissingOrderID(t *testing.T) {
	key, _ := crypto.GenerateKey()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewExchangeClient(server.URL)
	_, err := client.CreateOrder(context.Background(), key, &OrderRequest{TokenID: "t", Price: 0.5, Size: 1, Side: "BUY"})
	if err == nil {
		t.Fatal("CreateOrder() expected error for missing orderID")
	}
}
