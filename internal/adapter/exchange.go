package adapter

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/time/rate"
)

// Outbound rate limits, kept under the exchange's documented ceilings.
const (
	bookRatePerSec  = 30
	orderRatePerSec = 10
)

// BookLevel is one price level of the order book.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is the bid/ask state for one outcome token.
type OrderBook struct {
	TokenID string      `json:"tokenId"`
	Bids    []BookLevel `json:"bids"`
	Asks    []BookLevel `json:"asks"`
}

// BestAsk returns the lowest ask, or ErrEmptyBook when the ask side is empty.
func (b *OrderBook) BestAsk() (BookLevel, error) {
	if len(b.Asks) == 0 {
		return BookLevel{}, ErrEmptyBook
	}

	best := b.Asks[0]
	for _, level := range b.Asks[1:] {
		if level.Price < best.Price {
			best = level
		}
	}
	return best, nil
}

// OrderRequest is a buy/sell order submission.
type OrderRequest struct {
	TokenID    string
	Price      float64
	Size       float64
	Side       string // "BUY" or "SELL"
	FeeRateBps int
}

// OrderResult is the normalized exchange acknowledgement.
type OrderResult struct {
	OrderID string
}

// RejectionError carries the exchange-provided rejection reason.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

// ExchangeClient talks to the order-book exchange API with outbound rate
// limiting.
type ExchangeClient struct {
	httpClient   *http.Client
	baseURL      string
	bookLimiter  *rate.Limiter
	orderLimiter *rate.Limiter
}

// NewExchangeClient creates an exchange client for the given base URL.
func NewExchangeClient(baseURL string) *ExchangeClient {
	return &ExchangeClient{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		baseURL:      baseURL,
		bookLimiter:  rate.NewLimiter(bookRatePerSec, 5),
		orderLimiter: rate.NewLimiter(orderRatePerSec, 2),
	}
}

// Raw exchange DTOs. Price levels arrive as strings for precision.

type bookResponse struct {
	Bids []bookLevelRaw `json:"bids"`
	Asks []bookLevelRaw `json:"asks"`
}

type bookLevelRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type orderPayload struct {
	TokenID    string `json:"tokenID"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	Side       string `json:"side"`
	FeeRateBps string `json:"feeRateBps"`
	Owner      string `json:"owner"`
	Signature  string `json:"signature"`
}

type orderResponse struct {
	OrderID string `json:"orderID"`
	Error   string `json:"error"`
}

// FetchOrderBook retrieves the current book for a token.
func (c *ExchangeClient) FetchOrderBook(ctx context.Context, tokenID string) (*OrderBook, error) {
	if err := c.bookLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/book?token_id=%s", c.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build book request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("book request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("book request returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed bookResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode book response: %w", err)
	}

	return normalizeBook(tokenID, &parsed)
}

// normalizeBook converts raw string levels into a typed book, failing closed
// on unparseable values.
func normalizeBook(tokenID string, parsed *bookResponse) (*OrderBook, error) {
	book := &OrderBook{
		TokenID: tokenID,
		Bids:    make([]BookLevel, 0, len(parsed.Bids)),
		Asks:    make([]BookLevel, 0, len(parsed.Asks)),
	}

	for _, raw := range parsed.Bids {
		level, err := parseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("bid level: %w", err)
		}
		book.Bids = append(book.Bids, level)
	}

	for _, raw := range parsed.Asks {
		level, err := parseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("ask level: %w", err)
		}
		book.Asks = append(book.Asks, level)
	}

	return book, nil
}

func parseLevel(raw bookLevelRaw) (BookLevel, error) {
	price, err := strconv.ParseFloat(raw.Price, 64)
	if err != nil {
		return BookLevel{}, fmt.Errorf("price %q is not numeric", raw.Price)
	}
	size, err := strconv.ParseFloat(raw.Size, 64)
	if err != nil {
		return BookLevel{}, fmt.Errorf("size %q is not numeric", raw.Size)
	}
	return BookLevel{Price: price, Size: size}, nil
}

// CreateOrder signs and submits an order. A 4xx response becomes a
// RejectionError carrying the exchange's reason text.
func (c *ExchangeClient) CreateOrder(ctx context.Context, key *ecdsa.PrivateKey, order *OrderRequest) (*OrderResult, error) {
	if err := c.orderLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	payload := orderPayload{
		TokenID:    order.TokenID,
		Price:      strconv.FormatFloat(order.Price, 'f', -1, 64),
		Size:       strconv.FormatFloat(order.Size, 'f', -1, 64),
		Side:       order.Side,
		FeeRateBps: strconv.Itoa(order.FeeRateBps),
		Owner:      crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}

	signature, err := signOrder(key, &payload)
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}
	payload.Signature = signature

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var parsed orderResponse
		reason := "rejected without reason"
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != "" {
			reason = parsed.Error
		}
		return nil, &RejectionError{Reason: reason}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order request returned %d", resp.StatusCode)
	}

	var parsed orderResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if parsed.OrderID == "" {
		return nil, fmt.Errorf("order response missing orderID")
	}

	return &OrderResult{OrderID: parsed.OrderID}, nil
}

// signOrder produces a secp256k1 signature over the canonical order fields.
func signOrder(key *ecdsa.PrivateKey, payload *orderPayload) (string, error) {
	digest := crypto.Keccak256(
		[]byte(payload.TokenID),
		[]byte(payload.Price),
		[]byte(payload.Size),
		[]byte(payload.Side),
		[]byte(payload.FeeRateBps),
		[]byte(payload.Owner),
	)

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}
