package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/GoldCode001/vela/internal/types"
)

// QuoteRequest describes a bridge route lookup.
type QuoteRequest struct {
	SourceChain  types.ChainID
	DestChain    types.ChainID
	SourceToken  string
	DestToken    string
	AmountUnits  *big.Int // token base units
	UserAddress  string
}

// BridgeQuote is the normalized result of a route lookup. Quotes are
// time-bound; a failed transfer must obtain a fresh one.
type BridgeQuote struct {
	RouteID         string
	EstimatedTime   int // seconds to settlement
	AllowanceTarget string
	TxTarget        string
	TxData          []byte
	TxValue         *big.Int
	ObtainedAt      time.Time
}

// RouteStatus is the aggregator's settlement view of a submitted route,
// keyed by the source transaction hash. DestTxHash is populated once the
// aggregator has landed the funds on the destination chain.
type RouteStatus struct {
	SourceComplete bool
	DestComplete   bool
	DestTxHash     string
}

// BridgeClient is the aggregator API client. It talks to the quote and
// bridge-status endpoints; execution uses the quote's opaque transaction
// data through the chain client.
type BridgeClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewBridgeClient creates a bridge aggregator client.
func NewBridgeClient(baseURL, apiKey string) *BridgeClient {
	return &BridgeClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Raw aggregator DTOs. Parsed strictly; a shape we do not recognize is a
// typed failure, not a best-effort guess.

type quoteResponse struct {
	Success bool        `json:"success"`
	Result  quoteResult `json:"result"`
}

type quoteResult struct {
	Route *quoteRoute `json:"route"`
}

type quoteRoute struct {
	RouteID       string        `json:"routeId"`
	EstimatedTime int           `json:"estimatedTime"`
	UserTxs       []quoteUserTx `json:"userTxs"`
}

type quoteUserTx struct {
	TxTarget string          `json:"txTarget"`
	TxData   string          `json:"txData"`
	Value    string          `json:"value"`
	Steps    []quoteRouteStep `json:"steps"`
}

type quoteRouteStep struct {
	ApprovalData *quoteApprovalData `json:"approvalData"`
}

type quoteApprovalData struct {
	AllowanceTarget string `json:"allowanceTarget"`
}

// Quote requests a route for the transfer. Returns ErrNoRoute when the
// aggregator has no usable route for the pair/amount.
func (c *BridgeClient) Quote(ctx context.Context, req *QuoteRequest) (*BridgeQuote, error) {
	params := url.Values{}
	params.Set("fromChainId", fmt.Sprintf("%d", req.SourceChain.NumericChainID()))
	params.Set("toChainId", fmt.Sprintf("%d", req.DestChain.NumericChainID()))
	params.Set("fromTokenAddress", req.SourceToken)
	params.Set("toTokenAddress", req.DestToken)
	params.Set("fromAmount", req.AmountUnits.String())
	params.Set("userAddress", req.UserAddress)

	endpoint := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("quote request returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}

	return normalizeQuote(&parsed)
}

// normalizeQuote validates the raw response and maps it to a BridgeQuote.
func normalizeQuote(parsed *quoteResponse) (*BridgeQuote, error) {
	route := parsed.Result.Route
	if !parsed.Success || route == nil || len(route.UserTxs) == 0 {
		return nil, ErrNoRoute
	}

	userTx := route.UserTxs[0]
	if userTx.TxTarget == "" || userTx.TxData == "" {
		return nil, fmt.Errorf("quote route missing transaction data: %w", ErrNoRoute)
	}

	txData, err := hexutil.Decode(userTx.TxData)
	if err != nil {
		return nil, fmt.Errorf("quote route txData is not valid hex: %w", err)
	}

	txValue := big.NewInt(0)
	if userTx.Value != "" {
		var ok bool
		if txValue, ok = parseNumeric(userTx.Value); !ok {
			return nil, fmt.Errorf("quote route value %q is not numeric", userTx.Value)
		}
	}

	quote := &BridgeQuote{
		RouteID:       route.RouteID,
		EstimatedTime: route.EstimatedTime,
		TxTarget:      userTx.TxTarget,
		TxData:        txData,
		TxValue:       txValue,
		ObtainedAt:    time.Now(),
	}
	if quote.EstimatedTime <= 0 {
		quote.EstimatedTime = 180
	}

	if len(userTx.Steps) > 0 && userTx.Steps[0].ApprovalData != nil {
		quote.AllowanceTarget = userTx.Steps[0].ApprovalData.AllowanceTarget
	}

	return quote, nil
}

type bridgeStatusResponse struct {
	Success bool               `json:"success"`
	Result  bridgeStatusResult `json:"result"`
}

type bridgeStatusResult struct {
	SourceTxStatus             string `json:"sourceTxStatus"`
	DestinationTxStatus        string `json:"destinationTxStatus"`
	DestinationTransactionHash string `json:"destinationTransactionHash"`
}

// TransferStatus asks the aggregator where a submitted route stands. The
// aggregator is the only party that can map the source transaction hash to
// the destination-chain delivery.
func (c *BridgeClient) TransferStatus(ctx context.Context, sourceTxHash string, source, dest types.ChainID) (*RouteStatus, error) {
	params := url.Values{}
	params.Set("transactionHash", sourceTxHash)
	params.Set("fromChainId", fmt.Sprintf("%d", source.NumericChainID()))
	params.Set("toChainId", fmt.Sprintf("%d", dest.NumericChainID()))

	endpoint := fmt.Sprintf("%s/bridge-status?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build bridge-status request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bridge-status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("bridge-status request returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed bridgeStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode bridge-status response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("bridge-status lookup rejected for %s", sourceTxHash)
	}

	return &RouteStatus{
		SourceComplete: parsed.Result.SourceTxStatus == "COMPLETED",
		DestComplete:   parsed.Result.DestinationTxStatus == "COMPLETED",
		DestTxHash:     parsed.Result.DestinationTransactionHash,
	}, nil
}

// parseNumeric parses a decimal or 0x-hex big integer.
func parseNumeric(s string) (*big.Int, bool) {
	if len(s) > 2 && s[:2] == "0x" {
		v, err := hexutil.DecodeBig(s)
		if err != nil {
			return nil, false
		}
		return v, true
	}
	return new(big.Int).SetString(s, 10)
}
