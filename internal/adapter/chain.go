package adapter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/GoldCode001/vela/internal/types"
)

// ERC-20 method selectors used for direct eth_call reads and approvals.
var (
	selectorBalanceOf = common.Hex2Bytes("70a08231") // balanceOf(address)
	selectorAllowance = common.Hex2Bytes("dd62ed3e") // allowance(address,address)
	selectorApprove   = common.Hex2Bytes("095ea7b3") // approve(address,uint256)
)

// TokenDecimals is the decimal precision of the funding stablecoin (USDC).
const TokenDecimals = 6

var addressPattern = regexp.MustCompile("^0x[a-fA-F0-9]{40}$")

// Receipt is the normalized view of a transaction receipt.
type Receipt struct {
	TxHash      string `json:"txHash"`
	Confirmed   bool   `json:"confirmed"`
	BlockNumber uint64 `json:"blockNumber"`
}

// ChainClient defines the chain operations the orchestrator needs. It is
// constructed once at startup and injected; components never reach for
// ambient client state.
type ChainClient interface {
	// ChainID returns the chain identifier
	ChainID() types.ChainID

	// TokenBalance reads an ERC-20 balance via eth_call
	TokenBalance(ctx context.Context, tokenAddress, account string) (*big.Int, error)

	// NativeBalance reads the native (gas) balance
	NativeBalance(ctx context.Context, account string) (*big.Int, error)

	// Allowance reads the ERC-20 allowance granted by owner to spender
	Allowance(ctx context.Context, tokenAddress, owner, spender string) (*big.Int, error)

	// Approve submits an ERC-20 approval and returns the transaction hash
	Approve(ctx context.Context, key *ecdsa.PrivateKey, tokenAddress, spender string, amount *big.Int) (string, error)

	// SendTransaction signs and broadcasts a raw transaction (address plus
	// calldata, e.g. a bridge route step) and returns the transaction hash
	SendTransaction(ctx context.Context, key *ecdsa.PrivateKey, to string, value *big.Int, data []byte) (string, error)

	// TransactionReceipt looks up a receipt. Returns ErrReceiptNotFound while
	// the transaction is still pending.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// ValidateAddress checks if the address format is valid for this chain
	ValidateAddress(address string) bool
}

// EVMClient implements ChainClient for EVM-compatible chains.
type EVMClient struct {
	chainID  types.ChainID
	client   *ethclient.Client
	provider *RPCProvider
}

// NewEVMClient creates a chain client for the given chain using the provider's
// current endpoint.
func NewEVMClient(chainID types.ChainID, provider *RPCProvider) (*EVMClient, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	rpcURL := provider.CurrentURL()
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, NewAdapterError(chainID, "NewEVMClient", err, map[string]interface{}{
			"rpcURL": rpcURL,
		})
	}

	return &EVMClient{
		chainID:  chainID,
		client:   client,
		provider: provider,
	}, nil
}

// ChainID returns the chain identifier
func (c *EVMClient) ChainID() types.ChainID {
	return c.chainID
}

// ValidateAddress checks if the address is a 0x-prefixed 20-byte hex string.
func (c *EVMClient) ValidateAddress(address string) bool {
	return len(address) == 42 && addressPattern.MatchString(address)
}

// TokenBalance reads balanceOf(account) on the token contract via eth_call.
func (c *EVMClient) TokenBalance(ctx context.Context, tokenAddress, account string) (*big.Int, error) {
	if !c.ValidateAddress(tokenAddress) || !c.ValidateAddress(account) {
		return nil, NewAdapterError(c.chainID, "TokenBalance", ErrInvalidAddress, map[string]interface{}{
			"token":   tokenAddress,
			"account": account,
		})
	}

	data := packCall(selectorBalanceOf, common.HexToAddress(account))
	out, err := c.ethCall(ctx, tokenAddress, data)
	if err != nil {
		return nil, NewAdapterError(c.chainID, "TokenBalance", err, map[string]interface{}{
			"token":   tokenAddress,
			"account": account,
		})
	}

	return new(big.Int).SetBytes(out), nil
}

// NativeBalance reads the native balance of the account.
func (c *EVMClient) NativeBalance(ctx context.Context, account string) (*big.Int, error) {
	if !c.ValidateAddress(account) {
		return nil, NewAdapterError(c.chainID, "NativeBalance", ErrInvalidAddress, map[string]interface{}{
			"account": account,
		})
	}

	balance, err := c.client.BalanceAt(ctx, common.HexToAddress(account), nil)
	if err != nil {
		if c.shouldFailover(err) && c.failover() {
			return c.NativeBalance(ctx, account)
		}
		return nil, NewAdapterError(c.chainID, "NativeBalance", err, map[string]interface{}{
			"account": account,
		})
	}

	return balance, nil
}

// Allowance reads allowance(owner, spender) on the token contract.
func (c *EVMClient) Allowance(ctx context.Context, tokenAddress, owner, spender string) (*big.Int, error) {
	if !c.ValidateAddress(tokenAddress) || !c.ValidateAddress(owner) || !c.ValidateAddress(spender) {
		return nil, NewAdapterError(c.chainID, "Allowance", ErrInvalidAddress, map[string]interface{}{
			"token":   tokenAddress,
			"owner":   owner,
			"spender": spender,
		})
	}

	data := packCall(selectorAllowance, common.HexToAddress(owner), common.HexToAddress(spender))
	out, err := c.ethCall(ctx, tokenAddress, data)
	if err != nil {
		return nil, NewAdapterError(c.chainID, "Allowance", err, map[string]interface{}{
			"token":   tokenAddress,
			"owner":   owner,
			"spender": spender,
		})
	}

	return new(big.Int).SetBytes(out), nil
}

// Approve signs and submits approve(spender, amount) on the token contract.
func (c *EVMClient) Approve(ctx context.Context, key *ecdsa.PrivateKey, tokenAddress, spender string, amount *big.Int) (string, error) {
	if !c.ValidateAddress(tokenAddress) || !c.ValidateAddress(spender) {
		return "", NewAdapterError(c.chainID, "Approve", ErrInvalidAddress, map[string]interface{}{
			"token":   tokenAddress,
			"spender": spender,
		})
	}

	data := packCallWithAmount(selectorApprove, common.HexToAddress(spender), amount)
	return c.SendTransaction(ctx, key, tokenAddress, big.NewInt(0), data)
}

// SendTransaction signs and broadcasts a transaction to the given address.
func (c *EVMClient) SendTransaction(ctx context.Context, key *ecdsa.PrivateKey, to string, value *big.Int, data []byte) (string, error) {
	if !c.ValidateAddress(to) {
		return "", NewAdapterError(c.chainID, "SendTransaction", ErrInvalidAddress, map[string]interface{}{
			"to": to,
		})
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	toAddr := common.HexToAddress(to)

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", NewAdapterError(c.chainID, "SendTransaction", err, map[string]interface{}{
			"step": "nonce",
		})
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", NewAdapterError(c.chainID, "SendTransaction", err, map[string]interface{}{
			"step": "gasPrice",
		})
	}

	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &toAddr,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return "", NewAdapterError(c.chainID, "SendTransaction", err, map[string]interface{}{
			"step": "estimateGas",
		})
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &toAddr,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	numericID := big.NewInt(c.chainID.NumericChainID())
	signedTx, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(numericID), key)
	if err != nil {
		return "", NewAdapterError(c.chainID, "SendTransaction", err, map[string]interface{}{
			"step": "sign",
		})
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return "", NewAdapterError(c.chainID, "SendTransaction", err, map[string]interface{}{
			"step": "broadcast",
		})
	}

	return signedTx.Hash().Hex(), nil
}

// TransactionReceipt looks up a receipt by hash. A pending transaction
// returns ErrReceiptNotFound rather than an adapter error so pollers can
// distinguish "not yet" from "broken".
func (c *EVMClient) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrReceiptNotFound
		}
		if c.shouldFailover(err) && c.failover() {
			return c.TransactionReceipt(ctx, txHash)
		}
		return nil, NewAdapterError(c.chainID, "TransactionReceipt", err, map[string]interface{}{
			"txHash": txHash,
		})
	}

	return &Receipt{
		TxHash:      txHash,
		Confirmed:   receipt.Status == ethtypes.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// ethCall performs a read-only contract call with provider failover.
func (c *EVMClient) ethCall(ctx context.Context, to string, data []byte) ([]byte, error) {
	toAddr := common.HexToAddress(to)
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &toAddr, Data: data}, nil)
	if err != nil {
		if c.shouldFailover(err) && c.failover() {
			return c.ethCall(ctx, to, data)
		}
		return nil, err
	}
	c.provider.RecordSuccess()
	return out, nil
}

// failover switches the provider and redials. Returns false when no
// alternative endpoint exists.
func (c *EVMClient) failover() bool {
	c.provider.RecordFailure()
	if err := c.provider.Failover(); err != nil {
		return false
	}
	client, err := ethclient.Dial(c.provider.CurrentURL())
	if err != nil {
		return false
	}
	c.client = client
	return true
}

// shouldFailover determines if an error warrants switching providers.
func (c *EVMClient) shouldFailover(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") {
		return true
	}

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return true
	}

	return false
}

// packCall builds calldata from a 4-byte selector and address arguments.
func packCall(selector []byte, addrs ...common.Address) []byte {
	data := make([]byte, 0, 4+32*len(addrs))
	data = append(data, selector...)
	for _, addr := range addrs {
		data = append(data, common.LeftPadBytes(addr.Bytes(), 32)...)
	}
	return data
}

// packCallWithAmount builds calldata for selector(address,uint256).
func packCallWithAmount(selector []byte, addr common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+64)
	data = append(data, selector...)
	data = append(data, common.LeftPadBytes(addr.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// ToUnits converts a USD amount to token base units (6 decimals for USDC).
func ToUnits(amount float64) *big.Int {
	units := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(1e6))
	result, _ := units.Int(nil)
	return result
}

// FromUnits converts token base units to a USD amount.
func FromUnits(units *big.Int) float64 {
	if units == nil {
		return 0
	}
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(units), big.NewFloat(1e6)).Float64()
	return value
}
