// Package service implements the funding and trade execution flows: balance
// authorization, bridge orchestration, order execution and position
// bookkeeping.
package service

import (
	"context"
	"fmt"
	"math/big"

	"github.com/GoldCode001/vela/internal/adapter"
	"github.com/GoldCode001/vela/internal/errors"
	"github.com/GoldCode001/vela/internal/logging"
	"github.com/GoldCode001/vela/internal/types"
)

// BalanceSnapshot is a point-in-time view of a wallet's funds on one chain.
// Snapshots are never persisted or cached; every authorization re-reads the
// chain.
type BalanceSnapshot struct {
	Chain         types.ChainID `json:"chain"`
	TokenBalance  float64       `json:"tokenBalance"`  // stablecoin, USD
	NativeBalance float64       `json:"nativeBalance"` // gas token, native units
	Reserve       float64       `json:"reserve"`
	Available     float64       `json:"available"`
}

// BalanceOracle reads wallet balances and authorizes spends against the
// reserve policy.
type BalanceOracle struct {
	clients map[types.ChainID]adapter.ChainClient
	tokens  map[types.ChainID]string // stablecoin contract per chain
	reserve float64
	logger  *logging.Logger
}

// NewBalanceOracle creates a balance oracle over the given chain clients.
// tokens maps each chain to its funding stablecoin contract address.
func NewBalanceOracle(
	clients map[types.ChainID]adapter.ChainClient,
	tokens map[types.ChainID]string,
	reserve float64,
	logger *logging.Logger,
) *BalanceOracle {
	return &BalanceOracle{
		clients: clients,
		tokens:  tokens,
		reserve: reserve,
		logger:  logger,
	}
}

// Snapshot reads the wallet's stablecoin and native balances on the chain.
// Available is the token balance minus the reserve, clamped at zero.
func (o *BalanceOracle) Snapshot(ctx context.Context, walletAddress string, chain types.ChainID) (*BalanceSnapshot, error) {
	client, ok := o.clients[chain]
	if !ok {
		return nil, errors.NewChainReadError(chain, "Snapshot", fmt.Errorf("no client configured for chain %s", chain))
	}

	if !client.ValidateAddress(walletAddress) {
		return nil, errors.NewChainReadError(chain, "Snapshot", adapter.ErrInvalidAddress)
	}

	tokenUnits, err := client.TokenBalance(ctx, o.tokens[chain], walletAddress)
	if err != nil {
		return nil, errors.NewChainReadError(chain, "TokenBalance", err)
	}

	nativeWei, err := client.NativeBalance(ctx, walletAddress)
	if err != nil {
		return nil, errors.NewChainReadError(chain, "NativeBalance", err)
	}

	tokenBalance := adapter.FromUnits(tokenUnits)
	available := tokenBalance - o.reserve
	if available < 0 {
		available = 0
	}

	return &BalanceSnapshot{
		Chain:         chain,
		TokenBalance:  tokenBalance,
		NativeBalance: weiToNative(nativeWei),
		Reserve:       o.reserve,
		Available:     available,
	}, nil
}

// Authorize re-snapshots the wallet and fails when the requested amount
// exceeds the available balance. Runs before any mutating call so an
// underfunded flow never reaches the chain.
func (o *BalanceOracle) Authorize(ctx context.Context, walletAddress string, chain types.ChainID, amountUSD float64) (*BalanceSnapshot, error) {
	if amountUSD <= 0 {
		return nil, errors.NewInvalidParameterError("amount", "must be positive")
	}

	snapshot, err := o.Snapshot(ctx, walletAddress, chain)
	if err != nil {
		return nil, err
	}

	if amountUSD > snapshot.Available {
		o.logger.WithFields(map[string]interface{}{
			"wallet":    walletAddress,
			"chain":     chain,
			"requested": amountUSD,
			"available": snapshot.Available,
		}).Warn("spend authorization rejected")
		return nil, errors.NewInsufficientFundsError(amountUSD, snapshot.Available, snapshot.Reserve)
	}

	return snapshot, nil
}

// weiToNative converts wei to the native token amount.
func weiToNative(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return value
}
