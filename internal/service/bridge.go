package service

import (
	"context"
	"crypto/ecdsa"
	stderrors "errors"
	"fmt"
	"math/big"
	"time"

	"github.com/GoldCode001/vela/internal/adapter"
	"github.com/GoldCode001/vela/internal/config"
	"github.com/GoldCode001/vela/internal/errors"
	"github.com/GoldCode001/vela/internal/logging"
	"github.com/GoldCode001/vela/internal/models"
	"github.com/GoldCode001/vela/internal/retry"
	"github.com/GoldCode001/vela/internal/storage"
	"github.com/GoldCode001/vela/internal/types"
)

// BridgeAggregator obtains routes from the bridge aggregator and reports
// where a submitted route stands.
type BridgeAggregator interface {
	Quote(ctx context.Context, req *adapter.QuoteRequest) (*adapter.BridgeQuote, error)
	TransferStatus(ctx context.Context, sourceTxHash string, source, dest types.ChainID) (*adapter.RouteStatus, error)
}

// TransferStore persists bridge transfers.
type TransferStore interface {
	Create(ctx context.Context, transfer *models.BridgeTransfer) error
	UpdateStatus(ctx context.Context, id string, status types.TransferStatus) error
	SetSourceTx(ctx context.Context, id, txHash string, status types.TransferStatus) error
	SetDestTx(ctx context.Context, id, txHash string, status types.TransferStatus) error
	MarkFailed(ctx context.Context, id, reason string) error
	GetByID(ctx context.Context, id string) (*models.BridgeTransfer, error)
	GetBySourceTx(ctx context.Context, txHash string) (*models.BridgeTransfer, error)
}

// BridgeStatus is the informational receipt view used by the status
// endpoint. A missing receipt is Confirmed=false, not an error.
type BridgeStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

// BridgeOrchestrator drives a transfer through its state machine:
// quoted → approving → submitted → settling → settled | failed.
// Each transition is persisted before the next step runs. Failed is
// terminal; a retry needs a new transfer with a fresh quote.
type BridgeOrchestrator struct {
	quoter    BridgeAggregator
	oracle    *BalanceOracle
	source    adapter.ChainClient
	dest      adapter.ChainClient
	transfers TransferStore
	cache     *storage.RedisCache
	tokens    map[types.ChainID]string
	cfg       config.BridgeConfig
	logger    *logging.Logger
}

// NewBridgeOrchestrator creates a bridge orchestrator for the funding→trading
// chain direction.
func NewBridgeOrchestrator(
	quoter BridgeAggregator,
	oracle *BalanceOracle,
	source, dest adapter.ChainClient,
	transfers TransferStore,
	cache *storage.RedisCache,
	tokens map[types.ChainID]string,
	cfg config.BridgeConfig,
	logger *logging.Logger,
) *BridgeOrchestrator {
	return &BridgeOrchestrator{
		quoter:    quoter,
		oracle:    oracle,
		source:    source,
		dest:      dest,
		transfers: transfers,
		cache:     cache,
		tokens:    tokens,
		cfg:       cfg,
		logger:    logger,
	}
}

// Execute runs quote, approval and submission synchronously, then hands the
// transfer to background settlement polling. The returned transfer is in
// status settling on success.
func (o *BridgeOrchestrator) Execute(ctx context.Context, userID string, key *ecdsa.PrivateKey, walletAddress string, amountUSD float64) (*models.BridgeTransfer, error) {
	sourceChain := o.source.ChainID()
	destChain := o.dest.ChainID()
	units := adapter.ToUnits(amountUSD)

	// A transfer that would dip into the fee reserve never reaches the
	// aggregator.
	if _, err := o.oracle.Authorize(ctx, walletAddress, sourceChain, amountUSD); err != nil {
		return nil, err
	}

	quote, err := o.quoter.Quote(ctx, &adapter.QuoteRequest{
		SourceChain: sourceChain,
		DestChain:   destChain,
		SourceToken: o.tokens[sourceChain],
		DestToken:   o.tokens[destChain],
		AmountUnits: units,
		UserAddress: walletAddress,
	})
	if err != nil {
		if stderrors.Is(err, adapter.ErrNoRoute) {
			return nil, errors.NewNoRouteAvailableError(sourceChain, destChain)
		}
		return nil, errors.NewInternalError("bridge quote failed", err)
	}

	transfer := &models.BridgeTransfer{
		UserID:        userID,
		SourceChain:   sourceChain,
		DestChain:     destChain,
		AmountUSD:     amountUSD,
		Status:        types.TransferQuoted,
		EstimatedTime: quote.EstimatedTime,
	}
	if err := o.transfers.Create(ctx, transfer); err != nil {
		return nil, errors.NewPersistenceError("create transfer", err)
	}

	log := o.logger.WithFields(map[string]interface{}{
		"transferId": transfer.ID,
		"wallet":     walletAddress,
		"amountUsd":  amountUSD,
	})

	if err := o.ensureApproval(ctx, transfer, key, walletAddress, quote, units); err != nil {
		return nil, err
	}

	srcHash, err := o.source.SendTransaction(ctx, key, quote.TxTarget, quote.TxValue, quote.TxData)
	if err != nil {
		// The approval, if made, stays in place for a future attempt.
		o.fail(ctx, transfer, fmt.Sprintf("route submission failed: %v", err))
		return nil, errors.NewInternalError("bridge submission failed", err)
	}

	// The route transaction is on the wire from here on. Persistence
	// failures are reported, but the broadcast hash is still tracked to a
	// terminal outcome by the settlement poller.
	transfer.SourceTxHash = srcHash
	transfer.Status = types.TransferSubmitted
	if err := o.transfers.SetSourceTx(ctx, transfer.ID, srcHash, types.TransferSubmitted); err != nil {
		log.WithError(err).WithField("sourceTxHash", srcHash).Error("broadcast transfer not recorded, tracking settlement anyway")
		go o.settle(transfer.ID, srcHash)
		return nil, errors.NewPersistenceError("record source tx", err)
	}

	transfer.Status = types.TransferSettling
	if err := o.transfers.UpdateStatus(ctx, transfer.ID, types.TransferSettling); err != nil {
		log.WithError(err).WithField("sourceTxHash", srcHash).Error("settling transition not recorded, tracking settlement anyway")
		go o.settle(transfer.ID, srcHash)
		return nil, errors.NewPersistenceError("update transfer status", err)
	}

	log.WithField("sourceTxHash", srcHash).Info("bridge transfer submitted")

	go o.settle(transfer.ID, srcHash)

	return transfer, nil
}

// ensureApproval grants the route's allowance target the transfer amount
// when the current allowance does not cover it. An allowance that already
// covers the amount is never re-approved.
func (o *BridgeOrchestrator) ensureApproval(ctx context.Context, transfer *models.BridgeTransfer, key *ecdsa.PrivateKey, walletAddress string, quote *adapter.BridgeQuote, units *big.Int) error {
	if quote.AllowanceTarget == "" {
		return nil
	}

	token := o.tokens[o.source.ChainID()]

	allowance, err := o.source.Allowance(ctx, token, walletAddress, quote.AllowanceTarget)
	if err != nil {
		o.fail(ctx, transfer, fmt.Sprintf("allowance read failed: %v", err))
		return errors.NewChainReadError(o.source.ChainID(), "Allowance", err)
	}
	if allowance.Cmp(units) >= 0 {
		return nil
	}

	transfer.Status = types.TransferApproving
	if err := o.transfers.UpdateStatus(ctx, transfer.ID, types.TransferApproving); err != nil {
		return errors.NewPersistenceError("update transfer status", err)
	}

	approveHash, err := o.source.Approve(ctx, key, token, quote.AllowanceTarget, units)
	if err != nil {
		o.fail(ctx, transfer, fmt.Sprintf("approval failed: %v", err))
		return errors.NewInternalError("bridge approval failed", err)
	}

	if err := o.waitForReceipt(ctx, o.source, approveHash, o.cfg.ConfirmTimeout); err != nil {
		o.fail(ctx, transfer, fmt.Sprintf("approval not confirmed: %v", err))
		return errors.NewInternalError("bridge approval not confirmed", err)
	}

	return nil
}

// waitForReceipt polls for a confirmed receipt within the timeout.
func (o *BridgeOrchestrator) waitForReceipt(ctx context.Context, client adapter.ChainClient, txHash string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := &retry.Config{
		MaxAttempts:  int(timeout/o.cfg.PollInterval) + 1,
		InitialDelay: o.cfg.PollInterval,
		MaxDelay:     o.cfg.PollInterval * 4,
		Multiplier:   1.5,
	}

	return retry.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err != nil {
			return err
		}
		if !receipt.Confirmed {
			return fmt.Errorf("transaction %s reverted", txHash)
		}
		return nil
	})
}

// settle polls the chains for the transfer's receipts until a terminal state
// or the settlement timeout. On timeout the transfer stays settling and is
// resolved by a later status check.
func (o *BridgeOrchestrator) settle(transferID, srcHash string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SettleTimeout)
	defer cancel()

	log := o.logger.WithFields(map[string]interface{}{
		"transferId":   transferID,
		"sourceTxHash": srcHash,
	})

	attempts := int(o.cfg.SettleTimeout/o.cfg.PollInterval) + 1
	pollCfg := &retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: o.cfg.PollInterval,
		MaxDelay:     o.cfg.PollInterval * 4,
		Multiplier:   1.5,
	}

	// Source receipt first: a reverted source transaction is a hard failure.
	var srcReceipt *adapter.Receipt
	result := retry.WithExponentialBackoff(ctx, pollCfg, func(ctx context.Context, attempt int) error {
		receipt, err := o.source.TransactionReceipt(ctx, srcHash)
		if err != nil {
			return err
		}
		srcReceipt = receipt
		return nil
	})
	if !result.Success {
		log.WithError(result.LastError).Warn("settlement polling timed out waiting for source receipt")
		return
	}
	if !srcReceipt.Confirmed {
		o.fail(ctx, &models.BridgeTransfer{ID: transferID}, "source transaction reverted")
		return
	}

	// Destination delivery next. The source hash does not exist on the
	// destination chain; only the aggregator can map it to the delivery
	// transaction. A timeout here leaves the transfer settling.
	var route *adapter.RouteStatus
	result = retry.WithExponentialBackoff(ctx, pollCfg, func(ctx context.Context, attempt int) error {
		status, err := o.quoter.TransferStatus(ctx, srcHash, o.source.ChainID(), o.dest.ChainID())
		if err != nil {
			return err
		}
		if !status.DestComplete {
			return fmt.Errorf("destination delivery pending for %s", srcHash)
		}
		route = status
		return nil
	})
	if !result.Success {
		log.Info("transfer still settling after timeout, awaiting status check")
		return
	}

	if err := o.transfers.SetDestTx(ctx, transferID, route.DestTxHash, types.TransferSettled); err != nil {
		log.WithError(err).Error("failed to persist settled transfer")
		return
	}
	log.WithField("destTxHash", route.DestTxHash).Info("bridge transfer settled")
}

// Status looks up a transaction receipt on the requested chain. Lookup
// failures degrade to unconfirmed; this path is informational only.
func (o *BridgeOrchestrator) Status(ctx context.Context, txHash string, chain types.ChainID) *BridgeStatus {
	cacheKey := fmt.Sprintf("bridge:status:%s:%s", chain, txHash)
	if o.cache != nil {
		var cached BridgeStatus
		if found, err := o.cache.GetJSON(ctx, cacheKey, &cached); err == nil && found {
			return &cached
		}
	}

	client := o.source
	if chain == o.dest.ChainID() {
		client = o.dest
	}

	receipt, err := client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if !stderrors.Is(err, adapter.ErrReceiptNotFound) {
			o.logger.WithError(err).WithField("txHash", txHash).Warn("bridge status lookup failed")
		}
		return &BridgeStatus{Confirmed: false}
	}

	status := &BridgeStatus{
		Confirmed:   receipt.Confirmed,
		BlockNumber: receipt.BlockNumber,
	}

	if o.cache != nil && status.Confirmed {
		// Confirmed receipts are immutable, cache them briefly to absorb
		// repeated status polling.
		_ = o.cache.SetJSON(ctx, cacheKey, status, 5*time.Minute)
	}

	return status
}

func (o *BridgeOrchestrator) fail(ctx context.Context, transfer *models.BridgeTransfer, reason string) {
	if err := o.transfers.MarkFailed(ctx, transfer.ID, reason); err != nil {
		o.logger.WithError(err).WithField("transferId", transfer.ID).Error("failed to mark transfer failed")
	}
	transfer.Status = types.TransferFailed
	transfer.FailureReason = reason
}
