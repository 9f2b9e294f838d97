package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/GoldCode001/vela/internal/models"
	"github.com/GoldCode001/vela/internal/types"
)

// TransferRepository persists bridge transfers. Every state transition of
// the orchestrator lands here before the next step runs.
type TransferRepository struct {
	db *PostgresDB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *PostgresDB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a new transfer record.
func (r *TransferRepository) Create(ctx context.Context, transfer *models.BridgeTransfer) error {
	if transfer.ID == "" {
		transfer.ID = uuid.New().String()
	}

	now := time.Now()
	transfer.CreatedAt = now
	transfer.UpdatedAt = now

	query := `
		INSERT INTO bridge_transfers
			(id, user_id, source_chain, dest_chain, amount_usd, source_tx_hash,
			 dest_tx_hash, status, failure_reason, estimated_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		transfer.ID,
		transfer.UserID,
		transfer.SourceChain,
		transfer.DestChain,
		transfer.AmountUSD,
		transfer.SourceTxHash,
		transfer.DestTxHash,
		transfer.Status,
		transfer.FailureReason,
		transfer.EstimatedTime,
		transfer.CreatedAt,
		transfer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

// UpdateStatus advances the transfer's status.
func (r *TransferRepository) UpdateStatus(ctx context.Context, id string, status types.TransferStatus) error {
	query := `
		UPDATE bridge_transfers
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update transfer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetSourceTx records the source-chain transaction hash alongside a status
// change.
func (r *TransferRepository) SetSourceTx(ctx context.Context, id, txHash string, status types.TransferStatus) error {
	query := `
		UPDATE bridge_transfers
		SET source_tx_hash = $2, status = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, id, txHash, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record source tx: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetDestTx records the destination-chain transaction hash alongside a
// status change.
func (r *TransferRepository) SetDestTx(ctx context.Context, id, txHash string, status types.TransferStatus) error {
	query := `
		UPDATE bridge_transfers
		SET dest_tx_hash = $2, status = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, id, txHash, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record dest tx: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkFailed moves the transfer to failed with a reason. Failed is terminal;
// retrying requires a new transfer with a fresh quote.
func (r *TransferRepository) MarkFailed(ctx context.Context, id, reason string) error {
	query := `
		UPDATE bridge_transfers
		SET status = $2, failure_reason = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, id, types.TransferFailed, reason, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark transfer failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a transfer by ID.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*models.BridgeTransfer, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetBySourceTx retrieves a transfer by its source-chain transaction hash.
func (r *TransferRepository) GetBySourceTx(ctx context.Context, txHash string) (*models.BridgeTransfer, error) {
	return r.getOne(ctx, `WHERE source_tx_hash = $1`, txHash)
}

func (r *TransferRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.BridgeTransfer, error) {
	query := `
		SELECT id, user_id, source_chain, dest_chain, amount_usd, source_tx_hash,
		       dest_tx_hash, status, failure_reason, estimated_time, created_at, updated_at
		FROM bridge_transfers
	` + where

	var transfer models.BridgeTransfer
	err := r.db.Pool().QueryRow(ctx, query, arg).Scan(
		&transfer.ID,
		&transfer.UserID,
		&transfer.SourceChain,
		&transfer.DestChain,
		&transfer.AmountUSD,
		&transfer.SourceTxHash,
		&transfer.DestTxHash,
		&transfer.Status,
		&transfer.FailureReason,
		&transfer.EstimatedTime,
		&transfer.CreatedAt,
		&transfer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}

	return &transfer, nil
}
