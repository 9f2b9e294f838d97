package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/GoldCode001/vela/internal/models"
)

// WalletRepository persists the user → trading-wallet mapping. One row per
// user; the trading address never changes once assigned.
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByUser retrieves the wallet link for a user.
func (r *WalletRepository) GetByUser(ctx context.Context, userID string) (*models.WalletLink, error) {
	query := `
		SELECT user_id, primary_address, trading_address, signing_material, created_at
		FROM user_wallets
		WHERE user_id = $1
	`

	var link models.WalletLink
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&link.UserID,
		&link.PrimaryAddress,
		&link.TradingAddress,
		&link.SigningMaterial,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet link: %w", err)
	}

	return &link, nil
}

// Create inserts the wallet link for a user. The primary-key constraint on
// user_id plus DO NOTHING makes creation idempotent: a concurrent creator
// wins and this insert becomes a no-op. Callers must re-read afterwards and
// use whatever address the table holds.
func (r *WalletRepository) Create(ctx context.Context, link *models.WalletLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO user_wallets (user_id, primary_address, trading_address, signing_material, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		link.UserID,
		normalizeAddress(link.PrimaryAddress),
		link.TradingAddress,
		link.SigningMaterial,
		link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet link: %w", err)
	}

	return nil
}

// SigningMaterial returns the stored signing material for a user's trading
// wallet. Satisfies the key broker's MaterialSource.
func (r *WalletRepository) SigningMaterial(ctx context.Context, userID string) (string, error) {
	link, err := r.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return link.SigningMaterial, nil
}
