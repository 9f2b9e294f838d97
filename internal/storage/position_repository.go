package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GoldCode001/vela/internal/models"
	"github.com/GoldCode001/vela/internal/types"
)

// PositionRepository persists positions. Exactly one insert happens per
// successful order intent, real or simulated.
type PositionRepository struct {
	db *PostgresDB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *PostgresDB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create inserts a new position and returns its generated ID.
func (r *PositionRepository) Create(ctx context.Context, position *models.Position) (string, error) {
	if position.ID == "" {
		position.ID = uuid.New().String()
	}
	if position.Status == "" {
		position.Status = types.PositionActive
	}

	now := time.Now()
	position.CreatedAt = now
	position.UpdatedAt = now

	query := `
		INSERT INTO positions
			(id, user_id, market_id, market_question, side, amount_usd, shares,
			 entry_price, current_price, status, order_id, token_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		position.ID,
		position.UserID,
		position.MarketID,
		position.MarketQuestion,
		position.Side,
		position.AmountUSD,
		position.Shares,
		position.EntryPrice,
		position.CurrentPrice,
		position.Status,
		position.OrderID,
		position.TokenID,
		position.CreatedAt,
		position.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create position: %w", err)
	}

	return position.ID, nil
}

// ListActiveByUser returns the user's active positions, most recent first.
func (r *PositionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.Position, error) {
	query := `
		SELECT id, user_id, market_id, market_question, side, amount_usd, shares,
		       entry_price, current_price, status, order_id, token_id, created_at, updated_at
		FROM positions
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, types.PositionActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.MarketID,
			&p.MarketQuestion,
			&p.Side,
			&p.AmountUSD,
			&p.Shares,
			&p.EntryPrice,
			&p.CurrentPrice,
			&p.Status,
			&p.OrderID,
			&p.TokenID,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}

	return positions, nil
}

// ListActiveWithTokens returns all active positions that carry a token ID,
// for the price refresher.
func (r *PositionRepository) ListActiveWithTokens(ctx context.Context) ([]*models.Position, error) {
	query := `
		SELECT id, user_id, market_id, market_question, side, amount_usd, shares,
		       entry_price, current_price, status, order_id, token_id, created_at, updated_at
		FROM positions
		WHERE status = $1 AND token_id <> ''
	`

	rows, err := r.db.Pool().Query(ctx, query, types.PositionActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.MarketID,
			&p.MarketQuestion,
			&p.Side,
			&p.AmountUSD,
			&p.Shares,
			&p.EntryPrice,
			&p.CurrentPrice,
			&p.Status,
			&p.OrderID,
			&p.TokenID,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}

	return positions, nil
}

// UpdateCurrentPrice refreshes the marked price of a position.
func (r *PositionRepository) UpdateCurrentPrice(ctx context.Context, id string, price float64) error {
	query := `
		UPDATE positions
		SET current_price = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, id, price, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update position price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
