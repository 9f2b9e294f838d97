package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/GoldCode001/vela/internal/models"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository handles user data persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByWallet retrieves a user by their primary wallet address.
func (r *UserRepository) GetByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	query := `
		SELECT id, wallet_address, created_at, updated_at
		FROM users
		WHERE wallet_address = $1
	`

	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, normalizeAddress(walletAddress)).Scan(
		&user.ID,
		&user.WalletAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetOrCreateByWallet returns the user for the wallet address, creating
// the row on first contact. Concurrent first contacts converge on one row
// via the unique wallet constraint.
func (r *UserRepository) GetOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	address := normalizeAddress(walletAddress)

	user, err := r.GetByWallet(ctx, address)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	insert := `
		INSERT INTO users (id, wallet_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet_address) DO NOTHING
	`

	if _, err := r.db.Pool().Exec(ctx, insert, uuid.New().String(), address, now, now); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Re-read to pick up either our insert or a concurrent winner's row.
	return r.GetByWallet(ctx, address)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, wallet_address, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.WalletAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// normalizeAddress lowercases a hex address so lookups are case-insensitive.
func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
