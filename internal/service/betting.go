package service

import (
	"context"
	stderrors "errors"

	"github.com/GoldCode001/vela/internal/errors"
	"github.com/GoldCode001/vela/internal/keys"
	"github.com/GoldCode001/vela/internal/logging"
	"github.com/GoldCode001/vela/internal/models"
	"github.com/GoldCode001/vela/internal/storage"
	"github.com/GoldCode001/vela/internal/types"
)

// UserStore resolves users by wallet.
type UserStore interface {
	GetByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	GetOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error)
}

// WalletStore resolves the user → trading-wallet mapping.
type WalletStore interface {
	GetByUser(ctx context.Context, userID string) (*models.WalletLink, error)
	Create(ctx context.Context, link *models.WalletLink) error
}

// PositionStore persists positions.
type PositionStore interface {
	Create(ctx context.Context, position *models.Position) (string, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*models.Position, error)
}

// KeyBroker obtains ephemeral signing keys.
type KeyBroker interface {
	ObtainSigningKey(ctx context.Context, walletID, suppliedMaterial string) (*keys.SigningKey, error)
}

// BetIntent is a validated bet placement request.
type BetIntent struct {
	WalletAddress  string
	MarketID       string
	MarketQuestion string
	Outcome        int // index into TokenIDs; 0 is yes
	AmountUSD      float64
	TokenIDs       []string
	SuppliedKey    string // optional caller-exported signing material
}

// BetResult is the recorded outcome of a bet placement.
type BetResult struct {
	PositionID string       `json:"positionId"`
	Side       types.Side   `json:"side"`
	Trade      *TradeResult `json:"trade"`
}

// BettingService runs the funding flow for bet placement: user resolution,
// balance authorization, key acquisition with simulated fallback, order
// execution and position recording.
type BettingService struct {
	users     UserStore
	wallets   WalletStore
	positions PositionStore
	oracle    *BalanceOracle
	broker    KeyBroker
	engine    *TradeEngine
	chain     types.ChainID // trading chain for balance authorization
	logger    *logging.Logger
}

// NewBettingService wires the betting flow.
func NewBettingService(
	users UserStore,
	wallets WalletStore,
	positions PositionStore,
	oracle *BalanceOracle,
	broker KeyBroker,
	engine *TradeEngine,
	chain types.ChainID,
	logger *logging.Logger,
) *BettingService {
	return &BettingService{
		users:     users,
		wallets:   wallets,
		positions: positions,
		oracle:    oracle,
		broker:    broker,
		engine:    engine,
		chain:     chain,
		logger:    logger,
	}
}

// PlaceBet executes the bet placement flow. A real order attempt that the
// exchange rejects fails the flow and writes nothing; only when no signing
// key can be obtained does the flow degrade to a simulated fill. Exactly one
// position row is written per successful placement, real or simulated.
func (s *BettingService) PlaceBet(ctx context.Context, intent *BetIntent) (*BetResult, error) {
	if err := validateIntent(intent); err != nil {
		return nil, err
	}

	user, err := s.users.GetByWallet(ctx, intent.WalletAddress)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("user", intent.WalletAddress)
		}
		return nil, errors.NewPersistenceError("get user", err)
	}

	spendAddress := s.resolveSpendAddress(ctx, user)
	if _, err := s.oracle.Authorize(ctx, spendAddress, s.chain, intent.AmountUSD); err != nil {
		return nil, err
	}

	result, err := s.executeTrade(ctx, user, intent)
	if err != nil {
		return nil, err
	}

	side := types.SideForOutcome(intent.Outcome)
	position := &models.Position{
		UserID:         user.ID,
		MarketID:       intent.MarketID,
		MarketQuestion: intent.MarketQuestion,
		Side:           side,
		AmountUSD:      intent.AmountUSD,
		Shares:         result.Shares,
		EntryPrice:     result.FillPrice,
		CurrentPrice:   result.FillPrice,
		OrderID:        result.OrderID,
		TokenID:        s.tokenForOutcome(intent),
	}

	positionID, err := s.positions.Create(ctx, position)
	if err != nil {
		return nil, errors.NewPersistenceError("record position", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"positionId": positionID,
		"userId":     user.ID,
		"marketId":   intent.MarketID,
		"real":       result.Real,
	}).Info("bet placed")

	return &BetResult{
		PositionID: positionID,
		Side:       side,
		Trade:      result,
	}, nil
}

// executeTrade attempts a real order when a signing key and token IDs are
// available, otherwise falls back to a simulated fill.
func (s *BettingService) executeTrade(ctx context.Context, user *models.User, intent *BetIntent) (*TradeResult, error) {
	tokenID := s.tokenForOutcome(intent)
	if tokenID == "" {
		s.logger.WithField("userId", user.ID).Info("no outcome token provided, simulating trade")
		return s.engine.SimulatedBuy(intent.AmountUSD), nil
	}

	key, err := s.broker.ObtainSigningKey(ctx, user.ID, intent.SuppliedKey)
	if err != nil {
		if stderrors.Is(err, keys.ErrCustodyDisabled) || stderrors.Is(err, keys.ErrNoKeyMaterial) {
			s.logger.WithField("userId", user.ID).Info("no signing key obtainable, simulating trade")
			return s.engine.SimulatedBuy(intent.AmountUSD), nil
		}
		return nil, errors.NewKeyUnavailableError(err.Error())
	}
	defer key.Release()

	return s.engine.PlaceBuy(ctx, key.Key(), tokenID, intent.AmountUSD)
}

// ListPositions returns the user's active positions with valuations at the
// current marked price, most recent first. A wallet that has never placed a
// bet simply has no positions; this informational read never errors on an
// unknown wallet.
func (s *BettingService) ListPositions(ctx context.Context, walletAddress string) ([]*models.Position, error) {
	user, err := s.users.GetByWallet(ctx, walletAddress)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return []*models.Position{}, nil
		}
		return nil, errors.NewPersistenceError("get user", err)
	}

	positions, err := s.positions.ListActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, errors.NewPersistenceError("list positions", err)
	}

	return positions, nil
}

// resolveSpendAddress prefers the user's trading wallet for the balance
// check; a user without one spends from their primary address.
func (s *BettingService) resolveSpendAddress(ctx context.Context, user *models.User) string {
	link, err := s.wallets.GetByUser(ctx, user.ID)
	if err != nil {
		return user.WalletAddress
	}
	return link.TradingAddress
}

func (s *BettingService) tokenForOutcome(intent *BetIntent) string {
	if intent.Outcome < 0 || intent.Outcome >= len(intent.TokenIDs) {
		return ""
	}
	return intent.TokenIDs[intent.Outcome]
}

func validateIntent(intent *BetIntent) error {
	if intent.WalletAddress == "" {
		return errors.NewInvalidParameterError("walletAddress", "is required")
	}
	if intent.MarketID == "" {
		return errors.NewInvalidParameterError("marketId", "is required")
	}
	if intent.Outcome < 0 {
		return errors.NewInvalidParameterError("outcome", "must be 0 or greater")
	}
	if intent.AmountUSD <= 0 {
		return errors.NewInvalidParameterError("amount", "must be positive")
	}
	return nil
}
