package service

import (
	"context"
	stderrors "errors"

	"github.com/GoldCode001/vela/internal/errors"
	"github.com/GoldCode001/vela/internal/keys"
	"github.com/GoldCode001/vela/internal/logging"
	"github.com/GoldCode001/vela/internal/models"
	"github.com/GoldCode001/vela/internal/storage"
)

// WalletService provisions trading wallets lazily. A user's trading address
// is generated on first use and never regenerated; concurrent provisioning
// converges on whichever row landed first.
type WalletService struct {
	users   UserStore
	wallets WalletStore
	logger  *logging.Logger
}

// NewWalletService creates the wallet provisioning service.
func NewWalletService(users UserStore, wallets WalletStore, logger *logging.Logger) *WalletService {
	return &WalletService{
		users:   users,
		wallets: wallets,
		logger:  logger,
	}
}

// EnsureTradingWallet returns the user's trading wallet link, generating and
// persisting a keypair on first call. The insert is idempotent; the re-read
// afterwards returns the authoritative row either way.
func (s *WalletService) EnsureTradingWallet(ctx context.Context, walletAddress string) (*models.User, *models.WalletLink, error) {
	user, err := s.users.GetOrCreateByWallet(ctx, walletAddress)
	if err != nil {
		return nil, nil, errors.NewPersistenceError("get or create user", err)
	}

	link, err := s.wallets.GetByUser(ctx, user.ID)
	if err == nil {
		return user, link, nil
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return nil, nil, errors.NewPersistenceError("get wallet link", err)
	}

	key, material, err := keys.GenerateKey()
	if err != nil {
		return nil, nil, errors.NewInternalError("trading wallet generation failed", err)
	}
	tradingAddress := key.Address()
	key.Release()

	if err := s.wallets.Create(ctx, &models.WalletLink{
		UserID:          user.ID,
		PrimaryAddress:  user.WalletAddress,
		TradingAddress:  tradingAddress,
		SigningMaterial: material,
	}); err != nil {
		return nil, nil, errors.NewPersistenceError("create wallet link", err)
	}

	// Re-read: a concurrent creator may have won the insert.
	link, err = s.wallets.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, errors.NewPersistenceError("get wallet link", err)
	}

	if link.TradingAddress == tradingAddress {
		s.logger.WithFields(map[string]interface{}{
			"userId":         user.ID,
			"tradingAddress": tradingAddress,
		}).Info("trading wallet provisioned")
	}

	return user, link, nil
}
