// Package keys brokers ephemeral signing keys from the custody provider
// configuration. Keys are handed out as scoped handles that zero their
// material on release; the broker never logs or persists raw key bytes.
package keys

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/GoldCode001/vela/internal/config"
	"github.com/GoldCode001/vela/internal/logging"
)

var (
	// ErrCustodyDisabled indicates custody is not configured. Callers fall
	// back to simulated execution.
	ErrCustodyDisabled = errors.New("custody provider not configured")

	// ErrNoKeyMaterial indicates no signing material exists for the wallet.
	ErrNoKeyMaterial = errors.New("no signing material for wallet")
)

// SigningKey is an ephemeral key handle scoped to one operation. Release it
// when the operation finishes.
type SigningKey struct {
	priv *ecdsa.PrivateKey
}

// Key returns the underlying private key, or nil after Release.
func (k *SigningKey) Key() *ecdsa.PrivateKey {
	return k.priv
}

// Address returns the checksummed address the key controls.
func (k *SigningKey) Address() string {
	if k.priv == nil {
		return ""
	}
	return crypto.PubkeyToAddress(k.priv.PublicKey).Hex()
}

// Release zeroes the key material. The handle is unusable afterwards.
func (k *SigningKey) Release() {
	if k.priv == nil {
		return
	}
	k.priv.D.SetInt64(0)
	k.priv = nil
}

// MaterialSource resolves persisted signing material for a wallet. The
// wallet repository implements this.
type MaterialSource interface {
	SigningMaterial(ctx context.Context, walletID string) (string, error)
}

// Broker obtains signing keys for trading operations.
type Broker struct {
	custody config.CustodyConfig
	source  MaterialSource
	logger  *logging.Logger
}

// NewBroker creates a key broker over the custody configuration.
func NewBroker(custody config.CustodyConfig, source MaterialSource, logger *logging.Logger) *Broker {
	return &Broker{
		custody: custody,
		source:  source,
		logger:  logger,
	}
}

// Enabled reports whether the custody provider is configured.
func (b *Broker) Enabled() bool {
	return b.custody.Enabled
}

// ObtainSigningKey resolves a signing key for the wallet. suppliedMaterial
// takes precedence when present (the user approved a key export upstream);
// otherwise the persisted trading-wallet material is used, which requires
// custody to be enabled. Returns ErrCustodyDisabled or ErrNoKeyMaterial when
// no source can serve.
func (b *Broker) ObtainSigningKey(ctx context.Context, walletID, suppliedMaterial string) (*SigningKey, error) {
	if suppliedMaterial != "" {
		key, err := parseKeyMaterial(suppliedMaterial)
		if err != nil {
			return nil, fmt.Errorf("supplied key material: %w", err)
		}
		return &SigningKey{priv: key}, nil
	}

	if !b.custody.Enabled {
		return nil, ErrCustodyDisabled
	}

	material, err := b.source.SigningMaterial(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("resolve signing material: %w", err)
	}
	if material == "" {
		return nil, ErrNoKeyMaterial
	}

	key, err := parseKeyMaterial(material)
	if err != nil {
		b.logger.WithError(err).WithField("walletID", walletID).Error("stored signing material is unusable")
		return nil, ErrNoKeyMaterial
	}

	return &SigningKey{priv: key}, nil
}

// GenerateKey creates a fresh secp256k1 keypair for a new trading wallet and
// returns the handle plus its hex-encoded material for persistence.
func GenerateKey() (*SigningKey, string, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, "", fmt.Errorf("generate keypair: %w", err)
	}
	material := fmt.Sprintf("%x", crypto.FromECDSA(priv))
	return &SigningKey{priv: priv}, material, nil
}

func parseKeyMaterial(material string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(material, "0x"))
}
