package adapter

import (
	"fmt"

	"github.com/GoldCode001/vela/internal/types"
)

// Common error values for external clients.
var (
	// ErrInvalidAddress indicates the address format is invalid
	ErrInvalidAddress = fmt.Errorf("invalid address format")

	// ErrProviderUnavailable indicates all RPC providers are unavailable
	ErrProviderUnavailable = fmt.Errorf("rpc provider unavailable")

	// ErrReceiptNotFound indicates the transaction receipt is not yet available
	ErrReceiptNotFound = fmt.Errorf("transaction receipt not found")

	// ErrNoRoute indicates the bridge aggregator returned no usable route
	ErrNoRoute = fmt.Errorf("no bridge route returned")

	// ErrEmptyBook indicates the order book has no asks to fill against
	ErrEmptyBook = fmt.Errorf("order book has no asks")
)

// AdapterError wraps external client errors with additional context.
type AdapterError struct {
	Chain   types.ChainID
	Op      string // Operation that failed (e.g., "TokenBalance", "Approve")
	Err     error
	Details map[string]interface{}
}

func (e *AdapterError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("adapter error [%s:%s]: %v (details: %+v)", e.Chain, e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("adapter error [%s:%s]: %v", e.Chain, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(chain types.ChainID, op string, err error, details map[string]interface{}) *AdapterError {
	return &AdapterError{
		Chain:   chain,
		Op:      op,
		Err:     err,
		Details: details,
	}
}
