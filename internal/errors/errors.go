// Package errors defines the categorized error taxonomy for the funding and
// trade execution flows.
package errors

import (
	"fmt"
	"net/http"

	"github.com/GoldCode001/vela/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryFunds represents balance policy violations
	CategoryFunds ErrorCategory = "funds"
	// CategoryChain represents chain RPC errors
	CategoryChain ErrorCategory = "chain"
	// CategoryBridge represents bridge aggregator errors
	CategoryBridge ErrorCategory = "bridge"
	// CategoryExchange represents order-book exchange errors
	CategoryExchange ErrorCategory = "exchange"
	// CategoryCustody represents signing-key acquisition errors
	CategoryCustody ErrorCategory = "custody"
	// CategoryDatabase represents persistence errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategorySystem represents internal system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// Error codes used across the subsystem.
const (
	CodeChainRead         = "CHAIN_READ_ERROR"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeKeyUnavailable    = "KEY_UNAVAILABLE"
	CodeNoRouteAvailable  = "NO_ROUTE_AVAILABLE"
	CodeNoLiquidity       = "NO_LIQUIDITY"
	CodeOrderRejected     = "ORDER_REJECTED"
	CodePersistence       = "PERSISTENCE_ERROR"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewChainReadError creates a chain read error. Transient; the caller may retry.
func NewChainReadError(chain types.ChainID, op string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryChain,
		StatusCode: http.StatusBadGateway,
		Code:       CodeChainRead,
		Message:    fmt.Sprintf("chain read failed on %s during %s", chain, op),
		Cause:      cause,
		Details: map[string]interface{}{
			"chain":     string(chain),
			"operation": op,
		},
	}
}

// NewInsufficientFundsError creates an insufficient funds error. Terminal;
// the requested amount exceeds the spendable balance after the reserve.
func NewInsufficientFundsError(requested, available, reserve float64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryFunds,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInsufficientFunds,
		Message: fmt.Sprintf("insufficient balance: requested $%.2f, available $%.2f ($%.2f reserved for fees)",
			requested, available, reserve),
		Details: map[string]interface{}{
			"requested": requested,
			"available": available,
			"reserve":   reserve,
		},
	}
}

// NewKeyUnavailableError creates a key unavailable error. Terminal for the
// real-trade path; callers fall back to a simulated fill.
func NewKeyUnavailableError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCustody,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeKeyUnavailable,
		Message:    fmt.Sprintf("signing key unavailable: %s", reason),
		Details: map[string]interface{}{
			"reason": reason,
		},
	}
}

// NewNoRouteAvailableError creates a no route available error
func NewNoRouteAvailableError(source, dest types.ChainID) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryBridge,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeNoRouteAvailable,
		Message:    fmt.Sprintf("no bridge route available from %s to %s", source, dest),
		Details: map[string]interface{}{
			"sourceChain": string(source),
			"destChain":   string(dest),
		},
	}
}

// NewNoLiquidityError creates a no liquidity error
func NewNoLiquidityError(tokenID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryExchange,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeNoLiquidity,
		Message:    "no liquidity available for this outcome",
		Details: map[string]interface{}{
			"tokenId": tokenID,
		},
	}
}

// NewOrderRejectedError creates an order rejected error carrying the
// exchange-provided reason text.
func NewOrderRejectedError(reason string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryExchange,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeOrderRejected,
		Message:    fmt.Sprintf("order rejected by exchange: %s", reason),
		Cause:      cause,
		Details: map[string]interface{}{
			"reason": reason,
		},
	}
}

// NewPersistenceError creates a persistence error. The whole flow failed
// without a partial write; safe to retry from scratch.
func NewPersistenceError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodePersistence,
		Message:    fmt.Sprintf("failed to persist %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	if svcErr, ok := err.(*types.ServiceError); ok {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// Is reports whether err carries the given error code.
func Is(err error, code string) bool {
	catErr, ok := err.(*CategorizedError)
	return ok && catErr.Code == code
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable by the caller.
// Chain reads and persistence failures are transient; the funds, route,
// liquidity and rejection errors require changed parameters.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryChain, CategoryDatabase:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
