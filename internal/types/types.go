// Package types provides common type definitions for the funding and trade
// execution orchestrator.
package types

// ChainID represents supported blockchain networks
type ChainID string

const (
	// ChainBase represents the Base network (funding chain)
	ChainBase ChainID = "base"
	// ChainPolygon represents the Polygon network (trading chain)
	ChainPolygon ChainID = "polygon"
)

// NumericChainID returns the EVM chain id for a ChainID, or 0 if unknown.
func (c ChainID) NumericChainID() int64 {
	switch c {
	case ChainBase:
		return 8453
	case ChainPolygon:
		return 137
	}
	return 0
}

// ChainFromNumericID maps an EVM chain id to a ChainID.
func ChainFromNumericID(id int64) (ChainID, bool) {
	switch id {
	case 8453:
		return ChainBase, true
	case 137:
		return ChainPolygon, true
	}
	return "", false
}

// TransferStatus represents the lifecycle state of a bridge transfer
type TransferStatus string

const (
	// TransferQuoted means a route has been obtained from the aggregator
	TransferQuoted TransferStatus = "quoted"
	// TransferApproving means an allowance transaction is pending confirmation
	TransferApproving TransferStatus = "approving"
	// TransferSubmitted means the bridge transaction has been broadcast
	TransferSubmitted TransferStatus = "submitted"
	// TransferSettling means the transfer is awaiting destination-chain settlement
	TransferSettling TransferStatus = "settling"
	// TransferSettled is the terminal success state
	TransferSettled TransferStatus = "settled"
	// TransferFailed is the terminal failure state
	TransferFailed TransferStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s TransferStatus) Terminal() bool {
	return s == TransferSettled || s == TransferFailed
}

// PositionStatus represents the lifecycle state of a recorded position
type PositionStatus string

const (
	// PositionActive represents an open position
	PositionActive PositionStatus = "active"
	// PositionClosed represents a resolved position
	PositionClosed PositionStatus = "closed"
)

// Side represents the market outcome a position is taken on
type Side string

const (
	// SideYes represents the first (index 0) outcome
	SideYes Side = "yes"
	// SideNo represents the second (index 1) outcome
	SideNo Side = "no"
)

// SideForOutcome maps an outcome index to a Side.
func SideForOutcome(outcome int) Side {
	if outcome == 0 {
		return SideYes
	}
	return SideNo
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
