// Package xerrors enumerates the exchange's error taxonomy as typed
// sentinel values, matched with errors.Is, rather than as panic
// strings or string matching.
package xerrors

import "errors"

// Preconditions
var (
	ErrAccountNotFound          = errors.New("account not found")
	ErrMarketNotFound           = errors.New("market not found")
	ErrOrderNotFound            = errors.New("order not found")
	ErrMissingLimitPrice        = errors.New("missing limit price")
	ErrInvalidBaseLotSize       = errors.New("invalid base lot size")
	ErrInvalidQuoteLotSize      = errors.New("invalid quote lot size")
	ErrZeroOrderAmount          = errors.New("zero order amount")
	ErrInsufficientStorageBal   = errors.New("insufficient storage balance")
	ErrMarketExists             = errors.New("market already exists")
	ErrInsufficientMarketDeposit = errors.New("insufficient deposit for market creation")
)

// Authorization
var (
	ErrNotOwner      = errors.New("not the contract owner")
	ErrNotOrderOwner = errors.New("not the order's owner")
)

// State
var (
	ErrContractMustBeActive = errors.New("contract must be active")
	ErrMarketMustBeActive   = errors.New("market must be active")
	ErrMarketCannotDelete   = errors.New("market cannot be deleted")
	ErrInvalidAction        = errors.New("invalid action")
)

// Invariant violations
var (
	ErrSelfTrade              = errors.New("self-trade")
	ErrBidOutsideWindow       = errors.New("bid outside trading window")
	ErrAskOutsideWindow       = errors.New("ask outside trading window")
	ErrExceededOrderLimit     = errors.New("exceeded order limit")
	ErrExceededSlippage       = errors.New("exceeded slippage tolerance")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrFeeAccountingViolation = errors.New("over-counted fees: bid accounting bug")
	ErrOverspentViolation     = errors.New("overspent: budget accounting bug")
)
