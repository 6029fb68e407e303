package service

import "errors"

var (
	// ErrNotFound means the symbol is unknown to the quote provider.
	ErrNotFound = errors.New("error not found")

	// ErrQuoteUnavailable means the quote provider could not price the symbol
	// right now (timeout, transport failure, empty price).
	ErrQuoteUnavailable = errors.New("error quote unavailable")

	ErrInvalidQuantity      = errors.New("error invalid quantity")
	ErrInvalidAmount        = errors.New("error invalid amount")
	ErrInsufficientFunds    = errors.New("error insufficient funds")
	ErrInsufficientHoldings = errors.New("error insufficient holdings")
	ErrSymbolNotHeld        = errors.New("error symbol not held")

	// ErrStorageConflict means the operation kept losing serialization
	// conflicts after retrying the whole read-compute-write cycle.
	ErrStorageConflict = errors.New("error storage conflict")
)
