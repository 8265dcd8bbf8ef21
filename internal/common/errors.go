package common

import "errors"

// Error kinds from the book replica and feed session (spec §7). StaleEvent
// is not an error value at all — it is a silent drop — so it has no
// sentinel here.
var (
	ErrIDGap              = errors.New("book: update-id gap, resync required")
	ErrBridgingFailed     = errors.New("book: bridging predicate failed")
	ErrCrossedBook        = errors.New("book: crossed after apply, resync required")
	ErrParseFailure       = errors.New("book: malformed feed payload")
	ErrInsufficientLiquidity = errors.New("matcher: not enough liquidity to fully fill order")
	ErrInvalidOrderInput  = errors.New("matcher: invalid side, type or quantity")
	ErrFeedDisconnect     = errors.New("feed: connection lost")
	ErrOrderNotFound      = errors.New("matcher: order not found")
	ErrOrderNotOpen       = errors.New("matcher: order is not open")
)
