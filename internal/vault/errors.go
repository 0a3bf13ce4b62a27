package vault

import "errors"

// Error categories. Every rejection wraps exactly one of these so callers
// (and the HTTP layer) can classify without string matching. A rejection is
// always a complete no-op: no position, counter, token, or bank state moves.
var (
	// ErrNotFound — the referenced position id has no active record.
	ErrNotFound = errors.New("position not found")

	// ErrUnauthorized — caller is not the owner/approved delegate, or does
	// not hold the administrative role.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrBounds — amount is zero where nonzero is required, exceeds an
	// available balance, or would breach a ratio constraint.
	ErrBounds = errors.New("bounds violation")

	// ErrState — the position's current state makes it ineligible for the
	// operation (e.g. capitalizing a position that is not toxic).
	ErrState = errors.New("state mismatch")
)
