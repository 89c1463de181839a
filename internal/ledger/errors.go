package ledger

import "errors"

var (
	// ErrNotFound is returned when a row lookup matches nothing.
	ErrNotFound = errors.New("ledger: not found")
	// ErrNoTransition is returned when a conditional status update matched
	// zero rows: the row is missing or not in an expected source state.
	ErrNoTransition = errors.New("ledger: no row in expected state")
)
