package ledger

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletExists      = errors.New("wallet already exists")
	ErrNegativeBalance   = errors.New("balance would go negative")
	// ErrConcurrentUpdate means the wallet version moved between read and
	// write. The whole unit of work can be retried.
	ErrConcurrentUpdate = errors.New("wallet modified concurrently")
)
