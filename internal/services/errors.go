package services

import (
	"errors"
	"fmt"

	"betting-service/internal/ledger"
)

var (
	ErrOddsNotFound   = errors.New("odds not found")
	ErrMatchNotFound  = errors.New("match not found")
	ErrBetNotFound    = errors.New("bet not found")
	ErrWalletNotFound = ledger.ErrWalletNotFound

	ErrOddsSuspended    = errors.New("odds are suspended")
	ErrMatchNotBettable = errors.New("match is not open for betting")
	ErrNotPending       = errors.New("bet is not pending")
	ErrMatchNotFinished = errors.New("match has no final result")
	ErrWalletExists     = ledger.ErrWalletExists

	ErrInsufficientFunds = ledger.ErrInsufficientFunds
	ErrInvalidAmount     = ledger.ErrInvalidAmount
	ErrInvalidRequest    = errors.New("invalid request")
)

// LimitExceededError reports which betting limit rejected a stake.
type LimitExceededError struct {
	Reason  string
	Message string
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("betting limit exceeded (%s): %s", e.Reason, e.Message)
}

type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindNotFound        ErrorKind = "not_found"
	KindInvalidState    ErrorKind = "invalid_state"
	KindPolicyViolation ErrorKind = "policy_violation"
	KindInvalidInput    ErrorKind = "invalid_input"
	KindInternal        ErrorKind = "internal"
)

// Kind classifies err for the transport layers.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var limitErr *LimitExceededError
	switch {
	case errors.Is(err, ErrOddsNotFound), errors.Is(err, ErrMatchNotFound),
		errors.Is(err, ErrBetNotFound), errors.Is(err, ErrWalletNotFound):
		return KindNotFound
	case errors.Is(err, ErrOddsSuspended), errors.Is(err, ErrMatchNotBettable),
		errors.Is(err, ErrNotPending), errors.Is(err, ErrMatchNotFinished),
		errors.Is(err, ErrWalletExists):
		return KindInvalidState
	case errors.As(err, &limitErr), errors.Is(err, ErrInsufficientFunds):
		return KindPolicyViolation
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidAmount):
		return KindInvalidInput
	default:
		return KindInternal
	}
}
