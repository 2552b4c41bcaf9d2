package watcher

import (
	"errors"
	"fmt"

	"tokendash/pkg/history"
	"tokendash/pkg/utils"
)

// ErrValidation wraps every input error that should disable submission
// rather than reach the chain.
var ErrValidation = errors.New("invalid input")

var (
	ErrEmptyRecipient   = errors.New("recipient is empty")
	ErrInvalidRecipient = errors.New("recipient is not a valid address")
	ErrEmptyAmount      = history.ErrEmptyAmount
	ErrInvalidAmount    = history.ErrInvalidAmount
	ErrMetadataPending  = errors.New("token decimals are not known yet")
	ErrNotConnected     = errors.New("no wallet connected")
	ErrWriteInFlight    = errors.New("a transaction is already in progress")
	ErrConfirmTimeout   = errors.New("no receipt before the confirmation timeout; the transaction may have been dropped")
)

func validationErr(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// ChainRejectionError is a write that failed to sign, send or execute.
// Message holds only the first line of the underlying failure.
type ChainRejectionError struct {
	Message string
	Err     error
}

func newChainRejection(err error) *ChainRejectionError {
	return &ChainRejectionError{Message: utils.FirstLine(err.Error()), Err: err}
}

func (e *ChainRejectionError) Error() string { return e.Message }

func (e *ChainRejectionError) Unwrap() error { return e.Err }
