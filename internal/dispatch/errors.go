package dispatch

import (
	"errors"
	"fmt"

	"github.com/vnmchuo/ai-broker/internal/auth"
	"github.com/vnmchuo/ai-broker/internal/ledger"
)

// Every error returned by Engine.Dispatch is one of these, an
// *InsufficientFundsError, or a *provider.UpstreamError.
var (
	ErrUnauthorized        = auth.ErrUnauthorized
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrLedgerUnavailable   = ledger.ErrUnavailable
)

// InsufficientFundsError reports a failed reservation. No upstream call was
// made.
type InsufficientFundsError struct {
	Required int64
	Balance  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, balance %d", e.Required, e.Balance)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ledger.ErrInsufficientFunds
}
