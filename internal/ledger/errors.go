package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	apperrors "score_gate/pkg/errors"
)

var (
	ErrNotConfigured     = fmt.Errorf("%w: GAME_SERVER_PRIVATE_KEY not set", apperrors.ErrConfig)
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds", apperrors.ErrLedgerOperator)
	ErrNetwork           = fmt.Errorf("%w: rpc unreachable", apperrors.ErrLedgerTransient)
	ErrSubmitFailed      = fmt.Errorf("%w: transaction failed", apperrors.ErrLedger)
)

var networkMarkers = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"timeout",
	"eof",
	"503",
	"502",
	"429",
	"too many requests",
}

// classify maps a go-ethereum or RPC error onto the ledger error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, apperrors.ErrLedgerOperator) ||
		errors.Is(err, apperrors.ErrLedgerTransient) || errors.Is(err, apperrors.ErrLedger) {
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "insufficient funds") {
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	for _, m := range networkMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
}
