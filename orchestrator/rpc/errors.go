package rpc

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/lease"
	"github.com/Cogwheel-Validator/spectra-lease/orchestrator/engine"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/profit"
	"github.com/Cogwheel-Validator/spectra-lease/store"
)

// toConnectError maps saga errors to connect codes. A rejected callback leaves the
// stored state untouched, so only genuine failures are reported as internal.
func toConnectError(err error) error {
	var payloadErr *dex.PayloadError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, engine.ErrAlreadyRunning):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.As(err, &payloadErr),
		errors.Is(err, platform.ErrUnknownDenom),
		errors.Is(err, profit.ErrNothingCollected):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, dex.ErrUnsupportedOperation),
		errors.Is(err, dex.ErrStaleDelivery),
		errors.Is(err, dex.ErrStillInFlight),
		errors.Is(err, lease.ErrWrongPhase),
		errors.Is(err, profit.ErrWrongPhase):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, dex.ErrRetriesExhausted),
		errors.Is(err, dex.ErrChannelClosed),
		errors.Is(err, dex.ErrIcaHandshake):
		return connect.NewError(connect.CodeAborted, err)
	default:
		Logger.Error().Err(err).Msg("Saga call failed")
		return connect.NewError(connect.CodeInternal, err)
	}
}
