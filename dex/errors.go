package dex

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedOperation rejects a callback the current state has no use for.
	// The state is left unchanged.
	ErrUnsupportedOperation = errors.New("operation not supported in current state")
	// ErrStaleDelivery rejects a delivery for a transaction that is not in flight,
	// typically a duplicate or one superseded by a resubmission
	ErrStaleDelivery = errors.New("delivery does not match the in-flight transaction")
	// ErrStillInFlight rejects a heal while the submission may still be acknowledged
	ErrStillInFlight = errors.New("submission still in flight")
	ErrIcaHandshake  = errors.New("interchain account handshake failed")
	// ErrRetriesExhausted is returned once a stage failed transiently MaxAttempts times
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrChannelClosed is returned when a transfer channel, not recoverable by the
	// ICA connector, reports being closed
	ErrChannelClosed = errors.New("channel closed")
)

// PayloadError reports an acknowledgement or reply that cannot be decoded.
// It is fatal for the delivery, the state is left unchanged.
type PayloadError struct {
	Stage Kind
	Err   error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid %s payload: %v", e.Stage, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

type failure int

const (
	failureTransient failure = iota
	failureChannelBroken
	failureFatal
)

// classifyTimeout maps a packet timeout. ICA channels are ordered and close on
// timeout, transfer channels are unordered and stay usable.
func classifyTimeout(overIca bool) failure {
	if overIca {
		return failureChannelBroken
	}
	return failureTransient
}

func classifyError(overIca bool, details string) failure {
	if !reportsClosedChannel(details) {
		return failureTransient
	}
	if overIca {
		return failureChannelBroken
	}
	return failureFatal
}

func reportsClosedChannel(details string) bool {
	d := strings.ToLower(details)
	if !strings.Contains(d, "channel") {
		return false
	}
	return strings.Contains(d, "closed") || strings.Contains(d, "not found") || strings.Contains(d, "not open")
}
