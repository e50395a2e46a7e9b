package dex

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/swap"
)

// Connection describes how the local chain reaches the dex chain
type Connection struct {
	// ConnectionID is the controller side IBC connection the ICA lives on
	ConnectionID string
	// HostConnectionID is the same connection seen from the dex chain
	HostConnectionID string
	// TransferChannel carries ICS-20 transfers from the local chain to the dex
	TransferChannel string
	// DexTransferChannel is the counterparty end of TransferChannel on the dex
	DexTransferChannel string
	// Bech32Prefix of dex chain accounts
	Bech32Prefix string
}

// Policy holds the timing and retry knobs of a saga
type Policy struct {
	// StepTimeout bounds how long a submission may stay unacknowledged before an
	// alarm treats it as timed out. Keep it above PacketTimeout.
	StepTimeout time.Duration
	// PacketTimeout is the IBC timeout of every outgoing packet
	PacketTimeout time.Duration
	// MaxAttempts caps submissions of one stage on transient failures
	MaxAttempts int
	// RetryDelay is how long a stage whose submission could not be built waits
	RetryDelay time.Duration
	// RecoveryDelay is the pause between detecting a broken ICA channel and reopening it
	RecoveryDelay time.Duration
	// TransferInPoll is the interval of balance checks while waiting for the proceeds
	TransferInPoll time.Duration
	// TransferInTimeout is how long to wait for the proceeds before resending them
	TransferInTimeout time.Duration
	// SlippageBps is the tolerated swap slippage in basis points
	SlippageBps uint32
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		StepTimeout:       5 * time.Minute,
		PacketTimeout:     2 * time.Minute,
		MaxAttempts:       3,
		RetryDelay:        30 * time.Second,
		RecoveryDelay:     10 * time.Second,
		TransferInPoll:    15 * time.Second,
		TransferInTimeout: 10 * time.Minute,
		SlippageBps:       100,
	}
}

// BalanceQuerier reads bank balances on the local chain
type BalanceQuerier interface {
	Balance(address, denom string) (decimal.Decimal, error)
}

// DenomTranslator maps an asset between its local and its dex chain denom.
// Tasks name assets by their local denom.
type DenomTranslator interface {
	DexDenom(local string) (string, error)
	LocalDenom(dex string) (string, error)
}

// IDGenerator issues transaction ids for submissions
type IDGenerator interface {
	NextTxID() platform.TxID
}

type uuidGenerator struct{}

func (uuidGenerator) NextTxID() platform.TxID {
	return platform.TxID(uuid.NewString())
}

// UUIDs returns an IDGenerator issuing random uuids
func UUIDs() IDGenerator {
	return uuidGenerator{}
}

// Env is the per-call environment of a handler. None of it is persisted.
type Env struct {
	Now time.Time
	// Owner is the local account that owns the ICA and receives the proceeds
	Owner      string
	Connection Connection
	Policy     Policy
	// Forward is the local route acknowledgements of this saga are delivered to
	Forward  platform.ForwardTo
	Swap     swap.Venue
	Paths    swap.Resolver
	Balances BalanceQuerier
	Denoms   DenomTranslator
	IDs      IDGenerator
	Log      zerolog.Logger
}

func (e Env) validate() error {
	var errs []error
	if e.Now.IsZero() {
		errs = append(errs, errors.New("env: current time is required"))
	}
	if e.Owner == "" {
		errs = append(errs, errors.New("env: owner is required"))
	}
	if e.Connection.ConnectionID == "" || e.Connection.TransferChannel == "" || e.Connection.DexTransferChannel == "" {
		errs = append(errs, errors.New("env: connection and both transfer channels are required"))
	}
	if e.Policy.MaxAttempts < 1 {
		errs = append(errs, errors.New("env: policy must allow at least one attempt"))
	}
	if e.Swap == nil || e.Paths == nil || e.Balances == nil || e.IDs == nil {
		errs = append(errs, errors.New("env: swap venue, path resolver, balance querier and id generator are required"))
	}
	if e.Denoms == nil {
		errs = append(errs, errors.New("env: denom translator is required"))
	}
	return errors.Join(errs...)
}
