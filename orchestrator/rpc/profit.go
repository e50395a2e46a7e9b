package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/orchestrator/engine"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/profit"
	"github.com/Cogwheel-Validator/spectra-lease/store"
)

const ProfitServiceName = "spectra.profit.v1.ProfitService"

// Procedures of the profit service
const (
	DistributeProcedure    = "/" + ProfitServiceName + "/Distribute"
	ProfitDeliverProcedure = "/" + ProfitServiceName + "/Deliver"
	ProfitHealProcedure    = "/" + ProfitServiceName + "/Heal"
	ProfitStatusProcedure  = "/" + ProfitServiceName + "/Status"
)

// ProfitID is the saga id of the single profit workflow, host callbacks are
// forwarded to it
const ProfitID = "profit"

// ProfitServer serves the profit distribution. The workflow is created by the first
// distribution and stays stored between cycles.
type ProfitServer struct {
	engine *engine.Engine[profit.State]
	config profit.Config
}

func NewProfitServer(e *engine.Engine[profit.State], cfg profit.Config) *ProfitServer {
	return &ProfitServer{engine: e, config: cfg}
}

// Distribute sells the collected margin and pays the treasury
func (s *ProfitServer) Distribute(
	ctx context.Context,
	req *connect.Request[DistributeRequest],
) (*connect.Response[MessagesResponse], error) {
	collected := req.Msg.Collected
	distribute := func(state profit.State, env dex.Env) (profit.State, bool, platform.Batch, error) {
		next, msgs, err := profit.Distribute(state, collected, env)
		return next, false, msgs, err
	}

	msgs, err := s.engine.Act(ctx, ProfitID, "distribute", distribute)
	if errors.Is(err, store.ErrNotFound) {
		msgs, err = s.engine.Start(ctx, ProfitID, func(env dex.Env) (profit.State, platform.Batch, error) {
			first, err := profit.New(s.config)
			if err != nil {
				return nil, platform.Batch{}, err
			}
			next, _, msgs, err := distribute(first, env)
			return next, msgs, err
		})
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&MessagesResponse{Messages: msgs}), nil
}

// Deliver hands a host callback to the buy-back in progress
func (s *ProfitServer) Deliver(
	ctx context.Context,
	req *connect.Request[DeliverRequest],
) (*connect.Response[MessagesResponse], error) {
	if req.Msg.ID != "" && req.Msg.ID != ProfitID {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("profit callbacks carry id %q, got %q", ProfitID, req.Msg.ID))
	}
	ev, err := req.Msg.event()
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	msgs, err := s.engine.Deliver(ctx, ProfitID, ev)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&MessagesResponse{Messages: msgs}), nil
}

// Heal retries the current step of a stuck buy-back
func (s *ProfitServer) Heal(
	ctx context.Context,
	req *connect.Request[ProfitRequest],
) (*connect.Response[MessagesResponse], error) {
	msgs, err := s.engine.Deliver(ctx, ProfitID, dex.HealRequest{})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&MessagesResponse{Messages: msgs}), nil
}

// Status reports the cycle in progress or the last completed one. Before the first
// distribution it reports an idle cycle zero.
func (s *ProfitServer) Status(
	ctx context.Context,
	req *connect.Request[ProfitRequest],
) (*connect.Response[ProfitStatusResponse], error) {
	status, err := s.engine.Status(ctx, ProfitID)
	if errors.Is(err, store.ErrNotFound) {
		status, err = profit.Idle{Config: s.config}.Status(time.Now().UTC(), 0), nil
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	st, ok := status.(profit.Status)
	if !ok {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("unexpected status type %T", status))
	}
	return connect.NewResponse(&ProfitStatusResponse{Status: st}), nil
}

// Handler mounts the service procedures, the returned path is the service prefix
func (s *ProfitServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(DistributeProcedure, connect.NewUnaryHandler(DistributeProcedure, s.Distribute, opts...))
	mux.Handle(ProfitDeliverProcedure, connect.NewUnaryHandler(ProfitDeliverProcedure, s.Deliver, opts...))
	mux.Handle(ProfitHealProcedure, connect.NewUnaryHandler(ProfitHealProcedure, s.Heal, opts...))
	mux.Handle(ProfitStatusProcedure, connect.NewUnaryHandler(ProfitStatusProcedure, s.Status,
		append(opts, connect.WithIdempotency(connect.IdempotencyNoSideEffects))...))
	return "/" + ProfitServiceName + "/", mux
}
