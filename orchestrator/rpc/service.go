package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/lease"
	"github.com/Cogwheel-Validator/spectra-lease/orchestrator/engine"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

const LeaseServiceName = "spectra.lease.v1.LeaseService"

// Procedures of the lease service
const (
	OpenLeaseProcedure  = "/" + LeaseServiceName + "/OpenLease"
	CloseLeaseProcedure = "/" + LeaseServiceName + "/CloseLease"
	DeliverProcedure    = "/" + LeaseServiceName + "/Deliver"
	HealProcedure       = "/" + LeaseServiceName + "/Heal"
	StatusProcedure     = "/" + LeaseServiceName + "/Status"
)

// LeaseServer serves the lease lifecycle on top of the saga engine
type LeaseServer struct {
	engine *engine.Engine[lease.State]
}

func NewLeaseServer(e *engine.Engine[lease.State]) *LeaseServer {
	return &LeaseServer{engine: e}
}

// OpenLease starts buying the asset of a new lease. An empty id is generated.
func (s *LeaseServer) OpenLease(
	ctx context.Context,
	req *connect.Request[OpenLeaseRequest],
) (*connect.Response[OpenLeaseResponse], error) {
	spec := req.Msg.Spec
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	if err := spec.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid lease spec: %w", err))
	}

	msgs, err := s.engine.Start(ctx, spec.ID, func(env dex.Env) (lease.State, platform.Batch, error) {
		return lease.Open(spec, req.Msg.Account, env)
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&OpenLeaseResponse{ID: spec.ID, Messages: msgs}), nil
}

// CloseLease starts selling the asset of an opened lease
func (s *LeaseServer) CloseLease(
	ctx context.Context,
	req *connect.Request[LeaseRequest],
) (*connect.Response[MessagesResponse], error) {
	if err := requireID(req.Msg.ID); err != nil {
		return nil, err
	}
	msgs, err := s.engine.Act(ctx, req.Msg.ID, "close", func(state lease.State, env dex.Env) (lease.State, bool, platform.Batch, error) {
		next, msgs, err := lease.Close(state, env)
		if err != nil {
			return nil, false, platform.Batch{}, err
		}
		return next, next.Phase() == lease.PhaseClosed, msgs, nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&MessagesResponse{Messages: msgs}), nil
}

// Deliver hands a host callback to the saga of a lease
func (s *LeaseServer) Deliver(
	ctx context.Context,
	req *connect.Request[DeliverRequest],
) (*connect.Response[MessagesResponse], error) {
	if err := requireID(req.Msg.ID); err != nil {
		return nil, err
	}
	ev, err := req.Msg.event()
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	msgs, err := s.engine.Deliver(ctx, req.Msg.ID, ev)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&MessagesResponse{Messages: msgs}), nil
}

// Heal retries the current step of a stuck lease
func (s *LeaseServer) Heal(
	ctx context.Context,
	req *connect.Request[LeaseRequest],
) (*connect.Response[MessagesResponse], error) {
	if err := requireID(req.Msg.ID); err != nil {
		return nil, err
	}
	msgs, err := s.engine.Deliver(ctx, req.Msg.ID, dex.HealRequest{})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&MessagesResponse{Messages: msgs}), nil
}

func (s *LeaseServer) Status(
	ctx context.Context,
	req *connect.Request[LeaseRequest],
) (*connect.Response[StatusResponse], error) {
	if err := requireID(req.Msg.ID); err != nil {
		return nil, err
	}
	status, err := s.engine.Status(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	st, ok := status.(lease.Status)
	if !ok {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("unexpected status type %T", status))
	}
	resp := connect.NewResponse(&StatusResponse{Status: st})
	return resp, nil
}

// Handler mounts the service procedures, the returned path is the service prefix
func (s *LeaseServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(OpenLeaseProcedure, connect.NewUnaryHandler(OpenLeaseProcedure, s.OpenLease, opts...))
	mux.Handle(CloseLeaseProcedure, connect.NewUnaryHandler(CloseLeaseProcedure, s.CloseLease, opts...))
	mux.Handle(DeliverProcedure, connect.NewUnaryHandler(DeliverProcedure, s.Deliver, opts...))
	mux.Handle(HealProcedure, connect.NewUnaryHandler(HealProcedure, s.Heal, opts...))
	mux.Handle(StatusProcedure, connect.NewUnaryHandler(StatusProcedure, s.Status,
		append(opts, connect.WithIdempotency(connect.IdempotencyNoSideEffects))...))
	return "/" + LeaseServiceName + "/", mux
}

func requireID(id string) error {
	if id == "" {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("lease id is required"))
	}
	return nil
}
