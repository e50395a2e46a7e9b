package rpc

import (
	"errors"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/lease"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/profit"
)

type OpenLeaseRequest struct {
	Spec lease.Spec `json:"spec"`
	// Account reuses the dex account of a previous lease, empty opens a new one
	Account *dex.Account `json:"dex_account,omitempty"`
}

type OpenLeaseResponse struct {
	ID       string         `json:"id"`
	Messages platform.Batch `json:"messages"`
}

type LeaseRequest struct {
	ID string `json:"id"`
}

// MessagesResponse carries the messages the host has to execute
type MessagesResponse struct {
	Messages platform.Batch `json:"messages"`
}

// DeliverRequest carries exactly one host callback for the lease id
type DeliverRequest struct {
	ID        string         `json:"id"`
	IcaOpened *dex.IcaOpened `json:"ica_opened,omitempty"`
	Response  *dex.Ack       `json:"response,omitempty"`
	Error     *dex.ErrorAck  `json:"error,omitempty"`
	Timeout   *dex.Timeout   `json:"timeout,omitempty"`
	Reply     *dex.Reply     `json:"reply,omitempty"`
	TimeAlarm *dex.TimeAlarm `json:"time_alarm,omitempty"`
}

func (r *DeliverRequest) event() (dex.Event, error) {
	var events []dex.Event
	if r.IcaOpened != nil {
		events = append(events, *r.IcaOpened)
	}
	if r.Response != nil {
		events = append(events, *r.Response)
	}
	if r.Error != nil {
		events = append(events, *r.Error)
	}
	if r.Timeout != nil {
		events = append(events, *r.Timeout)
	}
	if r.Reply != nil {
		events = append(events, *r.Reply)
	}
	if r.TimeAlarm != nil {
		events = append(events, *r.TimeAlarm)
	}
	switch len(events) {
	case 0:
		return nil, errors.New("no callback in request")
	case 1:
		return events[0], nil
	default:
		return nil, errors.New("request carries more than one callback")
	}
}

type StatusResponse struct {
	Status lease.Status `json:"status"`
}

// DistributeRequest carries the margin collected since the previous cycle
type DistributeRequest struct {
	Collected []platform.Coin `json:"collected"`
}

type ProfitRequest struct{}

type ProfitStatusResponse struct {
	Status profit.Status `json:"status"`
}
