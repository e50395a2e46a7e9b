package platform

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// TransferPort is the ICS-20 port on both ends of a transfer channel
	TransferPort = "transfer"

	TypeMsgTransfer    = "/ibc.applications.transfer.v1.MsgTransfer"
	TypeMsgRegisterIca = "/ibc.applications.interchain_accounts.controller.v1.MsgRegisterInterchainAccount"
	TypeMsgSendTx      = "/ibc.applications.interchain_accounts.controller.v1.MsgSendTx"
	TypeMsgAddAlarm    = "/spectra.timealarms.v1.MsgAddAlarm"
	TypeMsgSend        = "/cosmos.bank.v1beta1.MsgSend"

	icaVersion  = "ics27-1"
	icaEncoding = "proto3json"
	icaTxType   = "sdk_multi_msg"
)

// TxID correlates a submitted message with the acknowledgement, error or timeout
// the host later delivers for it.
type TxID string

// ForwardTo names the local route the host should deliver an acknowledgement to.
type ForwardTo string

// Msg is an outgoing message the host executes on behalf of the saga
type Msg interface {
	TypeURL() string
}

// Any is a type-tagged message payload, used for the messages carried inside an ICA tx
type Any struct {
	TypeURL string          `json:"type_url"`
	Value   json.RawMessage `json:"value"`
}

// NewAny encodes v under the given type url
func NewAny(typeURL string, v any) (Any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Any{}, fmt.Errorf("failed to encode %s: %w", typeURL, err)
	}
	return Any{TypeURL: typeURL, Value: raw}, nil
}

// Transfer is an ICS-20 transfer
type Transfer struct {
	SourcePort       string `json:"source_port"`
	SourceChannel    string `json:"source_channel"`
	Token            Coin   `json:"token"`
	Sender           string `json:"sender"`
	Receiver         string `json:"receiver"`
	TimeoutTimestamp uint64 `json:"timeout_timestamp,string"`
	Memo             string `json:"memo,omitempty"`
}

func (Transfer) TypeURL() string { return TypeMsgTransfer }

// NewTransfer builds a transfer over channel that times out at the given instant
func NewTransfer(channel, sender, receiver string, token Coin, timeout time.Time) Transfer {
	return Transfer{
		SourcePort:       TransferPort,
		SourceChannel:    channel,
		Token:            token,
		Sender:           sender,
		Receiver:         receiver,
		TimeoutTimestamp: uint64(timeout.UnixNano()),
	}
}

// BankSend moves coins between two accounts of the local chain
type BankSend struct {
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      []Coin `json:"amount"`
}

func (BankSend) TypeURL() string { return TypeMsgSend }

// NewBankSend builds a bank send of the non-zero coins
func NewBankSend(from, to string, coins ...Coin) BankSend {
	msg := BankSend{FromAddress: from, ToAddress: to}
	for _, c := range coins {
		if !c.IsZero() {
			msg.Amount = append(msg.Amount, c)
		}
	}
	return msg
}

// RegisterIca opens (or reopens) the interchain account of owner over a connection
type RegisterIca struct {
	Owner        string `json:"owner"`
	ConnectionID string `json:"connection_id"`
	Version      string `json:"version"`
}

func (RegisterIca) TypeURL() string { return TypeMsgRegisterIca }

// NewRegisterIca builds the registration message with ICS-27 version metadata
func NewRegisterIca(owner, controllerConnection, hostConnection string) (RegisterIca, error) {
	metadata, err := json.Marshal(struct {
		Version                string `json:"version"`
		ControllerConnectionID string `json:"controller_connection_id"`
		HostConnectionID       string `json:"host_connection_id"`
		Address                string `json:"address"`
		Encoding               string `json:"encoding"`
		TxType                 string `json:"tx_type"`
	}{
		Version:                icaVersion,
		ControllerConnectionID: controllerConnection,
		HostConnectionID:       hostConnection,
		Encoding:               icaEncoding,
		TxType:                 icaTxType,
	})
	if err != nil {
		return RegisterIca{}, fmt.Errorf("failed to encode ica metadata: %w", err)
	}
	return RegisterIca{Owner: owner, ConnectionID: controllerConnection, Version: string(metadata)}, nil
}

// SubmitTx executes msgs on the host chain through the owner's interchain account
type SubmitTx struct {
	Owner           string `json:"owner"`
	ConnectionID    string `json:"connection_id"`
	Msgs            []Any  `json:"msgs"`
	Memo            string `json:"memo,omitempty"`
	RelativeTimeout uint64 `json:"relative_timeout,string"`
}

func (SubmitTx) TypeURL() string { return TypeMsgSendTx }

// NewSubmitTx wraps msgs in an ICA tx with a relative packet timeout
func NewSubmitTx(owner, connection string, msgs []Any, timeout time.Duration) SubmitTx {
	return SubmitTx{
		Owner:           owner,
		ConnectionID:    connection,
		Msgs:            msgs,
		RelativeTimeout: uint64(timeout.Nanoseconds()),
	}
}

// TimeAlarm asks the host to wake the saga up at the given instant
type TimeAlarm struct {
	At time.Time `json:"at"`
}

func (TimeAlarm) TypeURL() string { return TypeMsgAddAlarm }
