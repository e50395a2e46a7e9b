package platform

import (
	"encoding/json"
	"fmt"
)

// TxMsgData is the acknowledgement result of an ICA tx, one response per executed msg
type TxMsgData struct {
	MsgResponses []Any `json:"msg_responses"`
}

// DecodeTxMsgData decodes an ICA tx acknowledgement
func DecodeTxMsgData(payload []byte) (TxMsgData, error) {
	var data TxMsgData
	if err := json.Unmarshal(payload, &data); err != nil {
		return TxMsgData{}, fmt.Errorf("failed to decode ica tx response: %w", err)
	}
	return data, nil
}

// TransferAck is the ICS-20 acknowledgement. Exactly one of the fields is set.
type TransferAck struct {
	Result []byte `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DecodeTransferAck decodes an ICS-20 acknowledgement and rejects error acks
func DecodeTransferAck(payload []byte) error {
	var ack TransferAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("failed to decode transfer ack: %w", err)
	}
	if ack.Error != "" {
		return fmt.Errorf("transfer ack carries error: %s", ack.Error)
	}
	if len(ack.Result) == 0 {
		return fmt.Errorf("transfer ack has no result")
	}
	return nil
}

// RegisterIcaResponse is the local reply to a RegisterIca message
type RegisterIcaResponse struct {
	ChannelID string `json:"channel_id"`
	PortID    string `json:"port_id"`
}

// TransferResponse is the local reply to a Transfer or SubmitTx message
type TransferResponse struct {
	Sequence uint64 `json:"sequence,string"`
}
