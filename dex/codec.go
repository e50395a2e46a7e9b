package dex

import (
	"encoding/json"
	"errors"
	"fmt"
)

type envelope struct {
	Kind  Kind            `json:"kind"`
	State json.RawMessage `json:"state"`
}

// Encode serializes s into its persisted form tagged with the variant kind
func Encode[T Task](s State[T]) ([]byte, error) {
	if s == nil {
		return nil, errors.New("cannot encode nil state")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", s.Kind(), err)
	}
	return json.Marshal(envelope{Kind: s.Kind(), State: body})
}

// Decode restores a state written by Encode
func Decode[T Task](data []byte) (State[T], error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode state envelope: %w", err)
	}

	switch env.Kind {
	case KindOpenIca:
		return decodeAs[T, OpenIca[T]](env)
	case KindTransferOut:
		return decodeAs[T, TransferOut[T]](env)
	case KindSwapExactIn:
		return decodeAs[T, SwapExactIn[T]](env)
	case KindTransferInInit:
		return decodeAs[T, TransferInInit[T]](env)
	case KindTransferInFinish:
		return decodeAs[T, TransferInFinish[T]](env)
	case KindResponseDelivery:
		return decodeAs[T, ResponseDelivery[T]](env)
	case KindPreRecoverIca:
		return decodeAs[T, PreRecoverIca[T]](env)
	case KindRecoverIca:
		return decodeAs[T, RecoverIca[T]](env)
	default:
		return nil, fmt.Errorf("unknown state kind %q", env.Kind)
	}
}

func decodeAs[T Task, S State[T]](env envelope) (State[T], error) {
	var s S
	if err := json.Unmarshal(env.State, &s); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", env.Kind, err)
	}
	return s, nil
}

func decodeStage[T Task](data []byte) (stage[T], error) {
	s, err := Decode[T](data)
	if err != nil {
		return nil, err
	}
	st, ok := s.(stage[T])
	if !ok {
		return nil, fmt.Errorf("%s is not a submitting stage", s.Kind())
	}
	return st, nil
}
