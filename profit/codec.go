package profit

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
)

type envelope struct {
	Phase Phase           `json:"phase"`
	State json.RawMessage `json:"state"`
	Saga  json.RawMessage `json:"saga,omitempty"`
}

// Marshal serializes a profit state together with the buy-back in progress
func Marshal(s State) ([]byte, error) {
	if s == nil {
		return nil, errors.New("cannot encode nil profit state")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s profit state: %w", s.Phase(), err)
	}
	env := envelope{Phase: s.Phase(), State: body}
	if b, ok := s.(BuyingBack); ok {
		if env.Saga, err = dex.Encode(b.Saga); err != nil {
			return nil, fmt.Errorf("failed to encode buy-back %d: %w", b.Cycle, err)
		}
	}
	return json.Marshal(env)
}

// Unmarshal restores a profit state written by Marshal
func Unmarshal(data []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode profit envelope: %w", err)
	}

	switch env.Phase {
	case PhaseIdle:
		var s Idle
		err := json.Unmarshal(env.State, &s)
		return s, err
	case PhaseBuyingBack:
		var s BuyingBack
		if err := json.Unmarshal(env.State, &s); err != nil {
			return nil, err
		}
		saga, err := dex.Decode[BuyBack](env.Saga)
		if err != nil {
			return nil, fmt.Errorf("failed to decode buy-back saga: %w", err)
		}
		s.Saga = saga
		return s, nil
	default:
		return nil, fmt.Errorf("unknown profit phase %q", env.Phase)
	}
}
