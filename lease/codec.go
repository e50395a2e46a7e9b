package lease

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

// Marshal serializes a lease state together with its embedded saga
func Marshal(s State) ([]byte, error) {
	if s == nil {
		return nil, errors.New("cannot encode nil lease state")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s lease: %w", s.Phase(), err)
	}
	env := envelope{Phase: s.Phase(), State: body}

	switch s := s.(type) {
	case Opening:
		env.Saga, err = dex.Encode(s.Saga)
	case Closing:
		env.Saga, err = dex.Encode(s.Saga)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s saga: %w", s.Phase(), err)
	}
	return json.Marshal(env)
}

// Unmarshal restores a lease state written by Marshal
func Unmarshal(data []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode lease envelope: %w", err)
	}

	switch env.Phase {
	case PhaseOpening:
		var s Opening
		if err := json.Unmarshal(env.State, &s); err != nil {
			return nil, err
		}
		saga, err := dex.Decode[BuyAsset](env.Saga)
		if err != nil {
			return nil, fmt.Errorf("failed to decode opening saga: %w", err)
		}
		s.Saga = saga
		return s, nil
	case PhaseClosing:
		var s Closing
		if err := json.Unmarshal(env.State, &s); err != nil {
			return nil, err
		}
		saga, err := dex.Decode[SellAsset](env.Saga)
		if err != nil {
			return nil, fmt.Errorf("failed to decode closing saga: %w", err)
		}
		s.Saga = saga
		return s, nil
	case PhaseOpened:
		var s Opened
		err := json.Unmarshal(env.State, &s)
		return s, err
	case PhaseClosed:
		var s Closed
		err := json.Unmarshal(env.State, &s)
		return s, err
	default:
		return nil, fmt.Errorf("unknown lease phase %q", env.Phase)
	}
}
