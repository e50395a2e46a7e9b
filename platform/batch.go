package platform

import (
	"encoding/json"
	"time"
)

// Entry is one outgoing message. Entries that expect an acknowledgement carry the
// transaction id and the route the acknowledgement must be forwarded to.
type Entry struct {
	TxID      TxID      `json:"tx_id,omitempty"`
	ForwardTo ForwardTo `json:"forward_to,omitempty"`
	Msg       Msg       `json:"-"`
}

// MarshalJSON tags the message with its type url
func (e Entry) MarshalJSON() ([]byte, error) {
	value, err := json.Marshal(e.Msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		TxID      TxID            `json:"tx_id,omitempty"`
		ForwardTo ForwardTo       `json:"forward_to,omitempty"`
		TypeURL   string          `json:"type_url"`
		Value     json.RawMessage `json:"value"`
	}{e.TxID, e.ForwardTo, e.Msg.TypeURL(), value})
}

// Batch collects the messages a single handler call emits, in emission order
type Batch struct {
	entries []Entry
}

// Add appends a fire-and-forget message
func (b *Batch) Add(msg Msg) {
	b.entries = append(b.entries, Entry{Msg: msg})
}

// Track appends a message whose acknowledgement is correlated by txID
func (b *Batch) Track(txID TxID, forward ForwardTo, msg Msg) {
	b.entries = append(b.entries, Entry{TxID: txID, ForwardTo: forward, Msg: msg})
}

// Schedule appends a time alarm
func (b *Batch) Schedule(at time.Time) {
	b.Add(TimeAlarm{At: at})
}

// Merge returns a batch with the entries of b followed by those of other
func (b Batch) Merge(other Batch) Batch {
	if len(other.entries) == 0 {
		return b
	}
	entries := make([]Entry, 0, len(b.entries)+len(other.entries))
	entries = append(entries, b.entries...)
	entries = append(entries, other.entries...)
	return Batch{entries: entries}
}

// Entries returns a copy of the batch entries
func (b Batch) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b Batch) Len() int {
	return len(b.entries)
}

// Alarms lists the wake-up instants requested in this batch
func (b Batch) Alarms() []time.Time {
	var out []time.Time
	for _, e := range b.entries {
		if a, ok := e.Msg.(TimeAlarm); ok {
			out = append(out, a.At)
		}
	}
	return out
}

// Tracked lists the entries expecting an acknowledgement
func (b Batch) Tracked() []Entry {
	var out []Entry
	for _, e := range b.entries {
		if e.TxID != "" {
			out = append(out, e)
		}
	}
	return out
}

func (b Batch) MarshalJSON() ([]byte, error) {
	if b.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b.entries)
}
