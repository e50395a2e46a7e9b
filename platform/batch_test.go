package platform_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/zeebo/assert"
)

func TestBatchMergeKeepsOrder(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var first platform.Batch
	first.Track("tx-1", "lease", platform.NewTransfer("channel-0", "a", "b", platform.NewCoin(10, "unls"), at))

	var second platform.Batch
	second.Schedule(at)

	merged := first.Merge(second)
	assert.Equal(t, merged.Len(), 2)
	assert.Equal(t, first.Len(), 1)
	assert.Equal(t, len(merged.Tracked()), 1)
	assert.Equal(t, merged.Tracked()[0].TxID, platform.TxID("tx-1"))

	alarms := merged.Alarms()
	assert.Equal(t, len(alarms), 1)
	assert.True(t, alarms[0].Equal(at))
}

func TestBatchJSONCarriesTypeURL(t *testing.T) {
	var b platform.Batch
	b.Schedule(time.Unix(100, 0).UTC())

	raw, err := json.Marshal(b)
	assert.NoError(t, err)

	var decoded []map[string]any
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, len(decoded), 1)
	assert.Equal(t, decoded[0]["type_url"], platform.TypeMsgAddAlarm)

	empty, err := json.Marshal(platform.Batch{})
	assert.NoError(t, err)
	assert.Equal(t, string(empty), "[]")
}

func TestDecodeTransferAck(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"success", `{"result":"AQ=="}`, false},
		{"error ack", `{"error":"insufficient funds"}`, true},
		{"empty", `{}`, true},
		{"garbage", `not json`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := platform.DecodeTransferAck([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseCoin(t *testing.T) {
	c, err := platform.ParseCoin("1500", "uosmo")
	assert.NoError(t, err)
	assert.Equal(t, c.String(), "1500uosmo")

	_, err = platform.ParseCoin("-1", "uosmo")
	assert.Error(t, err)

	_, err = platform.ParseCoin("1.5", "uosmo")
	assert.Error(t, err)
}

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	addr, err := platform.EncodeAddress("osmo", raw)
	assert.NoError(t, err)

	assert.NoError(t, platform.ValidateAddress(addr, "osmo"))
	assert.Error(t, platform.ValidateAddress(addr, "nolus"))
	assert.Error(t, platform.ValidateAddress("osmo1notanaddress", "osmo"))
}
