package platform_test

import (
	"errors"
	"testing"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/zeebo/assert"
)

// atom as it arrives on osmosis over channel-0
const osmoAtom = "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2"

func TestVoucherDenom(t *testing.T) {
	assert.Equal(t, platform.VoucherDenom("transfer", "channel-0", "uatom"), osmoAtom)

	pair := platform.DexAsset("uatom", "channel-0")
	assert.Equal(t, pair.Dex, "uatom")
	assert.Equal(t, pair.Local, osmoAtom)

	pair = platform.LocalAsset("unls", "channel-783")
	assert.Equal(t, pair.Local, "unls")
	assert.Equal(t, pair.Dex, platform.VoucherDenom("transfer", "channel-783", "unls"))
	assert.True(t, pair.Dex != platform.VoucherDenom("transfer", "channel-0", "unls"))
}

func TestDenomTable(t *testing.T) {
	table, err := platform.NewDenomTable(
		platform.LocalAsset("unls", "channel-783"),
		platform.DexAsset("uosmo", "channel-0"),
		platform.DenomPair{Local: "ibc/USDC-LOCAL", Dex: "ibc/USDC-DEX"},
	)
	assert.NoError(t, err)

	tests := []struct {
		local string
		dex   string
	}{
		{"unls", platform.VoucherDenom("transfer", "channel-783", "unls")},
		{platform.VoucherDenom("transfer", "channel-0", "uosmo"), "uosmo"},
		{"ibc/USDC-LOCAL", "ibc/USDC-DEX"},
	}
	for _, tc := range tests {
		t.Run(tc.local, func(t *testing.T) {
			dex, err := table.DexDenom(tc.local)
			assert.NoError(t, err)
			assert.Equal(t, dex, tc.dex)

			local, err := table.LocalDenom(tc.dex)
			assert.NoError(t, err)
			assert.Equal(t, local, tc.local)
		})
	}

	_, err = table.DexDenom("uatom")
	assert.True(t, errors.Is(err, platform.ErrUnknownDenom))
	_, err = table.LocalDenom("unls")
	assert.True(t, errors.Is(err, platform.ErrUnknownDenom))
}

func TestDenomTableRejectsConflicts(t *testing.T) {
	tests := []struct {
		name  string
		pairs []platform.DenomPair
	}{
		{"incomplete", []platform.DenomPair{{Local: "unls"}}},
		{"local twice", []platform.DenomPair{{Local: "unls", Dex: "a"}, {Local: "unls", Dex: "b"}}},
		{"dex twice", []platform.DenomPair{{Local: "a", Dex: "uosmo"}, {Local: "b", Dex: "uosmo"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := platform.NewDenomTable(tc.pairs...)
			assert.Error(t, err)
		})
	}

	// a repeated identical pair is fine
	_, err := platform.NewDenomTable(platform.LocalAsset("unls", "channel-1"), platform.LocalAsset("unls", "channel-1"))
	assert.NoError(t, err)
}
