package dex_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/swap"
	"github.com/Cogwheel-Validator/spectra-lease/swap/osmosis"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// assets of the test tasks, named by their local denom
var testDenoms = []platform.DenomPair{
	{Local: "uusdc", Dex: "ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4"},
	{Local: "uatom", Dex: "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2"},
	platform.LocalAsset("unls", "channel-783"),
}

// testTask sells every coin it transfers out
type testTask struct {
	Name  string          `json:"name"`
	Coins []platform.Coin `json:"coins"`
	Out   string          `json:"out"`
}

func (t testTask) Label() string                       { return t.Name }
func (t testTask) CoinsToTransferOut() []platform.Coin { return t.Coins }
func (t testTask) CoinsToSwap() []platform.Coin        { return t.Coins }
func (t testTask) OutDenom() string                    { return t.Out }

// MockResolver quotes a single pool hop paying amount*price minus a flat fee
type MockResolver struct {
	Prices map[string]decimal.Decimal
	Fee    decimal.Decimal
	Err    error
}

func (m *MockResolver) Resolve(in platform.Coin, outDenom string) (swap.Path, error) {
	if m.Err != nil {
		return swap.Path{}, m.Err
	}
	price, ok := m.Prices[in.Denom]
	if !ok {
		return swap.Path{}, fmt.Errorf("no pool for %s", in.Denom)
	}
	return swap.Path{
		Hops:        []swap.Hop{{PoolID: 1, TokenOutDenom: outDenom}},
		ExpectedOut: in.Amount.Mul(price).Sub(m.Fee),
	}, nil
}

type MockBalances struct {
	amounts map[string]decimal.Decimal
	err     error
}

func (m *MockBalances) Balance(address, denom string) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	return m.amounts[address+"/"+denom], nil
}

func (m *MockBalances) set(address string, coin platform.Coin) {
	if m.amounts == nil {
		m.amounts = map[string]decimal.Decimal{}
	}
	m.amounts[address+"/"+coin.Denom] = coin.Amount
}

type counterIDs struct {
	n int
}

func (c *counterIDs) NextTxID() platform.TxID {
	c.n++
	return platform.TxID(fmt.Sprintf("tx-%d", c.n))
}

type fixture struct {
	env      dex.Env
	resolver *MockResolver
	balances *MockBalances
	denoms   *platform.DenomTable
	dexAddr  string
}

func address(t *testing.T, prefix string, fill byte) string {
	t.Helper()
	addr, err := platform.EncodeAddress(prefix, bytes.Repeat([]byte{fill}, 20))
	assert.NoError(t, err)
	return addr
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	denoms, err := platform.NewDenomTable(testDenoms...)
	assert.NoError(t, err)
	dexDenom := func(local string) string {
		d, err := denoms.DexDenom(local)
		assert.NoError(t, err)
		return d
	}
	resolver := &MockResolver{
		Prices: map[string]decimal.Decimal{
			dexDenom("uusdc"): decimal.NewFromInt(2),
			dexDenom("unls"):  decimal.NewFromInt(3),
		},
		Fee: decimal.NewFromInt(1),
	}
	balances := &MockBalances{}
	return &fixture{
		env: dex.Env{
			Now:   t0,
			Owner: address(t, "nolus", 1),
			Connection: dex.Connection{
				ConnectionID:       "connection-0",
				HostConnectionID:   "connection-7",
				TransferChannel:    "channel-0",
				DexTransferChannel: "channel-783",
				Bech32Prefix:       "osmo",
			},
			Policy:   dex.DefaultPolicy(),
			Forward:  "dex-test",
			Swap:     osmosis.NewVenue(),
			Paths:    resolver,
			Balances: balances,
			Denoms:   denoms,
			IDs:      &counterIDs{},
			Log:      zerolog.Nop(),
		},
		resolver: resolver,
		balances: balances,
		denoms:   denoms,
		dexAddr:  address(t, "osmo", 2),
	}
}

func (f *fixture) account() dex.Account {
	return dex.Account{
		Owner:        f.env.Owner,
		Address:      f.dexAddr,
		ConnectionID: f.env.Connection.ConnectionID,
		ChannelID:    "channel-9",
	}
}

// dexDenom names a local asset on the dex
func (f *fixture) dexDenom(t *testing.T, local string) string {
	t.Helper()
	d, err := f.denoms.DexDenom(local)
	assert.NoError(t, err)
	return d
}

// quoted is the output the resolver promises for selling a local coin on the dex
func (f *fixture) quoted(t *testing.T, in platform.Coin) decimal.Decimal {
	t.Helper()
	return in.Amount.Mul(f.resolver.Prices[f.dexDenom(t, in.Denom)]).Sub(f.resolver.Fee)
}

// advance moves the fixture clock
func (f *fixture) advance(d time.Duration) {
	f.env.Now = f.env.Now.Add(d)
}

func step[T dex.Task](t *testing.T, s dex.State[T], ev dex.Event, env dex.Env) dex.Transition[T] {
	t.Helper()
	tr, err := dex.Dispatch(s, ev, env)
	assert.NoError(t, err)
	return tr
}

// inFlight returns the single tracked submission of a transition
func inFlight(t *testing.T, msgs platform.Batch) platform.Entry {
	t.Helper()
	tracked := msgs.Tracked()
	assert.Equal(t, len(tracked), 1)
	return tracked[0]
}

func transferAck() []byte {
	return []byte(`{"result":"AQ=="}`)
}

func txAck(t *testing.T, amounts ...decimal.Decimal) []byte {
	t.Helper()
	var data platform.TxMsgData
	for _, amount := range amounts {
		resp, err := platform.NewAny(osmosis.TypeMsgSwapExactAmountInResponse,
			osmosis.MsgSwapExactAmountInResponse{TokenOutAmount: amount.String()})
		assert.NoError(t, err)
		data.MsgResponses = append(data.MsgResponses, resp)
	}
	raw, err := json.Marshal(data)
	assert.NoError(t, err)
	return raw
}

func icaReply(t *testing.T, channel string) []byte {
	t.Helper()
	raw, err := json.Marshal(platform.RegisterIcaResponse{ChannelID: channel, PortID: "icacontroller-owner"})
	assert.NoError(t, err)
	return raw
}

func assertIs(t *testing.T, err, target error) {
	t.Helper()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, target))
}

var errTest = errors.New("test failure")
