package lease_test

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
	"github.com/Cogwheel-Validator/spectra-lease/lease"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/swap"
	"github.com/Cogwheel-Validator/spectra-lease/swap/osmosis"
)

type MockResolver struct{}

// Resolve pays twice the amount minus one
func (MockResolver) Resolve(in platform.Coin, outDenom string) (swap.Path, error) {
	return swap.Path{
		Hops:        []swap.Hop{{PoolID: 5, TokenOutDenom: outDenom}},
		ExpectedOut: in.Amount.Mul(decimal.NewFromInt(2)).Sub(decimal.NewFromInt(1)),
	}, nil
}

type MockBalances map[string]decimal.Decimal

func (m MockBalances) Balance(address, denom string) (decimal.Decimal, error) {
	return m[denom], nil
}

type counterIDs struct{ n int }

func (c *counterIDs) NextTxID() platform.TxID {
	c.n++
	return platform.TxID(fmt.Sprintf("tx-%d", c.n))
}

func addr(t *testing.T, prefix string, fill byte) string {
	t.Helper()
	a, err := platform.EncodeAddress(prefix, bytes.Repeat([]byte{fill}, 20))
	assert.NoError(t, err)
	return a
}

func newEnv(t *testing.T) (dex.Env, MockBalances) {
	t.Helper()
	balances := MockBalances{}
	return dex.Env{
		Now:   time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		Owner: addr(t, "nolus", 1),
		Connection: dex.Connection{
			ConnectionID:       "connection-0",
			HostConnectionID:   "connection-2",
			TransferChannel:    "channel-0",
			DexTransferChannel: "channel-3",
			Bech32Prefix:       "osmo",
		},
		Policy:   dex.DefaultPolicy(),
		Forward:  "lease-1",
		Swap:     osmosis.NewVenue(),
		Paths:    MockResolver{},
		Balances: balances,
		Denoms:   testDenoms(t),
		IDs:      &counterIDs{},
		Log:      zerolog.Nop(),
	}, balances
}

// testDenoms names the lease assets as vouchers of the dex end of channel-3
func testDenoms(t *testing.T) *platform.DenomTable {
	t.Helper()
	table, err := platform.NewDenomTable(
		platform.LocalAsset("uusdc", "channel-3"),
		platform.LocalAsset("uatom", "channel-3"),
	)
	assert.NoError(t, err)
	return table
}

func testSpec() lease.Spec {
	return lease.Spec{
		ID:          "lease-1",
		Customer:    "nolus1customer",
		Downpayment: platform.NewCoin(100, "uusdc"),
		Loan:        platform.NewCoin(400, "uusdc"),
		Asset:       "uatom",
		Lpn:         "uusdc",
	}
}

func testAccount(t *testing.T, env dex.Env) dex.Account {
	return dex.Account{
		Owner:        env.Owner,
		Address:      addr(t, "osmo", 2),
		ConnectionID: "connection-0",
		ChannelID:    "channel-9",
	}
}

func swapAck(t *testing.T, amounts ...int64) []byte {
	t.Helper()
	var data platform.TxMsgData
	for _, a := range amounts {
		resp, err := platform.NewAny(osmosis.TypeMsgSwapExactAmountInResponse,
			osmosis.MsgSwapExactAmountInResponse{TokenOutAmount: decimal.NewFromInt(a).String()})
		assert.NoError(t, err)
		data.MsgResponses = append(data.MsgResponses, resp)
	}
	raw, err := json.Marshal(data)
	assert.NoError(t, err)
	return raw
}

// buyEvents is the host side of a BuyAsset saga for testSpec, given the batch of each step
func buyEvents(t *testing.T) []func(platform.Batch) dex.Event {
	ack := func(payload []byte) func(platform.Batch) dex.Event {
		return func(b platform.Batch) dex.Event {
			tracked := b.Tracked()
			assert.Equal(t, len(tracked), 1)
			return dex.Ack{TxID: tracked[0].TxID, Payload: payload}
		}
	}
	transfer := []byte(`{"result":"AQ=="}`)
	return []func(platform.Batch) dex.Event{
		ack(transfer),
		ack(transfer),
		ack(swapAck(t, 199, 799)),
		ack(swapAck(t)),
	}
}

func batchJSON(t *testing.T, b platform.Batch) string {
	t.Helper()
	raw, err := json.Marshal(b)
	assert.NoError(t, err)
	return string(raw)
}

func TestNestedSagaBehavesLikeStandalone(t *testing.T) {
	spec := testSpec()

	// standalone
	env, balances := newEnv(t)
	acc := testAccount(t, env)
	tr, err := dex.Start(lease.BuyAsset{Spec: spec}, &acc, env)
	assert.NoError(t, err)
	standalone := []string{batchJSON(t, tr.Messages)}
	for _, next := range buyEvents(t) {
		tr, err = dex.Dispatch(tr.Next, next(tr.Messages), env)
		assert.NoError(t, err)
		standalone = append(standalone, batchJSON(t, tr.Messages))
	}
	balances["uatom"] = decimal.NewFromInt(998)
	env.Now = env.Now.Add(env.Policy.TransferInPoll)
	tr, err = dex.Dispatch(tr.Next, dex.TimeAlarm{}, env)
	assert.NoError(t, err)
	assert.True(t, tr.Finished())
	standalone = append(standalone, batchJSON(t, tr.Messages))

	// nested
	env, balances = newEnv(t)
	s, msgs, err := lease.Open(spec, &acc, env)
	assert.NoError(t, err)
	nested := []string{batchJSON(t, msgs)}
	for _, next := range buyEvents(t) {
		s, msgs, err = lease.Handle(s, next(msgs), env)
		assert.NoError(t, err)
		assert.Equal(t, s.Phase(), lease.PhaseOpening)
		nested = append(nested, batchJSON(t, msgs))
	}
	balances["uatom"] = decimal.NewFromInt(998)
	env.Now = env.Now.Add(env.Policy.TransferInPoll)
	s, msgs, err = lease.Handle(s, dex.TimeAlarm{}, env)
	assert.NoError(t, err)
	nested = append(nested, batchJSON(t, msgs))

	assert.Equal(t, len(nested), len(standalone))
	for i := range standalone {
		assert.Equal(t, nested[i], standalone[i])
	}

	opened, ok := s.(lease.Opened)
	assert.True(t, ok)
	assert.True(t, opened.Asset.Equal(tr.Result.Received))
	assert.Equal(t, opened.Asset.String(), "998uatom")
	assert.Equal(t, opened.Account.Address, acc.Address)
}

func TestLeaseLifecycle(t *testing.T) {
	env, balances := newEnv(t)
	wf := lease.Workflow{Due: time.Minute}

	s, msgs, err := lease.Open(testSpec(), nil, env)
	assert.NoError(t, err)
	assert.Equal(t, s.Phase(), lease.PhaseOpening)
	assert.Equal(t, s.Status(env.Now, time.Minute).Saga.Stage, dex.KindOpenIca)

	_, _, err = lease.Close(s, env)
	assert.True(t, errors.Is(err, lease.ErrWrongPhase))

	acc := testAccount(t, env)
	s, msgs, err = lease.Handle(s, dex.IcaOpened{ChannelID: acc.ChannelID, Address: acc.Address}, env)
	assert.NoError(t, err)

	for _, next := range buyEvents(t) {
		var done bool
		s, done, msgs, err = wf.Handle(s, next(msgs), env)
		assert.NoError(t, err)
		assert.False(t, done)
	}
	balances["uatom"] = decimal.NewFromInt(998)
	env.Now = env.Now.Add(env.Policy.TransferInPoll)
	s, _, err = lease.Handle(s, dex.TimeAlarm{}, env)
	assert.NoError(t, err)
	assert.Equal(t, s.Phase(), lease.PhaseOpened)
	assert.True(t, wf.Idle(s))

	// a leftover alarm of the opening saga changes nothing
	idle, none, err := lease.Handle(s, dex.TimeAlarm{}, env)
	assert.NoError(t, err)
	assert.Equal(t, none.Len(), 0)
	assert.Equal(t, idle.Phase(), lease.PhaseOpened)

	_, _, err = lease.Handle(s, dex.HealRequest{}, env)
	assert.True(t, errors.Is(err, lease.ErrWrongPhase))

	s, msgs, err = lease.Close(s, env)
	assert.NoError(t, err)
	assert.Equal(t, s.Phase(), lease.PhaseClosing)
	assert.False(t, wf.Idle(s))

	transfer := msgs.Tracked()[0].Msg.(platform.Transfer)
	assert.Equal(t, transfer.Token.String(), "998uatom")

	s, msgs, err = lease.Handle(s, dex.Ack{TxID: msgs.Tracked()[0].TxID, Payload: []byte(`{"result":"AQ=="}`)}, env)
	assert.NoError(t, err)
	s, msgs, err = lease.Handle(s, dex.Ack{TxID: msgs.Tracked()[0].TxID, Payload: swapAck(t, 1995)}, env)
	assert.NoError(t, err)
	s, msgs, err = lease.Handle(s, dex.Ack{TxID: msgs.Tracked()[0].TxID, Payload: swapAck(t)}, env)
	assert.NoError(t, err)

	balances["uusdc"] = decimal.NewFromInt(1995)
	env.Now = env.Now.Add(env.Policy.TransferInPoll)
	var done bool
	s, done, _, err = wf.Handle(s, dex.TimeAlarm{}, env)
	assert.NoError(t, err)
	assert.True(t, done)

	closed, ok := s.(lease.Closed)
	assert.True(t, ok)
	assert.Equal(t, closed.Proceeds.String(), "1995uusdc")
	assert.Equal(t, wf.Status(s, env.Now).(lease.Status).Proceeds.String(), "1995uusdc")

	after, none, err := lease.Handle(s, dex.TimeAlarm{}, env)
	assert.NoError(t, err)
	assert.Equal(t, none.Len(), 0)
	assert.Equal(t, after.Phase(), lease.PhaseClosed)
}

func TestLeaseCodecResumesSaga(t *testing.T) {
	env, _ := newEnv(t)
	acc := testAccount(t, env)

	s, msgs, err := lease.Open(testSpec(), &acc, env)
	assert.NoError(t, err)

	raw, err := lease.Marshal(s)
	assert.NoError(t, err)
	restored, err := lease.Unmarshal(raw)
	assert.NoError(t, err)
	assert.Equal(t, restored.Phase(), lease.PhaseOpening)

	again, err := lease.Marshal(restored)
	assert.NoError(t, err)
	assert.Equal(t, string(again), string(raw))

	next, _, err := lease.Handle(restored, dex.Ack{TxID: msgs.Tracked()[0].TxID, Payload: []byte(`{"result":"AQ=="}`)}, env)
	assert.NoError(t, err)
	assert.Equal(t, next.Status(env.Now, 0).Saga.Coins[0].String(), "400uusdc")

	_, err = lease.Unmarshal([]byte(`{"phase":"liquidated","state":{}}`))
	assert.Error(t, err)
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*lease.Spec)
		wantErr bool
	}{
		{"valid", func(*lease.Spec) {}, false},
		{"no loan", func(s *lease.Spec) { s.Loan = platform.NewCoin(0, "uusdc") }, false},
		{"missing id", func(s *lease.Spec) { s.ID = "" }, true},
		{"same denoms", func(s *lease.Spec) { s.Asset = s.Lpn }, true},
		{"nothing to lease", func(s *lease.Spec) {
			s.Downpayment = platform.NewCoin(0, "uusdc")
			s.Loan = platform.NewCoin(0, "uusdc")
		}, true},
		{"negative loan", func(s *lease.Spec) { s.Loan = platform.NewCoin(-1, "uusdc") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			tt.modify(&spec)
			err := spec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
