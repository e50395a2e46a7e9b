package profit_test

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
	"github.com/Cogwheel-Validator/spectra-lease/profit"
	"github.com/Cogwheel-Validator/spectra-lease/swap"
	"github.com/Cogwheel-Validator/spectra-lease/swap/osmosis"
)

type MockResolver struct{}

// Resolve pays twice the amount minus one
func (MockResolver) Resolve(in platform.Coin, outDenom string) (swap.Path, error) {
	return swap.Path{
		Hops:        []swap.Hop{{PoolID: 7, TokenOutDenom: outDenom}},
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
	denoms, err := platform.NewDenomTable(
		platform.LocalAsset("unls", "channel-3"),
		platform.LocalAsset("uusdc", "channel-3"),
		platform.LocalAsset("uatom", "channel-3"),
	)
	assert.NoError(t, err)

	balances := MockBalances{}
	return dex.Env{
		Now:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Owner: addr(t, "nolus", 4),
		Connection: dex.Connection{
			ConnectionID:       "connection-0",
			HostConnectionID:   "connection-2",
			TransferChannel:    "channel-0",
			DexTransferChannel: "channel-3",
			Bech32Prefix:       "osmo",
		},
		Policy:   dex.DefaultPolicy(),
		Forward:  "profit",
		Swap:     osmosis.NewVenue(),
		Paths:    MockResolver{},
		Balances: balances,
		Denoms:   denoms,
		IDs:      &counterIDs{},
		Log:      zerolog.Nop(),
	}, balances
}

func testConfig(t *testing.T) profit.Config {
	return profit.Config{Treasury: addr(t, "nolus", 9), Reward: "uatom"}
}

func testAccount(t *testing.T, env dex.Env) *dex.Account {
	return &dex.Account{
		Owner:        env.Owner,
		Address:      addr(t, "osmo", 5),
		ConnectionID: "connection-0",
		ChannelID:    "channel-9",
	}
}

// collected sells unls and uusdc, the uatom part is sent as is
func collected() []platform.Coin {
	return []platform.Coin{
		platform.NewCoin(500, "unls"),
		platform.NewCoin(300, "uusdc"),
		platform.NewCoin(50, "uatom"),
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

// buyBackEvents is the host side of a buy-back of collected, given the batch of each step
func buyBackEvents(t *testing.T) []func(platform.Batch) dex.Event {
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
		ack(swapAck(t, 999, 599)),
		ack(swapAck(t)),
	}
}

func batchJSON(t *testing.T, b platform.Batch) string {
	t.Helper()
	raw, err := json.Marshal(b)
	assert.NoError(t, err)
	return string(raw)
}

func bankSend(t *testing.T, b platform.Batch) platform.BankSend {
	t.Helper()
	var sends []platform.BankSend
	for _, e := range b.Entries() {
		if send, ok := e.Msg.(platform.BankSend); ok {
			sends = append(sends, send)
		}
	}
	assert.Equal(t, len(sends), 1)
	return sends[0]
}

func TestBuyBackBehavesLikeStandalone(t *testing.T) {
	cfg := testConfig(t)

	// standalone
	env, balances := newEnv(t)
	acc := testAccount(t, env)
	task := profit.BuyBack{Cycle: 1, Collected: collected(), Reward: cfg.Reward}
	tr, err := dex.Start(task, acc, env)
	assert.NoError(t, err)
	standalone := []string{batchJSON(t, tr.Messages)}
	for _, next := range buyBackEvents(t) {
		tr, err = dex.Dispatch(tr.Next, next(tr.Messages), env)
		assert.NoError(t, err)
		standalone = append(standalone, batchJSON(t, tr.Messages))
	}
	balances["uatom"] = decimal.NewFromInt(1598)
	env.Now = env.Now.Add(env.Policy.TransferInPoll)
	tr, err = dex.Dispatch(tr.Next, dex.TimeAlarm{}, env)
	assert.NoError(t, err)
	assert.True(t, tr.Finished())
	standalone = append(standalone, batchJSON(t, tr.Messages))

	// nested
	env, balances = newEnv(t)
	s := profit.State(profit.Idle{Config: cfg, Account: acc})
	s, msgs, err := profit.Distribute(s, collected(), env)
	assert.NoError(t, err)
	nested := []string{batchJSON(t, msgs)}
	for _, next := range buyBackEvents(t) {
		s, msgs, err = profit.Handle(s, next(msgs), env)
		assert.NoError(t, err)
		assert.Equal(t, s.Phase(), profit.PhaseBuyingBack)
		nested = append(nested, batchJSON(t, msgs))
	}
	balances["uatom"] = decimal.NewFromInt(1598)
	env.Now = env.Now.Add(env.Policy.TransferInPoll)
	s, msgs, err = profit.Handle(s, dex.TimeAlarm{}, env)
	assert.NoError(t, err)

	// the nested transcript only adds the treasury payout at the end
	assert.Equal(t, len(nested), len(standalone))
	for i := range standalone[:len(standalone)-1] {
		assert.Equal(t, nested[i], standalone[i])
	}
	assert.Equal(t, msgs.Len(), tr.Messages.Len()+1)

	send := bankSend(t, msgs)
	assert.Equal(t, send.FromAddress, env.Owner)
	assert.Equal(t, send.ToAddress, cfg.Treasury)
	assert.Equal(t, len(send.Amount), 1)
	assert.Equal(t, send.Amount[0].String(), "1648uatom")

	idle, ok := s.(profit.Idle)
	assert.True(t, ok)
	assert.Equal(t, idle.Cycle, 1)
	assert.Equal(t, idle.Last.String(), "1648uatom")
	assert.True(t, idle.LastAt.Equal(env.Now))
	assert.Equal(t, idle.Account.Address, acc.Address)
}

func TestDistributeOpensAccountOnFirstCycle(t *testing.T) {
	env, balances := newEnv(t)
	wf := profit.Workflow{Due: time.Minute}

	s, err := profit.New(testConfig(t))
	assert.NoError(t, err)
	assert.True(t, wf.Idle(s))

	s, msgs, err := profit.Distribute(s, collected(), env)
	assert.NoError(t, err)
	assert.False(t, wf.Idle(s))
	assert.Equal(t, s.Status(env.Now, time.Minute).Saga.Stage, dex.KindOpenIca)
	assert.Equal(t, len(msgs.Tracked()), 1)

	_, _, err = profit.Distribute(s, collected(), env)
	assert.True(t, errors.Is(err, profit.ErrWrongPhase))

	acc := testAccount(t, env)
	s, msgs, err = profit.Handle(s, dex.IcaOpened{ChannelID: acc.ChannelID, Address: acc.Address}, env)
	assert.NoError(t, err)

	for _, next := range buyBackEvents(t) {
		var done bool
		s, done, msgs, err = wf.Handle(s, next(msgs), env)
		assert.NoError(t, err)
		assert.False(t, done)
	}
	balances["uatom"] = decimal.NewFromInt(1598)
	env.Now = env.Now.Add(env.Policy.TransferInPoll)
	s, done, msgs, err := wf.Handle(s, dex.TimeAlarm{}, env)
	assert.NoError(t, err)
	assert.False(t, done)
	assert.True(t, wf.Idle(s))
	assert.Equal(t, bankSend(t, msgs).Amount[0].String(), "1648uatom")

	st := wf.Status(s, env.Now).(profit.Status)
	assert.Equal(t, st.Phase, profit.PhaseIdle)
	assert.Equal(t, st.Cycle, 1)
	assert.Equal(t, st.Account, acc.Address)
	assert.Equal(t, st.Last.String(), "1648uatom")

	// the next cycle reuses the account
	s, msgs, err = profit.Distribute(s, []platform.Coin{platform.NewCoin(10, "unls")}, env)
	assert.NoError(t, err)
	assert.Equal(t, s.Status(env.Now, 0).Saga.Stage, dex.KindTransferOut)
	transfer := msgs.Tracked()[0].Msg.(platform.Transfer)
	assert.Equal(t, transfer.Receiver, acc.Address)
	assert.Equal(t, transfer.Token.String(), "10unls")
	assert.Equal(t, s.Status(env.Now, 0).Cycle, 2)
}

func TestIdleRequests(t *testing.T) {
	env, _ := newEnv(t)
	idle := profit.State(profit.Idle{Config: testConfig(t), Cycle: 3})

	tests := []struct {
		name    string
		ev      dex.Event
		wantErr error
	}{
		{"leftover alarm", dex.TimeAlarm{}, nil},
		{"heal", dex.HealRequest{}, profit.ErrWrongPhase},
		{"ack", dex.Ack{TxID: "tx-1"}, profit.ErrWrongPhase},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, msgs, err := profit.Handle(idle, tc.ev, env)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, msgs.Len(), 0)
			assert.Equal(t, next.(profit.Idle).Cycle, 3)
		})
	}
}

func TestDistributeWithoutSwap(t *testing.T) {
	env, _ := newEnv(t)
	cfg := testConfig(t)
	idle := profit.Idle{Config: cfg, Cycle: 1}

	tests := []struct {
		name      string
		collected []platform.Coin
		want      string
		wantErr   bool
	}{
		{"reward only", []platform.Coin{platform.NewCoin(20, "uatom"), platform.NewCoin(5, "uatom")}, "25uatom", false},
		{"zero coins", []platform.Coin{platform.NewCoin(0, "unls"), platform.NewCoin(20, "uatom")}, "20uatom", false},
		{"nothing", []platform.Coin{platform.NewCoin(0, "unls")}, "", true},
		{"empty", nil, "", true},
		{"negative", []platform.Coin{platform.NewCoin(-1, "unls")}, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, msgs, err := profit.Distribute(idle, tc.collected, env)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, msgs.Len(), 1)
			assert.Equal(t, bankSend(t, msgs).Amount[0].String(), tc.want)

			s, ok := next.(profit.Idle)
			assert.True(t, ok)
			assert.Equal(t, s.Cycle, 2)
			assert.Nil(t, s.Account)
		})
	}

	_, _, err := profit.Distribute(idle, nil, env)
	assert.True(t, errors.Is(err, profit.ErrNothingCollected))
}

func TestDistributeRejectsUnknownDenom(t *testing.T) {
	env, _ := newEnv(t)
	idle := profit.Idle{Config: testConfig(t)}
	_, _, err := profit.Distribute(idle, []platform.Coin{platform.NewCoin(5, "uosmo")}, env)
	assert.True(t, errors.Is(err, platform.ErrUnknownDenom))
}

func TestProfitCodecResumesSaga(t *testing.T) {
	env, _ := newEnv(t)
	cfg := testConfig(t)

	s, msgs, err := profit.Distribute(profit.Idle{Config: cfg, Account: testAccount(t, env)}, collected(), env)
	assert.NoError(t, err)

	raw, err := profit.Marshal(s)
	assert.NoError(t, err)
	restored, err := profit.Unmarshal(raw)
	assert.NoError(t, err)
	assert.Equal(t, restored.Phase(), profit.PhaseBuyingBack)
	assert.Equal(t, restored.(profit.BuyingBack).Held.String(), "50uatom")

	again, err := profit.Marshal(restored)
	assert.NoError(t, err)
	assert.Equal(t, string(again), string(raw))

	next, _, err := profit.Handle(restored, dex.Ack{TxID: msgs.Tracked()[0].TxID, Payload: []byte(`{"result":"AQ=="}`)}, env)
	assert.NoError(t, err)
	assert.Equal(t, next.Status(env.Now, 0).Saga.Coins[0].String(), "300uusdc")

	idle, err := profit.Marshal(profit.Idle{Config: cfg, Cycle: 4})
	assert.NoError(t, err)
	back, err := profit.Unmarshal(idle)
	assert.NoError(t, err)
	assert.Equal(t, back.(profit.Idle).Cycle, 4)

	_, err = profit.Unmarshal([]byte(`{"phase":"burning","state":{}}`))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     profit.Config
		wantErr bool
	}{
		{"valid", testConfig(t), false},
		{"bad treasury", profit.Config{Treasury: "nolus1nope", Reward: "uatom"}, true},
		{"no reward", profit.Config{Treasury: testConfig(t).Treasury}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := profit.New(tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
