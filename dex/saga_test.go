package dex_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/swap/osmosis"
)

func TestSagaHappyPath(t *testing.T) {
	f := newFixture(t)
	usdc := platform.NewCoin(100, "uusdc")
	nls := platform.NewCoin(400, "unls")
	task := testTask{Name: "buy", Coins: []platform.Coin{usdc, nls}, Out: "uatom"}
	f.balances.set(f.env.Owner, platform.NewCoin(50, "uatom"))

	tr, err := dex.Start[testTask](task, nil, f.env)
	assert.NoError(t, err)
	assert.Equal(t, tr.Next.Kind(), dex.KindOpenIca)
	register := inFlight(t, tr.Messages)
	assert.Equal(t, register.Msg.TypeURL(), platform.TypeMsgRegisterIca)
	assert.Equal(t, len(tr.Messages.Alarms()), 1)

	tr = step(t, tr.Next, dex.Reply{TxID: register.TxID, Payload: icaReply(t, "channel-9")}, f.env)
	assert.Equal(t, tr.Next.Kind(), dex.KindOpenIca)
	assert.Equal(t, tr.Messages.Len(), 0)

	tr = step(t, tr.Next, dex.IcaOpened{ChannelID: "channel-9", Address: f.dexAddr}, f.env)
	assert.Equal(t, tr.Next.Kind(), dex.KindResponseDelivery)
	assert.Equal(t, tr.Next.Progress(f.env.Now, 0).Stage, dex.KindTransferOut)

	// one transfer per coin, in task order
	for _, coin := range task.Coins {
		out := inFlight(t, tr.Messages)
		transfer, ok := out.Msg.(platform.Transfer)
		assert.True(t, ok)
		assert.Equal(t, transfer.Token.Amount.String(), coin.Amount.String())
		assert.Equal(t, transfer.Token.Denom, coin.Denom)
		assert.Equal(t, transfer.Receiver, f.dexAddr)
		assert.Equal(t, transfer.SourceChannel, f.env.Connection.TransferChannel)
		assert.Equal(t, out.ForwardTo, f.env.Forward)

		tr = step(t, tr.Next, dex.Ack{TxID: out.TxID, Payload: transferAck()}, f.env)
	}
	assert.Equal(t, tr.Next.Progress(f.env.Now, 0).Stage, dex.KindSwapExactIn)

	swapTx := inFlight(t, tr.Messages)
	submitTx, ok := swapTx.Msg.(platform.SubmitTx)
	assert.True(t, ok)
	assert.Equal(t, len(submitTx.Msgs), 2)
	assert.Equal(t, submitTx.ConnectionID, f.env.Connection.ConnectionID)
	// the dex account sells the vouchers of the transferred coins
	for i, coin := range task.Coins {
		var msg osmosis.MsgSwapExactAmountIn
		assert.NoError(t, json.Unmarshal(submitTx.Msgs[i].Value, &msg))
		assert.Equal(t, msg.TokenIn.Denom, f.dexDenom(t, coin.Denom))
		assert.Equal(t, msg.Routes[len(msg.Routes)-1].TokenOutDenom, f.dexDenom(t, "uatom"))
	}

	usdcOut := f.quoted(t, usdc)
	nlsOut := f.quoted(t, nls)
	tr = step(t, tr.Next, dex.Ack{TxID: swapTx.TxID, Payload: txAck(t, usdcOut, nlsOut)}, f.env)
	assert.Equal(t, tr.Next.Progress(f.env.Now, 0).Stage, dex.KindTransferInInit)

	transferIn := inFlight(t, tr.Messages)
	inTx, ok := transferIn.Msg.(platform.SubmitTx)
	assert.True(t, ok)
	assert.Equal(t, len(inTx.Msgs), 1)
	assert.Equal(t, inTx.Msgs[0].TypeURL, platform.TypeMsgTransfer)
	var back platform.Transfer
	assert.NoError(t, json.Unmarshal(inTx.Msgs[0].Value, &back))
	assert.Equal(t, back.Receiver, f.env.Owner)
	assert.Equal(t, back.SourceChannel, f.env.Connection.DexTransferChannel)
	assert.Equal(t, back.Token.Denom, f.dexDenom(t, "uatom"))

	tr = step(t, tr.Next, dex.Ack{TxID: transferIn.TxID, Payload: txAck(t)}, f.env)
	assert.Equal(t, tr.Next.Kind(), dex.KindTransferInFinish)
	assert.Equal(t, len(tr.Messages.Alarms()), 1)

	// proceeds land on the owner account
	f.advance(f.env.Policy.TransferInPoll)
	expected := usdcOut.Add(nlsOut)
	f.balances.set(f.env.Owner, platform.Coin{Amount: expected.Add(decimal.NewFromInt(50)), Denom: "uatom"})

	tr = step(t, tr.Next, dex.TimeAlarm{}, f.env)
	assert.True(t, tr.Finished())
	assert.Nil(t, tr.Next)
	assert.Equal(t, tr.Result.Received.Denom, "uatom")
	assert.Equal(t, tr.Result.Received.Amount.String(), "1398")
	assert.Equal(t, tr.Result.Account.Address, f.dexAddr)
	assert.Equal(t, tr.Result.Task.Label(), "buy")
}

func TestSagaSkipsWhatHasNothingToSend(t *testing.T) {
	f := newFixture(t)
	task := testTask{
		Name:  "noop",
		Coins: []platform.Coin{platform.NewCoin(0, "uusdc"), platform.NewCoin(0, "unls")},
		Out:   "uatom",
	}

	tr, err := dex.Start(task, &dex.Account{Owner: f.env.Owner, Address: f.dexAddr, ConnectionID: "connection-0", ChannelID: "channel-9"}, f.env)
	assert.NoError(t, err)
	assert.True(t, tr.Finished())
	assert.True(t, tr.Result.Received.IsZero())
	assert.Equal(t, tr.Messages.Len(), 0)
}

func TestSagaPassesOutDenomThrough(t *testing.T) {
	f := newFixture(t)
	acc := f.account()
	task := testTask{
		Name:  "direct",
		Coins: []platform.Coin{platform.NewCoin(70, "uatom"), platform.NewCoin(100, "uusdc")},
		Out:   "uatom",
	}

	tr, err := dex.Start(task, &acc, f.env)
	assert.NoError(t, err)
	for range task.Coins {
		out := inFlight(t, tr.Messages)
		tr = step(t, tr.Next, dex.Ack{TxID: out.TxID, Payload: transferAck()}, f.env)
	}

	swapTx := inFlight(t, tr.Messages)
	submitTx := swapTx.Msg.(platform.SubmitTx)
	assert.Equal(t, len(submitTx.Msgs), 1)

	tr = step(t, tr.Next, dex.Ack{TxID: swapTx.TxID, Payload: txAck(t, decimal.NewFromInt(199))}, f.env)
	p := tr.Next.Progress(f.env.Now, 0)
	assert.Equal(t, p.Stage, dex.KindTransferInInit)
	assert.Equal(t, p.Coins[0].Amount.String(), "269")
}

func TestSagaRejectsSwapResponseMismatch(t *testing.T) {
	f := newFixture(t)
	acc := f.account()
	task := testTask{Name: "buy", Coins: []platform.Coin{platform.NewCoin(100, "uusdc")}, Out: "uatom"}

	tr, err := dex.Start(task, &acc, f.env)
	assert.NoError(t, err)
	out := inFlight(t, tr.Messages)
	tr = step(t, tr.Next, dex.Ack{TxID: out.TxID, Payload: transferAck()}, f.env)
	swapTx := inFlight(t, tr.Messages)

	before, err := dex.Encode(tr.Next)
	assert.NoError(t, err)

	_, err = dex.Dispatch(tr.Next, dex.Ack{TxID: swapTx.TxID, Payload: txAck(t)}, f.env)
	var payloadErr *dex.PayloadError
	assert.True(t, errors.As(err, &payloadErr))
	assert.Equal(t, payloadErr.Stage, dex.KindSwapExactIn)

	after, err := dex.Encode(tr.Next)
	assert.NoError(t, err)
	assert.Equal(t, string(after), string(before))
}

func TestSagaParksWhenResolverIsDown(t *testing.T) {
	f := newFixture(t)
	acc := f.account()
	task := testTask{Name: "buy", Coins: []platform.Coin{platform.NewCoin(100, "uusdc")}, Out: "uatom"}

	tr, err := dex.Start(task, &acc, f.env)
	assert.NoError(t, err)
	out := inFlight(t, tr.Messages)

	f.resolver.Err = errTest
	tr = step(t, tr.Next, dex.Ack{TxID: out.TxID, Payload: transferAck()}, f.env)
	assert.Equal(t, tr.Next.Kind(), dex.KindSwapExactIn)
	assert.Equal(t, len(tr.Messages.Tracked()), 0)
	alarms := tr.Messages.Alarms()
	assert.Equal(t, len(alarms), 1)
	assert.True(t, alarms[0].Equal(f.env.Now.Add(f.env.Policy.RetryDelay)))

	f.resolver.Err = nil
	f.advance(f.env.Policy.RetryDelay)
	tr = step(t, tr.Next, dex.TimeAlarm{}, f.env)
	assert.Equal(t, tr.Next.Kind(), dex.KindResponseDelivery)
	assert.Equal(t, inFlight(t, tr.Messages).Msg.TypeURL(), platform.TypeMsgSendTx)
}

func TestSagaRejectsUnknownDenoms(t *testing.T) {
	f := newFixture(t)
	acc := f.account()

	tests := []testTask{
		{Name: "unknown coin", Coins: []platform.Coin{platform.NewCoin(100, "uweird")}, Out: "uatom"},
		{Name: "unknown out", Coins: []platform.Coin{platform.NewCoin(100, "uusdc")}, Out: "uweird"},
	}
	for _, task := range tests {
		t.Run(task.Name, func(t *testing.T) {
			_, err := dex.Start(task, &acc, f.env)
			assertIs(t, err, platform.ErrUnknownDenom)
		})
	}
}
