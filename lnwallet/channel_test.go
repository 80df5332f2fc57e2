package lnwallet_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/chanpropose/lnwallet"
	"github.com/lightninglabs/chanpropose/lnwire"
)

func randKeySet(t *testing.T) lnwallet.KeySet {
	t.Helper()

	mk := func() *btcec.PublicKey {
		priv, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		return priv.PubKey()
	}

	return lnwallet.KeySet{
		FundingKey:              mk(),
		RevocationBasePoint:     mk(),
		PaymentBasePoint:        mk(),
		DelayedPaymentBasePoint: mk(),
		HtlcBasePoint:           mk(),
		FirstCommitmentPoint:    mk(),
	}
}

func newTestChannel(t *testing.T) *lnwallet.Channel {
	t.Helper()

	req := lnwallet.OpenRequest{
		Network:       &chaincfg.TestNet3Params,
		FundingAmount: btcutil.Amount(1_000_000),
		Common: lnwallet.CommonParams{
			FeePerKw: btcutil.Amount(253),
		},
		Policy:    lnwallet.DefaultPolicy(),
		LocalKeys: randKeySet(t),
	}

	ch, err := lnwallet.NewChannel(req)
	require.NoError(t, err)

	return ch
}

func TestComposeOpenChannel(t *testing.T) {
	ch := newTestChannel(t)

	msg, err := ch.ComposeOpenChannel()
	require.NoError(t, err)

	tempID, err := ch.TempChannelID()
	require.NoError(t, err)
	require.Equal(t, tempID, lnwire.ChannelID(msg.PendingChannelID))
	require.Equal(t, btcutil.Amount(1_000_000), msg.FundingAmount)
}

func TestUpdateFromPeerAcceptChannel(t *testing.T) {
	ch := newTestChannel(t)
	remoteKeys := randKeySet(t)

	accept := &lnwire.AcceptChannel{
		DustLimit:             btcutil.Amount(500),
		ChannelReserve:        btcutil.Amount(10000),
		MinAcceptDepth:        6,
		MaxAcceptedHTLCs:      30,
		FundingKey:            remoteKeys.FundingKey,
		RevocationPoint:       remoteKeys.RevocationBasePoint,
		PaymentPoint:          remoteKeys.PaymentBasePoint,
		DelayedPaymentPoint:   remoteKeys.DelayedPaymentBasePoint,
		HtlcPoint:             remoteKeys.HtlcBasePoint,
		FirstCommitmentPoint:  remoteKeys.FirstCommitmentPoint,
	}

	err := ch.UpdateFromPeer(accept)
	require.NoError(t, err)

	got, err := ch.RemoteKeySet()
	require.NoError(t, err)
	require.Equal(t, remoteKeys.FundingKey, got.FundingKey)
	require.Equal(t, uint32(6), ch.RemoteMinAcceptDepth())

	script, err := ch.FundingScriptPubKey()
	require.NoError(t, err)
	require.NotEmpty(t, script)
}

func TestUpdateFromPeerRejectsLowReserve(t *testing.T) {
	ch := newTestChannel(t)
	remoteKeys := randKeySet(t)

	accept := &lnwire.AcceptChannel{
		DustLimit:            btcutil.Amount(5000),
		ChannelReserve:       btcutil.Amount(1),
		MaxAcceptedHTLCs:     30,
		FundingKey:           remoteKeys.FundingKey,
		RevocationPoint:      remoteKeys.RevocationBasePoint,
		PaymentPoint:         remoteKeys.PaymentBasePoint,
		DelayedPaymentPoint:  remoteKeys.DelayedPaymentBasePoint,
		HtlcPoint:            remoteKeys.HtlcBasePoint,
		FirstCommitmentPoint: remoteKeys.FirstCommitmentPoint,
	}

	err := ch.UpdateFromPeer(accept)
	require.Error(t, err)

	var protoErr *lnwallet.ChannelProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, "ChannelReserve", protoErr.Field)
}

func TestSetFundingDerivesChannelID(t *testing.T) {
	ch := newTestChannel(t)

	outpoint := wire.OutPoint{Index: 1}
	ch.SetFunding(lnwallet.Funding{
		Outpoint: outpoint,
		Amount:   btcutil.Amount(1_000_000),
	})

	// The permanent id is derivable as soon as the funding outpoint is
	// known, but it does not become the channel's active id until the
	// identity swap is promoted.
	permID, err := ch.PermanentChannelID()
	require.NoError(t, err)
	require.Equal(t, lnwire.NewChannelID(outpoint.Hash, 1), permID)

	id, permanent := ch.ChannelID()
	require.False(t, permanent)
	require.NotEqual(t, permID, id)

	require.NoError(t, ch.PromoteToPermanentID())

	id, permanent = ch.ChannelID()
	require.True(t, permanent)
	require.Equal(t, permID, id)

	_, err = ch.TempChannelID()
	require.ErrorIs(t, err, lnwallet.ErrTempChannelIDRetired)
}

func TestChannelReadyStashing(t *testing.T) {
	ch := newTestChannel(t)

	ready, err := ch.StashOrAcceptRemoteChannelReady(&lnwire.ChannelReady{})
	require.NoError(t, err)
	require.False(t, ready)

	isLockable := ch.MarkLocalChannelReadySent()
	require.True(t, isLockable)

	_, err = ch.StashOrAcceptRemoteChannelReady(&lnwire.ChannelReady{})
	require.Error(t, err)
}
