package dispatch_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/chanpropose/ctlmsg"
	"github.com/lightninglabs/chanpropose/dispatch"
	"github.com/lightninglabs/chanpropose/lnwallet"
	"github.com/lightninglabs/chanpropose/lnwire"
	"github.com/lightninglabs/chanpropose/propose"
	"github.com/lightninglabs/chanpropose/store"
)

// A compile-time check that the bbolt-backed store satisfies the
// dispatcher's checkpoint contract.
var _ dispatch.Checkpointer = (*store.BoltStore)(nil)

type noopSinks struct {
	peerMsgs []lnwire.Message
}

func (s *noopSinks) SendToPeer(msg lnwire.Message) error {
	s.peerMsgs = append(s.peerMsgs, msg)
	return nil
}

func (s *noopSinks) SendToControl(propose.ServiceID, interface{}) error {
	return nil
}

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

func testOpenRequest(t *testing.T) lnwallet.OpenRequest {
	t.Helper()

	return lnwallet.OpenRequest{
		Network:       &chaincfg.TestNet3Params,
		FundingAmount: btcutil.Amount(500_000),
		Policy:        lnwallet.DefaultPolicy(),
		LocalKeys:     randKeySet(t),
	}
}

func TestDispatcherOpenRegistersUnderTempID(t *testing.T) {
	registry := dispatch.NewRegistry()
	d := dispatch.NewDispatcher(registry, nil)
	sinks := &noopSinks{}

	fsm, err := d.Open(propose.Config{
		Sinks: propose.Sinks{Peer: sinks, Control: sinks},
	}, testOpenRequest(t))
	require.NoError(t, err)
	require.Equal(t, propose.StageProposed, fsm.Stage())

	tempID := fsm.ChannelID()
	got, ok := registry.Lookup(tempID)
	require.True(t, ok)
	require.Same(t, fsm, got)
}

func TestDispatcherDispatchUnknownChannel(t *testing.T) {
	registry := dispatch.NewRegistry()
	d := dispatch.NewDispatcher(registry, nil)

	var unknownID lnwire.ChannelID
	_, err := d.Dispatch(dispatch.Envelope{
		ChannelID: unknownID,
		Source:    propose.SourcePeer,
		Message:   &lnwire.FundingSigned{},
	})
	require.Error(t, err)
	var unknownErr *dispatch.ErrUnknownChannel
	require.ErrorAs(t, err, &unknownErr)
}

func TestDispatcherTeardownOnError(t *testing.T) {
	registry := dispatch.NewRegistry()
	d := dispatch.NewDispatcher(registry, nil)
	sinks := &noopSinks{}

	fsm, err := d.Open(propose.Config{
		Sinks: propose.Sinks{Peer: sinks, Control: sinks},
	}, testOpenRequest(t))
	require.NoError(t, err)

	tempID := fsm.ChannelID()

	// Deliver the wrong event for StageProposed; the FSM must be torn
	// down and its id must no longer resolve.
	_, err = d.Dispatch(dispatch.Envelope{
		ChannelID: tempID,
		Source:    propose.SourcePeer,
		Message:   &lnwire.FundingSigned{},
	})
	require.Error(t, err)

	_, ok := registry.Lookup(tempID)
	require.False(t, ok)
}

// TestDispatcherTimeoutTearsDownChannel checks that a synthetic timeout
// injected by the enclosing service is rejected like any other out-of-order
// event, destroying the stalled proposal.
func TestDispatcherTimeoutTearsDownChannel(t *testing.T) {
	registry := dispatch.NewRegistry()
	d := dispatch.NewDispatcher(registry, nil)
	sinks := &noopSinks{}

	fsm, err := d.Open(propose.Config{
		Sinks: propose.Sinks{Peer: sinks, Control: sinks},
	}, testOpenRequest(t))
	require.NoError(t, err)

	tempID := fsm.ChannelID()

	_, err = d.Dispatch(dispatch.Envelope{
		ChannelID: tempID,
		Source:    propose.SourceFundingBroker,
		Message:   ctlmsg.Timeout{},
	})
	require.Error(t, err)
	var unexpected *propose.UnexpectedMessage
	require.ErrorAs(t, err, &unexpected)

	_, ok := registry.Lookup(tempID)
	require.False(t, ok)
}

// TestDispatcherCheckpoints checks that a store-backed dispatcher persists
// a resumable checkpoint on open, and drops it when the channel is torn
// down.
func TestDispatcherCheckpoints(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	registry := dispatch.NewRegistry()
	d := dispatch.NewDispatcher(registry, s)
	sinks := &noopSinks{}

	fsm, err := d.Open(propose.Config{
		Sinks: propose.Sinks{Peer: sinks, Control: sinks},
	}, testOpenRequest(t))
	require.NoError(t, err)

	tempID := fsm.ChannelID()

	stage, restored, err := s.Load(tempID)
	require.NoError(t, err)
	require.Equal(t, propose.StageProposed, stage)

	restoredID, err := restored.TempChannelID()
	require.NoError(t, err)
	require.Equal(t, tempID, restoredID)

	// A fatal event destroys the proposal and its checkpoint with it.
	_, err = d.Dispatch(dispatch.Envelope{
		ChannelID: tempID,
		Source:    propose.SourcePeer,
		Message:   &lnwire.FundingSigned{},
	})
	require.Error(t, err)

	_, _, err = s.Load(tempID)
	var notFound *store.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}
