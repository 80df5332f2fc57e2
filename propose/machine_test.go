package propose

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/chanpropose/ctlmsg"
	"github.com/lightninglabs/chanpropose/lnwallet"
	"github.com/lightninglabs/chanpropose/lnwire"
	"github.com/stretchr/testify/require"
)

// recordingSinks captures everything sent to the peer and the control bus,
// so tests can assert on what a transition emitted.
type recordingSinks struct {
	peerMsgs    []lnwire.Message
	controlMsgs []controlSend
}

type controlSend struct {
	Dest ServiceID
	Msg  interface{}
}

func (s *recordingSinks) SendToPeer(msg lnwire.Message) error {
	s.peerMsgs = append(s.peerMsgs, msg)
	return nil
}

func (s *recordingSinks) SendToControl(dest ServiceID, msg interface{}) error {
	s.controlMsgs = append(s.controlMsgs, controlSend{Dest: dest, Msg: msg})
	return nil
}

// fakeRekeyer stands in for the dispatcher's registry during tests,
// recording every swap it is asked to perform and optionally failing on
// demand to exercise the IdentitySwapFailed path.
type fakeRekeyer struct {
	fail    bool
	rekeyed []lnwire.ChannelID
}

func (r *fakeRekeyer) Rekey(oldID, newID lnwire.ChannelID) error {
	if r.fail {
		return fmt.Errorf("registry refused to re-key")
	}
	r.rekeyed = append(r.rekeyed, newID)
	return nil
}

func randKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func randKeySetForTest(t *testing.T) lnwallet.KeySet {
	t.Helper()
	return lnwallet.KeySet{
		FundingKey:              randKey(t),
		RevocationBasePoint:     randKey(t),
		PaymentBasePoint:        randKey(t),
		DelayedPaymentBasePoint: randKey(t),
		HtlcBasePoint:           randKey(t),
		FirstCommitmentPoint:    randKey(t),
	}
}

func newTestFSM(t *testing.T) (*ProposalFSM, *recordingSinks, *fakeRekeyer) {
	t.Helper()

	sinks := &recordingSinks{}
	rekeyer := &fakeRekeyer{}

	req := lnwallet.OpenRequest{
		Network:       &chaincfg.TestNet3Params,
		FundingAmount: btcutil.Amount(1_000_000),
		Common: lnwallet.CommonParams{
			FeePerKw:        253,
			AnnounceChannel: false,
		},
		Policy:    lnwallet.DefaultPolicy(),
		LocalKeys: randKeySetForTest(t),
	}

	m, err := Initiate(Config{
		Sinks:    Sinks{Peer: sinks, Control: sinks},
		Identity: rekeyer,
	}, req)
	require.NoError(t, err)
	require.Equal(t, StageProposed, m.Stage())
	require.Len(t, sinks.peerMsgs, 1)
	require.IsType(t, &lnwire.OpenChannel{}, sinks.peerMsgs[0])

	return m, sinks, rekeyer
}

func acceptFor(open *lnwire.OpenChannel, remoteKeys lnwallet.KeySet) *lnwire.AcceptChannel {
	return &lnwire.AcceptChannel{
		PendingChannelID:     open.PendingChannelID,
		DustLimit:            open.DustLimit,
		MaxValueInFlight:     open.MaxValueInFlight,
		ChannelReserve:       open.DustLimit + 1,
		MinAcceptDepth:       3,
		HtlcMinimum:          open.HtlcMinimum,
		CsvDelay:             open.CsvDelay,
		MaxAcceptedHTLCs:     1,
		FundingKey:           remoteKeys.FundingKey,
		RevocationPoint:      remoteKeys.RevocationBasePoint,
		PaymentPoint:         remoteKeys.PaymentBasePoint,
		DelayedPaymentPoint:  remoteKeys.DelayedPaymentBasePoint,
		HtlcPoint:            remoteKeys.HtlcBasePoint,
		FirstCommitmentPoint: remoteKeys.FirstCommitmentPoint,
	}
}

// placeholderSig produces a syntactically valid signature to stand in for a
// real one: ExtractFundingSignature only DER-parses the bytes, it does not
// verify them against the transaction, so any well-formed signature will do
// for exercising the FSM's transitions.
func placeholderSig(t *testing.T) *ecdsa.Signature {
	t.Helper()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return ecdsa.Sign(priv, []byte("deterministic-test-digest-000000"))
}

// driveToFunded advances m through every stage up to, and including,
// StageFunded.
func driveToFunded(t *testing.T, m *ProposalFSM, sinks *recordingSinks, rekeyer *fakeRekeyer) {
	t.Helper()

	openMsg := sinks.peerMsgs[0].(*lnwire.OpenChannel)
	remoteKeys := randKeySetForTest(t)

	stage, err := m.Next(Event{
		Source:  SourcePeer,
		Message: acceptFor(openMsg, remoteKeys),
	})
	require.NoError(t, err)
	require.Equal(t, StageAccepted, stage)
	require.Len(t, sinks.controlMsgs, 1)
	construct := sinks.controlMsgs[0].Msg.(ctlmsg.ConstructFunding)

	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxOut(wire.NewTxOut(int64(construct.Amount), construct.ScriptPubkey))
	fundingPkt, err := psbt.NewFromUnsignedTx(fundingTx)
	require.NoError(t, err)

	stage, err = m.Next(Event{
		Source:  SourceFundingBroker,
		Message: ctlmsg.FundingConstructed{FundingPSBT: fundingPkt},
	})
	require.NoError(t, err)
	require.Equal(t, StageSigning, stage)
	require.Len(t, sinks.controlMsgs, 2)
	signReq := sinks.controlMsgs[1].Msg.(ctlmsg.Sign)

	refundPkt := signReq.RefundPSBT
	refundPkt.Inputs[0].PartialSigs = append(refundPkt.Inputs[0].PartialSigs,
		&psbt.PartialSig{
			PubKey:    m.Channel().FundingPubKey().SerializeCompressed(),
			Signature: append(placeholderSig(t).Serialize(), byte(0x01)),
		},
	)

	permBeforeSwap, err := m.Channel().PermanentChannelID()
	require.NoError(t, err)

	stage, err = m.Next(Event{
		Source:  SourceSigner,
		Message: ctlmsg.Signed{RefundPSBT: refundPkt},
	})
	require.NoError(t, err)
	require.Equal(t, StageFunding, stage)

	// The identity swap must have happened: the registry was re-keyed to
	// the permanent id, the channel's active id is now permanent, and the
	// temporary id is retired.
	require.Equal(t, []lnwire.ChannelID{permBeforeSwap}, rekeyer.rekeyed)
	activeID, isPermanent := m.Channel().ChannelID()
	require.True(t, isPermanent)
	require.Equal(t, permBeforeSwap, activeID)
	_, err = m.Channel().TempChannelID()
	require.ErrorIs(t, err, lnwallet.ErrTempChannelIDRetired)

	// Hello is sent to re-register before funding_created goes out.
	require.Len(t, sinks.controlMsgs, 3)
	require.IsType(t, ctlmsg.Hello{}, sinks.controlMsgs[2].Msg)
	require.Equal(t, ServiceDispatcher, sinks.controlMsgs[2].Dest)

	// The txid carried in funding_created must be the txid of the PSBT the
	// funding broker constructed, preserved through signing.
	require.Len(t, sinks.peerMsgs, 2)
	fundingCreated := sinks.peerMsgs[1].(*lnwire.FundingCreated)
	require.Equal(t, fundingTx.TxHash(), fundingCreated.FundingPoint.Hash)

	remoteCommitSig, err := lnwire.NewSigFromSignature(placeholderSig(t))
	require.NoError(t, err)

	stage, err = m.Next(Event{
		Source: SourcePeer,
		Message: &lnwire.FundingSigned{
			ChanID:    activeID,
			CommitSig: remoteCommitSig,
		},
	})
	require.NoError(t, err)
	require.Equal(t, StageSigned, stage)
	require.Len(t, sinks.controlMsgs, 4)
	require.IsType(t, ctlmsg.PublishFunding{}, sinks.controlMsgs[3].Msg)

	stage, err = m.Next(Event{
		Source:  SourceFundingBroker,
		Message: ctlmsg.FundingPublished{},
	})
	require.NoError(t, err)
	require.Equal(t, StageFunded, stage)
	require.Len(t, sinks.controlMsgs, 5)
	require.IsType(t, ctlmsg.Track{}, sinks.controlMsgs[4].Msg)
}

// lastControl returns the most recent control-bus message of type T the
// sinks recorded.
func lastControl[T any](t *testing.T, sinks *recordingSinks) T {
	t.Helper()

	for i := len(sinks.controlMsgs) - 1; i >= 0; i-- {
		if msg, ok := sinks.controlMsgs[i].Msg.(T); ok {
			return msg
		}
	}

	var zero T
	t.Fatalf("no control message of type %T was sent", zero)
	return zero
}

// advanceOnce feeds m the expected happy-path event for its current stage
// and returns the stage reached.
func advanceOnce(t *testing.T, m *ProposalFSM, sinks *recordingSinks) ChannelProposalStage {
	t.Helper()

	var ev Event
	switch m.Stage() {
	case StageProposed:
		openMsg := sinks.peerMsgs[0].(*lnwire.OpenChannel)
		ev = Event{
			Source:  SourcePeer,
			Message: acceptFor(openMsg, randKeySetForTest(t)),
		}

	case StageAccepted:
		construct := lastControl[ctlmsg.ConstructFunding](t, sinks)
		fundingTx := wire.NewMsgTx(2)
		fundingTx.AddTxOut(wire.NewTxOut(
			int64(construct.Amount), construct.ScriptPubkey,
		))
		pkt, err := psbt.NewFromUnsignedTx(fundingTx)
		require.NoError(t, err)
		ev = Event{
			Source:  SourceFundingBroker,
			Message: ctlmsg.FundingConstructed{FundingPSBT: pkt},
		}

	case StageSigning:
		pkt := lastControl[ctlmsg.Sign](t, sinks).RefundPSBT
		pkt.Inputs[0].PartialSigs = append(pkt.Inputs[0].PartialSigs,
			&psbt.PartialSig{
				PubKey:    m.Channel().FundingPubKey().SerializeCompressed(),
				Signature: append(placeholderSig(t).Serialize(), byte(0x01)),
			},
		)
		ev = Event{
			Source:  SourceSigner,
			Message: ctlmsg.Signed{RefundPSBT: pkt},
		}

	case StageFunding:
		cid, _ := m.Channel().ChannelID()
		sig, err := lnwire.NewSigFromSignature(placeholderSig(t))
		require.NoError(t, err)
		ev = Event{
			Source:  SourcePeer,
			Message: &lnwire.FundingSigned{ChanID: cid, CommitSig: sig},
		}

	case StageSigned:
		ev = Event{
			Source:  SourceFundingBroker,
			Message: ctlmsg.FundingPublished{},
		}

	case StageFunded:
		ev = Event{
			Source:  SourceChainTracker,
			Message: ctlmsg.FundingMined{Depth: 3},
		}

	case StageLocked:
		funding, err := m.Channel().Funding()
		require.NoError(t, err)
		cid, _ := m.Channel().ChannelID()
		ev = Event{
			Source:  SourcePeer,
			Message: lnwire.NewChannelReady(funding.Outpoint, cid, randKey(t)),
		}

	default:
		t.Fatalf("cannot advance from stage %v", m.Stage())
	}

	stage, err := m.Next(ev)
	require.NoError(t, err)
	return stage
}

func TestProposalFSMHappyPathToFunded(t *testing.T) {
	m, sinks, rekeyer := newTestFSM(t)
	driveToFunded(t, m, sinks, rekeyer)
	require.Equal(t, StageFunded, m.Stage())
}

// TestProposalFSMLocalReadyFirst exercises the ordering where our own
// channel_ready is sent before the remote party's arrives.
func TestProposalFSMLocalReadyFirst(t *testing.T) {
	m, sinks, rekeyer := newTestFSM(t)
	driveToFunded(t, m, sinks, rekeyer)

	stage, err := m.Next(Event{
		Source:  SourceChainTracker,
		Message: ctlmsg.FundingMined{Depth: 3},
	})
	require.NoError(t, err)
	require.Equal(t, StageLocked, stage)

	funding, err := m.Channel().Funding()
	require.NoError(t, err)
	cid, _ := m.Channel().ChannelID()

	remoteReady := lnwire.NewChannelReady(funding.Outpoint, cid, randKey(t))

	stage, err = m.Next(Event{Source: SourcePeer, Message: remoteReady})
	require.NoError(t, err)
	require.Equal(t, ChannelProposalStageNone, stage)
}

// TestProposalFSMRemoteReadyFirst exercises the ordering where the remote
// party's channel_ready arrives before we have reached our own depth
// requirement.
func TestProposalFSMRemoteReadyFirst(t *testing.T) {
	m, sinks, rekeyer := newTestFSM(t)
	driveToFunded(t, m, sinks, rekeyer)

	funding, err := m.Channel().Funding()
	require.NoError(t, err)
	cid, _ := m.Channel().ChannelID()

	remoteReady := lnwire.NewChannelReady(funding.Outpoint, cid, randKey(t))

	stage, err := m.Next(Event{Source: SourcePeer, Message: remoteReady})
	require.NoError(t, err)
	require.Equal(t, StageFunded, stage)

	stage, err = m.Next(Event{
		Source:  SourceChainTracker,
		Message: ctlmsg.FundingMined{Depth: 3},
	})
	require.NoError(t, err)
	require.Equal(t, ChannelProposalStageNone, stage)
}

// TestProposalFSMPeerMessageSequence checks that a full happy-path run
// emits exactly open_channel, funding_created, channel_ready to the peer,
// in that order, and nothing else.
func TestProposalFSMPeerMessageSequence(t *testing.T) {
	m, sinks, _ := newTestFSM(t)

	for !advanceOnce(t, m, sinks).IsTerminal() {
	}

	require.Len(t, sinks.peerMsgs, 3)
	require.IsType(t, &lnwire.OpenChannel{}, sinks.peerMsgs[0])
	require.IsType(t, &lnwire.FundingCreated{}, sinks.peerMsgs[1])
	require.IsType(t, &lnwire.ChannelReady{}, sinks.peerMsgs[2])
}

// TestProposalFSMUnexpectedEventPerStage drives a fresh FSM to every
// non-terminal stage in turn and delivers an event no stage expects,
// checking that each stage rejects it, names itself in the error, and is
// left unchanged by the failed call.
func TestProposalFSMUnexpectedEventPerStage(t *testing.T) {
	stages := []ChannelProposalStage{
		StageProposed, StageAccepted, StageSigning, StageFunding,
		StageSigned, StageFunded, StageLocked,
	}

	for _, target := range stages {
		target := target

		t.Run(target.String(), func(t *testing.T) {
			m, sinks, _ := newTestFSM(t)
			for m.Stage() != target {
				advanceOnce(t, m, sinks)
			}

			_, err := m.Next(Event{
				Source:  SourceFundingBroker,
				Message: ctlmsg.Timeout{},
			})
			require.Error(t, err)

			var unexpected *UnexpectedMessage
			require.ErrorAs(t, err, &unexpected)
			require.Equal(t, target, unexpected.Stage)
			require.Equal(t, target, m.Stage())
		})
	}
}

func TestProposalFSMRejectsUnexpectedMessage(t *testing.T) {
	m, _, _ := newTestFSM(t)

	_, err := m.Next(Event{
		Source:  SourcePeer,
		Message: &lnwire.FundingSigned{},
	})
	require.Error(t, err)
	var unexpected *UnexpectedMessage
	require.ErrorAs(t, err, &unexpected)
	require.Equal(t, StageProposed, unexpected.Stage)
}

func TestProposalFSMTerminalRejectsFurtherEvents(t *testing.T) {
	m, sinks, rekeyer := newTestFSM(t)
	driveToFunded(t, m, sinks, rekeyer)

	_, err := m.Next(Event{
		Source:  SourceChainTracker,
		Message: ctlmsg.FundingMined{Depth: 3},
	})
	require.NoError(t, err)

	funding, err := m.Channel().Funding()
	require.NoError(t, err)
	cid, _ := m.Channel().ChannelID()
	remoteReady := lnwire.NewChannelReady(funding.Outpoint, cid, randKey(t))

	stage, err := m.Next(Event{Source: SourcePeer, Message: remoteReady})
	require.NoError(t, err)
	require.Equal(t, ChannelProposalStageNone, stage)

	_, err = m.Next(Event{Source: SourcePeer, Message: remoteReady})
	require.Error(t, err)
}

// driveToSigning advances m to StageSigning and returns the Sign request
// the signer collaborator was handed, so a test can mutate its partial
// signature before feeding it back.
func driveToSigning(t *testing.T, m *ProposalFSM, sinks *recordingSinks) *psbt.Packet {
	t.Helper()

	openMsg := sinks.peerMsgs[0].(*lnwire.OpenChannel)
	remoteKeys := randKeySetForTest(t)

	stage, err := m.Next(Event{
		Source:  SourcePeer,
		Message: acceptFor(openMsg, remoteKeys),
	})
	require.NoError(t, err)
	require.Equal(t, StageAccepted, stage)
	construct := sinks.controlMsgs[0].Msg.(ctlmsg.ConstructFunding)

	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxOut(wire.NewTxOut(int64(construct.Amount), construct.ScriptPubkey))
	fundingPkt, err := psbt.NewFromUnsignedTx(fundingTx)
	require.NoError(t, err)

	stage, err = m.Next(Event{
		Source:  SourceFundingBroker,
		Message: ctlmsg.FundingConstructed{FundingPSBT: fundingPkt},
	})
	require.NoError(t, err)
	require.Equal(t, StageSigning, stage)

	signReq := sinks.controlMsgs[1].Msg.(ctlmsg.Sign)
	return signReq.RefundPSBT
}

// TestProposalFSMSignerReturnedUnsignedPSBT checks that the signer's reply
// having no partial signature for our funding key fails the transition.
func TestProposalFSMSignerReturnedUnsignedPSBT(t *testing.T) {
	m, sinks, _ := newTestFSM(t)
	refundPkt := driveToSigning(t, m, sinks)

	preStage := m.Stage()
	_, err := m.Next(Event{
		Source:  SourceSigner,
		Message: ctlmsg.Signed{RefundPSBT: refundPkt},
	})
	require.Error(t, err)
	var unsigned *lnwallet.FundingPsbtUnsigned
	require.ErrorAs(t, err, &unsigned)
	require.Equal(t, preStage, m.Stage())
}

// TestProposalFSMMalformedSignature checks that a partial signature for our
// key whose bytes are not a valid DER signature fails the transition.
func TestProposalFSMMalformedSignature(t *testing.T) {
	m, sinks, _ := newTestFSM(t)
	refundPkt := driveToSigning(t, m, sinks)

	refundPkt.Inputs[0].PartialSigs = append(refundPkt.Inputs[0].PartialSigs,
		&psbt.PartialSig{
			PubKey:    m.Channel().FundingPubKey().SerializeCompressed(),
			Signature: []byte{0xde, 0xad},
		},
	)

	preStage := m.Stage()
	_, err := m.Next(Event{
		Source:  SourceSigner,
		Message: ctlmsg.Signed{RefundPSBT: refundPkt},
	})
	require.Error(t, err)
	var invalid *lnwallet.InvalidSignature
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, preStage, m.Stage())
}

// TestProposalFSMIdentitySwapFailure checks that when the registry refuses
// to re-key the channel from its temporary to its permanent id, the
// handshake aborts without sending funding_created or promoting the
// channel's active identity.
func TestProposalFSMIdentitySwapFailure(t *testing.T) {
	m, sinks, rekeyer := newTestFSM(t)
	refundPkt := driveToSigning(t, m, sinks)

	refundPkt.Inputs[0].PartialSigs = append(refundPkt.Inputs[0].PartialSigs,
		&psbt.PartialSig{
			PubKey:    m.Channel().FundingPubKey().SerializeCompressed(),
			Signature: append(placeholderSig(t).Serialize(), byte(0x01)),
		},
	)

	rekeyer.fail = true
	preStage := m.Stage()
	prePeerMsgCount := len(sinks.peerMsgs)

	_, err := m.Next(Event{
		Source:  SourceSigner,
		Message: ctlmsg.Signed{RefundPSBT: refundPkt},
	})
	require.Error(t, err)
	var swapErr *IdentitySwapFailed
	require.ErrorAs(t, err, &swapErr)
	require.Equal(t, preStage, m.Stage())

	// No funding_created should have been sent, and the channel's active
	// id must still be the temporary one.
	require.Len(t, sinks.peerMsgs, prePeerMsgCount)
	_, isPermanent := m.Channel().ChannelID()
	require.False(t, isPermanent)
	_, err = m.Channel().TempChannelID()
	require.NoError(t, err)
}
