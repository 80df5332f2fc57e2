package propose

import (
	"github.com/lightninglabs/chanpropose/ctlmsg"
	"github.com/lightninglabs/chanpropose/lnwallet"
	"github.com/lightninglabs/chanpropose/lnwire"
)

// completeProposed handles the AcceptChannel reply to our open_channel: it
// folds the remote party's contribution into the channel and asks the
// funding broker to build the funding transaction.
func (m *ProposalFSM) completeProposed(ev Event) (ChannelProposalStage, error) {
	accept, ok := asPeerMessage[*lnwire.AcceptChannel](ev)
	if !ok {
		return 0, m.unexpected(ev)
	}

	ch := m.cfg.Channel
	if err := ch.UpdateFromPeer(accept); err != nil {
		return 0, err
	}

	script, err := ch.FundingScriptPubKey()
	if err != nil {
		return 0, err
	}

	err = m.cfg.Sinks.Control.SendToControl(ServiceFundingBroker, ctlmsg.ConstructFunding{
		ScriptPubkey: script,
		Amount:       ch.FundingAmount(),
	})
	if err != nil {
		return 0, &BusSendError{Underlying: err}
	}

	return StageAccepted, nil
}

// completeAccepted handles the funding broker's reply: it locates the
// channel's output within the unsigned funding transaction, builds the
// refund (initial commitment) transaction, and asks the signer for our
// signature on it.
func (m *ProposalFSM) completeAccepted(ev Event) (ChannelProposalStage, error) {
	built, ok := asControlMessage[ctlmsg.FundingConstructed](ev)
	if !ok {
		return 0, m.unexpected(ev)
	}

	ch := m.cfg.Channel
	if _, err := ch.ResolveFunding(built.FundingPSBT.UnsignedTx); err != nil {
		return 0, err
	}

	refundPkt, err := ch.RefundTx(true)
	if err != nil {
		return 0, err
	}

	err = m.cfg.Sinks.Control.SendToControl(ServiceSigner, ctlmsg.Sign{
		RefundPSBT: refundPkt,
	})
	if err != nil {
		return 0, &BusSendError{Underlying: err}
	}

	return StageSigning, nil
}

// completeSigning handles the signer's reply: it extracts our signature for
// the refund transaction, performs the identity swap from the channel's
// temporary id to its permanent one, and only once that has succeeded sends
// FundingCreated to the peer.
func (m *ProposalFSM) completeSigning(ev Event) (ChannelProposalStage, error) {
	signed, ok := asControlMessage[ctlmsg.Signed](ev)
	if !ok {
		return 0, m.unexpected(ev)
	}

	ch := m.cfg.Channel

	fundingPubKey := ch.FundingPubKey()
	sig, err := lnwallet.ExtractFundingSignature(
		signed.RefundPSBT, fundingPubKey,
	)
	if err != nil {
		return 0, err
	}

	wireSig, err := lnwire.NewSigFromSignature(sig)
	if err != nil {
		return 0, err
	}

	funding, err := ch.Funding()
	if err != nil {
		return 0, err
	}

	tempID, err := ch.TempChannelID()
	if err != nil {
		return 0, err
	}
	permID, err := ch.PermanentChannelID()
	if err != nil {
		return 0, err
	}

	// Identity swap: re-key the enclosing registry from the temporary
	// to the permanent id before anything observable changes. A failed
	// swap aborts the handshake without mutating the channel or sending
	// funding_created -- the channel would otherwise be unreachable by
	// the bus under either id.
	if err := m.cfg.Identity.Rekey(tempID, permID); err != nil {
		return 0, &IdentitySwapFailed{Underlying: err}
	}
	if err := ch.PromoteToPermanentID(); err != nil {
		return 0, &IdentitySwapFailed{Underlying: err}
	}
	ch.SetLocalCommitSig(wireSig)

	if err := m.cfg.Sinks.Control.SendToControl(
		ServiceDispatcher, ctlmsg.Hello{},
	); err != nil {
		return 0, &BusSendError{Underlying: err}
	}

	fundingCreated := &lnwire.FundingCreated{
		PendingChannelID: tempID,
		FundingPoint:     funding.Outpoint,
		CommitSig:        wireSig,
	}

	if err := m.cfg.Sinks.Peer.SendToPeer(fundingCreated); err != nil {
		return 0, &BusSendError{Underlying: err}
	}

	return StageFunding, nil
}

// completeFunding handles the peer's FundingSigned: once received, both
// initial commitment transactions are fully signed and the funding
// transaction can be broadcast.
func (m *ProposalFSM) completeFunding(ev Event) (ChannelProposalStage, error) {
	signed, ok := asPeerMessage[*lnwire.FundingSigned](ev)
	if !ok {
		return 0, m.unexpected(ev)
	}

	if err := m.cfg.Channel.UpdateFromPeer(signed); err != nil {
		return 0, err
	}

	err := m.cfg.Sinks.Control.SendToControl(
		ServiceFundingBroker, ctlmsg.PublishFunding{},
	)
	if err != nil {
		return 0, &BusSendError{Underlying: err}
	}

	return StageSigned, nil
}

// completeSigned handles the broker's confirmation that the funding
// transaction has been broadcast, and asks the chain tracker to watch it.
func (m *ProposalFSM) completeSigned(ev Event) (ChannelProposalStage, error) {
	if _, ok := asControlMessage[ctlmsg.FundingPublished](ev); !ok {
		return 0, m.unexpected(ev)
	}

	funding, err := m.cfg.Channel.Funding()
	if err != nil {
		return 0, err
	}

	err = m.cfg.Sinks.Control.SendToControl(ServiceChainTracker, ctlmsg.Track{
		Txid: funding.Outpoint.Hash,
	})
	if err != nil {
		return 0, &BusSendError{Underlying: err}
	}

	return StageFunded, nil
}

// completeFunded is reached once the funding transaction has been
// broadcast. Two independent events can arrive here, in either order: the
// chain tracker's confirmation that the funding transaction has reached
// sufficient depth, or the remote peer's own channel_ready sent the moment
// it observed the same thing. Whichever arrives first causes us to send or
// stash accordingly; the channel only becomes usable once both have been
// seen.
func (m *ProposalFSM) completeFunded(ev Event) (ChannelProposalStage, error) {
	ch := m.cfg.Channel

	switch msg := ev.Message.(type) {
	case ctlmsg.FundingMined:
		if ev.Source != SourceChainTracker {
			return 0, m.unexpected(ev)
		}
		if msg.Depth < ch.RemoteMinAcceptDepth() {
			// Not yet deep enough; nothing to do until the
			// tracker reports again.
			return StageFunded, nil
		}

		funding, err := ch.Funding()
		if err != nil {
			return 0, err
		}
		localKeys := ch.LocalKeySet()
		cid, _ := ch.ChannelID()

		readyMsg := lnwire.NewChannelReady(
			funding.Outpoint, cid, localKeys.FirstCommitmentPoint,
		)
		if err := m.cfg.Sinks.Peer.SendToPeer(readyMsg); err != nil {
			return 0, &BusSendError{Underlying: err}
		}

		alreadyHaveRemote := ch.MarkLocalChannelReadySent()
		if alreadyHaveRemote {
			return m.activate()
		}
		return StageLocked, nil

	case *lnwire.ChannelReady:
		if ev.Source != SourcePeer {
			return 0, m.unexpected(ev)
		}
		// Our own depth requirement has not been met yet; stash this
		// early arrival.
		if _, err := ch.StashOrAcceptRemoteChannelReady(msg); err != nil {
			return 0, err
		}
		return StageFunded, nil

	default:
		return 0, m.unexpected(ev)
	}
}

// completeLocked is reached once we have sent our own channel_ready and are
// waiting on the remote party's reciprocal message.
func (m *ProposalFSM) completeLocked(ev Event) (ChannelProposalStage, error) {
	msg, ok := asPeerMessage[*lnwire.ChannelReady](ev)
	if !ok {
		return 0, m.unexpected(ev)
	}

	ready, err := m.cfg.Channel.StashOrAcceptRemoteChannelReady(msg)
	if err != nil {
		return 0, err
	}
	if !ready {
		// Should not happen: by the time we are in StageLocked we
		// have already sent our own channel_ready.
		return 0, m.unexpected(ev)
	}

	return m.activate()
}

// activate notifies the rest of the system that the channel is usable and
// returns the terminal stage.
func (m *ProposalFSM) activate() (ChannelProposalStage, error) {
	err := m.cfg.Sinks.Control.SendToControl(ServiceDispatcher, ctlmsg.Activate{})
	if err != nil {
		return 0, &BusSendError{Underlying: err}
	}
	return ChannelProposalStageNone, nil
}

func (m *ProposalFSM) unexpected(ev Event) error {
	return &UnexpectedMessage{
		Stage:   m.stage,
		Source:  ev.Source,
		Message: ev.Message,
	}
}

// asPeerMessage type-asserts ev as a peer-sourced message of type T.
func asPeerMessage[T lnwire.Message](ev Event) (T, bool) {
	var zero T
	if ev.Source != SourcePeer {
		return zero, false
	}
	msg, ok := ev.Message.(T)
	return msg, ok
}

// asControlMessage type-asserts ev as a control-bus message of type T.
func asControlMessage[T any](ev Event) (T, bool) {
	msg, ok := ev.Message.(T)
	return msg, ok
}
