package propose

// Source identifies where an Event originated, so a transition can tell a
// genuinely unexpected message apart from one that merely arrived out of
// order from the right collaborator.
type Source uint8

const (
	// SourcePeer means the event carries an lnwire.Message received
	// from the remote counterparty.
	SourcePeer Source = iota

	// SourceFundingBroker means the event carries a reply from the
	// funding construction/broadcast collaborator.
	SourceFundingBroker

	// SourceSigner means the event carries a reply from the signer.
	SourceSigner

	// SourceChainTracker means the event carries a reply from the chain
	// tracker.
	SourceChainTracker
)

// Event is a single inbound item delivered to the FSM: either a wire
// message from the peer, or a reply from one of the control-bus
// collaborators in package ctlmsg.
type Event struct {
	Source  Source
	Message interface{}
}
