package propose

import "github.com/lightninglabs/chanpropose/lnwire"

// ServiceID names a control-bus collaborator a message can be addressed
// to.
type ServiceID uint8

const (
	// ServiceFundingBroker builds funding transactions and relays them
	// for broadcast.
	ServiceFundingBroker ServiceID = iota

	// ServiceSigner produces signatures for PSBT inputs this node owns.
	ServiceSigner

	// ServiceChainTracker watches the chain for the funding
	// transaction's confirmation depth.
	ServiceChainTracker

	// ServiceDispatcher addresses the control-bus messages a proposal
	// sends about its own routing identity: Hello (re-registration after
	// an identity swap) and Activate (handshake complete).
	ServiceDispatcher
)

// PeerSender delivers a wire message to the channel's remote counterparty.
// It is a collaborator stub: no concrete network transport is implemented
// here, only the contract the FSM depends on.
type PeerSender interface {
	SendToPeer(msg lnwire.Message) error
}

// ControlSender delivers a message to one of the control-bus
// collaborators. Like PeerSender, no concrete transport is implemented
// here.
type ControlSender interface {
	SendToControl(dest ServiceID, msg interface{}) error
}

// Sinks bundles the two outbound channels a transition may need.
type Sinks struct {
	Peer    PeerSender
	Control ControlSender
}

// IdentityRekeyer re-registers a channel's routing entry under its
// permanent id once the funding outpoint is known, atomically replacing
// the temporary-id entry (modeling this as separate remove+insert calls
// would allow a lost event window). The enclosing dispatcher's registry is
// the concrete implementation; the FSM only depends on this narrow
// contract.
type IdentityRekeyer interface {
	Rekey(oldID, newID lnwire.ChannelID) error
}
