// Package ctlmsg defines the control-bus messages exchanged between the
// channel proposal automaton and its collaborating services: the funding
// constructor, the signer, the broadcaster, and the chain tracker.
package ctlmsg

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ConstructFunding asks the funding constructor to build a funding
// transaction paying amount to scriptPubkey, optionally pinned to a
// specific fee rate.
type ConstructFunding struct {
	ScriptPubkey []byte
	Amount       btcutil.Amount
	FeeratePerKw *btcutil.Amount
}

// FundingConstructed is the funding constructor's reply to
// ConstructFunding: an unsigned PSBT for the funding transaction.
type FundingConstructed struct {
	FundingPSBT *psbt.Packet
}

// Sign asks the signer to produce a signature for the funding input of the
// given PSBT.
type Sign struct {
	RefundPSBT *psbt.Packet
}

// Signed is the signer's reply to Sign: the same PSBT, now carrying a
// partial signature for our funding key.
type Signed struct {
	RefundPSBT *psbt.Packet
}

// PublishFunding asks the broadcaster to publish the funding transaction
// now that both commitment signatures are in hand.
type PublishFunding struct{}

// FundingPublished is the broadcaster's acknowledgement that the funding
// transaction has been relayed.
type FundingPublished struct{}

// Track asks the chain tracker to watch txid for confirmations.
type Track struct {
	Txid chainhash.Hash
}

// FundingMined is delivered by the chain tracker once the funding
// transaction has reached the depth required to proceed to channel_ready.
type FundingMined struct {
	Txid  chainhash.Hash
	Depth uint32
}

// Hello announces (or re-announces) this service's identity to the
// message bus, used after the active channel id changes so routing tables
// stay current.
type Hello struct{}

// Activate tells the rest of the system that the channel has completed
// establishment and is ready for routing/payments.
type Activate struct{}

// Timeout is a synthetic event the enclosing service may inject when a
// proposal has sat in one stage for too long. No stage expects it, so the
// automaton rejects it the same way it rejects any other out-of-order
// message, which tears the stalled channel down.
type Timeout struct{}

// FundingConstructor builds funding transactions against the local wallet
// and relays them for broadcast. Only the contract is defined here; the
// concrete service lives behind the message bus.
type FundingConstructor interface {
	ConstructFunding(req ConstructFunding) error
	PublishFunding(req PublishFunding) error
}

// SignerProxy produces signatures for PSBT inputs whose keys this node
// controls.
type SignerProxy interface {
	Sign(req Sign) error
}

// ChainTracker watches the chain and reports when a watched transaction
// reaches the depth a channel requires.
type ChainTracker interface {
	Track(req Track) error
}
