package lnwallet

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/lightninglabs/chanpropose/lnwire"
)

// CommonParams are the chain- and fee-level parameters negotiated at the
// very start of the funding workflow, before either party's keys are known.
// They apply symmetrically to both commitment transactions.
type CommonParams struct {
	// ChainHash identifies the blockchain the channel will live on.
	ChainHash [32]byte

	// FeePerKw is the fee rate, in satoshis per kilo-weight, the funder
	// will pay for the commitment transaction.
	FeePerKw btcutil.Amount

	// AnnounceChannel is true if the initiator would like the channel
	// announced to the rest of the network once it is locked in.
	AnnounceChannel bool
}

// Policy captures the funder's minimum requirements of a prospective
// channel, used both to populate OpenChannel and to validate the
// counterparty's AcceptChannel response against what was proposed.
type Policy struct {
	// DustLimit is the funder's dust limit for its own commitment
	// transaction.
	DustLimit btcutil.Amount

	// MaxValueInFlight caps the total value of pending HTLCs.
	MaxValueInFlight lnwire.MilliSatoshi

	// ChannelReserve is the minimum balance the remote party must
	// maintain.
	ChannelReserve btcutil.Amount

	// HtlcMinimum is the smallest HTLC that will be forwarded.
	HtlcMinimum lnwire.MilliSatoshi

	// CsvDelay is the number of blocks the remote party must wait before
	// spending its own commitment outputs.
	CsvDelay uint16

	// MaxAcceptedHTLCs bounds the number of concurrent HTLCs accepted
	// from the remote party.
	MaxAcceptedHTLCs uint16

	// MinAcceptDepth is the number of confirmations required of the
	// funding transaction before the channel is usable. Only meaningful
	// for the responder's policy; the funder copies it out of the
	// received AcceptChannel.
	MinAcceptDepth uint32
}

// DefaultPolicy returns a conservative starting point for a funder's
// channel policy, in the spirit of the minimums historically advertised by
// this codebase's ChannelContribution defaults.
func DefaultPolicy() Policy {
	return Policy{
		DustLimit:        btcutil.Amount(573),
		MaxValueInFlight: lnwire.MilliSatoshi(0),
		ChannelReserve:   btcutil.Amount(0),
		HtlcMinimum:      lnwire.MilliSatoshi(1000),
		CsvDelay:         144,
		MaxAcceptedHTLCs: 483,
		MinAcceptDepth:   3,
	}
}
