package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// FundingCreated is the message the funder sends once it has built the
// funding transaction and signed the responder's initial commitment
// transaction. It carries that signature and the funding outpoint, which is
// enough for the responder to build and sign its own copy of the funder's
// initial commitment transaction.
type FundingCreated struct {
	// PendingChannelID echoes the temporary channel id from OpenChannel.
	PendingChannelID [32]byte

	// FundingPoint is the outpoint of the funding transaction's 2-of-2
	// output, from which the permanent channel id is derived. The funder
	// retires the temporary id before sending this message; from then on
	// only the permanent id addresses the channel.
	FundingPoint wire.OutPoint

	// CommitSig is the funder's signature for the responder's version
	// of the initial commitment transaction.
	CommitSig Sig
}

// A compile time check to ensure FundingCreated implements the
// lnwire.Message interface.
var _ Message = (*FundingCreated)(nil)

// Decode deserializes the serialized FundingCreated message stored in the
// passed io.Reader into the target FundingCreated using the deserialization
// rules defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (f *FundingCreated) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&f.PendingChannelID,
		&f.FundingPoint.Hash,
		&f.FundingPoint.Index,
		&f.CommitSig,
	)
}

// Encode serializes the target FundingCreated message into the passed
// io.Writer implementation. Serialization will observe the rules defined by
// the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (f *FundingCreated) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		f.PendingChannelID,
		f.FundingPoint.Hash,
		f.FundingPoint.Index,
		f.CommitSig,
	)
}

// MsgType returns the MessageType code which uniquely identifies this
// message as a FundingCreated on the wire.
//
// This is part of the lnwire.Message interface.
func (f *FundingCreated) MsgType() MessageType {
	return MsgFundingCreated
}

// MaxPayloadLength returns the maximum allowed payload length for a
// FundingCreated message.
//
// This is part of the lnwire.Message interface.
func (f *FundingCreated) MaxPayloadLength(uint32) uint32 {
	// 32 (pending chan id) + 32 (txid) + 4 (index) + 64 (sig)
	return 32 + 32 + 4 + 64
}
