package lnwire

import "io"

// FundingSigned is the message the responder sends back once it has
// verified and countersigned the funder's initial commitment transaction.
// Upon receipt, the funder can broadcast the funding transaction, since
// both initial commitment transactions are now fully signed.
type FundingSigned struct {
	// ChanID is the permanent channel id, derived from the funding
	// outpoint carried in the preceding FundingCreated message.
	ChanID ChannelID

	// CommitSig is the responder's signature for the funder's version of
	// the initial commitment transaction.
	CommitSig Sig
}

// A compile time check to ensure FundingSigned implements the
// lnwire.Message interface.
var _ Message = (*FundingSigned)(nil)

// Decode deserializes the serialized FundingSigned message stored in the
// passed io.Reader into the target FundingSigned using the deserialization
// rules defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (f *FundingSigned) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&f.ChanID,
		&f.CommitSig,
	)
}

// Encode serializes the target FundingSigned message into the passed
// io.Writer implementation. Serialization will observe the rules defined by
// the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (f *FundingSigned) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		f.ChanID,
		f.CommitSig,
	)
}

// MsgType returns the MessageType code which uniquely identifies this
// message as a FundingSigned on the wire.
//
// This is part of the lnwire.Message interface.
func (f *FundingSigned) MsgType() MessageType {
	return MsgFundingSigned
}

// MaxPayloadLength returns the maximum allowed payload length for a
// FundingSigned message.
//
// This is part of the lnwire.Message interface.
func (f *FundingSigned) MaxPayloadLength(uint32) uint32 {
	// 32 (chan id) + 64 (sig)
	return 32 + 64
}
