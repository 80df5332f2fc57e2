package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

// ChannelReady is the message both parties to a new channel send once they
// have individually observed the funding transaction reach sufficient
// depth on-chain. Unlike the preceding messages, either peer may send this
// one first; the channel only becomes usable once both have been seen.
type ChannelReady struct {
	// ChannelOutpoint is the outpoint of the channel's funding
	// transaction.
	ChannelOutpoint wire.OutPoint

	// ChannelID is the permanent id of the channel this message is
	// locking in.
	ChannelID ChannelID

	// NextPerCommitmentPoint is the per-commitment point the sender will
	// use for its next commitment transaction.
	NextPerCommitmentPoint *btcec.PublicKey
}

// NewChannelReady creates a new ChannelReady message, populating it with
// the necessary IDs and the sender's next per-commitment point.
func NewChannelReady(op wire.OutPoint, cid ChannelID,
	npcp *btcec.PublicKey) *ChannelReady {

	return &ChannelReady{
		ChannelOutpoint:        op,
		ChannelID:              cid,
		NextPerCommitmentPoint: npcp,
	}
}

// A compile time check to ensure ChannelReady implements the
// lnwire.Message interface.
var _ Message = (*ChannelReady)(nil)

// Decode deserializes the serialized ChannelReady message stored in the
// passed io.Reader into the target ChannelReady using the deserialization
// rules defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *ChannelReady) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.ChannelOutpoint,
		&c.ChannelID,
		&c.NextPerCommitmentPoint,
	)
}

// Encode serializes the target ChannelReady message into the passed
// io.Writer implementation. Serialization will observe the rules defined by
// the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *ChannelReady) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChannelOutpoint,
		c.ChannelID,
		c.NextPerCommitmentPoint,
	)
}

// MsgType returns the MessageType code which uniquely identifies this
// message as a ChannelReady on the wire.
//
// This is part of the lnwire.Message interface.
func (c *ChannelReady) MsgType() MessageType {
	return MsgChannelReady
}

// MaxPayloadLength returns the maximum allowed payload length for a
// ChannelReady message. This is calculated by summing the max length of
// all the fields within a ChannelReady message.
//
// This is part of the lnwire.Message interface.
func (c *ChannelReady) MaxPayloadLength(uint32) uint32 {
	var length uint32

	// ChannelOutpoint - 36 bytes
	length += 36

	// ChannelID - 32 bytes
	length += 32

	// NextPerCommitmentPoint - 33 bytes
	length += 33

	return length
}
