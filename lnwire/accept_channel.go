package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

// AcceptChannel is the message the responder sends back to the funder once
// it has decided to go ahead with the channel proposed in an OpenChannel
// message. Once the funder receives it, it has everything it needs to build
// the funding transaction and both initial commitment transactions.
type AcceptChannel struct {
	// PendingChannelID echoes the funder's temporary channel id.
	PendingChannelID [32]byte

	// DustLimit is the responder's dust limit for its own commitment
	// transaction.
	DustLimit btcutil.Amount

	// MaxValueInFlight caps the total value of pending HTLCs the
	// responder will accept at any one time.
	MaxValueInFlight MilliSatoshi

	// ChannelReserve is the minimum balance the funder must maintain.
	ChannelReserve btcutil.Amount

	// MinAcceptDepth is the number of confirmations the responder
	// requires the funding transaction to reach before considering the
	// channel usable.
	MinAcceptDepth uint32

	// HtlcMinimum is the smallest HTLC the responder will forward.
	HtlcMinimum MilliSatoshi

	// CsvDelay is the number of blocks the responder requires the funder
	// to wait before spending its own commitment outputs.
	CsvDelay uint16

	// MaxAcceptedHTLCs bounds the number of concurrent HTLCs the
	// responder will accept from the funder.
	MaxAcceptedHTLCs uint16

	// FundingKey is the responder's public key for the 2-of-2 funding
	// output.
	FundingKey *btcec.PublicKey

	// RevocationPoint is the base point the funder uses to derive the
	// responder's revocation key for each commitment state.
	RevocationPoint *btcec.PublicKey

	// PaymentPoint is the base point used to derive the key the
	// responder is paid to directly in the funder's commitment
	// transaction.
	PaymentPoint *btcec.PublicKey

	// DelayedPaymentPoint is the base point used to derive the
	// responder's delayed payment key in its own commitment transaction.
	DelayedPaymentPoint *btcec.PublicKey

	// HtlcPoint is the base point used to derive the responder's key
	// within HTLC scripts.
	HtlcPoint *btcec.PublicKey

	// FirstCommitmentPoint is the per-commitment point for the
	// responder's initial commitment transaction.
	FirstCommitmentPoint *btcec.PublicKey

	// UpfrontShutdownScript, if non-empty, commits the responder to the
	// pkScript it will use on cooperative close.
	UpfrontShutdownScript []byte

	// ExtraData is a slot for trailing TLV-style bytes. Encode and Decode
	// neither write nor read it, so it is always empty after Decode.
	ExtraData []byte
}

// A compile time check to ensure AcceptChannel implements the lnwire.Message
// interface.
var _ Message = (*AcceptChannel)(nil)

// Decode deserializes the serialized AcceptChannel message stored in the
// passed io.Reader into the target AcceptChannel using the deserialization
// rules defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (a *AcceptChannel) Decode(r io.Reader, pver uint32) error {
	err := readElements(r,
		&a.PendingChannelID,
		&a.DustLimit,
		&a.MaxValueInFlight,
		&a.ChannelReserve,
		&a.MinAcceptDepth,
		&a.HtlcMinimum,
		&a.CsvDelay,
		&a.MaxAcceptedHTLCs,
		&a.FundingKey,
		&a.RevocationPoint,
		&a.PaymentPoint,
		&a.DelayedPaymentPoint,
		&a.HtlcPoint,
		&a.FirstCommitmentPoint,
		&a.UpfrontShutdownScript,
	)
	if err != nil {
		return err
	}

	return nil
}

// Encode serializes the target AcceptChannel message into the passed
// io.Writer implementation. Serialization will observe the rules defined by
// the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (a *AcceptChannel) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		a.PendingChannelID,
		a.DustLimit,
		a.MaxValueInFlight,
		a.ChannelReserve,
		a.MinAcceptDepth,
		a.HtlcMinimum,
		a.CsvDelay,
		a.MaxAcceptedHTLCs,
		a.FundingKey,
		a.RevocationPoint,
		a.PaymentPoint,
		a.DelayedPaymentPoint,
		a.HtlcPoint,
		a.FirstCommitmentPoint,
		a.UpfrontShutdownScript,
	)
}

// MsgType returns the MessageType code which uniquely identifies this
// message as an AcceptChannel on the wire.
//
// This is part of the lnwire.Message interface.
func (a *AcceptChannel) MsgType() MessageType {
	return MsgAcceptChannel
}

// MaxPayloadLength returns the maximum allowed payload length for an
// AcceptChannel message.
//
// This is part of the lnwire.Message interface.
func (a *AcceptChannel) MaxPayloadLength(uint32) uint32 {
	// 32 (pending chan id) + 8*4 (amounts) + 4 (min depth) + 2*2
	// (csv/htlcs) + 33*6 (pubkeys) + 2 + deliveryAddressMaxSize
	return 32 + 8*4 + 4 + 2*2 + 33*6 + 2 + 34
}
