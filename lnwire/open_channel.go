package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OpenChannel is the message the funder sends to kick off the channel
// establishment workflow. It carries every parameter the responder needs in
// order to decide whether to accept the proposed channel, and the set of
// public keys the funder will use for the channel's lifetime.
type OpenChannel struct {
	// ChainHash identifies the blockchain the channel should be opened
	// on, allowing both peers to agree before any funds move.
	ChainHash chainhash.Hash

	// PendingChannelID is the temporary identifier the funder picked for
	// this channel; it is used on the wire until the funding outpoint is
	// known and the permanent id can be derived.
	PendingChannelID [32]byte

	// FundingAmount is the number of satoshis the funder is putting into
	// the channel.
	FundingAmount btcutil.Amount

	// PushAmount is pushed to the responder as part of the initial
	// commitment state, in excess of the channel reserve.
	PushAmount MilliSatoshi

	// DustLimit is the funder's dust limit for its own commitment
	// transaction.
	DustLimit btcutil.Amount

	// MaxValueInFlight caps the total value of pending HTLCs the funder
	// will accept at any one time.
	MaxValueInFlight MilliSatoshi

	// ChannelReserve is the minimum balance the responder must maintain.
	ChannelReserve btcutil.Amount

	// HtlcMinimum is the smallest HTLC the funder will forward.
	HtlcMinimum MilliSatoshi

	// FeePerKiloWeight is the fee rate, in satoshis per kilo-weight unit,
	// the funder will pay for the commitment transaction.
	FeePerKiloWeight uint32

	// CsvDelay is the number of blocks the funder requires the responder
	// to wait before spending its own commitment outputs.
	CsvDelay uint16

	// MaxAcceptedHTLCs bounds the number of concurrent HTLCs the funder
	// will accept from the responder.
	MaxAcceptedHTLCs uint16

	// FundingKey is the funder's public key for the 2-of-2 funding
	// output.
	FundingKey *btcec.PublicKey

	// RevocationPoint is the base point the responder uses to derive the
	// funder's revocation key for each commitment state.
	RevocationPoint *btcec.PublicKey

	// PaymentPoint is the base point used to derive the key the funder
	// is paid to directly in the responder's commitment transaction.
	PaymentPoint *btcec.PublicKey

	// DelayedPaymentPoint is the base point used to derive the funder's
	// delayed payment key in its own commitment transaction.
	DelayedPaymentPoint *btcec.PublicKey

	// HtlcPoint is the base point used to derive the funder's key within
	// HTLC scripts.
	HtlcPoint *btcec.PublicKey

	// FirstCommitmentPoint is the per-commitment point for the funder's
	// initial commitment transaction.
	FirstCommitmentPoint *btcec.PublicKey

	// ChannelFlags carries the optional bits described by FundingFlag.
	ChannelFlags FundingFlag

	// ExtraData is a slot for trailing TLV-style bytes. Encode and Decode
	// neither write nor read it, so it is always empty after Decode.
	ExtraData []byte
}

// A compile time check to ensure OpenChannel implements the lnwire.Message
// interface.
var _ Message = (*OpenChannel)(nil)

// Decode deserializes the serialized OpenChannel message stored in the
// passed io.Reader into the target OpenChannel using the deserialization
// rules defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (o *OpenChannel) Decode(r io.Reader, pver uint32) error {
	err := readElements(r,
		&o.ChainHash,
		&o.PendingChannelID,
		&o.FundingAmount,
		&o.PushAmount,
		&o.DustLimit,
		&o.MaxValueInFlight,
		&o.ChannelReserve,
		&o.HtlcMinimum,
		&o.FeePerKiloWeight,
		&o.CsvDelay,
		&o.MaxAcceptedHTLCs,
		&o.FundingKey,
		&o.RevocationPoint,
		&o.PaymentPoint,
		&o.DelayedPaymentPoint,
		&o.HtlcPoint,
		&o.FirstCommitmentPoint,
		&o.ChannelFlags,
	)
	if err != nil {
		return err
	}

	return nil
}

// Encode serializes the target OpenChannel message into the passed
// io.Writer implementation. Serialization will observe the rules defined by
// the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (o *OpenChannel) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		o.ChainHash,
		o.PendingChannelID,
		o.FundingAmount,
		o.PushAmount,
		o.DustLimit,
		o.MaxValueInFlight,
		o.ChannelReserve,
		o.HtlcMinimum,
		o.FeePerKiloWeight,
		o.CsvDelay,
		o.MaxAcceptedHTLCs,
		o.FundingKey,
		o.RevocationPoint,
		o.PaymentPoint,
		o.DelayedPaymentPoint,
		o.HtlcPoint,
		o.FirstCommitmentPoint,
		o.ChannelFlags,
	)
}

// MsgType returns the MessageType code which uniquely identifies this
// message as an OpenChannel on the wire.
//
// This is part of the lnwire.Message interface.
func (o *OpenChannel) MsgType() MessageType {
	return MsgOpenChannel
}

// MaxPayloadLength returns the maximum allowed payload length for an
// OpenChannel message.
//
// This is part of the lnwire.Message interface.
func (o *OpenChannel) MaxPayloadLength(uint32) uint32 {
	// 32 (chain hash) + 32 (pending chan id) + 8*6 (amounts) + 4
	// (feerate) + 2*2 (csv/htlcs) + 33*6 (pubkeys) + 1 (flags)
	return 32 + 32 + 8*6 + 4 + 2*2 + 33*6 + 1
}
