package lnwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

var (
	// ErrUnsupportedMessage is returned by UpdateFromPeer when called
	// with a message type the Channel does not know how to apply.
	ErrUnsupportedMessage = fmt.Errorf("unsupported message type for this stage")

	// ErrMissingRemoteKeys is returned when a funding script is
	// requested before the remote party's keys have been recorded.
	ErrMissingRemoteKeys = fmt.Errorf("remote key set has not been populated yet")

	// ErrTempChannelIDRetired is returned by TempChannelID once the
	// identity swap has promoted the permanent channel id to active; the
	// temporary id must not be referenced thereafter.
	ErrTempChannelIDRetired = fmt.Errorf("temporary channel id has been retired")
)

// ChannelProtocolError wraps a BOLT-2 field-validation failure: a value
// received from the counterparty that is outside of what this channel's
// proposed policy allows.
type ChannelProtocolError struct {
	// Field names the offending field, e.g. "ChannelReserve".
	Field string

	// Reason describes why the value was rejected.
	Reason string
}

func (e *ChannelProtocolError) Error() string {
	return fmt.Sprintf("channel protocol violation on %s: %s", e.Field, e.Reason)
}

// FundingPsbtUnsigned is returned when signature extraction is attempted on
// a PSBT that carries no partial signature for the requested key.
type FundingPsbtUnsigned struct {
	PubKey *btcec.PublicKey
}

func (e *FundingPsbtUnsigned) Error() string {
	return fmt.Sprintf("funding psbt has no partial signature for key %x",
		e.PubKey.SerializeCompressed())
}

// InvalidSignature is returned when a signature fails to parse. Signatures
// are not verified against a key or sighash.
type InvalidSignature struct {
	Underlying error
}

func (e *InvalidSignature) Error() string {
	return fmt.Sprintf("invalid funding signature: %v", e.Underlying)
}

func (e *InvalidSignature) Unwrap() error {
	return e.Underlying
}
