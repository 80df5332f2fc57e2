package lnwire

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Sig is a fixed-size, 64-byte wire encoding of an ECDSA signature: the
// 32-byte big-endian R value followed by the 32-byte big-endian S value.
// Lightning's wire format never carries DER-encoded signatures, since their
// variable length would require a length prefix.
type Sig [64]byte

// NewSigFromSignature converts a DER/in-memory ECDSA signature into its
// fixed 64-byte wire representation.
func NewSigFromSignature(sig *ecdsa.Signature) (Sig, error) {
	var b Sig

	if sig == nil {
		return b, fmt.Errorf("cannot encode nil signature")
	}

	sigR := sig.R()
	sigS := sig.S()
	r := sigR.Bytes()
	s := sigS.Bytes()

	// R and S are canonically big-endian, but may be shorter than 32
	// bytes; right-align them within the fixed-size fields.
	copy(b[32-len(r):32], r[:])
	copy(b[64-len(s):64], s[:])

	return b, nil
}

// ToSignature reconstructs an in-memory ECDSA signature from its wire
// representation.
func (b Sig) ToSignature() (*ecdsa.Signature, error) {
	var rBytes, sBytes [32]byte
	copy(rBytes[:], b[0:32])
	copy(sBytes[:], b[32:64])

	var r, s btcec.ModNScalar
	r.SetBytes(&rBytes)
	s.SetBytes(&sBytes)

	return ecdsa.NewSignature(&r, &s), nil
}
