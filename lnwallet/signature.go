package lnwallet

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/psbt"
)

// ExtractFundingSignature scans the signed refund PSBT for a partial
// signature belonging to fundingPubKey and parses it into an in-memory
// ECDSA signature. A commitment transaction always spends exactly one
// input (the funding output), so any other input count means the signer
// handed back something other than what it was asked to sign. The wire
// format stores a DER signature with a trailing sighash-type byte, which is
// stripped before parsing.
func ExtractFundingSignature(pkt *psbt.Packet,
	fundingPubKey *btcec.PublicKey) (*ecdsa.Signature, error) {

	if len(pkt.Inputs) != 1 {
		return nil, fmt.Errorf("refund psbt must spend exactly the "+
			"funding output, has %d inputs", len(pkt.Inputs))
	}

	pubKeyBytes := fundingPubKey.SerializeCompressed()

	for _, partialSig := range pkt.Inputs[0].PartialSigs {
		if !bytes.Equal(partialSig.PubKey, pubKeyBytes) {
			continue
		}

		sig := partialSig.Signature
		if len(sig) < 1 {
			return nil, &InvalidSignature{Underlying: psbt.ErrInvalidPsbtFormat}
		}

		// Chop off the sighash flag at the end of the signature
		// before DER-parsing the rest.
		parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
		if err != nil {
			return nil, &InvalidSignature{Underlying: err}
		}

		return parsed, nil
	}

	return nil, &FundingPsbtUnsigned{PubKey: fundingPubKey}
}
