package lnwallet

import "github.com/btcsuite/btcd/btcec/v2"

// KeySet bundles the five base points and the funding key a party to a
// channel contributes, mirroring the key fields carried by both
// OpenChannel and AcceptChannel.
type KeySet struct {
	// FundingKey is this party's key for the 2-of-2 funding output.
	FundingKey *btcec.PublicKey

	// RevocationBasePoint is the base point the counterparty combines
	// with a per-commitment point to derive this party's revocation key
	// for a given commitment state.
	RevocationBasePoint *btcec.PublicKey

	// PaymentBasePoint is the base point used to derive the key this
	// party is paid to directly in the counterparty's commitment
	// transaction.
	PaymentBasePoint *btcec.PublicKey

	// DelayedPaymentBasePoint is the base point used to derive this
	// party's delayed payment key in its own commitment transaction.
	DelayedPaymentBasePoint *btcec.PublicKey

	// HtlcBasePoint is the base point used to derive this party's key
	// within HTLC scripts.
	HtlcBasePoint *btcec.PublicKey

	// FirstCommitmentPoint is the per-commitment point for this party's
	// initial commitment transaction.
	FirstCommitmentPoint *btcec.PublicKey
}

// IsComplete reports whether every key in the set has been populated. A
// KeySet recovered from a peer's message is not usable until this holds.
func (k KeySet) IsComplete() bool {
	return k.FundingKey != nil &&
		k.RevocationBasePoint != nil &&
		k.PaymentBasePoint != nil &&
		k.DelayedPaymentBasePoint != nil &&
		k.HtlcBasePoint != nil &&
		k.FirstCommitmentPoint != nil
}
