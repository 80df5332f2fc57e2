package lnwire

import "github.com/btcsuite/btcd/btcutil"

// MilliSatoshi represents a thousandth of a satoshi, the smallest unit that
// can be expressed in the Lightning Network's wire messages.
type MilliSatoshi uint64

// ToSatoshis rounds down to the nearest whole satoshi.
func (m MilliSatoshi) ToSatoshis() btcutil.Amount {
	return btcutil.Amount(m / 1000)
}

// FundingFlag represents the bit-field of optional flags set on an
// OpenChannel message.
type FundingFlag uint8

// FFAnnounceChannel is set by the initiator when it would like the newly
// created channel to be announced to the rest of the network.
const FFAnnounceChannel FundingFlag = 1
