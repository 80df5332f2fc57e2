package lnwire

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ChannelID is the unique identifier for a channel, used throughout the
// funding workflow. Before the funding transaction is known, this holds a
// random value chosen by the initiator (the "pending" or "temporary"
// channel id); once the funding outpoint is known, both sides rederive it
// deterministically so the permanent id can be computed independently.
type ChannelID [32]byte

// NewChannelID derives the permanent channel id from the funding
// transaction's txid and output index, per BOLT-2: the big-endian output
// index is XOR'd into the last two bytes of the txid.
func NewChannelID(txid chainhash.Hash, outputIndex uint16) ChannelID {
	var cid ChannelID
	copy(cid[:], txid[:])

	var idx [2]byte
	binary.BigEndian.PutUint16(idx[:], outputIndex)

	cid[30] ^= idx[0]
	cid[31] ^= idx[1]

	return cid
}

// IsZero reports whether this id is the all-zero value, used to represent
// an unset channel id before a temporary one has been generated.
func (c ChannelID) IsZero() bool {
	return c == ChannelID{}
}

// String returns the hex-encoded channel id.
func (c ChannelID) String() string {
	return hex.EncodeToString(c[:])
}
