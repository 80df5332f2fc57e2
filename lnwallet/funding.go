package lnwallet

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// Funding identifies the channel's on-chain funding output once the
// funding transaction has been constructed.
type Funding struct {
	// Outpoint is the 2-of-2 funding output.
	Outpoint wire.OutPoint

	// Amount is the total value locked into the channel.
	Amount btcutil.Amount
}
