package dispatch

import (
	"fmt"

	"github.com/lightninglabs/chanpropose/lnwire"
)

// ErrUnknownChannel is returned by Dispatch when no FSM is registered under
// the envelope's channel id. This can legitimately happen for a stale
// message addressed to a temporary id that an identity swap has already
// retired, if the sender has not yet observed the swap.
type ErrUnknownChannel struct {
	ChannelID lnwire.ChannelID
}

func (e *ErrUnknownChannel) Error() string {
	return fmt.Sprintf("no proposal registered under channel id %s", e.ChannelID)
}
