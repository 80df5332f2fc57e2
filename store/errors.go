package store

import (
	"fmt"

	"github.com/lightninglabs/chanpropose/lnwire"
)

// ErrNotFound is returned by Load when no checkpoint is stored under the
// given channel id.
type ErrNotFound struct {
	ChannelID lnwire.ChannelID
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("no checkpoint stored under channel id %s", e.ChannelID)
}
