package propose

import "github.com/btcsuite/btclog"

// log is the package-level logger, disabled until UseLogger is called by the
// daemon's logging subsystem.
var log = btclog.Disabled

// UseLogger sets the logger used by this package. It should be called
// before any ProposalFSM is constructed.
func UseLogger(logger btclog.Logger) {
	log = logger
}
