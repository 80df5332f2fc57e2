// Package dispatch owns the routing table that maps an active channel id to
// the ProposalFSM driving that channel's establishment, and the Dispatcher
// that delivers inbound peer-wire and control-bus events to the right
// instance. Neither the FSM nor the Channel object knows this package
// exists; dispatch is the thing that wires them to the outside world,
// mirroring peer.go's activeChanMtx-guarded channel maps generalized from a
// single peer connection to many concurrent channel establishments.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/lightninglabs/chanpropose/lnwire"
	"github.com/lightninglabs/chanpropose/propose"
)

// entry pairs a ProposalFSM with the mutex that serializes access to it.
// Holding entry.mu for the duration of a Dispatch call gives each channel's
// handshake its single-threaded, strictly sequential semantics, while
// distinct channels proceed independently of one another.
type entry struct {
	mu  sync.Mutex
	fsm *propose.ProposalFSM
}

// Registry is the process-wide mapping from active channel id to the FSM
// driving that channel. It is the only process-wide state this repository
// keeps: empty at boot, and torn down by dropping every in-flight entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[lnwire.ChannelID]*entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[lnwire.ChannelID]*entry),
	}
}

// Register adds fsm to the registry under id, failing if that id is
// already in use. A freshly-initiated proposal is registered under its
// temporary channel id.
func (r *Registry) Register(id lnwire.ChannelID, fsm *propose.ProposalFSM) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("channel id %s is already registered", id)
	}
	r.entries[id] = &entry{fsm: fsm}
	return nil
}

// Remove drops id from the registry, e.g. once its FSM has reached the
// terminal stage or has been torn down after a fatal error. Removing an id
// that is not present is a no-op.
func (r *Registry) Remove(id lnwire.ChannelID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, id)
}

// Lookup returns the FSM registered under id, if any.
func (r *Registry) Lookup(id lnwire.ChannelID) (*propose.ProposalFSM, bool) {
	e := r.lookup(id)
	if e == nil {
		return nil, false
	}
	return e.fsm, true
}

func (r *Registry) lookup(id lnwire.ChannelID) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.entries[id]
}

// Teardown drops every in-flight entry at once, abandoning all handshakes
// still in progress. Used on shutdown; any proposal with a checkpoint can
// be resumed on the next boot.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[lnwire.ChannelID]*entry)
}

// Rekey implements propose.IdentityRekeyer: it atomically re-registers the
// FSM found under oldID to be reachable under newID instead, in a single
// critical section. This must not be modeled as a separate Remove followed
// by an insert, since that would open a window in which a concurrent
// Lookup resolves neither id.
func (r *Registry) Rekey(oldID, newID lnwire.ChannelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[oldID]
	if !ok {
		return fmt.Errorf("no channel registered under %s", oldID)
	}
	if _, clash := r.entries[newID]; clash {
		return fmt.Errorf("channel id %s is already registered", newID)
	}

	delete(r.entries, oldID)
	r.entries[newID] = e
	return nil
}

// A compile-time check that Registry implements propose.IdentityRekeyer.
var _ propose.IdentityRekeyer = (*Registry)(nil)
