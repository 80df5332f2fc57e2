package dispatch

import (
	"fmt"

	goerrors "github.com/go-errors/errors"

	"github.com/lightninglabs/chanpropose/lnwallet"
	"github.com/lightninglabs/chanpropose/lnwire"
	"github.com/lightninglabs/chanpropose/propose"
)

// Envelope is the request wrapper the surrounding message-bus transport
// delivers to a Dispatcher. ChannelID names the proposal the event belongs
// to -- whichever of the temporary or permanent id is currently valid for
// that channel -- Source identifies which collaborator it arrived from
// (used for error attribution only), and Message is the peer-wire or
// control-bus payload itself.
type Envelope struct {
	ChannelID lnwire.ChannelID
	Source    propose.Source
	Message   interface{}
}

// Checkpointer persists the (stage, channel) tuple of an in-flight proposal
// under its active channel id, so a restart can resume the handshake.
// store.BoltStore is the concrete implementation; the dispatcher only
// depends on this narrow contract.
type Checkpointer interface {
	Save(id lnwire.ChannelID, stage propose.ChannelProposalStage,
		ch *lnwallet.Channel) error
	Delete(id lnwire.ChannelID) error
}

// Dispatcher classifies and routes inbound envelopes to the ProposalFSM
// responsible for their channel, serializing delivery per channel so that
// no two Next calls for the same channel ever interleave, while distinct
// channels proceed on whatever goroutine submitted their envelope.
type Dispatcher struct {
	registry    *Registry
	checkpoints Checkpointer
}

// NewDispatcher returns a Dispatcher routing through registry. checkpoints
// may be nil, in which case proposals are not persisted and will not
// survive a restart.
func NewDispatcher(registry *Registry, checkpoints Checkpointer) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		checkpoints: checkpoints,
	}
}

// Open starts a new channel proposal: it builds the FSM via propose.Initiate
// (which sends open_channel), registers it under its temporary channel id,
// and returns it. A proposal instance is created by a single call and is
// immediately owned by the registry keyed by channel id.
func (d *Dispatcher) Open(cfg propose.Config, req lnwallet.OpenRequest) (*propose.ProposalFSM, error) {
	cfg.Identity = d.registry

	fsm, err := propose.Initiate(cfg, req)
	if err != nil {
		return nil, err
	}

	tempID := fsm.ChannelID()
	if err := d.registry.Register(tempID, fsm); err != nil {
		return nil, fmt.Errorf("unable to register new proposal: %w", err)
	}

	if err := d.checkpoint(tempID, fsm); err != nil {
		d.registry.Remove(tempID)
		return nil, err
	}

	return fsm, nil
}

// Dispatch delivers env to the FSM registered under env.ChannelID, holding
// that channel's mutex for the duration of the call. If the FSM errors, the
// error is logged, reported to the operator, and the channel is torn down.
// If the FSM reaches its terminal stage, it is removed from the registry
// since there is nothing further to dispatch to it.
//
// The proposal's checkpoint is rewritten both before and after the
// transition: the pre-write captures the last stage whose side effects have
// fully landed before anything non-repeatable happens (the identity swap,
// the funding broadcast), and the post-write records the stage reached.
func (d *Dispatcher) Dispatch(env Envelope) (propose.ChannelProposalStage, error) {
	e := d.registry.lookup(env.ChannelID)
	if e == nil {
		return propose.ChannelProposalStageNone, &ErrUnknownChannel{
			ChannelID: env.ChannelID,
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := d.checkpoint(env.ChannelID, e.fsm); err != nil {
		return propose.ChannelProposalStageNone, err
	}

	stage, err := e.fsm.Next(propose.Event{
		Source:  env.Source,
		Message: env.Message,
	})
	if err != nil {
		// Wrap with a stack trace before logging: this is the fatal,
		// channel-destroying path, and the stack is what an operator
		// needs to tell a misbehaving peer apart from a local bug.
		stackErr := goerrors.Wrap(err, 1)
		log.Errorf("channel %s: tearing down after %v (event from "+
			"source %d)\n%s", env.ChannelID, err, env.Source,
			stackErr.ErrorStack())
		d.registry.Remove(env.ChannelID)
		d.dropCheckpoint(env.ChannelID)
		if activeID, _ := e.fsm.Channel().ChannelID(); activeID != env.ChannelID {
			// The failure came after the identity swap, so the entry
			// is now registered under the permanent id.
			d.registry.Remove(activeID)
		}
		return propose.ChannelProposalStageNone, err
	}

	activeID, _ := e.fsm.Channel().ChannelID()
	if activeID != env.ChannelID {
		// The transition retired the temporary id; drop the checkpoint
		// keyed by it so only the permanent-id record remains.
		d.dropCheckpoint(env.ChannelID)
	}

	if stage.IsTerminal() {
		d.registry.Remove(activeID)
		d.dropCheckpoint(activeID)
		return stage, nil
	}

	if err := d.checkpoint(activeID, e.fsm); err != nil {
		return propose.ChannelProposalStageNone, err
	}

	return stage, nil
}

func (d *Dispatcher) checkpoint(id lnwire.ChannelID, fsm *propose.ProposalFSM) error {
	if d.checkpoints == nil {
		return nil
	}

	err := d.checkpoints.Save(id, fsm.Stage(), fsm.Channel())
	if err != nil {
		return fmt.Errorf("unable to checkpoint channel %s: %w", id, err)
	}
	return nil
}

func (d *Dispatcher) dropCheckpoint(id lnwire.ChannelID) {
	if d.checkpoints == nil {
		return
	}

	if err := d.checkpoints.Delete(id); err != nil {
		log.Warnf("channel %s: unable to drop stale checkpoint: %v",
			id, err)
	}
}
