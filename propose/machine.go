package propose

import (
	"fmt"

	"github.com/lightninglabs/chanpropose/lnwallet"
	"github.com/lightninglabs/chanpropose/lnwire"
)

// Config bundles the collaborators a ProposalFSM needs in order to drive a
// channel through establishment: the two outbound sinks, and the channel's
// own data model.
type Config struct {
	Sinks   Sinks
	Channel *lnwallet.Channel

	// Identity performs the Signing -> Funding re-key of the channel's
	// routing entry from its temporary to its permanent id. It must be
	// set before a ProposalFSM reaches StageSigning; Initiate does not
	// require it since the swap happens later.
	Identity IdentityRekeyer
}

// ProposalFSM drives a single channel through the funder-side
// establishment workflow. Each instance owns exactly one channel; the
// Dispatcher is responsible for routing events to the right instance and
// for serializing access to it.
type ProposalFSM struct {
	cfg   Config
	stage ChannelProposalStage
}

// Initiate builds the channel's OpenChannel message from req, sends it via
// the peer sink, and returns a ProposalFSM positioned at StageProposed.
func Initiate(cfg Config, req lnwallet.OpenRequest) (*ProposalFSM, error) {
	ch, err := lnwallet.NewChannel(req)
	if err != nil {
		return nil, fmt.Errorf("unable to build channel: %w", err)
	}

	openMsg, err := ch.ComposeOpenChannel()
	if err != nil {
		return nil, fmt.Errorf("unable to compose open_channel: %w", err)
	}

	if err := cfg.Sinks.Peer.SendToPeer(openMsg); err != nil {
		return nil, &BusSendError{Underlying: err}
	}

	cfg.Channel = ch

	m := &ProposalFSM{
		cfg:   cfg,
		stage: StageProposed,
	}

	log.Infof("%s", m.InfoMessage())

	return m, nil
}

// Stage returns the FSM's current stage.
func (m *ProposalFSM) Stage() ChannelProposalStage {
	return m.stage
}

// Channel returns the channel this FSM is driving.
func (m *ProposalFSM) Channel() *lnwallet.Channel {
	return m.cfg.Channel
}

// ChannelID returns the channel's current wire identifier -- the
// temporary id before Signing completes, the permanent one after.
func (m *ProposalFSM) ChannelID() lnwire.ChannelID {
	id, _ := m.cfg.Channel.ChannelID()
	return id
}

// Next advances the FSM by one event, dispatching to the transition
// function for the current stage and returning the stage reached. Once
// the terminal ChannelProposalStageNone is returned, the FSM has finished
// and must not be called again.
func (m *ProposalFSM) Next(ev Event) (ChannelProposalStage, error) {
	if m.stage.IsTerminal() {
		return ChannelProposalStageNone, fmt.Errorf(
			"channel proposal has already completed")
	}

	var (
		next ChannelProposalStage
		err  error
	)

	switch m.stage {
	case StageProposed:
		next, err = m.completeProposed(ev)
	case StageAccepted:
		next, err = m.completeAccepted(ev)
	case StageSigning:
		next, err = m.completeSigning(ev)
	case StageFunding:
		next, err = m.completeFunding(ev)
	case StageSigned:
		next, err = m.completeSigned(ev)
	case StageFunded:
		next, err = m.completeFunded(ev)
	case StageLocked:
		next, err = m.completeLocked(ev)
	default:
		return ChannelProposalStageNone, fmt.Errorf("unknown stage %v", m.stage)
	}
	if err != nil {
		metricErrors.WithLabelValues(errorKind(err)).Inc()
		return ChannelProposalStageNone, err
	}

	m.stage = next

	if next.IsTerminal() {
		metricTerminations.Inc()
		return ChannelProposalStageNone, nil
	}

	metricTransitions.WithLabelValues(next.String()).Inc()
	log.Infof("%s", m.InfoMessage())

	return next, nil
}
