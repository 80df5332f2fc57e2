package propose

import "fmt"

// InfoMessage renders a short, human-readable description of the FSM's
// current stage, suitable for a single log line.
func (m *ProposalFSM) InfoMessage() string {
	cid := m.ChannelID()

	switch m.stage {
	case StageProposed:
		return fmt.Sprintf("channel %s: sent open_channel, awaiting accept_channel", cid)
	case StageAccepted:
		return fmt.Sprintf("channel %s: accepted, constructing funding transaction", cid)
	case StageSigning:
		return fmt.Sprintf("channel %s: funding constructed, awaiting our signature", cid)
	case StageFunding:
		return fmt.Sprintf("channel %s: sent funding_created, awaiting funding_signed", cid)
	case StageSigned:
		return fmt.Sprintf("channel %s: fully signed, publishing funding transaction", cid)
	case StageFunded:
		return fmt.Sprintf("channel %s: funding published, awaiting confirmation", cid)
	case StageLocked:
		return fmt.Sprintf("channel %s: sent channel_ready, awaiting remote confirmation", cid)
	default:
		return fmt.Sprintf("channel %s: stage %s", cid, m.stage)
	}
}
