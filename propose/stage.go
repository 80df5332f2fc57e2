package propose

// ChannelProposalStage enumerates the states of the funder-side channel
// establishment workflow, in the order they are normally visited.
type ChannelProposalStage uint8

const (
	// ChannelProposalStageNone is the terminal sentinel returned by Next
	// once a proposal has finished (successfully or not) and there is no
	// further state to transition to.
	ChannelProposalStageNone ChannelProposalStage = iota

	// StageProposed means we have asked the remote peer to accept a new
	// channel.
	StageProposed

	// StageAccepted means the remote peer accepted our proposal.
	StageAccepted

	// StageSigning means we are signing the refund transaction locally.
	StageSigning

	// StageFunding means we have sent the funding txid and our
	// commitment signature to the remote peer.
	StageFunding

	// StageSigned means we have received the remote peer's signed
	// commitment.
	StageSigned

	// StageFunded means we are awaiting the funding transaction to be
	// mined.
	StageFunded

	// StageLocked means the funding transaction is mined and we are
	// awaiting the peer's confirmation of the same fact.
	StageLocked
)

// String returns the stage's display name, matching the BOLT-2 stage names
// used in logs and client-facing status reports.
func (s ChannelProposalStage) String() string {
	switch s {
	case ChannelProposalStageNone:
		return "NONE"
	case StageProposed:
		return "PROPOSED"
	case StageAccepted:
		return "ACCEPTED"
	case StageSigning:
		return "SIGNING"
	case StageFunding:
		return "FUNDING"
	case StageSigned:
		return "SIGNED"
	case StageFunded:
		return "FUNDED"
	case StageLocked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether a proposal at this stage has nothing further
// to do.
func (s ChannelProposalStage) IsTerminal() bool {
	return s == ChannelProposalStageNone
}
