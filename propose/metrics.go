package propose

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lightninglabs/chanpropose/lnwallet"
)

var (
	// metricTransitions counts every successful non-terminal stage
	// transition, labeled by the stage reached.
	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chanpropose",
		Subsystem: "proposal",
		Name:      "stage_transitions_total",
		Help:      "Number of channel proposal stage transitions, labeled by the stage reached.",
	}, []string{"stage"})

	// metricTerminations counts every proposal that reaches the terminal
	// stage, i.e. every channel that completes establishment.
	metricTerminations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chanpropose",
		Subsystem: "proposal",
		Name:      "completions_total",
		Help:      "Number of channel proposals that reached the terminal stage.",
	})

	// metricErrors counts failed transitions, labeled by the kind of
	// failure.
	metricErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chanpropose",
		Subsystem: "proposal",
		Name:      "errors_total",
		Help:      "Number of failed channel proposal transitions, labeled by error kind.",
	}, []string{"kind"})
)

// errorKind maps a transition failure onto its metric label.
func errorKind(err error) string {
	var (
		unexpected *UnexpectedMessage
		busSend    *BusSendError
		swapFailed *IdentitySwapFailed
		protocol   *lnwallet.ChannelProtocolError
		unsigned   *lnwallet.FundingPsbtUnsigned
		invalidSig *lnwallet.InvalidSignature
	)

	switch {
	case errors.As(err, &unexpected):
		return "unexpected_message"
	case errors.As(err, &busSend):
		return "bus_send"
	case errors.As(err, &swapFailed):
		return "identity_swap"
	case errors.As(err, &protocol):
		return "channel_protocol"
	case errors.As(err, &unsigned):
		return "funding_psbt_unsigned"
	case errors.As(err, &invalidSig):
		return "invalid_signature"
	default:
		return "other"
	}
}
