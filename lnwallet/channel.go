package lnwallet

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/chanpropose/lnwire"
)

// OpenRequest carries everything a caller needs to supply in order to begin
// a funder-side channel proposal.
type OpenRequest struct {
	// Network is the chain the channel will be opened on.
	Network *chaincfg.Params

	// FundingAmount is the number of satoshis the funder is
	// contributing.
	FundingAmount btcutil.Amount

	// PushAmount is pushed to the remote party in the initial commitment
	// state.
	PushAmount lnwire.MilliSatoshi

	// Common holds the chain-hash/feerate/announce parameters.
	Common CommonParams

	// Policy is the funder's minimum channel requirements.
	Policy Policy

	// LocalKeys are the funder's channel key set.
	LocalKeys KeySet
}

// Channel is the funder-side view of a channel as it moves through the
// establishment workflow: it accumulates the remote party's contribution as
// messages arrive, and exposes the data later stages of the workflow need
// (the funding script, the refund transaction, the derived channel id).
type Channel struct {
	mu sync.RWMutex

	network *chaincfg.Params

	common CommonParams
	policy Policy

	fundingAmount btcutil.Amount
	pushAmount    lnwire.MilliSatoshi

	tempChanID lnwire.ChannelID
	chanID     lnwire.ChannelID
	hasChanID  bool

	// idSwapped is set once the enclosing registry has confirmed the
	// identity swap (temporary -> permanent channel id) and the FSM has
	// promoted chanID to the channel's active identifier. Until then,
	// ChannelID reports the temporary id as active even though chanID
	// may already have been computed by SetFunding.
	idSwapped bool

	localKeys  KeySet
	remoteKeys KeySet

	remoteMinAcceptDepth uint32

	funding      Funding
	hasFunding   bool
	localSig     lnwire.Sig
	remoteSig    lnwire.Sig
	hasLocalSig  bool
	hasRemoteSig bool

	localChannelReadySent      bool
	remoteChannelReadyReceived bool
	stashedChannelReady        *lnwire.ChannelReady
}

// NewChannel allocates a Channel for the given request, generating a fresh
// temporary channel id.
func NewChannel(req OpenRequest) (*Channel, error) {
	var tempID lnwire.ChannelID
	if _, err := rand.Read(tempID[:]); err != nil {
		return nil, fmt.Errorf("unable to generate temporary channel id: %w", err)
	}

	return &Channel{
		network:       req.Network,
		common:        req.Common,
		policy:        req.Policy,
		fundingAmount: req.FundingAmount,
		pushAmount:    req.PushAmount,
		tempChanID:    tempID,
		localKeys:     req.LocalKeys,
	}, nil
}

// ComposeOpenChannel builds the OpenChannel message announcing this
// proposal to the remote party.
func (c *Channel) ComposeOpenChannel() (*lnwire.OpenChannel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.localKeys.IsComplete() {
		return nil, fmt.Errorf("local key set is incomplete")
	}

	var flags lnwire.FundingFlag
	if c.common.AnnounceChannel {
		flags = lnwire.FFAnnounceChannel
	}

	return &lnwire.OpenChannel{
		ChainHash:            c.common.ChainHash,
		PendingChannelID:     c.tempChanID,
		FundingAmount:        c.fundingAmount,
		PushAmount:           c.pushAmount,
		DustLimit:            c.policy.DustLimit,
		MaxValueInFlight:     c.policy.MaxValueInFlight,
		ChannelReserve:       c.policy.ChannelReserve,
		HtlcMinimum:          c.policy.HtlcMinimum,
		FeePerKiloWeight:     uint32(c.common.FeePerKw),
		CsvDelay:             c.policy.CsvDelay,
		MaxAcceptedHTLCs:     c.policy.MaxAcceptedHTLCs,
		FundingKey:           c.localKeys.FundingKey,
		RevocationPoint:      c.localKeys.RevocationBasePoint,
		PaymentPoint:         c.localKeys.PaymentBasePoint,
		DelayedPaymentPoint:  c.localKeys.DelayedPaymentBasePoint,
		HtlcPoint:            c.localKeys.HtlcBasePoint,
		FirstCommitmentPoint: c.localKeys.FirstCommitmentPoint,
		ChannelFlags:         flags,
	}, nil
}

// UpdateFromPeer folds a message received from the remote party into the
// Channel's state. Only *lnwire.AcceptChannel and *lnwire.FundingSigned are
// understood; any other type is a caller bug, since the FSM type-switches
// on the event before ever reaching here.
func (c *Channel) UpdateFromPeer(msg lnwire.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := msg.(type) {
	case *lnwire.AcceptChannel:
		return c.applyAcceptChannel(m)
	case *lnwire.FundingSigned:
		c.remoteSig = m.CommitSig
		c.hasRemoteSig = true
		return nil
	default:
		return ErrUnsupportedMessage
	}
}

func (c *Channel) applyAcceptChannel(m *lnwire.AcceptChannel) error {
	if m.ChannelReserve < c.policy.DustLimit {
		return &ChannelProtocolError{
			Field:  "ChannelReserve",
			Reason: "below our dust limit",
		}
	}
	if m.MaxAcceptedHTLCs == 0 {
		return &ChannelProtocolError{
			Field:  "MaxAcceptedHTLCs",
			Reason: "must accept at least one HTLC",
		}
	}

	c.remoteKeys = KeySet{
		FundingKey:              m.FundingKey,
		RevocationBasePoint:     m.RevocationPoint,
		PaymentBasePoint:        m.PaymentPoint,
		DelayedPaymentBasePoint: m.DelayedPaymentPoint,
		HtlcBasePoint:           m.HtlcPoint,
		FirstCommitmentPoint:    m.FirstCommitmentPoint,
	}
	c.remoteMinAcceptDepth = m.MinAcceptDepth

	return nil
}

// ResolveFunding locates the channel's 2-of-2 output within an unsigned
// funding transaction and records it via SetFunding, returning the
// resulting Funding. It returns an error if the transaction has no output
// matching FundingScriptPubKey.
func (c *Channel) ResolveFunding(tx *wire.MsgTx) (Funding, error) {
	script, err := c.FundingScriptPubKey()
	if err != nil {
		return Funding{}, err
	}

	for i, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, script) {
			f := Funding{
				Outpoint: wire.OutPoint{
					Hash:  tx.TxHash(),
					Index: uint32(i),
				},
				Amount: btcutil.Amount(out.Value),
			}
			c.SetFunding(f)

			log.Debugf("Funding output located at %v:%d (%v)",
				f.Outpoint.Hash, f.Outpoint.Index, f.Amount)

			return f, nil
		}
	}

	return Funding{}, fmt.Errorf("funding transaction has no output paying the 2-of-2 script")
}

// SetFunding records the funding outpoint once the funding transaction has
// been constructed, and derives the permanent channel id from it.
func (c *Channel) SetFunding(f Funding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.funding = f
	c.hasFunding = true
	c.chanID = lnwire.NewChannelID(
		f.Outpoint.Hash, uint16(f.Outpoint.Index),
	)
	c.hasChanID = true
}

// SetLocalCommitSig records the local signature over the refund transaction
// built by RefundTx, the one sent to the peer in FundingCreated.
func (c *Channel) SetLocalCommitSig(sig lnwire.Sig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.localSig = sig
	c.hasLocalSig = true
}

// LocalCommitSig returns the signature previously recorded via
// SetLocalCommitSig.
func (c *Channel) LocalCommitSig() (lnwire.Sig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.localSig, c.hasLocalSig
}

// RemoteCommitSig returns the signature received in FundingSigned.
func (c *Channel) RemoteCommitSig() lnwire.Sig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.remoteSig
}

// FundingPubKey returns the local funding key.
func (c *Channel) FundingPubKey() *btcec.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.localKeys.FundingKey
}

// FundingAmount returns the funder's total contribution to the channel.
func (c *Channel) FundingAmount() btcutil.Amount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.fundingAmount
}

// Network returns the chain parameters this channel was opened on.
func (c *Channel) Network() *chaincfg.Params {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.network
}

// Funding returns the channel's funding outpoint and amount. It is only
// valid once SetFunding has been called.
func (c *Channel) Funding() (Funding, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasFunding {
		return Funding{}, fmt.Errorf("funding outpoint not yet known")
	}

	return c.funding, nil
}

// TempChannelID returns the temporary channel id generated at proposal
// time. Once the identity swap has been promoted (Signing -> Funding), the
// temporary id is retired and this returns ErrTempChannelIDRetired instead.
func (c *Channel) TempChannelID() (lnwire.ChannelID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.idSwapped {
		return lnwire.ChannelID{}, ErrTempChannelIDRetired
	}
	return c.tempChanID, nil
}

// ChannelID returns the channel's active identifier: the temporary id
// until the identity swap has been promoted, the permanent id thereafter.
// The boolean return indicates whether the permanent id was returned.
func (c *Channel) ChannelID() (lnwire.ChannelID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.idSwapped {
		return c.chanID, true
	}
	return c.tempChanID, false
}

// PermanentChannelID returns the permanent channel id derived from the
// funding outpoint, regardless of whether it has been promoted to the
// channel's active identifier yet. It is only valid once SetFunding has
// been called.
func (c *Channel) PermanentChannelID() (lnwire.ChannelID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasChanID {
		return lnwire.ChannelID{}, fmt.Errorf(
			"permanent channel id not yet derived")
	}
	return c.chanID, nil
}

// PromoteToPermanentID retires the temporary channel id and makes the
// already-derived permanent id the channel's active identifier. This is
// the Channel-side half of the Signing -> Funding identity swap; the FSM
// calls it only after the enclosing registry's Rekey has succeeded, so
// that a failed swap leaves the channel's observable identity unchanged.
func (c *Channel) PromoteToPermanentID() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasChanID {
		return fmt.Errorf("permanent channel id not yet derived")
	}
	c.idSwapped = true
	return nil
}

// LocalKeySet returns the funder's own key set.
func (c *Channel) LocalKeySet() KeySet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.localKeys
}

// RemoteKeySet returns the remote party's key set, once received via
// AcceptChannel.
func (c *Channel) RemoteKeySet() (KeySet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.remoteKeys.IsComplete() {
		return KeySet{}, ErrMissingRemoteKeys
	}
	return c.remoteKeys, nil
}

// RemoteMinAcceptDepth returns the confirmation depth the remote party
// requires, as conveyed in AcceptChannel.
func (c *Channel) RemoteMinAcceptDepth() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.remoteMinAcceptDepth
}

// FundingScriptPubKey returns the P2WSH output script for the channel's
// 2-of-2 funding output, built from the local and remote funding keys.
func (c *Channel) FundingScriptPubKey() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.remoteKeys.FundingKey == nil {
		return nil, ErrMissingRemoteKeys
	}

	_, script, err := genFundingPkScript(
		c.localKeys.FundingKey, c.remoteKeys.FundingKey,
		int64(c.fundingAmount),
	)
	return script, err
}

// RefundTx builds this party's version of the initial commitment (refund)
// transaction spending the funding output, optionally attaching the remote
// party's signature for it if includeRemoteSig is true and one has been
// recorded.
func (c *Channel) RefundTx(includeRemoteSig bool) (*psbt.Packet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasFunding {
		return nil, fmt.Errorf("funding outpoint not yet known")
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: c.funding.Outpoint,
	})

	localScript, err := commitScriptUnencumbered(c.localKeys.PaymentBasePoint)
	if err != nil {
		return nil, err
	}
	localOutputAmt := c.fundingAmount - c.pushAmount.ToSatoshis()
	tx.AddTxOut(wire.NewTxOut(int64(localOutputAmt), localScript))

	if c.pushAmount > 0 && c.remoteKeys.PaymentBasePoint != nil {
		remoteScript, err := commitScriptUnencumbered(c.remoteKeys.PaymentBasePoint)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(
			int64(c.pushAmount.ToSatoshis()), remoteScript,
		))
	}

	pkt, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	if includeRemoteSig && c.hasRemoteSig && c.remoteKeys.FundingKey != nil {
		pkt.Inputs[0].PartialSigs = append(pkt.Inputs[0].PartialSigs,
			&psbt.PartialSig{
				PubKey:    c.remoteKeys.FundingKey.SerializeCompressed(),
				Signature: append([]byte(nil), c.remoteSig[:]...),
			},
		)
	}

	return pkt, nil
}

// MarkLocalChannelReadySent records that this channel has sent its own
// channel_ready and returns whether the channel can now be considered
// locked in (i.e. a remote channel_ready was already stashed).
func (c *Channel) MarkLocalChannelReadySent() (ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.localChannelReadySent = true
	return c.remoteChannelReadyReceived
}

// StashOrAcceptRemoteChannelReady records an incoming channel_ready from
// the remote party. If our own has already been sent, the channel is
// immediately lockable and this returns true; otherwise the message is
// stashed for later and this returns false. A second incoming
// channel_ready while one is already stashed is a protocol violation.
func (c *Channel) StashOrAcceptRemoteChannelReady(msg *lnwire.ChannelReady) (ready bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remoteChannelReadyReceived {
		return false, &ChannelProtocolError{
			Field:  "channel_ready",
			Reason: "received more than once",
		}
	}

	c.remoteChannelReadyReceived = true
	if c.localChannelReadySent {
		return true, nil
	}

	c.stashedChannelReady = msg
	return false, nil
}

// genFundingPkScript builds the P2WSH output for a 2-of-2 funding
// transaction, sorting the two keys lexicographically as BOLT-3 requires.
func genFundingPkScript(localKey, remoteKey *btcec.PublicKey,
	amt int64) ([]byte, []byte, error) {

	if amt <= 0 {
		return nil, nil, fmt.Errorf("funding amount must be positive")
	}

	// The lexicographically lesser key goes first, per BOLT-3, so both
	// parties derive the same script.
	aPub := localKey.SerializeCompressed()
	bPub := remoteKey.SerializeCompressed()
	if bytes.Compare(aPub, bPub) == 1 {
		aPub, bPub = bPub, aPub
	}

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_2)
	bldr.AddData(aPub)
	bldr.AddData(bPub)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	redeemScript, err := bldr.Script()
	if err != nil {
		return nil, nil, err
	}

	scriptHash := chainhashSum(redeemScript)
	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(scriptHash).
		Script()
	if err != nil {
		return nil, nil, err
	}

	return redeemScript, pkScript, nil
}

// commitScriptUnencumbered returns a simple P2WKH-style script paying
// directly to key, used for the non-HTLC outputs of the refund
// transaction built during the Signing stage.
func commitScriptUnencumbered(key *btcec.PublicKey) ([]byte, error) {
	pubKeyHash := btcutil.Hash160(key.SerializeCompressed())
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(pubKeyHash).
		Script()
}
