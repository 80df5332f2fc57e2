package lnwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/chanpropose/lnwire"
)

// KeySetSnapshot is the gob-friendly encoding of a KeySet: compressed
// public key bytes in place of *btcec.PublicKey, whose curve point fields
// are unexported and so cannot be gob-encoded directly.
type KeySetSnapshot struct {
	FundingKey              []byte
	RevocationBasePoint     []byte
	PaymentBasePoint        []byte
	DelayedPaymentBasePoint []byte
	HtlcBasePoint           []byte
	FirstCommitmentPoint    []byte
}

func encodeKey(k *btcec.PublicKey) []byte {
	if k == nil {
		return nil
	}
	return k.SerializeCompressed()
}

func decodeKey(b []byte) (*btcec.PublicKey, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return btcec.ParsePubKey(b)
}

func (k KeySet) encode() KeySetSnapshot {
	return KeySetSnapshot{
		FundingKey:              encodeKey(k.FundingKey),
		RevocationBasePoint:     encodeKey(k.RevocationBasePoint),
		PaymentBasePoint:        encodeKey(k.PaymentBasePoint),
		DelayedPaymentBasePoint: encodeKey(k.DelayedPaymentBasePoint),
		HtlcBasePoint:           encodeKey(k.HtlcBasePoint),
		FirstCommitmentPoint:    encodeKey(k.FirstCommitmentPoint),
	}
}

func decodeKeySet(s KeySetSnapshot) (KeySet, error) {
	var (
		ks  KeySet
		err error
	)

	if ks.FundingKey, err = decodeKey(s.FundingKey); err != nil {
		return KeySet{}, fmt.Errorf("funding key: %w", err)
	}
	if ks.RevocationBasePoint, err = decodeKey(s.RevocationBasePoint); err != nil {
		return KeySet{}, fmt.Errorf("revocation base point: %w", err)
	}
	if ks.PaymentBasePoint, err = decodeKey(s.PaymentBasePoint); err != nil {
		return KeySet{}, fmt.Errorf("payment base point: %w", err)
	}
	if ks.DelayedPaymentBasePoint, err = decodeKey(s.DelayedPaymentBasePoint); err != nil {
		return KeySet{}, fmt.Errorf("delayed payment base point: %w", err)
	}
	if ks.HtlcBasePoint, err = decodeKey(s.HtlcBasePoint); err != nil {
		return KeySet{}, fmt.Errorf("htlc base point: %w", err)
	}
	if ks.FirstCommitmentPoint, err = decodeKey(s.FirstCommitmentPoint); err != nil {
		return KeySet{}, fmt.Errorf("first commitment point: %w", err)
	}

	return ks, nil
}

// ChannelSnapshot is the gob-friendly encoding of a Channel's entire
// internal state: everything needed to resume a proposal after a crash,
// keyed externally by the active channel id.
type ChannelSnapshot struct {
	NetworkName                string
	Common                     CommonParams
	Policy                     Policy
	FundingAmount              btcutil.Amount
	PushAmount                 lnwire.MilliSatoshi
	TempChanID                 lnwire.ChannelID
	ChanID                     lnwire.ChannelID
	HasChanID                  bool
	IDSwapped                  bool
	LocalKeys                  KeySetSnapshot
	RemoteKeys                 KeySetSnapshot
	RemoteMinAcceptDepth       uint32
	Funding                    Funding
	HasFunding                 bool
	LocalSig                   lnwire.Sig
	RemoteSig                  lnwire.Sig
	HasLocalSig                bool
	HasRemoteSig               bool
	LocalChannelReadySent      bool
	RemoteChannelReadyReceived bool
	HasStashedChannelReady     bool
	StashedChannelReady        StashedChannelReadySnapshot
}

// StashedChannelReadySnapshot is the gob-friendly encoding of an early
// *lnwire.ChannelReady, whose NextPerCommitmentPoint is a *btcec.PublicKey
// and so needs the same byte-encoding treatment as KeySet.
type StashedChannelReadySnapshot struct {
	ChannelOutpointTxid  [32]byte
	ChannelOutpointIndex uint32
	ChannelID            lnwire.ChannelID
	NextCommitmentPoint  []byte
}

// Snapshot captures the Channel's entire state in a form suitable for gob
// encoding and later restoration via FromSnapshot.
func (c *Channel) Snapshot() ChannelSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var networkName string
	if c.network != nil {
		networkName = c.network.Name
	}

	snap := ChannelSnapshot{
		NetworkName:                networkName,
		Common:                     c.common,
		Policy:                     c.policy,
		FundingAmount:              c.fundingAmount,
		PushAmount:                 c.pushAmount,
		TempChanID:                 c.tempChanID,
		ChanID:                     c.chanID,
		HasChanID:                  c.hasChanID,
		IDSwapped:                  c.idSwapped,
		LocalKeys:                  c.localKeys.encode(),
		RemoteKeys:                 c.remoteKeys.encode(),
		RemoteMinAcceptDepth:       c.remoteMinAcceptDepth,
		Funding:                    c.funding,
		HasFunding:                 c.hasFunding,
		LocalSig:                   c.localSig,
		RemoteSig:                  c.remoteSig,
		HasLocalSig:                c.hasLocalSig,
		HasRemoteSig:               c.hasRemoteSig,
		LocalChannelReadySent:      c.localChannelReadySent,
		RemoteChannelReadyReceived: c.remoteChannelReadyReceived,
	}

	if c.stashedChannelReady != nil {
		snap.HasStashedChannelReady = true
		snap.StashedChannelReady = StashedChannelReadySnapshot{
			ChannelOutpointTxid:  c.stashedChannelReady.ChannelOutpoint.Hash,
			ChannelOutpointIndex: c.stashedChannelReady.ChannelOutpoint.Index,
			ChannelID:            c.stashedChannelReady.ChannelID,
			NextCommitmentPoint:  encodeKey(c.stashedChannelReady.NextPerCommitmentPoint),
		}
	}

	return snap
}

// FromSnapshot rebuilds a Channel from a snapshot previously produced by
// Snapshot. The network is looked up by name among the chain parameters
// the corpus recognizes; an unrecognized name falls back to mainnet.
func FromSnapshot(s ChannelSnapshot) (*Channel, error) {
	localKeys, err := decodeKeySet(s.LocalKeys)
	if err != nil {
		return nil, fmt.Errorf("unable to decode local keys: %w", err)
	}
	remoteKeys, err := decodeKeySet(s.RemoteKeys)
	if err != nil {
		return nil, fmt.Errorf("unable to decode remote keys: %w", err)
	}

	ch := &Channel{
		network:                    networkByName(s.NetworkName),
		common:                     s.Common,
		policy:                     s.Policy,
		fundingAmount:              s.FundingAmount,
		pushAmount:                 s.PushAmount,
		tempChanID:                 s.TempChanID,
		chanID:                     s.ChanID,
		hasChanID:                  s.HasChanID,
		idSwapped:                  s.IDSwapped,
		localKeys:                  localKeys,
		remoteKeys:                 remoteKeys,
		remoteMinAcceptDepth:       s.RemoteMinAcceptDepth,
		funding:                    s.Funding,
		hasFunding:                 s.HasFunding,
		localSig:                   s.LocalSig,
		remoteSig:                  s.RemoteSig,
		hasLocalSig:                s.HasLocalSig,
		hasRemoteSig:               s.HasRemoteSig,
		localChannelReadySent:      s.LocalChannelReadySent,
		remoteChannelReadyReceived: s.RemoteChannelReadyReceived,
	}

	if s.HasStashedChannelReady {
		npcp, err := decodeKey(s.StashedChannelReady.NextCommitmentPoint)
		if err != nil {
			return nil, fmt.Errorf("unable to decode stashed channel_ready: %w", err)
		}
		ch.stashedChannelReady = lnwire.NewChannelReady(
			wire.OutPoint{
				Hash:  s.StashedChannelReady.ChannelOutpointTxid,
				Index: s.StashedChannelReady.ChannelOutpointIndex,
			},
			s.StashedChannelReady.ChannelID,
			npcp,
		)
	}

	return ch, nil
}

// networkByName returns the chaincfg.Params the corpus recognizes by that
// name, defaulting to mainnet for an unrecognized or empty name.
func networkByName(name string) *chaincfg.Params {
	switch name {
	case chaincfg.TestNet3Params.Name:
		return &chaincfg.TestNet3Params
	case chaincfg.SimNetParams.Name:
		return &chaincfg.SimNetParams
	case chaincfg.RegressionNetParams.Name:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
