// Package store checkpoints in-flight channel proposals so that a process
// restart does not abandon a channel establishment partway through. It
// persists the tuple (stage, serialized Channel, active channel id) for
// each proposal, keyed by the channel's currently active identifier.
package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	bbolt "go.etcd.io/bbolt"

	"github.com/lightninglabs/chanpropose/lnwallet"
	"github.com/lightninglabs/chanpropose/lnwire"
	"github.com/lightninglabs/chanpropose/propose"
)

const (
	dbName           = "chanpropose.db"
	dbFilePermission = 0600
)

var proposalBucket = []byte("proposals")

// ProposalStore persists and restores the state of in-flight channel
// proposals, keyed by their active channel id.
type ProposalStore interface {
	// Save writes (or overwrites) the checkpoint for id.
	Save(id lnwire.ChannelID, stage propose.ChannelProposalStage, ch *lnwallet.Channel) error

	// Load retrieves the checkpoint for id. It returns *ErrNotFound if
	// none is stored.
	Load(id lnwire.ChannelID) (propose.ChannelProposalStage, *lnwallet.Channel, error)

	// Delete removes the checkpoint for id, if any. Deleting an id that
	// was never saved is not an error.
	Delete(id lnwire.ChannelID) error

	// ListIDs returns the channel ids of every checkpoint currently
	// stored, for use when repopulating a dispatch.Registry on startup.
	ListIDs() ([]lnwire.ChannelID, error)
}

// record is the gob-encoded value stored under each channel id key.
type record struct {
	Stage    propose.ChannelProposalStage
	Snapshot lnwallet.ChannelSnapshot
}

// BoltStore is a bbolt-backed ProposalStore.
type BoltStore struct {
	db *bbolt.DB
}

// A compile-time check that BoltStore satisfies ProposalStore.
var _ ProposalStore = (*BoltStore)(nil)

// Open opens (creating if necessary) a BoltStore rooted at dbPath.
func Open(dbPath string) (*BoltStore, error) {
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, fmt.Errorf("unable to create store directory: %w", err)
		}
	}

	path := filepath.Join(dbPath, dbName)
	db, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to open proposal store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(proposalBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to initialize proposal bucket: %w", err)
	}

	log.Infof("Opened proposal store at %s", path)

	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Wipe deletes every checkpoint currently stored, atomically.
func (s *BoltStore) Wipe() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(proposalBucket); err != nil &&
			err != bbolt.ErrBucketNotFound {

			return err
		}
		_, err := tx.CreateBucket(proposalBucket)
		return err
	})
}

// Save implements ProposalStore.
func (s *BoltStore) Save(id lnwire.ChannelID, stage propose.ChannelProposalStage,
	ch *lnwallet.Channel) error {

	rec := record{
		Stage:    stage,
		Snapshot: ch.Snapshot(),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("unable to encode proposal checkpoint: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(proposalBucket)
		return bucket.Put(id[:], buf.Bytes())
	})
}

// Load implements ProposalStore.
func (s *BoltStore) Load(id lnwire.ChannelID) (propose.ChannelProposalStage,
	*lnwallet.Channel, error) {

	var rec record

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(proposalBucket)
		raw := bucket.Get(id[:])
		if raw == nil {
			return &ErrNotFound{ChannelID: id}
		}

		dec := gob.NewDecoder(bytes.NewReader(raw))
		return dec.Decode(&rec)
	})
	if err != nil {
		return propose.ChannelProposalStageNone, nil, err
	}

	ch, err := lnwallet.FromSnapshot(rec.Snapshot)
	if err != nil {
		return propose.ChannelProposalStageNone, nil, fmt.Errorf(
			"unable to restore channel from checkpoint: %w", err)
	}

	return rec.Stage, ch, nil
}

// Delete implements ProposalStore.
func (s *BoltStore) Delete(id lnwire.ChannelID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(proposalBucket)
		return bucket.Delete(id[:])
	})
}

// ListIDs implements ProposalStore.
func (s *BoltStore) ListIDs() ([]lnwire.ChannelID, error) {
	var ids []lnwire.ChannelID

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(proposalBucket)
		return bucket.ForEach(func(k, _ []byte) error {
			var id lnwire.ChannelID
			copy(id[:], k)
			ids = append(ids, id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}
