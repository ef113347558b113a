// Package backup implements the durable state of a node: units of running sessions, ordered batches,
// fork evidence and the log of justifications of finalized blocks.
//
// Every write is synchronous. A failed write or read is reported as a DurabilityError,
// since the node must not act on state whose persistence is unconfirmed.
package backup

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/encoding"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
)

// Store is the durable backup of a node, shared by all its sessions.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// BatchRecord is the persisted form of a batch.
type BatchRecord struct {
	Index  uint64           `cbor:"1,keyasint"`
	Round  int              `cbor:"2,keyasint"`
	Head   gomel.Hash       `cbor:"3,keyasint"`
	Blocks []gomel.BlockRef `cbor:"4,keyasint"`
	Units  []gomel.Hash     `cbor:"5,keyasint"`
}

// Open opens the backup at the given directory. An empty path opens a backup kept in memory only.
func Open(path string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts = opts.WithSyncWrites(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, gomel.NewDurabilityError(errors.Wrapf(err, "opening backup at %q", path))
	}
	return &Store{
		db:  db,
		log: log.With().Int(logging.Service, logging.BackupService).Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) update(what string, fn func(*badger.Txn) error) error {
	if err := s.db.Update(fn); err != nil {
		return gomel.NewDurabilityError(errors.Wrap(err, what))
	}
	return nil
}

func (s *Store) view(what string, fn func(*badger.Txn) error) error {
	if err := s.db.View(fn); err != nil {
		return gomel.NewDurabilityError(errors.Wrap(err, what))
	}
	return nil
}

func setUnit(txn *badger.Txn, u gomel.BaseUnit) error {
	data, err := encoding.EncodeUnit(u)
	if err != nil {
		return err
	}
	return txn.Set(unitKey(u), data)
}

// SaveUnit persists a unit.
func (s *Store) SaveUnit(u gomel.BaseUnit) error {
	return s.update("saving unit", func(txn *badger.Txn) error {
		return setUnit(txn, u)
	})
}

// LoadUnits returns all persisted units of the session, ordered by round.
func (s *Store) LoadUnits(session gomel.SessionID) ([]gomel.Preunit, error) {
	var result []gomel.Preunit
	err := s.view("loading units", iterate(sessionPrefix(codeUnit, session), func(_, val []byte) error {
		pu, err := encoding.DecodePreunit(val)
		if err != nil {
			return err
		}
		result = append(result, pu)
		return nil
	}))
	return result, err
}

// SaveBatch persists the batch together with all its units in a single transaction.
func (s *Store) SaveBatch(b *gomel.Batch) error {
	record := &BatchRecord{
		Index:  b.Index,
		Round:  b.Round,
		Head:   b.Head,
		Blocks: b.Blocks,
		Units:  make([]gomel.Hash, len(b.Units)),
	}
	for i, u := range b.Units {
		record.Units[i] = *u.Hash()
	}
	data, err := cbor.Marshal(record)
	if err != nil {
		return gomel.NewDurabilityError(errors.Wrap(err, "encoding batch"))
	}
	err = s.update("saving batch", func(txn *badger.Txn) error {
		for _, u := range b.Units {
			if err := setUnit(txn, u); err != nil {
				return err
			}
		}
		return txn.Set(batchKey(b.Session, b.Index), data)
	})
	if err == nil {
		s.log.Debug().Uint32(logging.Session, uint32(b.Session)).Uint64(logging.Index, b.Index).Msg(logging.BatchPersisted)
	}
	return err
}

// Batches returns the persisted batches of the session, in order.
func (s *Store) Batches(session gomel.SessionID) ([]*BatchRecord, error) {
	var result []*BatchRecord
	err := s.view("loading batches", iterate(sessionPrefix(codeBatch, session), func(_, val []byte) error {
		record := &BatchRecord{}
		if err := cbor.Unmarshal(val, record); err != nil {
			return err
		}
		result = append(result, record)
		return nil
	}))
	return result, err
}

// SaveFork persists fork evidence.
func (s *Store) SaveFork(ev *gomel.ForkEvidence) error {
	data, err := cbor.Marshal(ev)
	if err != nil {
		return gomel.NewDurabilityError(errors.Wrap(err, "encoding fork evidence"))
	}
	return s.update("saving fork evidence", func(txn *badger.Txn) error {
		return txn.Set(forkKey(ev), data)
	})
}

// Forks returns the fork evidence recorded in the session.
func (s *Store) Forks(session gomel.SessionID) ([]*gomel.ForkEvidence, error) {
	var result []*gomel.ForkEvidence
	err := s.view("loading fork evidence", iterate(sessionPrefix(codeFork, session), func(_, val []byte) error {
		ev := &gomel.ForkEvidence{}
		if err := cbor.Unmarshal(val, ev); err != nil {
			return err
		}
		result = append(result, ev)
		return nil
	}))
	return result, err
}

// SaveJustification appends the justification to the log.
func (s *Store) SaveJustification(j *gomel.Justification) error {
	data, err := encoding.EncodeJustification(j)
	if err != nil {
		return gomel.NewDurabilityError(errors.Wrap(err, "encoding justification"))
	}
	return s.update("saving justification", func(txn *badger.Txn) error {
		return txn.Set(justificationKey(j.Height()), data)
	})
}

// Justifications returns at most limit justifications with heights from the given one upwards, in order.
func (s *Store) Justifications(from uint64, limit int) ([]*gomel.Justification, error) {
	var result []*gomel.Justification
	err := s.view("loading justifications", func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{codeJustification}
		for it.Seek(justificationKey(from)); it.ValidForPrefix(prefix) && len(result) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				j, err := encoding.DecodeJustification(val)
				if err != nil {
					return err
				}
				result = append(result, j)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return result, err
}

// LastJustification returns the justification with the highest height, or nil if the log is empty.
func (s *Store) LastJustification() (*gomel.Justification, error) {
	var result *gomel.Justification
	err := s.view("loading last justification", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte{codeJustification}
		it.Seek(justificationKey(^uint64(0)))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			j, err := encoding.DecodeJustification(val)
			result = j
			return err
		})
	})
	return result, err
}

// Ack records that all blocks up to the given height were delivered to the finalization sink.
func (s *Store) Ack(height uint64) error {
	return s.update("saving acknowledgement", func(txn *badger.Txn) error {
		return txn.Set(ackedKey(), binary.BigEndian.AppendUint64(nil, height))
	})
}

// Acked returns the height of the last block delivered to the finalization sink, 0 if none.
func (s *Store) Acked() (uint64, error) {
	var height uint64
	err := s.view("loading acknowledgement", func(txn *badger.Txn) error {
		item, err := txn.Get(ackedKey())
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return errors.New("malformed acknowledgement")
			}
			height = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	return height, err
}

// PruneSession removes the units, batches and fork evidence of the session. The justification log is kept.
func (s *Store) PruneSession(session gomel.SessionID) error {
	var keys [][]byte
	collect := func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	}
	for _, code := range []byte{codeUnit, codeBatch, codeFork} {
		if err := s.view("pruning session", iterateKeys(sessionPrefix(code, session), collect)); err != nil {
			return err
		}
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return gomel.NewDurabilityError(errors.Wrap(err, "pruning session"))
		}
	}
	if err := wb.Flush(); err != nil {
		return gomel.NewDurabilityError(errors.Wrap(err, "pruning session"))
	}
	s.log.Info().Uint32(logging.Session, uint32(session)).Int(logging.Size, len(keys)).Msg(logging.SessionPruned)
	return nil
}

// iterate calls fn on every key and value with the given prefix, in order.
func iterate(prefix []byte, fn func(key, val []byte) error) func(*badger.Txn) error {
	return func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(val []byte) error {
				return fn(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// iterateKeys is like iterate, without fetching the values.
func iterateKeys(prefix []byte, fn func(key, val []byte) error) func(*badger.Txn) error {
	return func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := fn(it.Item().KeyCopy(nil), nil); err != nil {
				return err
			}
		}
		return nil
	}
}
