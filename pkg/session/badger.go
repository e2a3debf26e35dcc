package session

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/narratex/narratex/pkg/types"
)

const sessionKeyPrefix = "session/"

// BadgerPersister stores session snapshots in a local Badger database.
type BadgerPersister struct {
	db *badger.DB
}

// NewBadgerPersister opens (or creates) the database at path.
func NewBadgerPersister(path string) (*BadgerPersister, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	return &BadgerPersister{db: db}, nil
}

// Save writes one session snapshot.
func (p *BadgerPersister) Save(s *types.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", s.ID, err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKeyPrefix+s.ID), raw)
	})
}

// LoadAll returns every persisted session.
func (p *BadgerPersister) LoadAll() ([]*types.Session, error) {
	var out []*types.Session
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var s types.Session
				if err := json.Unmarshal(val, &s); err != nil {
					return fmt.Errorf("unmarshal session: %w", err)
				}
				if s.Retrieved == nil {
					s.Retrieved = make(map[string]struct{})
				}
				out = append(out, &s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying database.
func (p *BadgerPersister) Close() error {
	return p.db.Close()
}
