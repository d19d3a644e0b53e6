// Package store persists keystore records in a bolt database,
// with one bucket per algorithm keyed by party name.
package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/wire"
)

// ErrNotFound is returned by Get and Delete for names without a record.
var ErrNotFound = errors.New("store: keystore not found")

// Store is a bolt database of keystore records.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path, and its buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, a := range algo.All() {
			if _, err := tx.CreateBucketIfNotExists(bucket(a)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func bucket(a algo.Algorithm) []byte {
	return []byte(a.String())
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the record of ks under name, replacing any previous record of the same algorithm.
func (s *Store) Put(name string, ks *keystore.Keystore) error {
	if name == "" {
		return errors.New("store: empty name")
	}
	data, err := wire.EncodeKeystore(ks)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket(ks.Algorithm())).Put([]byte(name), data)
	})
}

// Get decodes the keystore of name, checking that it was produced for algorithm a.
func (s *Store) Get(name string, a algo.Algorithm) (*keystore.Keystore, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucket(a)).Get([]byte(name))
		if value == nil {
			return fmt.Errorf("%w: %s in %s", ErrNotFound, name, a)
		}
		// value is only valid for the lifetime of the transaction
		data = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	ks, err := wire.DecodeKeystore(data, a)
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", name, err)
	}
	return ks, nil
}

// Delete removes the keystore of name for algorithm a.
func (s *Store) Delete(name string, a algo.Algorithm) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket(a))
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %s in %s", ErrNotFound, name, a)
		}
		return b.Delete([]byte(name))
	})
}

// List returns the sorted names with a keystore for algorithm a.
func (s *Store) List(a algo.Algorithm) ([]string, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket(a)).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
