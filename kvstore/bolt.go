package kvstore

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var rootBucket = []byte("loom")

// BoltStore is a bbolt-backed Store: one database file, one bucket,
// flat keys carrying the prefix structure directly (no nested
// buckets).
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if absent) a bbolt database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, coded(ErrOpenFailed, "path required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, coded(ErrOpenFailed, fmt.Sprintf("open bbolt: %v", err))
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, coded(ErrOpenFailed, fmt.Sprintf("create bucket: %v", err))
	}
	return &BoltStore{db: db}, nil
}

// Get returns the value for key, or (nil, false, nil) if absent.
func (s *BoltStore) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(rootBucket).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Put unconditionally writes key/value.
func (s *BoltStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put(key, value)
	})
}

// CompareAndSwap writes newValue iff the current value under key
// equals oldValue (nil oldValue means "key must not currently exist").
// The whole read-compare-write happens inside one bolt.Update
// transaction, which bbolt serializes against every other writer —
// the concrete mechanism behind Λ's promotion CAS.
func (s *BoltStore) CompareAndSwap(key, oldValue, newValue []byte) (bool, error) {
	var swapped bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		cur := b.Get(key)
		if !bytes.Equal(cur, oldValue) {
			return nil
		}
		swapped = true
		return b.Put(key, newValue)
	})
	return swapped, err
}

// ScanPrefix returns every key/value pair whose key starts with
// prefix, in key order (bbolt's bucket cursor is already sorted).
func (s *BoltStore) ScanPrefix(prefix []byte) ([]KV, error) {
	var out []KV
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			out = append(out, KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	return out, err
}

// Close releases the underlying bbolt file handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
