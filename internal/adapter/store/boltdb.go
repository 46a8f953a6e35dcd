package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	bucketIndexes = []byte("indexes")
	bucketPrefix  = "index:"
)

// BoltStore is a local database holding one vector bucket per index name.
type BoltStore struct {
	db *bbolt.DB
}

// IndexInfo records how an index was built so later runs can detect a
// switch of embedding model.
type IndexInfo struct {
	Dimension int    `json:"dimension"`
	Model     string `json:"model"`
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketIndexes); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketIndexes, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func indexBucket(name string) []byte {
	return []byte(bucketPrefix + name)
}

// GetIndexInfo returns the stored info for an index, or nil if the index
// has never been written.
func (s *BoltStore) GetIndexInfo(name string) (*IndexInfo, error) {
	var info *IndexInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIndexes).Get([]byte(name))
		if data == nil {
			return nil
		}
		info = &IndexInfo{}
		return json.Unmarshal(data, info)
	})
	return info, err
}

// EnsureIndex creates the index bucket and records its info. An existing
// index built with a different dimension or model is rejected.
func (s *BoltStore) EnsureIndex(name string, info IndexInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketIndexes)
		if data := meta.Get([]byte(name)); data != nil {
			var existing IndexInfo
			if err := json.Unmarshal(data, &existing); err != nil {
				return fmt.Errorf("corrupt info for index %s: %w", name, err)
			}
			if existing.Dimension != info.Dimension {
				return fmt.Errorf("index %s has dimension %d, embedder produces %d", name, existing.Dimension, info.Dimension)
			}
			if existing.Model != "" && info.Model != "" && existing.Model != info.Model {
				return fmt.Errorf("index %s was built with model %s, not %s; clear it first", name, existing.Model, info.Model)
			}
		} else {
			data, err := json.Marshal(info)
			if err != nil {
				return err
			}
			if err := meta.Put([]byte(name), data); err != nil {
				return err
			}
		}

		_, err := tx.CreateBucketIfNotExists(indexBucket(name))
		return err
	})
}

// ListIndexes returns every index name with its info.
func (s *BoltStore) ListIndexes() (map[string]IndexInfo, error) {
	out := make(map[string]IndexInfo)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIndexes).ForEach(func(k, v []byte) error {
			var info IndexInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			out[string(k)] = info
			return nil
		})
	})
	return out, err
}

// ClearIndex removes an index and its vectors.
func (s *BoltStore) ClearIndex(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(indexBucket(name)) != nil {
			if err := tx.DeleteBucket(indexBucket(name)); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketIndexes).Delete([]byte(name))
	})
}
