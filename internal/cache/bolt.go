// Package cache keeps rendered chart images on disk keyed by the dataset
// fingerprint and the chart request.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
	"go.etcd.io/bbolt"
)

var bucketCharts = []byte("charts")

// Key derives the cache key of a chart request against a dataset. parts are
// hashed in order after the fingerprint.
func Key(fingerprint uint64, parts ...[]byte) uint64 {
	h := xxh3.New()
	h.Write(binary.BigEndian.AppendUint64(nil, fingerprint))
	for _, p := range parts {
		h.Write(binary.BigEndian.AppendUint32(nil, uint32(len(p))))
		h.Write(p)
	}
	return h.Sum64()
}

func keyBytes(key uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, key)
}

// BoltCache is a bbolt backed chart cache. Entries are bounded by count;
// when full the oldest insertions are evicted.
type BoltCache struct {
	db         *bbolt.DB
	maxEntries int
}

// Open opens or creates the cache file
func Open(path string, maxEntries int) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open chart cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCharts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init chart cache: %w", err)
	}
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &BoltCache{db: db, maxEntries: maxEntries}, nil
}

// Get returns a copy of the cached image
func (c *BoltCache) Get(key uint64) ([]byte, bool, error) {
	var out []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCharts).Get(keyBytes(key))
		if v == nil {
			return nil
		}
		// value layout: 8 byte sequence, then the image
		if len(v) < 8 {
			return nil
		}
		out = append([]byte(nil), v[8:]...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Put stores an image and evicts the oldest entries beyond the bound
func (c *BoltCache) Put(key uint64, image []byte) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCharts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		v := binary.BigEndian.AppendUint64(make([]byte, 0, 8+len(image)), seq)
		if err := b.Put(keyBytes(key), append(v, image...)); err != nil {
			return err
		}
		return evict(b, c.maxEntries)
	})
}

func evict(b *bbolt.Bucket, maxEntries int) error {
	type entry struct {
		key []byte
		seq uint64
	}
	var entries []entry
	err := b.ForEach(func(k, v []byte) error {
		if len(v) < 8 {
			entries = append(entries, entry{key: append([]byte(nil), k...)})
			return nil
		}
		entries = append(entries, entry{key: append([]byte(nil), k...), seq: binary.BigEndian.Uint64(v[:8])})
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) <= maxEntries {
		return nil
	}

	for excess := len(entries) - maxEntries; excess > 0; excess-- {
		oldest := 0
		for i := range entries {
			if entries[i].seq < entries[oldest].seq {
				oldest = i
			}
		}
		if err := b.Delete(entries[oldest].key); err != nil {
			return err
		}
		entries = append(entries[:oldest], entries[oldest+1:]...)
	}
	return nil
}

// Len returns the number of cached images
func (c *BoltCache) Len() int {
	n := 0
	_ = c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCharts).ForEach(func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n
}

// Clear drops every entry
func (c *BoltCache) Clear() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketCharts); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketCharts)
		return err
	})
}

// Close releases the database file
func (c *BoltCache) Close() error {
	return c.db.Close()
}
