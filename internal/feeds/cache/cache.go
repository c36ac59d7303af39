// Package cache provides a durable local TTL cache for enrichment
// results, so the coordinator can skip re-invoking a provider for data
// it already fetched recently.
//
// Grounded on the teacher's use of go.etcd.io/bbolt for local durable
// state in the orchestrator service.
package cache

import (
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("enrichment_cache")

// Cache is a bbolt-backed key/value store with per-entry expiry.
type Cache struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database file.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached value for key if present and not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	var value []byte
	var expired bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		entry := b.Get([]byte(key))
		if entry == nil {
			return nil
		}
		expiresAt, payload := decodeEntry(entry)
		if time.Now().After(expiresAt) {
			expired = true
			return nil
		}
		value = append([]byte(nil), payload...)
		return nil
	})
	if expired {
		_ = c.Delete(key)
		return nil, false
	}
	return value, value != nil
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	entry := encodeEntry(time.Now().Add(ttl), value)
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), entry)
	})
}

// Delete removes a key.
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

func encodeEntry(expiresAt time.Time, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt.Unix()))
	copy(buf[8:], payload)
	return buf
}

func decodeEntry(entry []byte) (time.Time, []byte) {
	if len(entry) < 8 {
		return time.Time{}, nil
	}
	sec := int64(binary.BigEndian.Uint64(entry[:8]))
	return time.Unix(sec, 0), entry[8:]
}
