// Package branchcache keeps resolved default branches in a bbolt file so
// repeated listings avoid a provider round-trip per repository.
package branchcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const bucketBranches = "default_branches" // key: repo URL -> entry JSON

type entry struct {
	Branch    string    `json:"branch"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Cache is a TTL cache of repository default branches.
type Cache struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens or creates the cache file at path.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening branch cache: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketBranches))
		return err
	}); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached branch of repoURL when present and not expired.
func (c *Cache) Get(repoURL string) (string, bool) {
	var e entry

	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketBranches)).Get([]byte(repoURL))
		if data == nil {
			return nil
		}

		return json.Unmarshal(data, &e)
	})
	if err != nil || e.Branch == "" || c.now().After(e.ExpiresAt) {
		return "", false
	}

	return e.Branch, true
}

// Put stores branch for repoURL.
func (c *Cache) Put(repoURL, branch string) error {
	data, err := json.Marshal(entry{Branch: branch, ExpiresAt: c.now().Add(c.ttl)})
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketBranches)).Put([]byte(repoURL), data)
	})
}

// Invalidate drops the entry of repoURL.
func (c *Cache) Invalidate(repoURL string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketBranches)).Delete([]byte(repoURL))
	})
}

// Close closes the underlying file.
func (c *Cache) Close() error {
	return c.db.Close()
}
