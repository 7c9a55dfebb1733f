package labels

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var labelBucket = []byte("labels")

// Cache stores rendered label PNGs
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// CacheKey changes whenever the product row changes
func CacheKey(p domain.Product) string {
	return fmt.Sprintf("%d:%d", p.ID, p.UpdatedAt.UnixNano())
}

// BoltCache keeps labels in a bbolt file
type BoltCache struct {
	db *bolt.DB
}

func OpenBoltCache(file string) (*BoltCache, error) {
	db, err := bolt.Open(file, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open label cache")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(labelBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create label bucket")
	}
	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Get(key string) ([]byte, bool) {
	var data []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(labelBucket).Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data, data != nil
}

func (c *BoltCache) Put(key string, data []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(labelBucket).Put([]byte(key), data)
	})
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
