package cart

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const boltBucket = "storefront"

// BoltStorage keeps the cart in a local bbolt file.
type BoltStorage struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*BoltStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStorage) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	var items, restaurant []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", boltBucket)
		}
		// bbolt values are only valid inside the transaction.
		items = append([]byte(nil), bucket.Get([]byte(CartKey))...)
		restaurant = append([]byte(nil), bucket.Get([]byte(RestaurantKey))...)
		return nil
	})
	if err != nil {
		return State{}, err
	}

	return decode(items, restaurant)
}

func (s *BoltStorage) Save(ctx context.Context, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	items, restaurant, err := encode(st)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", boltBucket)
		}
		if err := bucket.Put([]byte(CartKey), items); err != nil {
			return err
		}
		if restaurant == nil {
			return bucket.Delete([]byte(RestaurantKey))
		}
		return bucket.Put([]byte(RestaurantKey), restaurant)
	})
}
