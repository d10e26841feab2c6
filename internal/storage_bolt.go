package internal

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/lychee-technology/norma"
)

// BoltStorage keeps all settings documents in one bucket of a single-file
// bbolt database, JSON-encoded per key.
type BoltStorage struct {
	db     *bolt.DB
	bucket []byte
}

func NewBoltStorage(cfg norma.BoltConfig) (*BoltStorage, error) {
	path := cfg.Path
	if path == "" {
		path = "settings.db"
	}
	bucket := cfg.BucketName
	if bucket == "" {
		bucket = "settings"
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket '%s': %w", bucket, err)
	}
	return &BoltStorage{db: db, bucket: []byte(bucket)}, nil
}

func (s *BoltStorage) Load(_ context.Context, key string) (norma.NormalizedRepresentation, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if value := tx.Bucket(s.bucket).Get([]byte(key)); value != nil {
			raw = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		return nil, norma.NewStorageError(fmt.Sprintf("failed to read settings for key '%s'", key), err)
	}
	if raw == nil {
		return norma.NormalizedRepresentation{}, nil
	}

	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, norma.NewStorageError(fmt.Sprintf("failed to decode settings for key '%s'", key), err)
	}
	return norma.NormalizedRepresentation(data), nil
}

func (s *BoltStorage) Save(_ context.Context, key string, data norma.NormalizedRepresentation) error {
	raw, err := json.Marshal(map[string]any(data))
	if err != nil {
		return norma.NewStorageError("failed to serialize settings document", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), raw)
	})
	if err != nil {
		return norma.NewStorageError(fmt.Sprintf("failed to write settings for key '%s'", key), err)
	}
	return nil
}

func (s *BoltStorage) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, norma.NewStorageError("failed to list settings keys", err)
	}
	return keys, nil
}

func (s *BoltStorage) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
	if err != nil {
		return norma.NewStorageError(fmt.Sprintf("failed to delete settings for key '%s'", key), err)
	}
	return nil
}

// Close releases the underlying database file.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
