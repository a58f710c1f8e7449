// Package badgerstore backs the session cache with an embedded BadgerDB so
// cache entries survive process restarts without an external cache server.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goliatone/go-identity/core"
)

type Config struct {
	// Path is the directory for the badger value and key logs. Ignored when
	// InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
}

func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

func InMemoryConfig() Config {
	return Config{
		InMemory: true,
	}
}

// SessionCache is a core.SessionCache over a badger keyspace. TTLs map to
// badger entry TTLs, so expiry needs no sweeper goroutine.
type SessionCache struct {
	db   *badger.DB
	owns bool
}

func Open(cfg Config) (*SessionCache, error) {
	options := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		options = options.WithInMemory(true)
	}
	options = options.WithSyncWrites(cfg.SyncWrites)
	options = options.WithLogger(nil)

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open database: %w", err)
	}
	return &SessionCache{db: db, owns: true}, nil
}

// New wraps an existing badger database; the caller keeps ownership and is
// responsible for closing it.
func New(db *badger.DB) (*SessionCache, error) {
	if db == nil {
		return nil, fmt.Errorf("badgerstore: badger db is required")
	}
	return &SessionCache{db: db}, nil
}

func (c *SessionCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("badgerstore: session cache is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("badgerstore: cache key is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (c *SessionCache) Get(ctx context.Context, key string) (string, bool, error) {
	if c == nil || c.db == nil {
		return "", false, fmt.Errorf("badgerstore: session cache is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("badgerstore: cache key is required")
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var value string
	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(raw []byte) error {
			value = string(raw)
			found = true
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (c *SessionCache) Delete(ctx context.Context, key string) (bool, error) {
	if c == nil || c.db == nil {
		return false, fmt.Errorf("badgerstore: session cache is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("badgerstore: cache key is required")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	existed := false
	err := c.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

func (c *SessionCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	if !c.owns {
		return nil
	}
	return c.db.Close()
}

var _ core.SessionCache = (*SessionCache)(nil)
