package store

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// BoltKV implements KV using BoltDB (bbolt) as the embedded ordered engine.
type BoltKV struct {
	db *bolt.DB
}

// AllTrees lists every keyspace the relay's repository and job engine use.
// Buckets are created up front so Get/Range never have to special-case a
// missing bucket.
var AllTrees = []Tree{
	TreeListeners,
	TreeListenerInboxes,
	TreeActors,
	TreeKeyIDIndex,
	TreeBlocks,
	TreeAllows,
	TreeSettings,
	TreeLastOnline,
	TreeNodes,
	TreeContacts,
	TreeMedia,
	TreeJobs,
	TreeDedup,
}

// Tree names, matching the schema in spec.md §4.B plus the engine-private
// trees used by the Job Engine and the Inbox Handler's dedup window.
const (
	TreeListeners       Tree = "listeners"
	TreeListenerInboxes Tree = "listener_inboxes"
	TreeActors          Tree = "actors"
	TreeKeyIDIndex      Tree = "key_id_index"
	TreeBlocks          Tree = "blocks"
	TreeAllows          Tree = "allows"
	TreeSettings        Tree = "settings"
	TreeLastOnline      Tree = "last_online"
	TreeNodes           Tree = "nodes"
	TreeContacts        Tree = "contacts"
	TreeMedia           Tree = "media"
	TreeJobs            Tree = "jobs"
	TreeDedup           Tree = "dedup"
)

// Open opens (creating if necessary) the BoltDB file under dataDir and
// ensures every tree in AllTrees exists as a bucket.
func Open(dataDir string) (*BoltKV, error) {
	dbPath := filepath.Join(dataDir, "relay.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, tree := range AllTrees {
			if _, err := tx.CreateBucketIfNotExists([]byte(tree)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", tree, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltKV{db: db}, nil
}

// Close closes the database.
func (s *BoltKV) Close() error {
	return s.db.Close()
}

func (s *BoltKV) Get(tree Tree, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("unknown tree: %s", tree)
		}
		if v := b.Get(key); v != nil {
			value = append([]byte(nil), v...) // bbolt's Get is only valid within the transaction
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (s *BoltKV) Put(tree Tree, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("unknown tree: %s", tree)
		}
		return b.Put(key, value)
	})
}

func (s *BoltKV) Delete(tree Tree, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("unknown tree: %s", tree)
		}
		return b.Delete(key)
	})
}

func (s *BoltKV) Range(ctx context.Context, tree Tree, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("unknown tree: %s", tree)
		}
		c := b.Cursor()
		for k, v := seekPrefix(c, prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			more, err := fn(append([]byte(nil), k...), append([]byte(nil), v...))
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		return nil
	})
}

func seekPrefix(c *bolt.Cursor, prefix []byte) (key, value []byte) {
	if len(prefix) == 0 {
		return c.First()
	}
	return c.Seek(prefix)
}

// CAS implements compare-and-swap for a single key within a single tree.
// bbolt transactions are already serialized per-writer, so this is a plain
// read-modify-write inside one Update call - the atomicity guarantee spec.md
// §4.A asks for comes from bbolt's single-writer model, not from any extra
// locking here.
func (s *BoltKV) CAS(tree Tree, key, expected, newValue []byte) (bool, []byte, error) {
	var applied bool
	var current []byte

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("unknown tree: %s", tree)
		}

		existing := b.Get(key)
		match := (existing == nil && expected == nil) || bytes.Equal(existing, expected)

		if !match {
			current = append([]byte(nil), existing...)
			return nil
		}

		if newValue == nil {
			if err := b.Delete(key); err != nil {
				return err
			}
			current = nil
		} else {
			if err := b.Put(key, newValue); err != nil {
				return err
			}
			current = append([]byte(nil), newValue...)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return applied, current, nil
}
