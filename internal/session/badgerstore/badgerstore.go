// Package badgerstore persists sessions in an embedded BadgerDB so
// conversations survive a restart.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/linnemanlabs/packassist/internal/session"
)

var keyPrefix = []byte("session/")

func key(id string) []byte {
	return append(append([]byte{}, keyPrefix...), id...)
}

// Config selects where and how sessions are stored.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// TTL, when positive, lets badger expire sessions on its own in
	// addition to Reap.
	TTL time.Duration
}

// Store implements session.Repository on BadgerDB.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (creating if needed) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Path == "":
		return nil, errors.New("badgerstore: path is required for a persistent database")
	default:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db, ttl: cfg.TTL}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get loads a session by id.
func (s *Store) Get(_ context.Context, id string) (*session.Session, bool, error) {
	var sess session.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &sess)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badgerstore: get %s: %w", id, err)
	}
	return &sess, true, nil
}

// Put writes the session, replacing any previous version.
func (s *Store) Put(_ context.Context, sess *session.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	v, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("badgerstore: encode %s: %w", sess.ID, err)
	}
	e := badger.NewEntry(key(sess.ID), v)
	if s.ttl > 0 {
		e = e.WithTTL(s.ttl)
	}
	if err := s.db.Update(func(txn *badger.Txn) error { return txn.SetEntry(e) }); err != nil {
		return fmt.Errorf("badgerstore: put %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes a session. Unknown ids are not an error.
func (s *Store) Delete(_ context.Context, id string) error {
	if err := s.db.Update(func(txn *badger.Txn) error { return txn.Delete(key(id)) }); err != nil {
		return fmt.Errorf("badgerstore: delete %s: %w", id, err)
	}
	return nil
}

// Reap deletes sessions last updated before idleBefore.
func (s *Store) Reap(ctx context.Context, idleBefore time.Time) (int, error) {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: keyPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var meta struct {
				UpdatedAt time.Time `json:"updated_at"`
			}
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &meta) }); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			if meta.UpdatedAt.Before(idleBefore) {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badgerstore: scan: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("badgerstore: delete %s: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("badgerstore: flush deletes: %w", err)
	}
	return len(stale), nil
}
