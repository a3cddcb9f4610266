// Package storage is a small persistent key-value store with per-key expiry
// and size bounded eviction of least recently modified entries.
package storage

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Defaults.
const (
	DefaultSize   = 1000
	DefaultExpiry = 30 * 24 * time.Hour
)

// ErrInvalidKey is returned for keys starting with '@' or '#', which are
// reserved.
var ErrInvalidKey = errors.New("invalid storage key")

const schema = `
CREATE TABLE IF NOT EXISTS items (
	key      TEXT PRIMARY KEY,
	value    TEXT NOT NULL,
	expires  INTEGER,
	modified INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS items_modified ON items (modified);
`

// Config describes store.
type Config struct {
	// Path of the database file, empty means in-memory store.
	Path string
	// Size is maximum number of entries.
	Size int
	// Expiry is default time to live.
	Expiry time.Duration
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	conn   *sqlite.Conn
	log    *zap.Logger
	size   int
	expiry time.Duration
	now    func() time.Time
}

// Open opens (creating if necessary) store.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		conn *sqlite.Conn
		err  error
	)
	if cfg.Path == "" || cfg.Path == ":memory:" {
		conn, err = sqlite.OpenConn(":memory:", sqlite.OpenReadWrite, sqlite.OpenMemory)
	} else {
		conn, err = sqlite.OpenConn(cfg.Path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	}
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create storage schema: %w", err)
	}

	s := &Store{
		conn:   conn,
		log:    log.Named("storage"),
		size:   cfg.Size,
		expiry: cfg.Expiry,
		now:    time.Now,
	}
	if s.size <= 0 {
		s.size = DefaultSize
	}
	if s.expiry <= 0 {
		s.expiry = DefaultExpiry
	}
	return s, nil
}

// Close closes database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "@") || strings.HasPrefix(key, "#") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// GetItem returns value of a live entry. Expired entries are removed and
// reported missing.
func (s *Store) GetItem(key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		value   string
		expires int64
		found   bool
		hasTTL  bool
	)
	err := sqlitex.Execute(s.conn, `SELECT value, expires FROM items WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			value = stmt.ColumnText(0)
			hasTTL = stmt.ColumnType(1) != sqlite.TypeNull
			expires = stmt.ColumnInt64(1)
			return nil
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	if !found {
		return "", false, nil
	}
	if !hasTTL || expires <= s.now().UnixNano() {
		s.log.Debug("Dropping expired entry", zap.String("key", key))
		if err := s.remove(key); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return value, true, nil
}

// SetItem stores value with time to live, default expiry is used when ttl
// is not given. Adding new key to full store evicts least recently modified
// entry.
func (s *Store) SetItem(key, value string, ttl ...time.Duration) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(key, value, ttl...)
}

// SetItems stores every entry with default expiry in a single transaction.
func (s *Store) SetItems(items map[string]string) (err error) {
	keys := slices.Sorted(maps.Keys(items))
	for _, key := range keys {
		if err := checkKey(key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	defer sqlitex.Save(s.conn)(&err)
	for _, key := range keys {
		if err = s.set(key, items[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) set(key, value string, ttl ...time.Duration) error {
	exists, err := s.exists(key)
	if err != nil {
		return err
	}
	if !exists {
		n, err := s.count()
		if err != nil {
			return err
		}
		if n >= s.size {
			if err := s.evict(); err != nil {
				return err
			}
		}
	}

	expiry := s.expiry
	if len(ttl) > 0 {
		expiry = ttl[0]
	}
	now := s.now()
	err = sqlitex.Execute(s.conn, `INSERT OR REPLACE INTO items (key, value, expires, modified) VALUES (?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{key, value, now.Add(expiry).UnixNano(), now.UnixNano()},
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// evict removes least recently modified entry, ties are broken by
// insertion order.
func (s *Store) evict() error {
	var victim string
	err := sqlitex.Execute(s.conn, `SELECT key FROM items ORDER BY modified, rowid LIMIT 1`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			victim = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("find eviction victim: %w", err)
	}
	s.log.Warn("Storage is full, evicting least recently modified entry", zap.Int("size", s.size), zap.String("key", victim))
	if victim == "" {
		return nil
	}
	return s.remove(victim)
}

// RemoveItem deletes entry, missing entry is not an error.
func (s *Store) RemoveItem(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(key)
}

func (s *Store) remove(key string) error {
	if err := sqlitex.Execute(s.conn, `DELETE FROM items WHERE key = ?`, &sqlitex.ExecOptions{Args: []any{key}}); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Clear deletes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := sqlitex.Execute(s.conn, `DELETE FROM items`, nil); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Purge deletes expired entries and returns their number.
func (s *Store) Purge() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := sqlitex.Execute(s.conn, `DELETE FROM items WHERE expires IS NULL OR expires <= ?`, &sqlitex.ExecOptions{
		Args: []any{s.now().UnixNano()},
	})
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return s.conn.Changes(), nil
}

// Len returns number of stored entries, expired included until they are
// read or purged.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count()
}

// Keys returns stored keys in lexical order.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	err := sqlitex.Execute(s.conn, `SELECT key FROM items ORDER BY key`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			keys = append(keys, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

func (s *Store) count() (int, error) {
	var n int
	err := sqlitex.Execute(s.conn, `SELECT count(*) FROM items`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) exists(key string) (bool, error) {
	var found bool
	err := sqlitex.Execute(s.conn, `SELECT 1 FROM items WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("lookup %q: %w", key, err)
	}
	return found, nil
}
