package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore(t *testing.T, cfg Config) (*Store, *clock, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := Open(cfg, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.now = c.now
	return s, c, logs
}

func TestSetGetRemove(t *testing.T) {
	s, _, _ := newStore(t, Config{})

	require.NoError(t, s.SetItem("theme", "dark"))
	v, ok, err := s.GetItem("theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)

	require.NoError(t, s.SetItem("theme", "light"))
	v, _, _ = s.GetItem("theme")
	assert.Equal(t, "light", v)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.RemoveItem("theme"))
	require.NoError(t, s.RemoveItem("theme"))
	_, ok, err = s.GetItem("theme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidKeys(t *testing.T) {
	s, _, _ := newStore(t, Config{})

	for _, key := range []string{"@expires", "#modified", ""} {
		assert.ErrorIs(t, s.SetItem(key, "v"), ErrInvalidKey, key)
		_, _, err := s.GetItem(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		assert.ErrorIs(t, s.RemoveItem(key), ErrInvalidKey, key)
	}
	assert.ErrorIs(t, s.SetItems(map[string]string{"ok": "1", "@bad": "2"}), ErrInvalidKey)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpiry(t *testing.T) {
	s, c, _ := newStore(t, Config{Expiry: time.Hour})

	require.NoError(t, s.SetItem("short", "1", time.Minute))
	require.NoError(t, s.SetItem("default", "2"))

	c.advance(2 * time.Minute)
	_, ok, err := s.GetItem("short")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry returned")

	v, ok, err := s.GetItem("default")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	// expired entry is gone after read
	n, _ := s.Len()
	assert.Equal(t, 1, n)

	c.advance(time.Hour)
	purged, err := s.Purge()
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestEviction(t *testing.T) {
	s, c, logs := newStore(t, Config{Size: 3})

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, s.SetItem(key, key))
		c.advance(time.Second)
	}
	// touching "a" makes "b" the oldest
	require.NoError(t, s.SetItem("a", "A"))
	c.advance(time.Second)

	require.NoError(t, s.SetItem("d", "d"))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, keys)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Storage is full").Len())

	// updating existing key in full store evicts nothing
	require.NoError(t, s.SetItem("c", "C"))
	keys, _ = s.Keys()
	assert.Equal(t, []string{"a", "c", "d"}, keys)
}

func TestEvictionSameTimestamp(t *testing.T) {
	s, _, _ := newStore(t, Config{Size: 2})

	require.NoError(t, s.SetItem("x", "1"))
	require.NoError(t, s.SetItem("y", "2"))
	require.NoError(t, s.SetItem("z", "3"))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, keys)
}

func TestSetItemsAndClear(t *testing.T) {
	s, _, _ := newStore(t, Config{})

	require.NoError(t, s.SetItems(map[string]string{"k1": "v1", "k2": "v2", "k3": "v3"}))
	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.Clear())
	n, _ = s.Len()
	assert.Zero(t, n)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := Open(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetItem("persist", "yes"))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: path}, nil)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.GetItem("persist")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yes", v)
}
