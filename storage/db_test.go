package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Database {
	t.Helper()
	dir := t.TempDir()

	leveldb, err := NewLevelDB(filepath.Join(dir, "leveldb"))
	require.NoError(t, err)
	boltdb, err := NewBoltDB(filepath.Join(dir, "bolt.db"))
	require.NoError(t, err)

	backends := map[string]Database{
		"memory":  NewMemDB(),
		"leveldb": leveldb,
		"bolt":    boltdb,
	}
	t.Cleanup(func() {
		for _, db := range backends {
			require.NoError(t, db.Close())
		}
	})
	return backends
}

func TestDatabaseRoundTrip(t *testing.T) {
	for name, db := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("k1"), []byte("v1")))

			got, err := db.Get([]byte("k1"))
			require.NoError(t, err)
			require.Equal(t, []byte("v1"), got)

			missing, err := db.Get([]byte("absent"))
			require.NoError(t, err)
			require.Nil(t, missing)

			require.NoError(t, db.Delete([]byte("k1")))
			gone, err := db.Get([]byte("k1"))
			require.NoError(t, err)
			require.Nil(t, gone)
		})
	}
}

func TestDatabaseIterateOrdered(t *testing.T) {
	entries := map[string]string{
		"acct/1/uatom": "a",
		"acct/1/uosmo": "b",
		"acct/2/uosmo": "c",
		"other/key":    "d",
	}
	for name, db := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			for k, v := range entries {
				require.NoError(t, db.Put([]byte(k), []byte(v)))
			}

			var keys []string
			require.NoError(t, db.Iterate([]byte("acct/1/"), func(key, value []byte) bool {
				keys = append(keys, string(key))
				return true
			}))
			require.Equal(t, []string{"acct/1/uatom", "acct/1/uosmo"}, keys)

			// Early stop.
			keys = keys[:0]
			require.NoError(t, db.Iterate([]byte("acct/"), func(key, value []byte) bool {
				keys = append(keys, string(key))
				return false
			}))
			require.Len(t, keys, 1)
		})
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	db, err := Open("memory", "")
	require.NoError(t, err)
	require.IsType(t, &MemDB{}, db)
	require.NoError(t, db.Close())

	db, err = Open("bolt", filepath.Join(dir, "open.db"))
	require.NoError(t, err)
	require.IsType(t, &BoltDB{}, db)
	require.NoError(t, db.Close())

	_, err = Open("cassandra", "")
	require.Error(t, err)
}
