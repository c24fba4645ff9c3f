package storage

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	bolt "go.etcd.io/bbolt"
)

// Database is a generic interface for an ordered key-value store. The credit
// manager state layout relies on prefix iteration in ascending key order, so
// every backend must honour that contract.
type Database interface {
	Put(key []byte, value []byte) error
	// Get returns (nil, nil) when the key is absent.
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	// Iterate visits every key with the given prefix in ascending order. The
	// callback returns false to stop early.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	Close() error
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

func (db *MemDB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	db.mu.RLock()
	keys := make([]string, 0, len(db.data))
	for k := range db.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	db.mu.RUnlock()
	sort.Strings(keys)
	for _, k := range keys {
		db.mu.RLock()
		v, ok := db.data[k]
		db.mu.RUnlock()
		if !ok {
			continue
		}
		if !fn([]byte(k), append([]byte(nil), v...)) {
			return nil
		}
	}
	return nil
}

func (db *MemDB) Close() error { return nil }

// --- Persistent DB (LevelDB) ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

func (ldb *LevelDB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	iter := ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if !fn(key, value) {
			break
		}
	}
	return iter.Error()
}

func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}

// --- Persistent DB (BoltDB) ---

var boltBucket = []byte("credit")

// BoltDB is a persistent key-value store backed by a single bbolt bucket.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates or opens a bbolt database at the specified path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltDB{db: db}, nil
}

func (bdb *BoltDB) Put(key []byte, value []byte) error {
	return bdb.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

func (bdb *BoltDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := bdb.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket(boltBucket).Get(key)
		if stored != nil {
			value = append([]byte(nil), stored...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (bdb *BoltDB) Delete(key []byte) error {
	return bdb.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

func (bdb *BoltDB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return bdb.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(boltBucket).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			key := append([]byte(nil), k...)
			value := append([]byte(nil), v...)
			if !fn(key, value) {
				return nil
			}
		}
		return nil
	})
}

func (bdb *BoltDB) Close() error {
	return bdb.db.Close()
}

// Open selects a backend by name. Supported backends are "memory", "leveldb"
// and "bolt".
func Open(backend, path string) (Database, error) {
	switch backend {
	case "", "memory":
		return NewMemDB(), nil
	case "leveldb":
		return NewLevelDB(path)
	case "bolt":
		return NewBoltDB(path)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
