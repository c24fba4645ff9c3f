package storage

import (
	"bytes"
	"sort"
)

// Overlay buffers writes and deletes on top of a base database. Reads observe
// the buffered state first. Nothing reaches the base until Commit; dropping the
// overlay discards every pending mutation, which is how the credit manager
// rolls back a failed action sequence.
type Overlay struct {
	base    Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	k := string(key)
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return nil, nil
	}
	if v, ok := o.writes[k]; ok {
		return append([]byte(nil), v...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// Iterate merges buffered keys with the base iteration, preserving ascending
// order and hiding deleted entries.
func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	err := o.base.Iterate(prefix, func(key, value []byte) bool {
		merged[string(key)] = value
		return true
	})
	if err != nil {
		return err
	}
	for k, v := range o.writes {
		if bytes.HasPrefix([]byte(k), prefix) {
			merged[k] = v
		}
	}
	for k := range o.deletes {
		delete(merged, k)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			return nil
		}
	}
	return nil
}

func (o *Overlay) Close() error { return nil }

// Commit flushes buffered mutations to the base database.
func (o *Overlay) Commit() error {
	for k := range o.deletes {
		if err := o.base.Delete([]byte(k)); err != nil {
			return err
		}
	}
	for k, v := range o.writes {
		if err := o.base.Put([]byte(k), v); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}
