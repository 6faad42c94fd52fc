package jsonkv

import (
	"encoding/json"
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Dataset is the full key to value mapping held by a store. Keys keep
// their insertion order, which is also the pagination order. Values are
// stored in their serialized JSON form.
//
// A Dataset is not safe for concurrent use; the store serializes access to
// the live view and hands out fresh copies everywhere else.
type Dataset struct {
	m *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{m: orderedmap.New[string, json.RawMessage]()}
}

// Len returns the number of keys.
func (d *Dataset) Len() int {
	return d.m.Len()
}

// Get returns the value stored under key.
func (d *Dataset) Get(key string) (json.RawMessage, bool) {
	return d.m.Get(key)
}

// Set inserts or replaces the value under key. A new key goes to the end
// of the order; replacing keeps the key's existing position.
func (d *Dataset) Set(key string, value json.RawMessage) {
	d.m.Set(key, value)
}

// Delete removes key and reports whether it was present.
func (d *Dataset) Delete(key string) bool {
	_, present := d.m.Delete(key)
	return present
}

// All returns an iterator over key/value pairs in insertion order.
func (d *Dataset) All() iter.Seq2[string, json.RawMessage] {
	return func(yield func(string, json.RawMessage) bool) {
		for p := d.m.Oldest(); p != nil; p = p.Next() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Keys returns all keys in insertion order.
func (d *Dataset) Keys() []string {
	keys := make([]string, 0, d.m.Len())
	for p := d.m.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Clone returns a copy sharing the (never mutated) value bytes.
func (d *Dataset) Clone() *Dataset {
	out := NewDataset()
	for p := d.m.Oldest(); p != nil; p = p.Next() {
		out.m.Set(p.Key, p.Value)
	}
	return out
}

// Page returns the sub-mapping whose position falls on the 1-based page
// number at the given page size, preserving insertion order. Out of range
// pages return an empty dataset.
func (d *Dataset) Page(page, size int) *Dataset {
	out := NewDataset()
	if page < 1 || size < 1 {
		return out
	}
	start := (page - 1) * size
	i := 0
	for p := d.m.Oldest(); p != nil && i < start+size; p = p.Next() {
		if i >= start {
			out.m.Set(p.Key, p.Value)
		}
		i++
	}
	return out
}

// MarshalJSON encodes the dataset as a single JSON object with keys in
// insertion order. An empty dataset encodes as {}.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	return d.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, preserving the document's key order.
func (d *Dataset) UnmarshalJSON(b []byte) error {
	m := orderedmap.New[string, json.RawMessage]()
	if err := m.UnmarshalJSON(b); err != nil {
		return err
	}
	d.m = m
	return nil
}
