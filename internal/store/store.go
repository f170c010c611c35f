// Package store is the flat byte-keyed persistence layer shared by every
// engine. Writes made while handling one message are collected in a Txn and
// reach the Backend in a single atomic Apply, or not at all.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned by Backend.Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// KV is a stored key/value pair.
type KV struct {
	Key   []byte
	Value []byte
}

// Write is one mutation of a batch. Delete ignores Value.
type Write struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Backend is a persistent byte-keyed map.
type Backend interface {
	// Get returns the value stored at key or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Scan returns every pair whose key starts with prefix, sorted by key.
	Scan(ctx context.Context, prefix []byte) ([]KV, error)

	// Apply commits a batch of writes atomically.
	Apply(ctx context.Context, writes []Write) error

	// Close releases the backend's resources.
	Close() error
}

// Checkpointer is implemented by backends with periodic housekeeping.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// StatsProvider is implemented by backends that can describe themselves.
type StatsProvider interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// Txn buffers the writes of a single message on top of a Backend.
// Reads observe the Txn's own earlier writes. A Txn is not safe for
// concurrent use.
type Txn struct {
	ctx     context.Context
	backend Backend
	writes  map[string]*Write
	order   []string
	done    bool
}

// Begin starts a transaction over b.
func Begin(ctx context.Context, b Backend) *Txn {
	return &Txn{
		ctx:     ctx,
		backend: b,
		writes:  make(map[string]*Write),
	}
}

// Context returns the context the transaction was started with.
func (t *Txn) Context() context.Context {
	return t.ctx
}

// Get returns the value at key and whether it exists.
func (t *Txn) Get(key []byte) ([]byte, bool, error) {
	if w, ok := t.writes[string(key)]; ok {
		if w.Delete {
			return nil, false, nil
		}
		return w.Value, true, nil
	}
	v, err := t.backend.Get(t.ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set records value at key.
func (t *Txn) Set(key, value []byte) {
	t.record(Write{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
}

// Delete records removal of key.
func (t *Txn) Delete(key []byte) {
	t.record(Write{Key: append([]byte(nil), key...), Delete: true})
}

func (t *Txn) record(w Write) {
	k := string(w.Key)
	if _, ok := t.writes[k]; !ok {
		t.order = append(t.order, k)
	}
	t.writes[k] = &w
}

// Scan returns the pairs under prefix as seen by this transaction.
func (t *Txn) Scan(prefix []byte) ([]KV, error) {
	stored, err := t.backend.Scan(t.ctx, prefix)
	if err != nil {
		return nil, err
	}
	merged := make(map[string][]byte, len(stored))
	for _, kv := range stored {
		merged[string(kv.Key)] = kv.Value
	}
	for k, w := range t.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if w.Delete {
			delete(merged, k)
		} else {
			merged[k] = w.Value
		}
	}
	out := make([]KV, 0, len(merged))
	for k, v := range merged {
		out = append(out, KV{Key: []byte(k), Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out, nil
}

// Pending returns the number of buffered writes.
func (t *Txn) Pending() int {
	return len(t.order)
}

// Commit applies every buffered write in one batch.
func (t *Txn) Commit() error {
	if t.done {
		return errors.New("store: transaction already finished")
	}
	t.done = true
	if len(t.order) == 0 {
		return nil
	}
	batch := make([]Write, 0, len(t.order))
	for _, k := range t.order {
		batch = append(batch, *t.writes[k])
	}
	if err := t.backend.Apply(t.ctx, batch); err != nil {
		return fmt.Errorf("store: commit %d writes: %w", len(batch), err)
	}
	return nil
}

// Discard drops every buffered write.
func (t *Txn) Discard() {
	t.done = true
	t.writes = nil
	t.order = nil
}

// Load decodes the value at key into a T. A missing key is ErrNotFound.
func Load[T any](t *Txn, key []byte) (T, error) {
	v, ok, err := MayLoad[T](t, key)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, ErrNotFound
	}
	return v, nil
}

// MayLoad decodes the value at key if present.
func MayLoad[T any](t *Txn, key []byte) (T, bool, error) {
	var v T
	raw, ok, err := t.Get(key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("store: decode value: %w", err)
	}
	return v, true, nil
}

// Save encodes v and records it at key.
func Save(t *Txn, key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode value: %w", err)
	}
	t.Set(key, raw)
	return nil
}

// Remove records removal of key.
func Remove(t *Txn, key []byte) {
	t.Delete(key)
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
