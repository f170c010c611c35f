package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestTxnReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	txn := Begin(ctx, b)

	key := Key(PrefixCategory, U8(0))
	if err := Save(txn, key, record{Name: "Background", Count: 12}); err != nil {
		t.Fatal(err)
	}

	got, err := Load[record](txn, key)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(record{Name: "Background", Count: 12}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := b.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("backend saw uncommitted write: %v", err)
	}
}

func TestTxnCommitAndDiscard(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	txn := Begin(ctx, b)
	txn.Set([]byte("a"), []byte("1"))
	txn.Set([]byte("b"), []byte("2"))
	txn.Delete([]byte("b"))
	if txn.Pending() != 2 {
		t.Errorf("pending = %d, want 2", txn.Pending())
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err == nil {
		t.Error("second commit should fail")
	}

	if v, err := b.Get(ctx, []byte("a")); err != nil || string(v) != "1" {
		t.Errorf("a = %q, %v", v, err)
	}
	if _, err := b.Get(ctx, []byte("b")); !errors.Is(err, ErrNotFound) {
		t.Errorf("b should be deleted, got %v", err)
	}

	txn = Begin(ctx, b)
	txn.Set([]byte("a"), []byte("changed"))
	txn.Discard()
	if v, _ := b.Get(ctx, []byte("a")); string(v) != "1" {
		t.Errorf("discarded write leaked: %q", v)
	}
}

func TestMayLoadMissing(t *testing.T) {
	txn := Begin(context.Background(), NewMemoryBackend())
	_, ok, err := MayLoad[record](txn, []byte("missing"))
	if err != nil || ok {
		t.Errorf("ok = %v, err = %v", ok, err)
	}
	if _, err := Load[record](txn, []byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestKeyPartsArePrefixes(t *testing.T) {
	parent := Key(PrefixWinner, U8(0), U16(3))
	child := Key(PrefixWinner, U8(0), U16(3), U32(7))
	other := Key(PrefixWinner, U8(1), U16(3), U32(7))

	if !bytes.HasPrefix(child, parent) {
		t.Error("child key should extend parent key")
	}
	if bytes.HasPrefix(other, parent) {
		t.Error("different collection must not share the prefix")
	}
	// "ab"+"c" and "a"+"bc" must not collide
	if bytes.Equal(Key(PrefixVariantMap, Str("ab"), Str("c")), Key(PrefixVariantMap, Str("a"), Str("bc"))) {
		t.Error("length delimiting failed")
	}
}

func TestTxnScanMergesOverlay(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	_ = b.Apply(ctx, []Write{
		{Key: Key(PrefixSkullStake, Str("1")), Value: []byte("one")},
		{Key: Key(PrefixSkullStake, Str("2")), Value: []byte("two")},
		{Key: Key(PrefixUserStake, Str("x")), Value: []byte("other")},
	})

	txn := Begin(ctx, b)
	txn.Delete(Key(PrefixSkullStake, Str("1")))
	txn.Set(Key(PrefixSkullStake, Str("3")), []byte("three"))

	kvs, err := txn.Scan(Single(PrefixSkullStake))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, kv := range kvs {
		got = append(got, string(kv.Value))
	}
	if diff := cmp.Diff([]string{"two", "three"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		in, want []byte
	}{
		{[]byte{0x01}, []byte{0x02}},
		{[]byte{0x01, 0xff}, []byte{0x02}},
		{[]byte{0xff, 0xff}, nil},
	}
	for _, tt := range tests {
		if got := prefixEnd(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("prefixEnd(%x) = %x, want %x", tt.in, got, tt.want)
		}
	}
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	txn := Begin(ctx, b)
	_ = Save(txn, Key(PrefixCategory, U8(0)), record{Name: "Background"})
	_ = Save(txn, Key(PrefixCategory, U8(1)), record{Name: "Skull"})
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	txn = Begin(ctx, b)
	got, err := Load[record](txn, Key(PrefixCategory, U8(1)))
	if err != nil || got.Name != "Skull" {
		t.Fatalf("got %+v, %v", got, err)
	}
	kvs, err := txn.Scan(Single(PrefixCategory))
	if err != nil || len(kvs) != 2 {
		t.Fatalf("scan = %d entries, %v", len(kvs), err)
	}

	txn.Delete(Key(PrefixCategory, U8(0)))
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get(ctx, Key(PrefixCategory, U8(0))); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deletion, got %v", err)
	}
	if err := b.Checkpoint(ctx); err != nil {
		t.Errorf("checkpoint: %v", err)
	}

	stats, err := b.Stats(ctx)
	if err != nil || stats["total_keys"].(int64) != 1 {
		t.Errorf("stats = %v, %v", stats, err)
	}
}
