package prng

import (
	"bytes"
	"testing"
)

func TestZeroKeyVector(t *testing.T) {
	// first keystream block of ChaCha20 with an all-zero key and nonce
	p := NewFromKey([SeedSize]byte{})
	if got, want := p.NextU64(), uint64(0x903df1a0ade0b876); got != want {
		t.Errorf("NextU64() = %#x, want %#x", got, want)
	}
}

func TestDeterministic(t *testing.T) {
	seed := InitialSeed("skulls")
	entropy := ExtendEntropy(100, 1_000_000, "secret1abc", []byte("roll"))

	a := New(seed, entropy)
	b := New(seed, entropy)
	for i := 0; i < 50; i++ {
		if x, y := a.NextU64(), b.NextU64(); x != y {
			t.Fatalf("draw %d diverged: %d vs %d", i, x, y)
		}
	}
	if a.RandBytes() != b.RandBytes() {
		t.Fatal("RandBytes diverged")
	}
}

func TestEntropyChangesStream(t *testing.T) {
	seed := InitialSeed("skulls")
	tests := []struct {
		name string
		a, b []byte
	}{
		{"height", ExtendEntropy(1, 5, "u", nil), ExtendEntropy(2, 5, "u", nil)},
		{"time", ExtendEntropy(1, 5, "u", nil), ExtendEntropy(1, 6, "u", nil)},
		{"caller", ExtendEntropy(1, 5, "u", nil), ExtendEntropy(1, 5, "v", nil)},
		{"user entropy", ExtendEntropy(1, 5, "u", []byte("x")), ExtendEntropy(1, 5, "u", []byte("y"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if New(seed, tt.a).NextU64() == New(seed, tt.b).NextU64() {
				t.Error("streams should differ")
			}
		})
	}
}

func TestRandBytesAdvances(t *testing.T) {
	p := New([]byte("seed"), []byte("entropy"))
	first := p.RandBytes()
	second := p.RandBytes()
	if bytes.Equal(first[:], second[:]) {
		t.Error("consecutive RandBytes should differ")
	}
}

func TestUniformRange(t *testing.T) {
	p := New([]byte("seed"), nil)
	for i := 0; i < 1000; i++ {
		if v := p.Uniform(7); v >= 7 {
			t.Fatalf("Uniform(7) = %d", v)
		}
	}
}

func TestInitialSeedLength(t *testing.T) {
	if got := len(InitialSeed("")); got != SeedSize {
		t.Errorf("len = %d", got)
	}
}
