// Package prng provides the deterministic ChaCha20 stream used by every
// randomized engine operation.
//
// A stream is keyed with SHA-256(seed || entropy) and runs with a zero nonce
// from block counter 0, so identical inputs always yield identical draws.
package prng

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

// SeedSize is the length of a persisted seed.
const SeedSize = 32

// Prng is a ChaCha20 keystream reader.
type Prng struct {
	cipher *chacha20.Cipher
}

// New keys a stream from the persisted seed and per-message entropy.
func New(seed, entropy []byte) *Prng {
	h := sha256.New()
	h.Write(seed)
	h.Write(entropy)
	var key [SeedSize]byte
	copy(key[:], h.Sum(nil))
	return NewFromKey(key)
}

// NewFromKey keys a stream directly.
func NewFromKey(key [SeedSize]byte) *Prng {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// key and nonce sizes are fixed above
		panic(err)
	}
	return &Prng{cipher: c}
}

func (p *Prng) fill(b []byte) {
	for i := range b {
		b[i] = 0
	}
	p.cipher.XORKeyStream(b, b)
}

// NextU64 returns the next 8 keystream bytes as a little-endian integer.
func (p *Prng) NextU64() uint64 {
	var b [8]byte
	p.fill(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// RandBytes returns the next 32 keystream bytes.
func (p *Prng) RandBytes() [SeedSize]byte {
	var b [SeedSize]byte
	p.fill(b[:])
	return b
}

// Uniform returns NextU64() mod n. n must be positive.
func (p *Prng) Uniform(n uint64) uint64 {
	return p.NextU64() % n
}

// ExtendEntropy binds a message's environment into the entropy that keys its stream.
func ExtendEntropy(height, time uint64, caller string, entropy []byte) []byte {
	out := make([]byte, 0, 16+len(caller)+len(entropy))
	out = binary.BigEndian.AppendUint64(out, height)
	out = binary.BigEndian.AppendUint64(out, time)
	out = append(out, caller...)
	out = append(out, entropy...)
	return out
}

// InitialSeed derives the first persisted seed from instantiation entropy.
func InitialSeed(entropy string) []byte {
	sum := sha256.Sum256([]byte(base64.StdEncoding.EncodeToString([]byte(entropy))))
	return sum[:]
}
