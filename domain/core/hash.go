package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Fingerprint accumulates labelled strings and float vectors into a stable hash.
// Floats are hashed by their IEEE-754 bits so that identical inputs always
// produce identical fingerprints.
type Fingerprint struct {
	h hash.Hash
}

// NewFingerprint starts an empty fingerprint
func NewFingerprint() *Fingerprint {
	return &Fingerprint{h: sha256.New()}
}

// String adds a length-prefixed string
func (f *Fingerprint) String(s string) *Fingerprint {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
	f.h.Write(n[:])
	f.h.Write([]byte(s))
	return f
}

// Floats adds a length-prefixed float vector
func (f *Fingerprint) Floats(xs []float64) *Fingerprint {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(xs)))
	f.h.Write(buf[:])
	for _, x := range xs {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		f.h.Write(buf[:])
	}
	return f
}

// Sum returns the accumulated hash
func (f *Fingerprint) Sum() Hash {
	return Hash(hex.EncodeToString(f.h.Sum(nil)))
}
