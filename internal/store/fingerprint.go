package store

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// fingerprintLen is the hex-encoded prefix length of the 256-bit digest
const fingerprintLen = 32

// Fingerprinter builds a deterministic content hash over the full parameter
// set of a request. Fields are length-prefixed so adjacent parameters can
// never collide by concatenation, and every writer is explicit about
// whether order matters.
type Fingerprinter struct {
	parts [][]byte
}

// NewFingerprinter creates an empty fingerprinter
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{}
}

// Field adds one order-sensitive string field
func (f *Fingerprinter) Field(s string) *Fingerprinter {
	f.parts = append(f.parts, []byte(s))
	return f
}

// Int adds one integer field
func (f *Fingerprinter) Int(n int) *Fingerprinter {
	return f.Field(strconv.Itoa(n))
}

// Ints adds an order-sensitive integer list (anchor lists are positional)
func (f *Fingerprinter) Ints(ns []int) *Fingerprinter {
	for _, n := range ns {
		f.Int(n)
	}
	return f.Int(len(ns))
}

// Set adds an order-insensitive string set (attribute lists are sets)
func (f *Fingerprinter) Set(items []string) *Fingerprinter {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	for _, s := range sorted {
		f.Field(s)
	}
	return f.Int(len(sorted))
}

// Sum returns the hex fingerprint, truncated to a fixed prefix
func (f *Fingerprinter) Sum() string {
	h, _ := blake2b.New256(nil)
	var lenBuf [8]byte
	for _, p := range f.parts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))[:fingerprintLen]
}
