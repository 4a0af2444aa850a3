package header

import (
	"sync/atomic"

	"golang.org/x/crypto/sha3"
)

// BlockHeader is a proof-of-work block header belonging to one chain of a
// multi-chain DAG. Its content hash (Hash) is the sole identity used by the
// header store; every other field is opaque to the store beyond the
// accessors listed in spec.md §3.
type BlockHeader struct {
	Height          uint64
	ParentHash      BlockHash
	ChainID         uint32
	Target          uint64 // difficulty target, smaller is harder
	Weight          uint64 // cumulative chain weight up to and including this header
	PayloadHash     BlockHash
	ChainwebVersion string
	Timestamp       uint64
	Nonce           uint64
	Extra           []byte

	// hash caches the content hash of the canonical encoding. Not part of
	// the encoding itself (unexported fields are skipped by rlp).
	hash atomic.Pointer[BlockHash]
}

// Hash returns the content hash of the header: keccak256 of its canonical
// encoding. The result is cached on first computation.
func (h *BlockHeader) Hash() BlockHash {
	if cached := h.hash.Load(); cached != nil {
		return *cached
	}
	enc, err := Encode(h)
	if err != nil {
		// Encode only fails on an unencodable field, which never happens
		// for BlockHeader's fixed field set; a panic here would indicate a
		// programming error introduced by a future field addition.
		panic("header: encode failed computing hash: " + err.Error())
	}
	sum := sha3.NewLegacyKeccak256()
	sum.Write(enc)
	var hash BlockHash
	copy(hash[:], sum.Sum(nil))
	h.hash.Store(&hash)
	return hash
}

// IsGenesis reports whether this header is a height-0 genesis header.
func (h *BlockHeader) IsGenesis() bool { return h.Height == 0 }

// Equal reports whether two headers encode to the same bytes. Used by
// tests verifying the P1 round-trip property.
func (h *BlockHeader) Equal(o *BlockHeader) bool {
	if h == nil || o == nil {
		return h == o
	}
	ea, err1 := Encode(h)
	eb, err2 := Encode(o)
	if err1 != nil || err2 != nil {
		return false
	}
	if len(ea) != len(eb) {
		return false
	}
	for i := range ea {
		if ea[i] != eb[i] {
			return false
		}
	}
	return true
}
