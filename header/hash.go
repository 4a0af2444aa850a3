// Package header defines the block header data model shared by the
// content-addressed store: BlockHash, BlockHeader, and their canonical
// encoding.
package header

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// HashLength is the size in bytes of a BlockHash.
const HashLength = 32

// BlockHash is a 32-byte content digest with a total (lexicographic) order.
type BlockHash [HashLength]byte

// BytesToHash left-pads b to 32 bytes and returns the resulting BlockHash.
func BytesToHash(b []byte) BlockHash {
	var h BlockHash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToHash decodes a "0x"-prefixed or bare hex string into a BlockHash.
func HexToHash(s string) BlockHash {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, _ := hex.DecodeString(s)
	return BytesToHash(b)
}

// Bytes returns the byte representation of the hash.
func (h BlockHash) Bytes() []byte { return h[:] }

// Hex returns the "0x"-prefixed hex representation of the hash.
func (h BlockHash) Hex() string { return fmt.Sprintf("0x%x", h[:]) }

// String implements fmt.Stringer.
func (h BlockHash) String() string { return h.Hex() }

// IsZero reports whether the hash is the all-zero value.
func (h BlockHash) IsZero() bool { return h == BlockHash{} }

// Less implements the hash's total order: plain lexicographic comparison
// on the underlying bytes, used to order TreeEntry records and to make
// fork-choice tie-breaks deterministic.
func (h BlockHash) Less(o BlockHash) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}

// Base64URL returns the unpadded RFC 4648 base64url encoding of the hash,
// the on-disk encoding used by the reference namespace (spec §6).
func (h BlockHash) Base64URL() string {
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// HashFromBase64URL decodes the unpadded base64url encoding produced by
// Base64URL. Returns an error if the decoded length isn't HashLength.
func HashFromBase64URL(s string) (BlockHash, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return BlockHash{}, fmt.Errorf("header: invalid base64url hash %q: %w", s, err)
	}
	if len(b) != HashLength {
		return BlockHash{}, fmt.Errorf("header: hash %q decodes to %d bytes, want %d", s, len(b), HashLength)
	}
	var h BlockHash
	copy(h[:], b)
	return h, nil
}
