// Package cas implements the content-addressed object store (CAOS)
// component of the header store: immutable blob objects and tree objects
// addressed by the keccak256 hash of their contents.
//
// Two implementations are provided: MemStore, an in-memory map grounded on
// the teacher's core/rawdb.MemoryDB, and DirStore, a directory-backed store
// grounded on the teacher's core/rawdb.FileDB but simplified for
// write-once objects (no WAL is needed: objects are never mutated once
// written, so there is nothing a crash mid-write can leave inconsistent
// beyond an orphaned temp file, which DirStore cleans up on open).
package cas

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"
)

// ObjectID is the 32-byte keccak256 digest identifying a stored object.
type ObjectID [32]byte

// Bytes returns the raw digest bytes.
func (id ObjectID) Bytes() []byte { return id[:] }

// Hex returns the "0x"-prefixed hex representation.
func (id ObjectID) Hex() string { return fmt.Sprintf("0x%x", id[:]) }

// String implements fmt.Stringer.
func (id ObjectID) String() string { return id.Hex() }

// IsZero reports whether id is the all-zero value (never a valid digest).
func (id ObjectID) IsZero() bool { return id == ObjectID{} }

// Base64URL returns the unpadded base64url encoding, as used in hex
// filenames is not required here but mirrors header.BlockHash's encoding
// for symmetry with the reference namespace.
func (id ObjectID) Base64URL() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

func hashObjectID(b []byte) ObjectID {
	sum := sha3.NewLegacyKeccak256()
	sum.Write(b)
	var id ObjectID
	copy(id[:], sum.Sum(nil))
	return id
}

// Mode distinguishes a tree entry that points at a blob from one that
// points at another tree.
type Mode uint8

const (
	// ModeBlob marks an entry whose ObjectID is an opaque blob.
	ModeBlob Mode = iota
	// ModeTree marks an entry whose ObjectID is another tree object.
	ModeTree
)

func (m Mode) String() string {
	if m == ModeTree {
		return "tree"
	}
	return "blob"
}

// TreeEntry is one named pointer inside a tree object.
type TreeEntry struct {
	Name     []byte
	ObjectID ObjectID
	Mode     Mode
}

// SortEntries sorts entries by Name, the pre-sort BuildTree requires.
func SortEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytesLess(entries[i].Name, entries[j].Name)
	})
}

func bytesLess(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// encodeTree produces the deterministic byte representation of a tree
// object's entries: concatenated [len(name) u32][name][mode u8][objectId].
// Hashing this representation is what makes BuildTree's result a pure
// function of the entry contents, as spec.md §4.1 requires.
func encodeTree(entries []TreeEntry) []byte {
	var out []byte
	for _, e := range entries {
		var lenBuf [4]byte
		n := len(e.Name)
		lenBuf[0] = byte(n >> 24)
		lenBuf[1] = byte(n >> 16)
		lenBuf[2] = byte(n >> 8)
		lenBuf[3] = byte(n)
		out = append(out, lenBuf[:]...)
		out = append(out, e.Name...)
		out = append(out, byte(e.Mode))
		out = append(out, e.ObjectID[:]...)
	}
	return out
}

// decodeTree is the inverse of encodeTree.
func decodeTree(data []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("cas: truncated tree object at offset %d", pos)
		}
		n := int(data[pos])<<24 | int(data[pos+1])<<16 | int(data[pos+2])<<8 | int(data[pos+3])
		pos += 4
		if pos+n > len(data) {
			return nil, fmt.Errorf("cas: truncated tree entry name at offset %d", pos)
		}
		name := make([]byte, n)
		copy(name, data[pos:pos+n])
		pos += n
		if pos+1+32 > len(data) {
			return nil, fmt.Errorf("cas: truncated tree entry body at offset %d", pos)
		}
		mode := Mode(data[pos])
		pos++
		var id ObjectID
		copy(id[:], data[pos:pos+32])
		pos += 32
		entries = append(entries, TreeEntry{Name: name, ObjectID: id, Mode: mode})
	}
	return entries, nil
}

// ErrNotFound is returned when a blob or tree lookup misses.
var ErrNotFound = fmt.Errorf("cas: object not found")

// ErrOutOfBounds is returned by ReadTreeEntryByIndex for an invalid index.
var ErrOutOfBounds = fmt.Errorf("cas: tree entry index out of bounds")

// Store is the content-addressed object store contract (spec.md §4.1).
type Store interface {
	// WriteBlob stores an opaque byte string and returns its content hash.
	// Deterministic: writing the same bytes twice returns the same
	// ObjectID and is idempotent.
	WriteBlob(data []byte) (ObjectID, error)

	// BuildTree stores a tree object from pre-sorted entries and returns
	// its content hash, a deterministic function of the entry contents.
	BuildTree(entries []TreeEntry) (ObjectID, error)

	// ReadBlob returns the bytes previously stored via WriteBlob.
	// Returns ErrNotFound if absent.
	ReadBlob(id ObjectID) ([]byte, error)

	// ReadTree returns the entries of a tree object in stored order.
	// Returns ErrNotFound if absent.
	ReadTree(id ObjectID) ([]TreeEntry, error)

	// ReadTreeEntryByIndex returns a single entry of a tree object. The
	// MemStore and DirStore implementations read and decode the whole
	// tree via ReadTree and then index into it. If fromEnd is false, i counts from the
	// first (smallest name) entry; if true, i counts back from the last
	// entry (i==0 is the last entry). Returns ErrOutOfBounds on an
	// invalid index, ErrNotFound if the tree itself is absent.
	ReadTreeEntryByIndex(id ObjectID, i int, fromEnd bool) (TreeEntry, error)

	// Close releases any resources (file handles, locks) held by the store.
	Close() error
}

func hexKey(id ObjectID) string { return hex.EncodeToString(id[:]) }
