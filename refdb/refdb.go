// Package refdb implements the mutable named-reference index (spec.md §6):
// a small key-value mapping from namespaced reference names to header
// hashes, used by the header store to answer "which hash is at height h"
// and "which hashes are current leaves" without walking the whole DAG.
//
// Reference names are built so that lexicographic key order matches
// (height, hash) order:
//
//	<namespace>/<hex(height), 16 lowercase digits>.<base64url(hash)>
//
// Grounded on the teacher's core/rawdb.KVStore (MemoryKVStore): a
// mutex-guarded map with prefix-scoped, sorted iteration.
package refdb

import (
	"fmt"

	"github.com/chainweb-go/chainweb/header"
)

// Namespace distinguishes the two reference kinds the header store needs.
type Namespace string

const (
	// NamespaceHeader names a ref for a header entry: "bh/<height>.<hash>".
	NamespaceHeader Namespace = "bh"
	// NamespaceLeaf names a ref for a current leaf: "leaf/<height>.<hash>".
	NamespaceLeaf Namespace = "leaf"
)

// RefName formats the namespaced reference name for (height, hash), encoding
// height as 16 lowercase hex digits so that fixed-width lexicographic order
// matches numeric order, and hash as unpadded base64url.
func RefName(ns Namespace, height uint64, hash header.BlockHash) string {
	return fmt.Sprintf("%s/%016x.%s", ns, height, hash.Base64URL())
}

// Prefix returns the key prefix matching every ref in ns.
func Prefix(ns Namespace) string { return string(ns) + "/" }

// ParseRefName splits a reference name produced by RefName back into its
// height and hash. Returns an error if name is not well-formed.
func ParseRefName(ns Namespace, name string) (height uint64, hash header.BlockHash, err error) {
	prefix := Prefix(ns)
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return 0, header.BlockHash{}, fmt.Errorf("refdb: %q is not in namespace %q", name, ns)
	}
	rest := name[len(prefix):]
	dot := -1
	for i, c := range rest {
		if c == '.' {
			dot = i
			break
		}
	}
	if dot != 16 {
		return 0, header.BlockHash{}, fmt.Errorf("refdb: malformed ref name %q", name)
	}
	if _, err := fmt.Sscanf(rest[:16], "%016x", &height); err != nil {
		return 0, header.BlockHash{}, fmt.Errorf("refdb: malformed height in ref name %q: %w", name, err)
	}
	hash, err = header.HashFromBase64URL(rest[17:])
	if err != nil {
		return 0, header.BlockHash{}, fmt.Errorf("refdb: malformed hash in ref name %q: %w", name, err)
	}
	return height, hash, nil
}

// ErrNotFound is returned by LookupRef for a name with no stored value, and
// by DeleteRef when name does not exist.
var ErrNotFound = fmt.Errorf("refdb: reference not found")

// MatchGlob reports whether name matches glob, where "*" matches any run
// of characters (including the empty run, and including "/"). There is no
// escaping: "*" is always a wildcard. No third-party glob implementation
// in the example pack supports "*" matching across "/" the way spec.md's
// listRefs requires (path.Match and filepath.Match both treat "/" as a
// non-wildcard separator), so this is a small from-scratch matcher.
func MatchGlob(glob, name string) bool {
	// Classic two-pointer wildcard match: pIdx/sIdx track the current
	// comparison position, starIdx/match remember the most recent "*"
	// and how much of name it has absorbed so far, for backtracking.
	pIdx, sIdx, starIdx, match := 0, 0, -1, 0
	for sIdx < len(name) {
		switch {
		case pIdx < len(glob) && glob[pIdx] == name[sIdx]:
			pIdx++
			sIdx++
		case pIdx < len(glob) && glob[pIdx] == '*':
			starIdx = pIdx
			match = sIdx
			pIdx++
		case starIdx != -1:
			pIdx = starIdx + 1
			match++
			sIdx = match
		default:
			return false
		}
	}
	for pIdx < len(glob) && glob[pIdx] == '*' {
		pIdx++
	}
	return pIdx == len(glob)
}

// Index is the mutable named-reference index contract.
type Index interface {
	// SetRef creates or overwrites the value stored at name.
	SetRef(name string, value []byte) error
	// DeleteRef removes name, failing with ErrNotFound if it is absent.
	DeleteRef(name string) error
	// LookupRef returns the value stored at name, or ErrNotFound.
	LookupRef(name string) ([]byte, error)
	// ListRefs returns every stored name matching glob, in ascending
	// lexicographic order. glob is matched by MatchGlob: "*" matches any
	// run of characters, including "/", and every other character matches
	// only itself.
	ListRefs(glob string) ([]string, error)
	// Close releases any resources held by the index.
	Close() error
}
