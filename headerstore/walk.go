package headerstore

import (
	"fmt"

	"github.com/chainweb-go/chainweb/cas"
	"github.com/chainweb-go/chainweb/header"
)

// LookupAtHeight implements spec.md §4.5: starting from the tree object
// startTreeID, find the TreeEntry for the ancestor at height target,
// descending through spectrum pointers in O(log h) reads.
func (s *Store) LookupAtHeight(startTreeID cas.ObjectID, target uint64) (cas.TreeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupAtHeightLocked(startTreeID, target)
}

func (s *Store) lookupAtHeightLocked(startTreeID cas.ObjectID, target uint64) (cas.TreeEntry, error) {
	entries, err := s.objs.ReadTree(startTreeID)
	if err != nil {
		return cas.TreeEntry{}, err
	}
	if len(entries) == 0 {
		return cas.TreeEntry{}, errCorruption(fmt.Errorf("empty tree"), "tree %s", startTreeID)
	}

	selfEntry := entries[len(entries)-1]
	selfHeight, _, err := parseEntryName(selfEntry.Name)
	if err != nil {
		return cas.TreeEntry{}, errCorruption(err, "self entry of tree %s", startTreeID)
	}
	if selfHeight == target {
		return cas.TreeEntry{Name: selfEntry.Name, ObjectID: startTreeID, Mode: cas.ModeTree}, nil
	}

	var best *cas.TreeEntry
	var bestHeight uint64
	for i := range entries[:len(entries)-1] {
		height, _, err := parseEntryName(entries[i].Name)
		if err != nil {
			continue
		}
		if height >= target && (best == nil || height < bestHeight) {
			e := entries[i]
			best = &e
			bestHeight = height
		}
	}
	if best == nil {
		return cas.TreeEntry{}, ErrNotFound
	}
	if bestHeight == target {
		return *best, nil
	}
	return s.lookupAtHeightLocked(best.ObjectID, target)
}

// Parent returns the second-to-last entry of the tree object at treeID --
// the parent pointer, per spec.md §4.4's parent(treeId) operation. Returns
// ErrMissingParent for a genesis tree, which has no parent entry.
func (s *Store) Parent(treeID cas.ObjectID) (cas.TreeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.objs.ReadTree(treeID)
	if err != nil {
		return cas.TreeEntry{}, err
	}
	if len(entries) < 2 {
		return cas.TreeEntry{}, ErrMissingParent
	}
	return entries[len(entries)-2], nil
}

// parseEntryName parses the "<hexheight>.<base64urlhash>" name shared by
// tree entries and reference names.
func parseEntryName(name []byte) (height uint64, hash header.BlockHash, err error) {
	s := string(name)
	if len(s) < 18 || s[16] != '.' {
		return 0, header.BlockHash{}, fmt.Errorf("headerstore: malformed entry name %q", s)
	}
	if _, err := fmt.Sscanf(s[:16], "%016x", &height); err != nil {
		return 0, header.BlockHash{}, fmt.Errorf("headerstore: malformed height in entry name %q: %w", s, err)
	}
	hash, err = header.HashFromBase64URL(s[17:])
	if err != nil {
		return 0, header.BlockHash{}, fmt.Errorf("headerstore: malformed hash in entry name %q: %w", s, err)
	}
	return height, hash, nil
}

// WalkAncestors returns a lazy pull-based sequence starting at start and
// following parentHash links down to and including genesis, one
// LookupByKey call per step. Used by package reconcile to collect a
// branch's headers. The returned func yields (nil, false, nil) once
// genesis has been yielded.
func (s *Store) WalkAncestors(start *header.BlockHeader) func() (*header.BlockHeader, bool, error) {
	next := start
	done := false
	return func() (*header.BlockHeader, bool, error) {
		if done || next == nil {
			return nil, false, nil
		}
		cur := next
		if cur.IsGenesis() {
			done = true
			next = nil
			return cur, true, nil
		}
		parent, found, err := s.LookupByKey(cur.Height-1, cur.ParentHash)
		if err != nil {
			done = true
			return nil, false, err
		}
		if !found {
			done = true
			return nil, false, ErrMissingParent
		}
		next = parent
		return cur, true, nil
	}
}
