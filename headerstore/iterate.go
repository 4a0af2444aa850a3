package headerstore

import (
	"fmt"

	"github.com/chainweb-go/chainweb/header"
	"github.com/chainweb-go/chainweb/refdb"
)

// Leaves returns a lazy sequence over every current leaf header (spec.md
// §4.4's leaves() operation). Malformed ref names are skipped, tolerant of
// refs touched by external tooling, per the spec's explicit guidance.
func (s *Store) Leaves() func() (*header.BlockHeader, bool, error) {
	s.mu.Lock()
	names, err := s.refs.ListRefs(refdb.Prefix(refdb.NamespaceLeaf) + "*")
	s.mu.Unlock()
	if err != nil {
		return func() (*header.BlockHeader, bool, error) { return nil, false, err }
	}

	i := 0
	return func() (*header.BlockHeader, bool, error) {
		for i < len(names) {
			name := names[i]
			i++
			if _, _, err := refdb.ParseRefName(refdb.NamespaceLeaf, name); err != nil {
				continue
			}
			s.mu.Lock()
			idBytes, lookupErr := s.refs.LookupRef(name)
			if lookupErr != nil {
				s.mu.Unlock()
				continue
			}
			treeID, idErr := objectIDFromBytes(idBytes)
			if idErr != nil {
				s.mu.Unlock()
				continue
			}
			h, decodeErr := s.decodeHeaderFromTree(treeID)
			s.mu.Unlock()
			if decodeErr != nil {
				continue
			}
			return h, true, nil
		}
		return nil, false, nil
	}
}

// EntriesByRank streams headers in ascending height order over
// [minHeight, maxHeight], per spec.md §4.4's entriesByRank. Stops early
// when a height yields no bh/* refs (end of the DAG), when limit headers
// have been collected, or when maxHeight is passed. endFlag is false only
// when truncated by limit.
func (s *Store) EntriesByRank(minHeight, maxHeight uint64, limit int) ([]*header.BlockHeader, bool, error) {
	var out []*header.BlockHeader
	for h := minHeight; h <= maxHeight; h++ {
		glob := fmt.Sprintf("%s%016x.*", refdb.Prefix(refdb.NamespaceHeader), h)
		s.mu.Lock()
		names, err := s.refs.ListRefs(glob)
		s.mu.Unlock()
		if err != nil {
			return out, true, err
		}
		if len(names) == 0 {
			return out, true, nil
		}
		for _, name := range names {
			if limit > 0 && len(out) >= limit {
				return out, false, nil
			}
			s.mu.Lock()
			idBytes, lookupErr := s.refs.LookupRef(name)
			if lookupErr != nil {
				s.mu.Unlock()
				continue
			}
			treeID, idErr := objectIDFromBytes(idBytes)
			if idErr != nil {
				s.mu.Unlock()
				continue
			}
			hdr, decodeErr := s.decodeHeaderFromTree(treeID)
			s.mu.Unlock()
			if decodeErr != nil {
				continue
			}
			out = append(out, hdr)
		}
		if h == maxHeight {
			break // avoid uint64 overflow on h++ when maxHeight == max uint64
		}
	}
	return out, true, nil
}

// Heaviest returns the leaf with the greatest cumulative weight, breaking
// ties by the smaller hash for determinism -- the same tie-break rule the
// teacher's consensus/forkchoice.go GetHead uses between equal-weight
// subtrees. This is a read-only convenience (spec.md §9): it is not
// consulted by Insert or by package reconcile, since fork-choice scoring
// is explicitly out of this store's scope.
func (s *Store) Heaviest() (*header.BlockHeader, bool, error) {
	next := s.Leaves()
	var best *header.BlockHeader
	for {
		h, ok, err := next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		if best == nil || h.Weight > best.Weight || (h.Weight == best.Weight && h.Hash().Less(best.Hash())) {
			best = h
		}
	}
	if best == nil {
		return nil, false, nil
	}
	return best, true, nil
}
