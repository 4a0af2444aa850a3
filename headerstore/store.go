// Package headerstore implements the header store API (spec.md §4.4-§4.5):
// insert, lookupByKey, lookupAtHeight, leaves, entriesByRank, walkAncestors,
// and parent, backed by a content-addressed object store (cas) and a
// named-reference index (refdb), with spectrum ancestor pointers computed
// by package spectrum.
//
// All mutating operations serialize through Store's single mutex, which is
// the "Concurrency Gate" component (spec.md §2 component F): there is
// exactly one exclusive writer lock for the whole store, scoped to one
// operation at a time, grounded on the teacher's
// consensus/forkchoice.ForkChoiceStore (a single sync.RWMutex guarding a
// map[Hash]*BlockNode with the same duplicate/missing-parent branch shape
// as Insert below).
package headerstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/chainweb-go/chainweb/cas"
	"github.com/chainweb-go/chainweb/header"
	"github.com/chainweb-go/chainweb/metrics"
	"github.com/chainweb-go/chainweb/refdb"
	"github.com/chainweb-go/chainweb/spectrum"
)

// DefaultCacheBytes sizes the decoded-header byte cache.
const DefaultCacheBytes = 32 * 1024 * 1024

// Store is the header store: CAOS + named-reference index + spectrum
// computation, gated by a single exclusive lock per spec.md component F.
type Store struct {
	mu     sync.Mutex
	objs   cas.Store
	refs   refdb.Index
	params spectrum.Params

	// cache holds encoded header bytes keyed by the header's tree object
	// ID, grounded on the teacher's core/rawdb/chaindb.go generic LRU but
	// using github.com/VictoriaMetrics/fastcache (already an indirect
	// teacher dependency) as the concurrent, fixed-size byte cache this
	// read-heavy workload calls for.
	cache *fastcache.Cache
}

// New returns a Store over the given object store and reference index,
// using the default spectrum parameters and cache size.
func New(objs cas.Store, refs refdb.Index) *Store {
	return NewWithParams(objs, refs, spectrum.DefaultParams(), DefaultCacheBytes)
}

// NewWithParams returns a Store with explicit spectrum tuning and cache
// size. The spectrum Params used here are baked into every tree this store
// builds: switching Params after headers have been inserted changes the
// on-disk layout newly inserted headers expect, though existing headers
// remain readable since lookupAtHeight only relies on what's embedded in
// each existing tree.
func NewWithParams(objs cas.Store, refs refdb.Index, params spectrum.Params, cacheBytes int) *Store {
	return &Store{
		objs:   objs,
		refs:   refs,
		params: params,
		cache:  fastcache.New(cacheBytes),
	}
}

func selfEntryName(height uint64, hash header.BlockHash) []byte {
	return []byte(fmt.Sprintf("%016x.%s", height, hash.Base64URL()))
}

func objectIDFromBytes(b []byte) (cas.ObjectID, error) {
	var id cas.ObjectID
	if len(b) != len(id) {
		return cas.ObjectID{}, fmt.Errorf("headerstore: ref value has %d bytes, want %d", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

// InsertGenesis injects a height-0 header directly, bypassing the normal
// parent-resolution path (invariant I5: genesis cannot be inserted via
// Insert). Intended for store initialization only.
func (s *Store) InsertGenesis(h *header.BlockHeader) error {
	if !h.IsGenesis() {
		metrics.InsertRejected.Inc()
		return ErrInvalidGenesis
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	hash := h.Hash()
	ref := refdb.RefName(refdb.NamespaceHeader, 0, hash)
	if _, err := s.refs.LookupRef(ref); err == nil {
		metrics.InsertRejected.Inc()
		return ErrAlreadyExists
	} else if err != refdb.ErrNotFound {
		return err
	}

	enc, err := header.Encode(h)
	if err != nil {
		return fmt.Errorf("headerstore: encode genesis header: %w", err)
	}
	blobID, err := s.objs.WriteBlob(enc)
	if err != nil {
		return err
	}
	metrics.ObjectsWritten.Inc()
	selfEntry := cas.TreeEntry{Name: selfEntryName(0, hash), ObjectID: blobID, Mode: cas.ModeBlob}
	treeID, err := s.objs.BuildTree([]cas.TreeEntry{selfEntry})
	if err != nil {
		return err
	}
	metrics.ObjectsWritten.Inc()

	if err := s.refs.SetRef(ref, treeID.Bytes()); err != nil {
		return err
	}
	leafRef := refdb.RefName(refdb.NamespaceLeaf, 0, hash)
	if err := s.refs.SetRef(leafRef, treeID.Bytes()); err != nil {
		return err
	}

	metrics.HeadersInserted.Inc()
	metrics.HeaderHeight.Set(0)
	metrics.LeafCount.Inc()
	metrics.InsertRate.Mark(1)
	metrics.InsertLatency.Observe(float64(time.Since(start).Milliseconds()))
	return nil
}

// Insert adds a non-genesis header to the store, per spec.md §4.4 steps
// 1-11. Returns ErrAlreadyExists, ErrInvalidGenesis, or ErrMissingParent
// for the documented failure modes; nil on success.
func (s *Store) Insert(h *header.BlockHeader) error {
	if h.IsGenesis() {
		metrics.InsertRejected.Inc()
		return ErrInvalidGenesis
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	hash := h.Hash()
	selfRef := refdb.RefName(refdb.NamespaceHeader, h.Height, hash)
	if _, err := s.refs.LookupRef(selfRef); err == nil {
		metrics.InsertRejected.Inc()
		return ErrAlreadyExists
	} else if err != refdb.ErrNotFound {
		return err
	}

	parentRef := refdb.RefName(refdb.NamespaceHeader, h.Height-1, h.ParentHash)
	parentIDBytes, err := s.refs.LookupRef(parentRef)
	if err == refdb.ErrNotFound {
		metrics.InsertRejected.Inc()
		return ErrMissingParent
	} else if err != nil {
		return err
	}
	parentTreeID, err := objectIDFromBytes(parentIDBytes)
	if err != nil {
		return errCorruption(err, "parent ref %q", parentRef)
	}

	spec := s.params.Compute(h.Height)
	metrics.SpectrumPointers.Observe(float64(len(spec)))
	entries := make([]cas.TreeEntry, 0, len(spec)+2)
	for _, ancestorHeight := range spec {
		e, err := s.lookupAtHeightLocked(parentTreeID, ancestorHeight)
		if err != nil {
			return errCorruption(err, "resolving spectrum ancestor height %d for new header at height %d", ancestorHeight, h.Height)
		}
		entries = append(entries, e)
	}
	entries = append(entries, cas.TreeEntry{
		Name:     selfEntryName(h.Height-1, h.ParentHash),
		ObjectID: parentTreeID,
		Mode:     cas.ModeTree,
	})

	enc, err := header.Encode(h)
	if err != nil {
		return fmt.Errorf("headerstore: encode header: %w", err)
	}
	blobID, err := s.objs.WriteBlob(enc)
	if err != nil {
		return err
	}
	metrics.ObjectsWritten.Inc()
	entries = append(entries, cas.TreeEntry{Name: selfEntryName(h.Height, hash), ObjectID: blobID, Mode: cas.ModeBlob})

	cas.SortEntries(entries)
	treeID, err := s.objs.BuildTree(entries)
	if err != nil {
		return err
	}
	metrics.ObjectsWritten.Inc()

	if err := s.refs.SetRef(selfRef, treeID.Bytes()); err != nil {
		return err
	}
	leafRef := refdb.RefName(refdb.NamespaceLeaf, h.Height, hash)
	if err := s.refs.SetRef(leafRef, treeID.Bytes()); err != nil {
		return err
	}
	// The parent stops being a leaf once it gets a child, but a second
	// (forking) child of the same parent finds its leaf ref already gone
	// from the first child's insert -- that is expected, not an error.
	parentLeafRef := refdb.RefName(refdb.NamespaceLeaf, h.Height-1, h.ParentHash)
	metrics.LeafCount.Inc()
	if err := s.refs.DeleteRef(parentLeafRef); err != nil {
		if err != refdb.ErrNotFound {
			return err
		}
	} else {
		metrics.LeafCount.Dec()
	}

	metrics.HeadersInserted.Inc()
	metrics.HeaderHeight.Set(int64(h.Height))
	metrics.InsertRate.Mark(1)
	metrics.InsertLatency.Observe(float64(time.Since(start).Milliseconds()))
	return nil
}

// LookupByKey returns the decoded header for (height, hash), and whether
// it was found. A missing header is not an error.
func (s *Store) LookupByKey(height uint64, hash header.BlockHash) (*header.BlockHeader, bool, error) {
	ref := refdb.RefName(refdb.NamespaceHeader, height, hash)
	idBytes, err := s.refs.LookupRef(ref)
	if err == refdb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	treeID, err := objectIDFromBytes(idBytes)
	if err != nil {
		return nil, false, errCorruption(err, "header ref %q", ref)
	}
	h, err := s.decodeHeaderFromTree(treeID)
	if err != nil {
		return nil, false, err
	}
	return h, true, nil
}

func (s *Store) decodeHeaderFromTree(treeID cas.ObjectID) (*header.BlockHeader, error) {
	if cached, ok := s.cache.HasGet(nil, treeID[:]); ok {
		metrics.CacheHits.Inc()
		var h header.BlockHeader
		if err := header.Decode(cached, &h); err != nil {
			return nil, errCorruption(err, "cached header blob for tree %s", treeID)
		}
		return &h, nil
	}
	metrics.CacheMisses.Inc()

	entries, err := s.objs.ReadTree(treeID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errCorruption(fmt.Errorf("empty tree"), "tree %s", treeID)
	}
	blobEntry := entries[len(entries)-1]
	if blobEntry.Mode != cas.ModeBlob {
		return nil, errCorruption(fmt.Errorf("last entry is not a blob"), "tree %s", treeID)
	}
	enc, err := s.objs.ReadBlob(blobEntry.ObjectID)
	if err != nil {
		return nil, err
	}
	var h header.BlockHeader
	if err := header.Decode(enc, &h); err != nil {
		return nil, errCorruption(err, "header blob %s", blobEntry.ObjectID)
	}
	s.cache.Set(treeID[:], enc)
	return &h, nil
}
