// Package multichain wires together one headerstore.Store per chain id, the
// Chainweb braided-chain topology (spec.md §1: N independent header DAGs,
// one per chain). Grounded on the teacher's node/node.go subsystem-wiring
// shape (New/Start/Stop/Wait lifecycle, subsystem accessors), trimmed down
// to the subset this module needs: no P2P/RPC/Engine servers, since there
// is no networking surface here, just store lifecycle and lookup-by-chain.
package multichain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chainweb-go/chainweb/cas"
	"github.com/chainweb-go/chainweb/config"
	"github.com/chainweb-go/chainweb/headerstore"
	"github.com/chainweb-go/chainweb/log"
	"github.com/chainweb-go/chainweb/refdb"
	"github.com/chainweb-go/chainweb/spectrum"
)

// Registry owns one header store per configured chain id and coordinates
// their lifecycle as a unit.
type Registry struct {
	cfg *config.Config
	log *log.Logger

	mu      sync.Mutex
	stores  map[uint32]*ChainStore
	objs    map[uint32]cas.Store
	refs    map[uint32]refdb.Index
	running bool
}

// Open creates (or reopens, for on-disk backends) a Store for every chain id
// in cfg.ChainIDs, using the given constructors for the per-chain content
// store and reference index. Pass nil constructors to use in-memory stores
// (cas.NewMemStore / refdb.NewMemIndex), suitable for tests and ephemeral
// instances.
func Open(cfg *config.Config, newObjs func(chainID uint32) (cas.Store, error), newRefs func(chainID uint32) (refdb.Index, error)) (*Registry, error) {
	if cfg == nil {
		d := config.DefaultConfig()
		cfg = &d
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("multichain: invalid config: %w", err)
	}
	if newObjs == nil {
		newObjs = func(uint32) (cas.Store, error) { return cas.NewMemStore(), nil }
	}
	if newRefs == nil {
		newRefs = func(uint32) (refdb.Index, error) { return refdb.NewMemIndex(), nil }
	}

	params, err := spectrum.NewParams(cfg.SpectrumRecentsWindow, cfg.SpectrumPowerBase)
	if err != nil {
		return nil, fmt.Errorf("multichain: %w", err)
	}

	r := &Registry{
		cfg:    cfg,
		log:    log.Default().Module("multichain"),
		stores: make(map[uint32]*ChainStore, len(cfg.ChainIDs)),
		objs:   make(map[uint32]cas.Store, len(cfg.ChainIDs)),
		refs:   make(map[uint32]refdb.Index, len(cfg.ChainIDs)),
	}

	for _, id := range cfg.ChainIDs {
		objs, err := newObjs(id)
		if err != nil {
			r.closeOpened()
			return nil, fmt.Errorf("multichain: open object store for chain %d: %w", id, err)
		}
		refs, err := newRefs(id)
		if err != nil {
			objs.Close()
			r.closeOpened()
			return nil, fmt.Errorf("multichain: open ref index for chain %d: %w", id, err)
		}
		r.objs[id] = objs
		r.refs[id] = refs
		r.stores[id] = &ChainStore{chainID: id, Store: headerstore.NewWithParams(objs, refs, params, cfg.HeaderCacheBytes)}
		r.log.Info("opened chain header store", "chain", id)
	}
	r.running = true
	return r, nil
}

// closeOpened closes every subsystem opened so far, used to unwind a
// partially-constructed Registry on error.
func (r *Registry) closeOpened() {
	for id, objs := range r.objs {
		objs.Close()
		delete(r.objs, id)
	}
	for id, refs := range r.refs {
		refs.Close()
		delete(r.refs, id)
	}
}

// Store returns the header store for the given chain id, or false if no
// such chain is configured on this registry.
func (r *Registry) Store(chainID uint32) (*ChainStore, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[chainID]
	return s, ok
}

// ChainIDs returns the configured chain ids in ascending order.
func (r *Registry) ChainIDs() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint32, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close shuts down every chain's object store and reference index. It is
// safe to call Close more than once.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	var firstErr error
	for id, objs := range r.objs {
		if err := objs.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("multichain: close object store for chain %d: %w", id, err)
		}
	}
	for id, refs := range r.refs {
		if err := refs.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("multichain: close ref index for chain %d: %w", id, err)
		}
	}
	r.running = false
	r.log.Info("closed all chain header stores")
	return firstErr
}
