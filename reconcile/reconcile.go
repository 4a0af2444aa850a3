// Package reconcile implements fork reconciliation (spec.md §4.6): given
// the old and new heads of a reorganization, it walks both branches back
// toward genesis to find their least common ancestor, then returns the
// transactions unique to the abandoned branch so they can be returned to
// the mempool.
//
// Grounded on the teacher's consensus/forkchoice.go ancestor-walk style
// (GetHead's single-parent-pointer walk to a root), generalized here to
// two walks that run concurrently and are then joined.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/chainweb-go/chainweb/header"
	"github.com/chainweb-go/chainweb/headerstore"
	"github.com/chainweb-go/chainweb/mempool"
	"github.com/chainweb-go/chainweb/metrics"
)

// ErrMissingHead is returned when either head is not present in the store.
var ErrMissingHead = errors.New("reconcile: head not found in store")

// ErrForkTooDeep is returned when no common ancestor was found within
// maxDepth steps of either walk.
var ErrForkTooDeep = errors.New("reconcile: fork exceeds maximum depth")

// DefaultMaxDepth bounds how far back reconcile will walk before giving up,
// guarding against pathological/unbounded walks over a corrupt or
// adversarial chain.
const DefaultMaxDepth = 1_000_000

// Store is the subset of headerstore.Store that Reconcile needs.
type Store interface {
	LookupByKey(height uint64, hash header.BlockHash) (*header.BlockHeader, bool, error)
	WalkAncestors(start *header.BlockHeader) func() (*header.BlockHeader, bool, error)
}

var _ Store = (*headerstore.Store)(nil)

// Reconcile computes the set of transaction hashes present on oldHead's
// branch but not on newHead's branch, per spec.md §4.6's five-step
// algorithm:
//  1. walk newHead back to genesis, collecting hashes into a set N
//  2. walk oldHead back to genesis, stopping at the first header in N (the LCA)
//  3. collect oldBranch: oldHead down to (exclusive of) the LCA
//  4. collect newBranch: newHead down to (exclusive of) the LCA
//  5. return (union of oldBranch's txs) minus (union of newBranch's txs)
//
// maxDepth <= 0 uses DefaultMaxDepth.
func Reconcile(ctx context.Context, s Store, newHeight, oldHeight uint64, newHead, oldHead header.BlockHash, payloads mempool.PayloadLookup, maxDepth int) (map[mempool.TxHash]struct{}, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	newHeader, found, err := s.LookupByKey(newHeight, newHead)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: new head (%d, %s)", ErrMissingHead, newHeight, newHead)
	}
	oldHeader, found, err := s.LookupByKey(oldHeight, oldHead)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: old head (%d, %s)", ErrMissingHead, oldHeight, oldHead)
	}

	var newBranch, oldBranch []*header.BlockHeader
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		branch, err := collectBranch(gctx, s, newHeader, maxDepth)
		newBranch = branch
		return err
	})
	g.Go(func() error {
		branch, err := collectBranch(gctx, s, oldHeader, maxDepth)
		oldBranch = branch
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	newHashSet := make(map[header.BlockHash]struct{}, len(newBranch))
	for _, h := range newBranch {
		newHashSet[h.Hash()] = struct{}{}
	}

	ancestorIdx := -1
	for i, h := range oldBranch {
		if _, ok := newHashSet[h.Hash()]; ok {
			ancestorIdx = i
			break
		}
	}
	if ancestorIdx < 0 {
		metrics.ForkTooDeep.Inc()
		return nil, ErrForkTooDeep
	}
	metrics.ReconcilesPerformed.Inc()
	metrics.ReconcileDepth.Observe(float64(ancestorIdx))
	ancestorHash := oldBranch[ancestorIdx].Hash()
	oldBranch = oldBranch[:ancestorIdx]
	newBranch = trimAtAncestor(newBranch, ancestorHash)

	var group singleflight.Group
	oldTxs, err := unionPayloadTxs(&group, payloads, oldBranch)
	if err != nil {
		return nil, err
	}
	newTxs, err := unionPayloadTxs(&group, payloads, newBranch)
	if err != nil {
		return nil, err
	}

	for tx := range newTxs {
		delete(oldTxs, tx)
	}
	metrics.ReconcileTxsReturned.Add(int64(len(oldTxs)))
	return oldTxs, nil
}

// collectBranch walks from start down to genesis and returns the headers
// visited. It fails with ErrForkTooDeep once more than maxDepth headers
// have been collected.
func collectBranch(ctx context.Context, s Store, start *header.BlockHeader, maxDepth int) ([]*header.BlockHeader, error) {
	var out []*header.BlockHeader
	next := s.WalkAncestors(start)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		h, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, h)
		if len(out) > maxDepth {
			metrics.ForkTooDeep.Inc()
			return nil, ErrForkTooDeep
		}
	}
}

// trimAtAncestor returns the prefix of branch strictly above the header
// whose hash equals ancestorHash (exclusive of the ancestor itself).
func trimAtAncestor(branch []*header.BlockHeader, ancestorHash header.BlockHash) []*header.BlockHeader {
	for i, h := range branch {
		if h.Hash() == ancestorHash {
			return branch[:i]
		}
	}
	return branch
}

// unionPayloadTxs computes the union of payload transaction sets across
// branch. Each lookup goes through group.Do keyed by the payload hash;
// the lookups are issued one at a time, so the group collapses a lookup
// only with a concurrent call on the same group.
func unionPayloadTxs(group *singleflight.Group, payloads mempool.PayloadLookup, branch []*header.BlockHeader) (map[mempool.TxHash]struct{}, error) {
	out := make(map[mempool.TxHash]struct{})
	for _, h := range branch {
		key := h.PayloadHash.Hex()
		v, err, _ := group.Do(key, func() (interface{}, error) {
			return payloads.PayloadTxs(h)
		})
		if err != nil {
			return nil, fmt.Errorf("reconcile: payload lookup for header at height %d: %w", h.Height, err)
		}
		for tx := range v.(map[mempool.TxHash]struct{}) {
			out[tx] = struct{}{}
		}
	}
	return out, nil
}
