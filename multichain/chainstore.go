package multichain

import (
	"fmt"

	"github.com/chainweb-go/chainweb/header"
	"github.com/chainweb-go/chainweb/headerstore"
)

// ErrChainIDMismatch is returned when a header's ChainID does not match the
// chain id of the store it is being inserted into.
var ErrChainIDMismatch = fmt.Errorf("multichain: header chain id does not match store")

// ChainStore wraps a headerstore.Store with the chain id it belongs to,
// validating header.ChainID on every insert per SPEC_FULL.md's multi-chain
// supplement: each chain's DAG only ever contains headers tagged with its
// own chain id.
type ChainStore struct {
	chainID uint32
	*headerstore.Store
}

// ChainID returns the chain id this store is scoped to.
func (c *ChainStore) ChainID() uint32 { return c.chainID }

// InsertGenesis validates h.ChainID before delegating to the wrapped store.
func (c *ChainStore) InsertGenesis(h *header.BlockHeader) error {
	if h.ChainID != c.chainID {
		return fmt.Errorf("%w: header chain %d, store chain %d", ErrChainIDMismatch, h.ChainID, c.chainID)
	}
	return c.Store.InsertGenesis(h)
}

// Insert validates h.ChainID before delegating to the wrapped store.
func (c *ChainStore) Insert(h *header.BlockHeader) error {
	if h.ChainID != c.chainID {
		return fmt.Errorf("%w: header chain %d, store chain %d", ErrChainIDMismatch, h.ChainID, c.chainID)
	}
	return c.Store.Insert(h)
}
