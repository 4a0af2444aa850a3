// Package mempool defines the collaborator interfaces the fork
// reconciliation algorithm (package reconcile) uses to look up a header's
// transaction payload and to hand reintroduced transactions back to a
// mempool. The mempool's own data structures are out of scope for this
// module (spec.md §1) -- this package only defines the seam.
package mempool

import "github.com/chainweb-go/chainweb/header"

// TxHash identifies a transaction within a payload. Opaque beyond equality
// and use as a map key, mirroring how BlockHeader treats payloadHash.
type TxHash [32]byte

// PayloadLookup resolves a header to the set of transaction hashes in its
// payload. Implementations are expected to consult whatever payload store
// exists outside this module (spec.md §4.6's injected payloadTxs).
type PayloadLookup interface {
	PayloadTxs(h *header.BlockHeader) (map[TxHash]struct{}, error)
}

// Reintroducer accepts the set of transactions a fork reconciliation
// determined should return to the mempool.
type Reintroducer interface {
	Reintroduce(txs map[TxHash]struct{}) error
}

// MapPayloadLookup is an in-memory PayloadLookup test double, grounded on
// consensus.CheckpointPersistenceStore's map bookkeeping style: a simple
// keyed store returning copies rather than aliased internal state. It has
// no mutex, so Set must not run concurrently with Set or PayloadTxs.
type MapPayloadLookup struct {
	txsByHash map[header.BlockHash]map[TxHash]struct{}
}

// NewMapPayloadLookup returns an empty MapPayloadLookup.
func NewMapPayloadLookup() *MapPayloadLookup {
	return &MapPayloadLookup{txsByHash: make(map[header.BlockHash]map[TxHash]struct{})}
}

// Set records the transaction set for a header's payload hash.
func (m *MapPayloadLookup) Set(payloadHash header.BlockHash, txs map[TxHash]struct{}) {
	cp := make(map[TxHash]struct{}, len(txs))
	for tx := range txs {
		cp[tx] = struct{}{}
	}
	m.txsByHash[payloadHash] = cp
}

// PayloadTxs implements PayloadLookup.
func (m *MapPayloadLookup) PayloadTxs(h *header.BlockHeader) (map[TxHash]struct{}, error) {
	txs, ok := m.txsByHash[h.PayloadHash]
	if !ok {
		return map[TxHash]struct{}{}, nil
	}
	cp := make(map[TxHash]struct{}, len(txs))
	for tx := range txs {
		cp[tx] = struct{}{}
	}
	return cp, nil
}

// RecordingReintroducer is a Reintroducer test double that simply records
// the last set of transactions it was handed.
type RecordingReintroducer struct {
	Reintroduced map[TxHash]struct{}
}

// Reintroduce implements Reintroducer.
func (r *RecordingReintroducer) Reintroduce(txs map[TxHash]struct{}) error {
	r.Reintroduced = txs
	return nil
}
