package reconcile

import (
	"context"
	"testing"

	"github.com/chainweb-go/chainweb/cas"
	"github.com/chainweb-go/chainweb/header"
	"github.com/chainweb-go/chainweb/headerstore"
	"github.com/chainweb-go/chainweb/mempool"
	"github.com/chainweb-go/chainweb/refdb"
)

func newTestStore() *headerstore.Store {
	return headerstore.New(cas.NewMemStore(), refdb.NewMemIndex())
}

func mkChild(parent *header.BlockHeader, nonce uint64) *header.BlockHeader {
	return &header.BlockHeader{
		Height:     parent.Height + 1,
		ParentHash: parent.Hash(),
		Weight:     parent.Weight + 1,
		Nonce:      nonce,
	}
}

func tx(b byte) mempool.TxHash {
	var h mempool.TxHash
	h[0] = b
	return h
}

// TestReconcileSimpleFork mirrors scenario S2: chain G-A-B-C, fork D' at
// height 3 off B. reconcile(newHead=D', oldHead=C) should return {t1}.
func TestReconcileSimpleFork(t *testing.T) {
	s := newTestStore()
	genesis := &header.BlockHeader{Height: 0}
	if err := s.InsertGenesis(genesis); err != nil {
		t.Fatal(err)
	}
	a := mkChild(genesis, 1)
	b := mkChild(a, 2)
	c := mkChild(b, 3)
	dPrime := mkChild(b, 4)

	lookup := mempool.NewMapPayloadLookup()
	c.PayloadHash = header.HexToHash("0xc1")
	dPrime.PayloadHash = header.HexToHash("0xd1")
	lookup.Set(c.PayloadHash, map[mempool.TxHash]struct{}{tx(1): {}, tx(2): {}})
	lookup.Set(dPrime.PayloadHash, map[mempool.TxHash]struct{}{tx(2): {}, tx(3): {}})

	for _, h := range []*header.BlockHeader{a, b, c, dPrime} {
		if err := s.Insert(h); err != nil {
			t.Fatalf("insert height %d: %v", h.Height, err)
		}
	}

	got, err := Reconcile(context.Background(), s, dPrime.Height, c.Height, dPrime.Hash(), c.Hash(), lookup, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Reconcile returned %v, want exactly {t1}", got)
	}
	if _, ok := got[tx(1)]; !ok {
		t.Errorf("Reconcile returned %v, want {t1}", got)
	}
}

// TestReconcileDeepFork mirrors scenario S3: a chain up to height 10
// splitting there into branches of length 5 and 8.
func TestReconcileDeepFork(t *testing.T) {
	s := newTestStore()
	genesis := &header.BlockHeader{Height: 0}
	if err := s.InsertGenesis(genesis); err != nil {
		t.Fatal(err)
	}
	cur := genesis
	var forkPoint *header.BlockHeader
	for i := uint64(1); i <= 10; i++ {
		cur = mkChild(cur, i)
		if err := s.Insert(cur); err != nil {
			t.Fatal(err)
		}
		if i == 10 {
			forkPoint = cur
		}
	}

	lookup := mempool.NewMapPayloadLookup()

	shortCur := forkPoint
	var shortTip *header.BlockHeader
	for i := uint64(0); i < 5; i++ {
		shortCur = mkChild(shortCur, 100+i)
		shortCur.PayloadHash = header.BytesToHash([]byte{byte(200 + i)})
		lookup.Set(shortCur.PayloadHash, map[mempool.TxHash]struct{}{tx(byte(50 + i)): {}})
		if err := s.Insert(shortCur); err != nil {
			t.Fatal(err)
		}
		shortTip = shortCur
	}

	longCur := forkPoint
	var longTip *header.BlockHeader
	for i := uint64(0); i < 8; i++ {
		longCur = mkChild(longCur, 200+i)
		longCur.PayloadHash = header.BytesToHash([]byte{byte(10 + i)})
		lookup.Set(longCur.PayloadHash, map[mempool.TxHash]struct{}{tx(byte(i)): {}})
		if err := s.Insert(longCur); err != nil {
			t.Fatal(err)
		}
		longTip = longCur
	}

	got, err := Reconcile(context.Background(), s, longTip.Height, shortTip.Height, longTip.Hash(), shortTip.Hash(), lookup, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := map[mempool.TxHash]struct{}{tx(50): {}, tx(51): {}, tx(52): {}, tx(53): {}, tx(54): {}}
	if len(got) != len(want) {
		t.Fatalf("Reconcile returned %d txs, want %d: %v", len(got), len(want), got)
	}
	for w := range want {
		if _, ok := got[w]; !ok {
			t.Errorf("Reconcile missing expected tx %v", w)
		}
	}
}

func TestReconcileMissingHead(t *testing.T) {
	s := newTestStore()
	genesis := &header.BlockHeader{Height: 0}
	if err := s.InsertGenesis(genesis); err != nil {
		t.Fatal(err)
	}
	lookup := mempool.NewMapPayloadLookup()
	_, err := Reconcile(context.Background(), s, 99, 0, header.HexToHash("0xdead"), genesis.Hash(), lookup, 0)
	if err == nil {
		t.Error("expected an error for a nonexistent new head")
	}
}
