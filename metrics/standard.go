package metrics

// Pre-defined metrics for chainweb-headerd. All metrics live in
// DefaultRegistry so they are globally accessible without passing a
// registry around.

var (
	// ---- Header store metrics ----

	// HeaderHeight holds the height of the header most recently inserted
	// into any store in the process; it is one untagged gauge shared by
	// every chain.
	HeaderHeight = DefaultRegistry.Gauge("headerstore.height")
	// HeadersInserted counts headers successfully appended to a store.
	HeadersInserted = DefaultRegistry.Counter("headerstore.inserted")
	// InsertRejected counts Insert calls that failed validation
	// (duplicate, missing parent, invalid genesis).
	InsertRejected = DefaultRegistry.Counter("headerstore.insert_rejected")
	// InsertLatency records Insert duration in milliseconds.
	InsertLatency = DefaultRegistry.Histogram("headerstore.insert_ms")
	// LeafCount tracks the current number of leaves (forks) in a store.
	LeafCount = DefaultRegistry.Gauge("headerstore.leaves")
	// InsertRate tracks the 1/5/15-minute EWMA rate of successful inserts
	// across every chain store in the process, surfaced on /status.
	InsertRate = NewMeter()

	// ---- Spectrum / lookup metrics ----

	// LookupAtHeightLatency records LookupAtHeight walk duration in
	// milliseconds.
	LookupAtHeightLatency = DefaultRegistry.Histogram("headerstore.lookup_at_height_ms")
	// SpectrumPointers records the spectrum size computed per insert.
	SpectrumPointers = DefaultRegistry.Histogram("headerstore.spectrum_pointers")

	// ---- Reconciliation metrics ----

	// ReconcilesPerformed counts fork reconciliations run.
	ReconcilesPerformed = DefaultRegistry.Counter("reconcile.performed")
	// ReconcileDepth records the depth walked back to find the common
	// ancestor, per reconciliation.
	ReconcileDepth = DefaultRegistry.Histogram("reconcile.depth")
	// ReconcileTxsReturned counts transaction hashes handed back to the
	// mempool across all reconciliations.
	ReconcileTxsReturned = DefaultRegistry.Counter("reconcile.txs_returned")
	// ForkTooDeep counts reconciliations that aborted with ErrForkTooDeep.
	ForkTooDeep = DefaultRegistry.Counter("reconcile.fork_too_deep")

	// ---- Storage metrics ----

	// CacheHits and CacheMisses track the decoded-header cache (fastcache)
	// hit rate in headerstore.Store.
	CacheHits   = DefaultRegistry.Counter("headerstore.cache_hits")
	CacheMisses = DefaultRegistry.Counter("headerstore.cache_misses")
	// ObjectsWritten counts blobs/trees written to the content store.
	ObjectsWritten = DefaultRegistry.Counter("cas.objects_written")
)
