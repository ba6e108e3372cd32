package engine

// Engine is the single aggregate owning every table, arena and deadline the
// core needs (§9: "model this as a plain owned aggregate passed into every
// operation. No process globals."). One Engine serves exactly one network
// interface (§1 non-goals).
type Engine struct {
	class     uint16
	frameSize int
	clock     Clock
	jitter    Jitter

	// Hash indices (§4.1).
	published *bucketTable[recordID]
	queries   *bucketTable[queryID]
	cache     *bucketTable[cacheID]

	// Arenas (§9 "arena + indices").
	records  *arena[Record]
	centries *arena[CacheEntry]
	qs       *arena[Query]

	qlist []queryID // global query order, independent of bucket layout

	// Send queues (§4.5). Records carry their own queue membership tag so
	// PushRecord can dedupe in O(1) instead of scanning a queue.
	aNow     []recordID
	aPaused  []recordID
	aPublish []recordID
	probing  []recordID
	uAnswers []unicastSlot

	// Deadlines. pause/probe/publish need sub-second precision (probe steps
	// are 250ms apart, shared-record jitter is 20-120ms) so they're kept as
	// absolute microseconds; checkqlist and expireAllAt are specified in
	// whole seconds and kept that way. 0 means "not scheduled" throughout.
	pauseDeadline   uint64
	probeDeadline   uint64
	publishDeadline uint64
	checkqlist      uint32
	expireAllAt     uint32

	shuttingDown bool
	freed        bool
}

// unicastSlot snapshots enough of a query to answer it directly instead of
// through the multicast group, for peers that queried from a non-standard
// source port (§3 "Unicast reply slot").
type unicastSlot struct {
	record recordID
	msgID  uint16
	dst    Destination
}

// New creates an engine bound to a single DNS class (almost always ClassIN).
// frameSize is stored on the engine but the scheduler does not consult it:
// a datagram's size is bounded only by the MessageBuilder refusing an
// append, which ends the current step (§4.5). clock and jitter are the only collaborators the core needs directly;
// everything else (codec, socket, logging) lives above it.
func New(class uint16, frameSize int, clock Clock, jitter Jitter) *Engine {
	e := &Engine{
		class:     class,
		frameSize: frameSize,
		clock:     clock,
		jitter:    jitter,
		published: newBucketTable[recordID](sPrime),
		queries:   newBucketTable[queryID](sPrime),
		cache:     newBucketTable[cacheID](lPrime),
		records:   newArena[Record](),
		centries:  newArena[CacheEntry](),
		qs:        newArena[Query](),
	}
	e.expireAllAt = e.nowSeconds() + ttlSeconds(GCInterval)
	return e
}

// now returns the current time in absolute microseconds, for the scheduler's
// sub-second deadlines.
func (e *Engine) now() uint64 {
	return e.clock.NowMicros()
}

// nowSeconds is now truncated to whole seconds, for cache/query/GC
// deadlines tracked in absolute seconds rather than microseconds.
func (e *Engine) nowSeconds() uint32 {
	return uint32(e.now() / 1_000_000)
}

// Shutdown moves every published record onto the immediate queue with
// ttl=0, so that subsequent Output calls emit goodbyes for all of them
// (§5 "Memory"). It does not free the engine; keep calling Output until it
// returns 0, then call Free.
func (e *Engine) Shutdown() {
	e.shuttingDown = true
	e.records.each(func(_ int, r *Record) bool {
		r.ans.TTL = 0
		e.pushRecord(r, queueNow)
		return true
	})
}

// Free releases every table, arena and queue the engine owns. Call it only
// after Shutdown's goodbyes have been drained (Output returning 0), or when
// abandoning the engine outright without a graceful shutdown.
func (e *Engine) Free() {
	if e.freed {
		return
	}
	e.published = newBucketTable[recordID](sPrime)
	e.queries = newBucketTable[queryID](sPrime)
	e.cache = newBucketTable[cacheID](lPrime)
	e.records = newArena[Record]()
	e.centries = newArena[CacheEntry]()
	e.qs = newArena[Query]()
	e.qlist = nil
	e.aNow, e.aPaused, e.aPublish, e.probing, e.uAnswers = nil, nil, nil, nil, nil
	e.freed = true
}

// Flush expires every cache entry immediately, per RFC 6762 §10.1's
// guidance that a host reconnecting to the network (e.g. after a link
// change) should treat all previously learned records as stale rather than
// wait out their TTLs. Every query still registered afterward is reset so
// it re-asks on the very next Output instead of waiting out whatever
// deadline it had computed against the now-discarded answers (§13, §4.4
// QueryReset).
func (e *Engine) Flush() {
	for b := 0; b < e.cache.numBuckets(); b++ {
		e.expireBucket(b, true)
	}
	for _, id := range e.qlist {
		if q := e.qs.get(int(id)); q != nil {
			e.queryReset(q)
		}
	}
}
