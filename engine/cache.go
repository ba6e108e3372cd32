package engine

// CacheEntry is a record learned from another host on the link (§3 "Cache
// entry"). TTL here is always an *absolute* wall-clock expiry in seconds,
// never a lifetime — AddResource converts the wire lifetime into an
// absolute deadline the instant the entry is created.
type CacheEntry struct {
	id    cacheID
	ans   Answer
	query queryID // back-reference; noQuery if nothing is watching this name+type
}

// AddResource folds one inbound answer into the cache (§4.3). It handles,
// in order: cache-flush (clear prior entries with this name+type before
// adding the new one), goodbye (ttl=0 retires matching entries instead of
// adding anything), and the ordinary case (a fresh entry with an early,
// half-TTL-plus-bias absolute expiry designed to drive a re-query before
// the record actually lapses).
func (e *Engine) AddResource(a Answer) {
	if a.Class&ClassCacheFlush != 0 {
		e.expireMatching(a.Name, a.Type, false)
	}
	if a.TTL == 0 {
		e.expireMatching(a.Name, a.Type, true)
		return
	}

	ce := &CacheEntry{ans: a}
	ce.ans.TTL = e.nowSeconds() + a.TTL/2 + CacheTTLHalfLifeBias
	ce.id = cacheID(e.centries.alloc(ce))
	e.cache.insert(a.Name, ce.id)

	if q := e.lookupQuery(a.Name, a.Type, nil); q != nil {
		ce.query = q.id
		// The callback sees the advertised lifetime, not the absolute
		// expiry stored on the entry.
		delivered := ce.ans
		delivered.TTL = a.TTL
		if q.cb(delivered, q.arg) == -1 {
			e.destroyQuery(q)
		}
	}
}

// expireMatching forces TTL=0 (and, if goodbye is true, immediately expires
// — i.e. fires the going-away callback and frees) every cache entry with
// the given name+type. Plain cache-flush (goodbye=false) only zeroes the
// TTL so the entry is swept out on the next real expire pass, leaving room
// for AddResource to insert the fresh entry first.
func (e *Engine) expireMatching(name string, qtype RRType, goodbye bool) {
	bucket := e.cache.bucketAt(bucketIndex(name, e.cache.numBuckets()))
	for _, id := range bucket {
		ce := e.centries.get(int(id))
		if ce == nil || !namesEqual(ce.ans.Name, name) || !ce.ans.Type.matches(qtype) {
			continue
		}
		ce.ans.TTL = 0
		if goodbye {
			e.retireCacheEntry(ce)
		}
	}
}

// Expire walks one cache bucket, retiring every entry whose absolute TTL
// has been reached. Entries with a query watching them deliver a ttl=0
// callback first (§4.3 Expire, "the going-away signal").
func (e *Engine) expireBucket(idx int, force bool) {
	now := e.nowSeconds()
	// Copy the bucket: retireCacheEntry mutates it in place.
	bucket := append([]cacheID(nil), e.cache.bucketAt(idx)...)
	for _, id := range bucket {
		ce := e.centries.get(int(id))
		if ce == nil {
			continue
		}
		if force || now >= ce.ans.TTL {
			e.retireCacheEntry(ce)
		}
	}
}

func (e *Engine) retireCacheEntry(ce *CacheEntry) {
	if ce.query != noQuery {
		if q := e.qs.get(int(ce.query)); q != nil {
			dying := ce.ans
			dying.TTL = 0
			if q.cb(dying, q.arg) == -1 {
				e.destroyQuery(q)
			}
		}
	}
	e.cache.remove(ce.ans.Name, ce.id)
	e.centries.free_(int(ce.id))
}

// GC sweeps every cache bucket for expired entries; called once the
// expireAllAt deadline is reached (§4.3 GC, §4.5 step 10).
func (e *Engine) GC() {
	for b := 0; b < e.cache.numBuckets(); b++ {
		e.expireBucket(b, false)
	}
	e.expireAllAt = e.nowSeconds() + ttlSeconds(GCInterval)
}

// ListCachedAnswers is the host-facing equivalent of lookupCache: it walks
// cached entries matching name+qtype, resuming after last so repeated calls
// enumerate the whole set without duplicates (§6 public API).
func (e *Engine) ListCachedAnswers(name string, qtype RRType, last *CacheEntry) *CacheEntry {
	return e.lookupCache(name, qtype, last)
}

func (e *Engine) lookupCache(name string, qtype RRType, last *CacheEntry) *CacheEntry {
	bucket := e.cache.bucket(name)
	skip := last != nil
	for _, id := range bucket {
		ce := e.centries.get(int(id))
		if ce == nil {
			continue
		}
		if skip {
			if ce == last {
				skip = false
			}
			continue
		}
		if namesEqual(ce.ans.Name, name) && ce.ans.Type.matches(qtype) {
			return ce
		}
	}
	return nil
}
