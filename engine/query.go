package engine

// queryReplyLead is how far before a cache entry's absolute expiry its
// watching query should fire its next retry, so the re-query lands before
// the entry actually lapses (§4.4 QueryReset: "fire shortly before the
// earliest near-expiry").
const queryReplyLead = 7

// Query is a continuous registration for a name+type, backed by a callback
// that receives every matching cache update, including expiries (§3
// "Query").
type Query struct {
	id      queryID
	name    string
	qtype   RRType
	cb      QueryCallback
	arg     any
	tries   uint8
	nextTry uint32 // absolute seconds; 0 = dormant
}

// Query registers, updates, or unregisters a continuous query depending on
// the current state of the registry and whether cb is nil (§4.4).
//
//   - No existing query, cb != nil: register a new one, attach it to every
//     matching cache entry already present, and schedule its first retry.
//   - No existing query, cb == nil: no-op.
//   - Existing query, cb == nil: unregister it (detaching from cache first).
//   - Existing query, cb != nil: just overwrite the callback and arg.
func (e *Engine) Query(name string, qtype RRType, cb QueryCallback, arg any) *Query {
	q := e.lookupQuery(name, qtype, nil)
	switch {
	case q == nil && cb == nil:
		return nil
	case q == nil:
		q = &Query{name: name, qtype: qtype, cb: cb, arg: arg}
		q.id = queryID(e.qs.alloc(q))
		e.queries.insert(name, q.id)
		e.qlist = append(e.qlist, q.id)
		e.attachToMatchingCache(q)
		e.queryReset(q)
		return q
	case cb == nil:
		e.destroyQuery(q)
		return nil
	default:
		q.cb = cb
		q.arg = arg
		return q
	}
}

// matchesType reports whether this query should be notified about a record
// of type t. A query of type ANY matches any record type on the name
// (§3 "Query"); this is the mirror image of RRType.matches, since here it
// is the *query's* own type that may be the wildcard, not the argument.
func (q *Query) matchesType(t RRType) bool {
	return q.qtype == TypeANY || q.qtype == t
}

func (e *Engine) lookupQuery(name string, qtype RRType, last *Query) *Query {
	bucket := e.queries.bucket(name)
	skip := last != nil
	for _, id := range bucket {
		q := e.qs.get(int(id))
		if q == nil {
			continue
		}
		if skip {
			if q == last {
				skip = false
			}
			continue
		}
		if namesEqual(q.name, name) && q.matchesType(qtype) {
			return q
		}
	}
	return nil
}

// attachToMatchingCache back-links every cache entry currently matching q's
// name+type so expiry events fan out to it without a linear scan later.
func (e *Engine) attachToMatchingCache(q *Query) {
	var last *CacheEntry
	for {
		ce := e.lookupCache(q.name, q.qtype, last)
		if ce == nil {
			return
		}
		ce.query = q.id
		last = ce
	}
}

// queryReset recomputes q's next retry deadline from its currently attached
// cache entries and resets its retry counter (§4.4). A query with no
// matching cache entries at all has nothing to wait out, so it is due
// immediately rather than left dormant — dormancy only applies once an
// answer with plenty of remaining life is already in hand.
func (e *Engine) queryReset(q *Query) {
	q.tries = 0
	var next uint32
	haveEntry := false
	var last *CacheEntry
	for {
		ce := e.lookupCache(q.name, q.qtype, last)
		if ce == nil {
			break
		}
		haveEntry = true
		candidate := ce.ans.TTL
		if candidate > queryReplyLead {
			candidate -= queryReplyLead
		} else {
			candidate = 0
		}
		if next == 0 || candidate < next {
			next = candidate
		}
		last = ce
	}
	if !haveEntry {
		next = e.nowSeconds()
	}
	q.nextTry = next
	e.recomputeCheckqlist()
}

// recomputeCheckqlist keeps the global query-retry deadline equal to the
// minimum nextTry across every non-dormant query (§3 invariant).
func (e *Engine) recomputeCheckqlist() {
	var min uint32
	for _, id := range e.qlist {
		q := e.qs.get(int(id))
		if q == nil || q.nextTry == 0 {
			continue
		}
		if min == 0 || q.nextTry < min {
			min = q.nextTry
		}
	}
	e.checkqlist = min
}

func (e *Engine) destroyQuery(q *Query) {
	// Detach from every cache entry still pointing at this query.
	for b := 0; b < e.cache.numBuckets(); b++ {
		for _, id := range e.cache.bucketAt(b) {
			if ce := e.centries.get(int(id)); ce != nil && ce.query == q.id {
				ce.query = noQuery
			}
		}
	}
	e.queries.remove(q.name, q.id)
	e.qlist = removeQueryID(e.qlist, q.id)
	e.qs.free_(int(q.id))
	e.recomputeCheckqlist()
}

func removeQueryID(list []queryID, id queryID) []queryID {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// queryAnswer delivers a cache entry's current answer to the query
// watching it, or the synthetic ttl=0 "going away" signal if the entry's
// absolute TTL has already passed (§4.4 QueryAnswer). Returning -1 from the
// callback unregisters the query.
func (e *Engine) queryAnswer(ce *CacheEntry) {
	q := e.qs.get(int(ce.query))
	if q == nil {
		return
	}
	if e.nowSeconds() >= ce.ans.TTL {
		ce.ans.TTL = 0
	}
	if q.cb(ce.ans, q.arg) == -1 {
		e.destroyQuery(q)
	}
}
