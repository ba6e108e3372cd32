package engine

import "time"

// Output builds at most one outbound datagram into b and reports where to
// send it and how many questions/records were written; a unicast reply
// counts as 1 although it carries a question and a record. A return of 0 means
// there is nothing to send this tick; the host should wait MaxSleepTime and
// try again (§4.5).
//
// The nine steps below run in strict priority order and each stops as soon
// as b refuses a further append (its own frame_size budget), leaving
// whatever didn't fit queued for the next call.
func (e *Engine) Output(b MessageBuilder) (Destination, int) {
	now := e.now()
	nowSec := e.nowSeconds()

	// Step 1: a pending unicast reply always goes out first, and alone.
	if len(e.uAnswers) > 0 {
		n := len(e.uAnswers) - 1
		slot := e.uAnswers[n]
		e.uAnswers = e.uAnswers[:n]
		r := e.records.get(int(slot.record))
		b.Reset(slot.msgID, true, true)
		if r != nil {
			b.AddQuestion(r.ans.Name, r.ans.Type, uint16(e.class))
			b.AddRecord(SectionAnswer, r.ans)
		}
		return slot.dst, 1
	}

	dst := MulticastDestination()
	b.Reset(0, true, true)
	emitted := 0

	// Step 3: immediate queue.
	emitted += e.drainRecordQueue(b, &e.aNow, SectionAnswer)

	// Step 4: publish retries, only once the publish deadline is due.
	if e.publishDeadline != 0 && now >= e.publishDeadline {
		emitted += e.drainPublish(b)
	}

	// Step 5: shutting down — return whatever goodbyes fit, skip the rest.
	if e.shuttingDown {
		return dst, emitted
	}

	// Step 6: paused (jittered shared-record answers).
	if e.pauseDeadline != 0 && now >= e.pauseDeadline {
		emitted += e.drainRecordQueue(b, &e.aPaused, SectionAnswer)
	}

	// Step 7: anything emitted so far is returned as-is; probing and query
	// retries only run on a tick that had nothing else to say.
	if emitted > 0 {
		return dst, emitted
	}

	// Step 8: probing.
	if e.probeDeadline != 0 && now >= e.probeDeadline && len(e.probing) > 0 {
		b.Reset(0, false, false)
		return dst, e.runProbeStepInto(b)
	}

	// Step 9: query retries.
	if e.checkqlist != 0 && nowSec >= e.checkqlist {
		emitted += e.runQueryRetries(b)
	}

	// Step 10: cache GC is scheduled work with no datagram effect.
	if nowSec > e.expireAllAt {
		e.GC()
	}

	return dst, emitted
}

// drainRecordQueue appends records from *queue to section, stopping at the
// first one the builder refuses. Records that fit are removed from the
// queue; a ttl=0 record (a goodbye) is destroyed once it has gone out.
// Unique records carry the cache-flush bit (§4.5 step 3/6).
func (e *Engine) drainRecordQueue(b MessageBuilder, queue *[]recordID, section Section) int {
	emitted := 0
	remaining := *queue
	i := 0
	for ; i < len(remaining); i++ {
		r := e.records.get(int(remaining[i]))
		if r == nil {
			continue
		}
		ans := r.ans
		if r.unique != 0 {
			ans.Class |= ClassCacheFlush
		}
		if !b.AddRecord(section, ans) {
			break
		}
		r.queue = queueNone
		emitted++
		if r.ans.TTL == 0 {
			e.unlinkRecord(r)
		}
	}
	*queue = remaining[i:]
	return emitted
}

// drainPublish runs the publish-retry queue (§4.5 step 4): each record is
// re-announced, its retry counter incremented, and either kept (still has
// retries left), destroyed (ttl=0, the goodbye completed), or dropped
// (retries exhausted). If anything is left afterward the publish deadline
// is pushed out so the remaining retries get their own turn later.
func (e *Engine) drainPublish(b MessageBuilder) int {
	emitted := 0
	queue := e.aPublish
	survivors := make([]recordID, 0, len(queue))
	stopped := false

	for _, id := range queue {
		if stopped {
			survivors = append(survivors, id)
			continue
		}
		r := e.records.get(int(id))
		if r == nil {
			continue
		}
		if !b.AddRecord(SectionAnswer, withCacheFlush(r)) {
			stopped = true
			survivors = append(survivors, id)
			continue
		}
		emitted++
		r.tries++
		if r.ans.TTL == 0 {
			r.queue = queueNone
			e.unlinkRecord(r)
			continue
		}
		if r.tries >= ProbeStepLimit {
			r.queue = queueNone
			continue
		}
		survivors = append(survivors, id)
	}

	e.aPublish = survivors
	if len(e.aPublish) > 0 {
		e.publishDeadline = e.now() + microsOf(PublishRetrySpacing)
	} else {
		e.publishDeadline = 0
	}
	return emitted
}

func withCacheFlush(r *Record) Answer {
	a := r.ans
	if r.unique != 0 {
		a.Class |= ClassCacheFlush
	}
	return a
}

// runProbeStepInto performs the two probing passes described in §4.7: the
// first asks a tentative ANY question for every still-probing record,
// including the one reaching its final step, then completes that record
// (publishing it) once the question for it has gone out; the second
// appends each record still probing after that to the authority section
// and advances its step counter. The probe deadline is always pushed
// forward by ProbeInterval, and the two passes never split across calls.
// This runs ProbeStepLimit times per record, asking the ANY question on
// every step so exactly ProbeStepLimit probes go out before publishing.
func (e *Engine) runProbeStepInto(b MessageBuilder) int {
	emitted := 0
	stillProbing := make([]recordID, 0, len(e.probing))
	for _, id := range e.probing {
		r := e.records.get(int(id))
		if r == nil {
			continue
		}
		if b.AddQuestion(r.ans.Name, TypeANY, uint16(e.class)) {
			emitted++
		}
		if r.unique == ProbeStepLimit {
			r.unique = published
			r.queue = queueNone
			e.PublishRecord(r)
			continue
		}
		stillProbing = append(stillProbing, id)
	}
	e.probing = stillProbing

	for _, id := range e.probing {
		r := e.records.get(int(id))
		if r == nil {
			continue
		}
		if b.AddRecord(SectionAuthority, r.ans) {
			emitted++
		}
		r.unique++
	}

	e.probeDeadline = e.now() + microsOf(ProbeInterval)
	return emitted
}

// runQueryRetries is §4.5 step 9's two passes over the global query list:
// pass A asks the still-due queries' questions and tracks the best
// candidate deadline among queries not due yet; pass B advances each due
// query's retry state, giving up (and flushing the cache bucket) once its
// retry budget is exhausted, or else attaching known-answer records from
// the cache so peers can suppress redundant replies.
func (e *Engine) runQueryRetries(b MessageBuilder) int {
	now := e.nowSeconds()
	emitted := 0
	var nextBest uint32

	for _, id := range e.qlist {
		q := e.qs.get(int(id))
		if q == nil || q.nextTry == 0 {
			continue
		}
		if q.nextTry <= now {
			if q.tries < QueryRetryLimit {
				if b.AddQuestion(q.name, q.qtype, uint16(e.class)) {
					emitted++
				}
			}
			continue
		}
		if nextBest == 0 || q.nextTry < nextBest {
			nextBest = q.nextTry
		}
	}

	for _, id := range e.qlist {
		q := e.qs.get(int(id))
		if q == nil || q.nextTry == 0 || q.nextTry > now {
			continue
		}
		if q.tries >= QueryRetryLimit {
			e.expireMatching(q.name, q.qtype, true)
			e.queryReset(q)
			if q.nextTry != 0 && (nextBest == 0 || q.nextTry < nextBest) {
				nextBest = q.nextTry
			}
			continue
		}
		q.tries++
		q.nextTry = now + uint32(q.tries)
		if nextBest == 0 || q.nextTry < nextBest {
			nextBest = q.nextTry
		}
		e.appendKnownAnswers(b, q, &emitted)
	}

	e.checkqlist = nextBest
	return emitted
}

// appendKnownAnswers adds cache entries matching q that still have more
// than KnownAnswerRemainingFloor seconds of remaining (absolute) TTL, so a
// repeated query carries known-answers a peer can suppress against. Each
// goes out with its remaining lifetime in seconds as its TTL.
func (e *Engine) appendKnownAnswers(b MessageBuilder, q *Query, emitted *int) {
	now := e.nowSeconds()
	var last *CacheEntry
	for {
		ce := e.lookupCache(q.name, q.qtype, last)
		if ce == nil {
			return
		}
		last = ce
		if ce.ans.TTL <= now+KnownAnswerRemainingFloor {
			continue
		}
		known := ce.ans
		known.TTL = ce.ans.TTL - now
		if !b.AddRecord(SectionAnswer, known) {
			return
		}
		*emitted++
	}
}

// MaxSleepTime reports how long the host may safely block on its socket
// before the engine needs another Output call, following the deadline
// priority in §4.5: immediate work is due now; otherwise the nearest of
// pause/probe/publish/query-retry/GC deadlines, whichever is soonest.
func (e *Engine) MaxSleepTime() time.Duration {
	if len(e.uAnswers) > 0 || len(e.aNow) > 0 {
		return 0
	}
	now := e.now()
	best := secondsToMicros(e.expireAllAt)
	consider := func(d uint64) {
		if d == 0 {
			return
		}
		if best == 0 || d < best {
			best = d
		}
	}
	if len(e.aPaused) > 0 {
		consider(e.pauseDeadline)
	}
	if len(e.probing) > 0 {
		consider(e.probeDeadline)
	}
	if len(e.aPublish) > 0 {
		consider(e.publishDeadline)
	}
	consider(secondsToMicros(e.checkqlist))

	if best <= now {
		return 0
	}
	return time.Duration(best-now) * time.Microsecond
}
