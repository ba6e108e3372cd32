package engine

// queueKind tracks which of the three record-bearing send queues a record
// currently sits in (§3 invariant: "any record is on at most one of
// {now, paused, publish} at once"). Probing has its own tag because a
// record can be on the probing queue *and* later the publish queue, just
// never simultaneously.
type queueKind uint8

const (
	queueNone queueKind = iota
	queueNow
	queuePaused
	queuePublish
	queueProbing
)

// Record is a locally published resource record, shared or unique (§3
// "Published record"). Shared records may announce freely; unique records
// must survive probing before they are safe to answer with.
type Record struct {
	id   recordID
	ans  Answer
	bkt  string // bucket key (== ans.Name) kept for removal without a reverse scan

	// unique: 0 = shared. 1..ProbeStepLimit = probing step in progress.
	// ProbeStepLimit+1 = probed and published.
	unique uint8
	tries  uint8

	conflict    ConflictCallback
	conflictArg any

	queue queueKind
}

const published = ProbeStepLimit + 1

// Name, Type and Answer expose a published record's identity and current
// payload to host code — e.g. a conflict callback deciding how to rename
// and re-register after losing a probe.
func (r *Record) Name() string  { return r.ans.Name }
func (r *Record) Type() RRType  { return r.ans.Type }
func (r *Record) Answer() Answer { return r.ans }

// IsUnique reports whether r is a unique record (claimed exclusively by
// this host) as opposed to shared.
func (r *Record) IsUnique() bool { return r.unique != 0 }

// AllocShared registers a shared record: one that multiple responders on
// the link may legitimately answer with (e.g. a PTR for a service type).
// Shared records skip probing entirely (§4.2).
func (e *Engine) AllocShared(name string, qtype RRType, ttl uint32) *Record {
	r := e.newRecord(name, qtype, ttl)
	return r
}

// AllocUnique registers a unique record — one this host claims exclusive
// ownership of (e.g. its own hostname's A record) — and immediately enters
// probe step 1 (§4.2, §4.7). conflict fires, and the record is destroyed,
// if another host is found to hold a conflicting answer for the same name.
func (e *Engine) AllocUnique(name string, qtype RRType, ttl uint32, conflict ConflictCallback, arg any) *Record {
	r := e.newRecord(name, qtype, ttl)
	r.unique = 1
	r.conflict = conflict
	r.conflictArg = arg
	e.pushRecord(r, queueProbing)
	e.probeDeadline = e.now()
	return r
}

func (e *Engine) newRecord(name string, qtype RRType, ttl uint32) *Record {
	r := &Record{ans: Answer{Name: name, Type: qtype, Class: e.class, TTL: ttl}, bkt: name}
	r.id = recordID(e.records.alloc(r))
	e.published.insert(name, r.id)
	return r
}

// SetRaw overwrites a record's RDATA with an opaque payload and schedules
// it for (re)publication. Used for record types the engine doesn't decode
// convenience fields for.
func (r *Record) SetRaw(e *Engine, data []byte) {
	r.ans.RData = append([]byte(nil), data...)
	e.PublishRecord(r)
}

// SetHost sets an NS/CNAME/PTR-style target name and schedules publication.
func (r *Record) SetHost(e *Engine, target string) {
	r.ans.RDName = target
	e.PublishRecord(r)
}

// SetIP sets an A record's address and schedules publication.
func (r *Record) SetIP(e *Engine, ip []byte) {
	r.ans.IP = append([]byte(nil), ip...)
	e.PublishRecord(r)
}

// SetSRV sets an SRV record's priority/weight/port/target and schedules
// publication.
func (r *Record) SetSRV(e *Engine, priority, weight, port uint16, target string) {
	r.ans.SRV = SRVData{Priority: priority, Weight: weight, Port: port}
	r.ans.RDName = target
	e.PublishRecord(r)
}

// Done retires a record. A record still probing is simply discarded — it
// was never visible on the wire. A published record is given a goodbye:
// its TTL is zeroed and it is queued for one last announcement, after which
// Output destroys it (§4.2, §4.5 step 4).
func (e *Engine) Done(r *Record) {
	if r.unique > 0 && r.unique <= ProbeStepLimit {
		e.removeFromQueue(r)
		e.unlinkRecord(r)
		return
	}
	r.ans.TTL = 0
	e.PublishRecord(r)
}

// PublishRecord schedules r for (re)announcement. It is a no-op while a
// unique record is still probing — publication only begins once probing
// completes and flips unique to the published state (§4.2).
func (e *Engine) PublishRecord(r *Record) {
	if r.unique > 0 && r.unique <= ProbeStepLimit {
		return
	}
	r.tries = 0
	e.publishDeadline = e.now()
	e.pushRecord(r, queuePublish)
}

// SendRecord schedules an immediate announcement or answer for r. If a
// publish retransmit is still outstanding it is simply brought forward;
// otherwise unique records answer immediately and shared records answer
// after a jittered pause, so that multiple responders sharing the record
// don't all answer in lock-step (§4.2, RFC 6762 §6).
func (e *Engine) SendRecord(r *Record) {
	if r.tries < ProbeStepLimit {
		e.publishDeadline = e.now()
		return
	}
	if r.unique > 0 {
		e.pushRecord(r, queueNow)
		return
	}
	e.pushRecord(r, queuePaused)
	delayMs := e.jitter.PauseDelayMillis()
	e.pauseDeadline = e.now() + uint64(delayMs)*1000
}

// pushRecord enqueues r onto one of the record-bearing queues, removing it
// from whichever queue it currently occupies first so it is never on more
// than one at a time (§3 invariant, §5 "Duplicate suppression ... PushRecord
// prevents the same record from appearing twice in the same queue").
func (e *Engine) pushRecord(r *Record, kind queueKind) {
	if r.queue == kind {
		return
	}
	e.removeFromQueue(r)
	r.queue = kind
	switch kind {
	case queueNow:
		e.aNow = append(e.aNow, r.id)
	case queuePaused:
		e.aPaused = append(e.aPaused, r.id)
	case queuePublish:
		e.aPublish = append(e.aPublish, r.id)
	case queueProbing:
		e.probing = append(e.probing, r.id)
	}
}

func (e *Engine) removeFromQueue(r *Record) {
	switch r.queue {
	case queueNow:
		e.aNow = removeID(e.aNow, r.id)
	case queuePaused:
		e.aPaused = removeID(e.aPaused, r.id)
	case queuePublish:
		e.aPublish = removeID(e.aPublish, r.id)
	case queueProbing:
		e.probing = removeID(e.probing, r.id)
	}
	r.queue = queueNone
}

func removeID(list []recordID, id recordID) []recordID {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (e *Engine) unlinkRecord(r *Record) {
	e.published.remove(r.bkt, r.id)
	e.records.free_(int(r.id))
}

// lookupRecord returns the next published record after last (or the first,
// if last is nil) matching name+qtype, resuming within the bucket chain so
// callers can walk every match without re-scanning what they've already
// seen (§4.1 "resumable iteration").
func (e *Engine) lookupRecord(name string, qtype RRType, last *Record) *Record {
	chain := e.published.bucket(name)
	skip := last != nil
	for _, id := range chain {
		r := e.records.get(int(id))
		if r == nil {
			continue
		}
		if skip {
			if r == last {
				skip = false
			}
			continue
		}
		if namesEqual(r.ans.Name, name) && r.ans.Type.matches(qtype) {
			return r
		}
	}
	return nil
}
