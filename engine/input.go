package engine

import "net"

// Input dispatches one decoded inbound datagram from (srcIP, srcPort). It
// never returns an error — malformed messages are the codec's problem
// (§7); everything Input sees is assumed well-formed.
//
// Queries (QR=0) are answered from local records, with known-answer
// suppression and probe conflict detection along the way (§4.6). Responses
// (QR=1) are checked for conflicts against local unique records and then
// folded into the cache (§4.6, §4.3).
func (e *Engine) Input(msg DecodedMessage, srcIP net.IP, srcPort int) {
	if !msg.QR {
		e.inputQuery(msg, srcIP, srcPort)
		return
	}
	e.inputResponse(msg)
}

func (e *Engine) inputQuery(msg DecodedMessage, srcIP net.IP, srcPort int) {
	for _, q := range msg.Questions {
		if q.Class != uint16(e.class) {
			continue
		}
		first := e.lookupRecord(q.Name, q.Type, nil)
		if first == nil {
			continue
		}
		if srcPort != Port {
			e.uAnswers = append(e.uAnswers, unicastSlot{
				record: first.id,
				msgID:  msg.ID,
				dst:    Destination{IP: srcIP, Port: srcPort},
			})
		}

		var last *Record
		for {
			r := e.lookupRecord(q.Name, q.Type, last)
			if r == nil {
				break
			}
			last = r
			e.answerOrDefend(r, msg)
		}
	}
}

// answerOrDefend handles one local record matching an inbound question: a
// still-probing record checks the query's authority section for a
// conflicting claim (§4.7); an already-published record checks the
// question's answer section for known-answer suppression (§4.6).
func (e *Engine) answerOrDefend(r *Record, msg DecodedMessage) {
	if r.unique > 0 && r.unique <= ProbeStepLimit {
		mismatch, match := false, false
		for _, a := range msg.Authority {
			if !namesEqual(a.Name, r.ans.Name) || a.Type != r.ans.Type || a.TTL == 0 {
				continue
			}
			if matchAnswer(a, r.ans) {
				match = true
			} else {
				mismatch = true
			}
		}
		if mismatch && !match {
			e.conflictAbort(r)
		}
		return
	}

	for _, a := range msg.Answer {
		if matchAnswer(a, r.ans) {
			return // known-answer suppression: peer already has this.
		}
	}
	e.SendRecord(r)
}

// conflictAbort runs a unique record's conflict callback and destroys it,
// per §4.7: "conflict exists: invoke R's conflict callback and destroy R."
func (e *Engine) conflictAbort(r *Record) {
	e.removeFromQueue(r)
	cb := r.conflict
	e.unlinkRecord(r)
	if cb != nil {
		cb(r, r.conflictArg)
	}
}

func (e *Engine) inputResponse(msg DecodedMessage) {
	for _, a := range msg.Answer {
		e.checkPublishedConflict(a)
		e.AddResource(a)
	}
}

// checkPublishedConflict implements §4.6's response-side conflict rule: a
// conflict exists if there is a local unique record with the same
// name+type whose data mismatches the inbound answer, and no local unique
// record whose data matches it. Every mismatching record's conflict
// callback fires (with the inbound answer's nonzero ttl, per §4.6).
func (e *Engine) checkPublishedConflict(a Answer) {
	if a.TTL == 0 {
		return
	}
	var mismatching []*Record
	matched := false
	var last *Record
	for {
		r := e.lookupRecord(a.Name, a.Type, last)
		if r == nil {
			break
		}
		last = r
		if r.unique == 0 {
			continue
		}
		if matchAnswer(a, r.ans) {
			matched = true
		} else {
			mismatching = append(mismatching, r)
		}
	}
	if matched || len(mismatching) == 0 {
		return
	}
	for _, r := range mismatching {
		e.conflictAbort(r)
	}
}

// matchAnswer is the type-aware known-answer equality check (§4.6
// MatchAnswer): names compare case-insensitively; ANY only requires the
// name to match; A compares the address; SRV compares
// target+port+weight+priority; PTR/NS/CNAME compare the target name;
// everything else compares raw RDATA.
func matchAnswer(res Answer, ans Answer) bool {
	if !namesEqual(res.Name, ans.Name) {
		return false
	}
	if ans.Type == TypeANY {
		return true
	}
	if res.Type != ans.Type {
		return false
	}
	switch ans.Type {
	case TypeA:
		return res.IP.Equal(ans.IP)
	case TypeSRV:
		return namesEqual(res.RDName, ans.RDName) &&
			res.SRV.Port == ans.SRV.Port &&
			res.SRV.Weight == ans.SRV.Weight &&
			res.SRV.Priority == ans.SRV.Priority
	case TypePTR, TypeNS, TypeCNAME:
		return namesEqual(res.RDName, ans.RDName)
	default:
		return string(res.RData) == string(ans.RData)
	}
}
