package engine

import "time"

// Wire constants per RFC 6762 §5.
const (
	Port        = 5353
	MulticastIP = "224.0.0.251"
	ClassIN     = uint16(1)

	// ClassCacheFlush is the cache-flush bit (bit 15 of the class field),
	// set on answers for unique records per RFC 6762 §10.2.
	ClassCacheFlush = uint16(0x8000)
)

// Timing constants per RFC 6762 §8 and the reference mdnsd scheduling
// discipline this engine follows.
const (
	// ProbeInterval is the spacing between the four probe steps (§4.7).
	ProbeInterval = 250 * time.Millisecond

	// PublishRetrySpacing is how far the publish deadline is pushed out
	// while a record still has retransmits outstanding (§4.5 step 4).
	PublishRetrySpacing = 2 * time.Second

	// SharedJitterMin and SharedJitterMax bound the uniform delay applied
	// before answering with a shared record, so that multiple responders
	// on the link don't all answer in lock-step (§4.2 SendRecord).
	SharedJitterMin = 20 * time.Millisecond
	SharedJitterMax = 120 * time.Millisecond

	// QueryRetryLimit caps how many times a dormant query is retried
	// before the registry gives up on that round (§4.5 step 9).
	QueryRetryLimit = 3

	// ProbeStepLimit is the number of tentative probes sent before a
	// unique record is considered safe to publish (§4.7).
	ProbeStepLimit = 4

	// GCInterval is how often the whole cache is swept for expired
	// entries regardless of query activity (§4.3 GC).
	GCInterval = 5 * time.Minute

	// CacheTTLHalfLifeBias is the constant added on top of half the
	// advertised TTL when computing a cache entry's absolute expiry, so
	// a re-query is driven well before the record would actually lapse
	// (§4.3 AddResource, §9 design notes — acknowledged in the reference
	// implementation as a deliberate hack, kept here for parity).
	CacheTTLHalfLifeBias = 8

	// KnownAnswerRemainingFloor is the minimum remaining TTL (seconds) a
	// cache entry must have to be worth re-sending as a known-answer
	// alongside a repeated query (§4.5 step 9 pass B).
	KnownAnswerRemainingFloor = 8
)

func ttlSeconds(d time.Duration) uint32 {
	return uint32(d / time.Second)
}

// microsOf converts a duration to the microsecond-resolution scheduling
// deadlines the engine keeps for pause/probe/publish timing.
func microsOf(d time.Duration) uint64 {
	return uint64(d / time.Microsecond)
}

// secondsToMicros lifts an absolute-seconds deadline (cache/query/GC) into
// the same microsecond scale so MaxSleepTime can compare all deadlines
// uniformly.
func secondsToMicros(s uint32) uint64 {
	return uint64(s) * 1_000_000
}
