package records

import "github.com/hollowpath/mdnsengine/internal/protocol"

// GetTTLForRecordType returns the TTL published for a record type: service
// records (PTR, SRV, TXT) get 120 seconds since discovery data changes
// often, hostname records (A) get 4500 seconds (75 minutes). This grouping
// differs from RFC 6762 §10, which puts A and SRV at 120 seconds and other
// records such as PTR and TXT at 4500 seconds.
// Per-record absolute expiry and decay are engine's concern (engine.Record,
// engine's cache); this is purely the policy table RegisterService
// consults when publishing a fresh record.
func GetTTLForRecordType(rt protocol.RecordType) uint32 {
	switch rt {
	case protocol.RecordTypeA:
		return protocol.TTLHostname
	case protocol.RecordTypeSRV, protocol.RecordTypeTXT, protocol.RecordTypePTR:
		return protocol.TTLService
	default:
		return protocol.TTLService
	}
}
