// Package records builds DNS-SD service record sets on top of engine and
// tracks per-record multicast rate limiting.
package records

import (
	"fmt"
	"time"

	"github.com/hollowpath/mdnsengine/engine"
	"github.com/hollowpath/mdnsengine/internal/protocol"
)

// ServiceInfo holds the information needed to build a service's full
// DNS-SD record set (PTR, SRV, TXT, A) per RFC 6763 §6.
type ServiceInfo struct {
	InstanceName string            // "My Printer"
	ServiceType  string            // "_http._tcp.local"
	Hostname     string            // "myhost.local"
	Port         int               // 8080
	IPv4Address  []byte            // [192, 168, 1, 100]
	TXTRecords   map[string]string // {"version": "1.0"}
}

func (s *ServiceInfo) instanceFQDN() string {
	return s.InstanceName + "." + s.ServiceType
}

// RegisteredService holds the engine records backing one published
// service so the caller can retire them together.
type RegisteredService struct {
	PTR *engine.Record
	SRV *engine.Record
	TXT *engine.Record
	A   *engine.Record
}

// RegisterService publishes a service's full record set into eng per RFC
// 6763 §6. The PTR record (service type -> instance name) is shared, since
// every instance of a service type answers it (RFC 6762 §10.2); SRV, TXT
// and A are unique to this instance and go through probing, so conflict
// fires for any of them that loses a name contest.
func RegisterService(eng *engine.Engine, service *ServiceInfo, conflict engine.ConflictCallback, arg any) *RegisteredService {
	fqdn := service.instanceFQDN()

	ptr := eng.AllocShared(service.ServiceType, engine.TypePTR, GetTTLForRecordType(protocol.RecordTypePTR))
	ptr.SetHost(eng, fqdn)

	srv := eng.AllocUnique(fqdn, engine.TypeSRV, GetTTLForRecordType(protocol.RecordTypeSRV), conflict, arg)
	srv.SetSRV(eng, 0, 0, clampPort(service.Port), service.Hostname)

	txt := eng.AllocUnique(fqdn, engine.TypeTXT, GetTTLForRecordType(protocol.RecordTypeTXT), conflict, arg)
	txt.SetRaw(eng, EncodeTXT(service.TXTRecords))

	a := eng.AllocUnique(service.Hostname, engine.TypeA, GetTTLForRecordType(protocol.RecordTypeA), conflict, arg)
	a.SetIP(eng, service.IPv4Address)

	return &RegisteredService{PTR: ptr, SRV: srv, TXT: txt, A: a}
}

// Deregister retires every record in rs (engine.Done, §4.2): a record still
// probing is simply discarded, a published one gets a goodbye.
func (rs *RegisteredService) Deregister(eng *engine.Engine) {
	for _, r := range []*engine.Record{rs.PTR, rs.SRV, rs.TXT, rs.A} {
		if r != nil {
			eng.Done(r)
		}
	}
}

func clampPort(port int) uint16 {
	if port < 0 || port > 65535 {
		return 0
	}
	return uint16(port)
}

// EncodeTXT encodes TXT record key/value pairs per RFC 6763 §6.4: each
// entry is a length-prefixed "key=value" string. RFC 6763 §6.1 requires a
// service with no TXT data to still carry a single zero byte.
func EncodeTXT(kv map[string]string) []byte {
	if len(kv) == 0 {
		return []byte{0x00}
	}
	data := make([]byte, 0, 256)
	for key, value := range kv {
		entry := key + "=" + value
		data = append(data, byte(len(entry)))
		data = append(data, []byte(entry)...)
	}
	return data
}

// RecordSet tracks per-record, per-interface multicast timestamps for rate
// limiting.
//
// RFC 6762 §6.2: "A Multicast DNS responder MUST NOT multicast a given
// resource record on a given interface until at least one second has
// elapsed since the last time that resource record was multicast on that
// particular interface", with a 250ms exception for probe defense. This
// sits above engine at the transport boundary: engine's scheduler decides
// *that* a record should go out now, RecordSet is consulted before the
// socket write actually happens.
type RecordSet struct {
	lastMulticast map[string]int64 // key -> unix nanoseconds
}

// NewRecordSet creates an empty rate limiter.
func NewRecordSet() *RecordSet {
	return &RecordSet{lastMulticast: make(map[string]int64)}
}

// CanMulticast reports whether a per RFC 6762 §6.2's ordinary one-second
// rule can be sent on interfaceID right now.
func (rs *RecordSet) CanMulticast(a engine.Answer, interfaceID string) bool {
	return rs.elapsedSince(a, interfaceID) >= time.Second
}

// CanMulticastProbeDefense reports whether a can be sent under RFC 6762
// §6.2's relaxed 250ms probe-defense exception.
func (rs *RecordSet) CanMulticastProbeDefense(a engine.Answer, interfaceID string) bool {
	return rs.elapsedSince(a, interfaceID) >= 250*time.Millisecond
}

func (rs *RecordSet) elapsedSince(a engine.Answer, interfaceID string) time.Duration {
	key := recordKey(a) + ":" + interfaceID
	lastNano, ok := rs.lastMulticast[key]
	if !ok {
		return time.Duration(1<<63 - 1) // never sent: unconditionally allowed
	}
	return time.Duration(time.Now().UnixNano() - lastNano)
}

// RecordMulticast records that a was just multicast on interfaceID.
func (rs *RecordSet) RecordMulticast(a engine.Answer, interfaceID string) {
	key := recordKey(a) + ":" + interfaceID
	rs.lastMulticast[key] = time.Now().UnixNano()
}

// recordKey identifies a record by name+type+class+rdata. TTL is
// deliberately excluded: a record with a refreshed TTL is still the same
// record for rate-limiting purposes.
func recordKey(a engine.Answer) string {
	return fmt.Sprintf("%d:%d:%s:%s:%s:%s", a.Type, a.Class, a.Name, a.RDName, a.IP, a.RData)
}
