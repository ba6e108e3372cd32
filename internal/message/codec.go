// Package message bridges the wire format in this package to the engine's
// codec contract: Codec implements engine.MessageBuilder for outbound
// datagrams, and DecodeInbound turns a raw datagram into an
// engine.DecodedMessage.
package message

import (
	"encoding/binary"
	"net"
	"strings"

	"github.com/hollowpath/mdnsengine/engine"
	"github.com/hollowpath/mdnsengine/internal/protocol"
)

// MaxMessageSize bounds the datagrams this engine constructs at the
// 9000-byte Multicast DNS packet ceiling of RFC 6762 §17. This is well above
// a typical 1500-byte path MTU, so a message near the limit is fragmented.
const MaxMessageSize = 9000

const headerSize = 12

// Codec implements engine.MessageBuilder. The scheduler resets it once per
// Output call and appends questions/records in priority order; AddQuestion
// and AddRecord refuse any append that would take the message past
// MaxMessageSize. Bytes then serializes the accumulated header and sections.
type Codec struct {
	id uint16
	qr bool
	aa bool

	qdcount uint16
	ancount uint16
	nscount uint16

	questions   []byte
	answers     []byte
	authorities []byte
}

// NewCodec returns a ready-to-use Codec. A single instance can be reused
// across Output calls via Reset.
func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Reset(id uint16, qr, aa bool) {
	c.id = id
	c.qr = qr
	c.aa = aa
	c.qdcount, c.ancount, c.nscount = 0, 0, 0
	c.questions = c.questions[:0]
	c.answers = c.answers[:0]
	c.authorities = c.authorities[:0]
}

// Len returns the wire length of the message built so far, header included.
func (c *Codec) Len() int {
	return headerSize + len(c.questions) + len(c.answers) + len(c.authorities)
}

func (c *Codec) AddQuestion(name string, qtype engine.RRType, class uint16) bool {
	encodedName, err := EncodeName(name)
	if err != nil {
		return false
	}
	entry := make([]byte, 0, len(encodedName)+4)
	entry = append(entry, encodedName...)
	entry = appendUint16(entry, uint16(qtype))
	entry = appendUint16(entry, class)

	if c.Len()+len(entry) > MaxMessageSize {
		return false
	}
	c.questions = append(c.questions, entry...)
	c.qdcount++
	return true
}

func (c *Codec) AddRecord(section engine.Section, a engine.Answer) bool {
	entry, err := encodeAnswer(a)
	if err != nil {
		return false
	}
	if c.Len()+len(entry) > MaxMessageSize {
		return false
	}
	switch section {
	case engine.SectionAnswer:
		c.answers = append(c.answers, entry...)
		c.ancount++
	case engine.SectionAuthority:
		c.authorities = append(c.authorities, entry...)
		c.nscount++
	default:
		return false
	}
	return true
}

// Bytes serializes the header and accumulated sections into a single wire
// format datagram. Additional-section count is always zero: the engine
// never writes additional records (§8.1 only uses Answer and Authority).
func (c *Codec) Bytes() []byte {
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint16(header[0:2], c.id)

	var flags uint16
	if c.qr {
		flags |= protocol.FlagQR
	}
	if c.aa {
		flags |= protocol.FlagAA
	}
	binary.BigEndian.PutUint16(header[2:4], flags)
	binary.BigEndian.PutUint16(header[4:6], c.qdcount)
	binary.BigEndian.PutUint16(header[6:8], c.ancount)
	binary.BigEndian.PutUint16(header[8:10], c.nscount)
	binary.BigEndian.PutUint16(header[10:12], 0)

	out := make([]byte, 0, c.Len())
	out = append(out, header...)
	out = append(out, c.questions...)
	out = append(out, c.answers...)
	out = append(out, c.authorities...)
	return out
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// encodeAnswer serializes one resource record per RFC 1035 §3.2.1, carrying
// the RFC 6762 §10.2 cache-flush bit through in Class unchanged (the
// scheduler sets it, this just writes it to the wire).
func encodeAnswer(a engine.Answer) ([]byte, error) {
	encodedName, err := encodeRecordName(a.Name)
	if err != nil {
		return nil, err
	}
	rdata, err := encodeRData(a)
	if err != nil {
		return nil, err
	}

	entry := make([]byte, 0, len(encodedName)+10+len(rdata))
	entry = append(entry, encodedName...)
	entry = appendUint16(entry, uint16(a.Type))
	entry = appendUint16(entry, a.Class)
	entry = appendUint32(entry, a.TTL)
	entry = appendUint16(entry, uint16(len(rdata)))
	entry = append(entry, rdata...)
	return entry, nil
}

// encodeRecordName detects DNS-SD service instance names ("instance._service._proto.local")
// per RFC 6763 §4.3 and routes them through EncodeServiceInstanceName so the
// instance label can carry spaces and arbitrary UTF-8; every other name goes
// through the strict RFC 1035 §3.1 encoder.
func encodeRecordName(name string) ([]byte, error) {
	if strings.Contains(name, "._") {
		parts := strings.SplitN(name, "._", 2)
		if len(parts) == 2 {
			return EncodeServiceInstanceName(parts[0], "_"+parts[1])
		}
	}
	return EncodeName(name)
}

func encodeRData(a engine.Answer) ([]byte, error) {
	switch a.Type {
	case engine.TypeA:
		if ip4 := a.IP.To4(); ip4 != nil {
			return append([]byte(nil), ip4...), nil
		}
		return a.RData, nil
	case engine.TypePTR, engine.TypeNS, engine.TypeCNAME:
		return encodeRecordName(a.RDName)
	case engine.TypeSRV:
		target, err := EncodeName(a.RDName)
		if err != nil {
			return nil, err
		}
		rdata := make([]byte, 0, 6+len(target))
		rdata = appendUint16(rdata, a.SRV.Priority)
		rdata = appendUint16(rdata, a.SRV.Weight)
		rdata = appendUint16(rdata, a.SRV.Port)
		rdata = append(rdata, target...)
		return rdata, nil
	default:
		return a.RData, nil
	}
}

// DecodeInbound parses a raw mDNS datagram into the engine's decoded
// message shape, populating each Answer's decoded convenience fields from
// its RDATA (RFC 1035 §3.4, RFC 2782 §4.1).
func DecodeInbound(raw []byte) (engine.DecodedMessage, error) {
	msg, err := ParseMessage(raw)
	if err != nil {
		return engine.DecodedMessage{}, err
	}

	out := engine.DecodedMessage{
		ID: msg.Header.ID,
		QR: msg.Header.IsResponse(),
		AA: msg.Header.Flags&protocol.FlagAA != 0,
	}
	out.Questions = make([]engine.Question, 0, len(msg.Questions))
	for _, q := range msg.Questions {
		// QCLASS bit 15 is the QU (unicast-response-desired) bit per RFC
		// 6762 §5.4, not part of the class itself; strip it before the
		// engine compares against its configured class.
		out.Questions = append(out.Questions, engine.Question{
			Name:  q.QNAME,
			Type:  engine.RRType(q.QTYPE),
			Class: q.QCLASS &^ 0x8000,
		})
	}
	out.Answer = decodeAnswers(msg.Answers)
	out.Authority = decodeAnswers(msg.Authorities)
	return out, nil
}

func decodeAnswers(answers []Answer) []engine.Answer {
	out := make([]engine.Answer, 0, len(answers))
	for _, a := range answers {
		out = append(out, decodeAnswer(a))
	}
	return out
}

// decodeAnswer leaves Class untouched: unlike a question's QU bit, the
// cache-flush bit on a record (RFC 6762 §10.2) is information the engine
// itself reads (see engine.ClassCacheFlush).
func decodeAnswer(a Answer) engine.Answer {
	ea := engine.Answer{
		Name:  a.NAME,
		Type:  engine.RRType(a.TYPE),
		Class: a.CLASS,
		TTL:   a.TTL,
		RData: a.RDATA,
	}
	parsed, err := ParseRDATA(a.TYPE, a.RDATA)
	if err != nil {
		return ea
	}
	switch v := parsed.(type) {
	case net.IP:
		ea.IP = v
	case string:
		ea.RDName = v
	case SRVData:
		ea.SRV = engine.SRVData{Priority: v.Priority, Weight: v.Weight, Port: v.Port}
		ea.RDName = v.Target
	}
	return ea
}
