package dnssd

import (
	"net"

	"github.com/joshuafuller/matterlink/internal/message"
)

// recordTypeAAAA is RFC 3596's AAAA type value (28). The kept wire codec
// (internal/message, internal/protocol) predates IPv6 support, so this
// adapter decodes AAAA RDATA itself rather than extending protocol.RecordType.
const recordTypeAAAA = 28

// FromAnswer converts one decoded message.Answer into zero or one
// dnssd.Record, or ok=false if the record type isn't one the name cache
// understands (anything outside PTR/SRV/A/AAAA/TXT, per spec §3).
func FromAnswer(a message.Answer) (Record, bool) {
	r := Record{Name: LowerQName(a.NAME), TTLSeconds: a.TTL}

	switch a.TYPE {
	case 12: // PTR
		target, _, err := message.ParseName(a.RDATA, 0)
		if err != nil {
			return Record{}, false
		}
		r.Type = RecordPTR
		r.PTRTarget = LowerQName(target)

	case 33: // SRV
		parsed, err := message.ParseRDATA(uint16(a.TYPE), a.RDATA)
		if err != nil {
			return Record{}, false
		}
		srv, ok := parsed.(message.SRVData)
		if !ok {
			return Record{}, false
		}
		r.Type = RecordSRV
		r.SRV = SRVValue{Target: LowerQName(srv.Target), Port: srv.Port}

	case 1: // A
		if len(a.RDATA) != 4 {
			return Record{}, false
		}
		r.Type = RecordA
		r.IPAddress = net.IPv4(a.RDATA[0], a.RDATA[1], a.RDATA[2], a.RDATA[3]).String()

	case recordTypeAAAA:
		if len(a.RDATA) != 16 {
			return Record{}, false
		}
		r.Type = RecordAAAA
		r.IPAddress = net.IP(a.RDATA).String()

	case 16: // TXT
		parsed, err := message.ParseRDATA(uint16(a.TYPE), a.RDATA)
		if err != nil {
			return Record{}, false
		}
		strs, _ := parsed.([]string)
		r.Type = RecordTXT
		r.TXT = parseTXTPairs(strs)

	default:
		return Record{}, false
	}

	return r, true
}

func parseTXTPairs(entries []string) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		key, value := e, ""
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				key, value = e[:i], e[i+1:]
				break
			}
		}
		if key != "" {
			out[key] = value
		}
	}
	return out
}

// MessageFromAnswers builds a dnssd.Message from decoded DNS answer and
// additional-record sections (spec §6 "mDNS socket. Inbound message").
// Records whose type the cache doesn't understand are dropped silently —
// they are not part of the DNS-SD data model.
func MessageFromAnswers(answers, additional []message.Answer, sourceInterface string) Message {
	msg := Message{SourceInterface: sourceInterface}
	for _, a := range answers {
		if r, ok := FromAnswer(a); ok {
			msg.Answers = append(msg.Answers, r)
		}
	}
	for _, a := range additional {
		if r, ok := FromAnswer(a); ok {
			msg.Additional = append(msg.Additional, r)
		}
	}
	return msg
}
