// Package dnssd implements the DNS-SD name cache (spec §4.4, C4): a
// per-qname record store with expiration and change events, fed by decoded
// records from an mDNS socket. The wire codec itself (RFC 1035/6762
// encode/decode) is out of scope here — see internal/message and
// internal/protocol, kept from the teacher and adapted by FromAnswer
// (adapter.go).
package dnssd

import (
	"fmt"
	"strings"
)

// RecordType enumerates the record kinds the name cache understands (spec
// §3: "record-type ∈ {PTR, SRV, A, AAAA, TXT}").
type RecordType int

const (
	RecordPTR RecordType = iota
	RecordSRV
	RecordA
	RecordAAAA
	RecordTXT
)

func (rt RecordType) String() string {
	switch rt {
	case RecordPTR:
		return "PTR"
	case RecordSRV:
		return "SRV"
	case RecordA:
		return "A"
	case RecordAAAA:
		return "AAAA"
	case RecordTXT:
		return "TXT"
	default:
		return "UNKNOWN"
	}
}

// SRVValue is the typed payload of an SRV record.
type SRVValue struct {
	Target string
	Port   uint16
}

// Record is a decoded DNS-SD resource record (spec §3 "DNS-SD record"):
// {name, record-type, value, ttl, expires-at}.
type Record struct {
	Name string // lowercased qname this record is attached to.
	Type RecordType

	// Value is typed by Type: string for PTR target / A-AAAA address
	// (textual IP), SRVValue for SRV, key/value map for TXT.
	PTRTarget  string
	SRV        SRVValue
	IPAddress  string // textual IP for A/AAAA
	TXT        map[string]string

	TTLSeconds uint32
	ExpiresAt  int64 // ms, = installedAt + ttl*1000, set by the Cache when it installs the record.
}

// Key is the record-key from spec §3: "record-type ∥ value (for SRV:
// record-type ∥ target:port)". It identifies one slot in a Name's record
// map — installing a record with the same key replaces the prior value.
func (r Record) Key() string {
	switch r.Type {
	case RecordPTR:
		return "PTR|" + r.PTRTarget
	case RecordSRV:
		return fmt.Sprintf("SRV|%s:%d", r.SRV.Target, r.SRV.Port)
	case RecordA:
		return "A|" + r.IPAddress
	case RecordAAAA:
		return "AAAA|" + r.IPAddress
	case RecordTXT:
		return "TXT"
	default:
		return "?"
	}
}

// LowerQName normalizes a qname for use as a dnssd.Name cache key (spec §3:
// "Keyed by lowercased qname").
func LowerQName(qname string) string {
	return strings.ToLower(qname)
}
