// Package protocol defines mDNS protocol constants and validation logic
// per RFC 6762 (Multicast DNS): the well-known port and multicast group,
// the record types matterlink's discovery path understands, and the
// header field checks a received response must pass before the rest of
// the stack trusts it.
package protocol

import (
	"net"
)

// mDNS Protocol Constants per RFC 6762
const (
	// Port is the mDNS port number (5353) per RFC 6762 §5.
	Port = 5353

	// MulticastAddrIPv4 is the mDNS IPv4 multicast address (224.0.0.251) per RFC 6762 §5.
	MulticastAddrIPv4 = "224.0.0.251"
)

// MulticastGroupIPv4 returns the mDNS IPv4 multicast group address.
//
// This is a convenience function for creating net.UDPAddr for mDNS multicast.
func MulticastGroupIPv4() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.ParseIP(MulticastAddrIPv4),
		Port: Port,
	}
}

// RecordType represents a DNS record type per RFC 1035 §3.2.2.
//
// The constants below cover A, PTR, SRV and TXT (plus ANY); matterlink's
// discovery path also uses AAAA, which dnssd decodes with its own constant.
type RecordType uint16

// Supported DNS record types, per RFC 1035 and RFC 2782 (SRV).
const (
	// RecordTypeA represents an A (IPv4 address) record per RFC 1035 §3.4.1.
	//
	// Type value: 1
	RecordTypeA RecordType = 1

	// RecordTypePTR represents a PTR (pointer/domain name) record per RFC 1035 §3.3.12.
	//
	// Used for service instance enumeration in DNS-SD.
	// Type value: 12
	RecordTypePTR RecordType = 12

	// RecordTypeTXT represents a TXT (text strings) record per RFC 1035 §3.3.14.
	//
	// Used for service metadata in DNS-SD.
	// Type value: 16
	RecordTypeTXT RecordType = 16

	// RecordTypeSRV represents an SRV (service location) record per RFC 2782.
	//
	// Used for service host/port information in DNS-SD.
	// Type value: 33
	RecordTypeSRV RecordType = 33

	// RecordTypeANY represents a query for all record types per RFC 1035 §3.2.3.
	//
	// RFC 6762 §8.1: "All probe queries SHOULD be done using... query type 'ANY' (255)"
	// Used for probing to detect conflicts for all record types.
	// Type value: 255
	RecordTypeANY RecordType = 255
)

// String returns the human-readable name for a RecordType.
func (rt RecordType) String() string {
	switch rt {
	case RecordTypeA:
		return "A"
	case RecordTypePTR:
		return "PTR"
	case RecordTypeTXT:
		return "TXT"
	case RecordTypeSRV:
		return "SRV"
	case RecordTypeANY:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// IsSupported returns true if the RecordType is one matterlink's discovery
// path understands. RFC 6762 §8.1: ANY type (255) is required for probing.
func (rt RecordType) IsSupported() bool {
	switch rt {
	case RecordTypeA, RecordTypePTR, RecordTypeTXT, RecordTypeSRV, RecordTypeANY:
		return true
	default:
		return false
	}
}

// DNSClass represents a DNS class per RFC 1035 §3.2.4.
//
// matterlink uses the IN (Internet) class for all queries.
type DNSClass uint16

const (
	// ClassIN is the Internet (IN) class per RFC 1035 §3.2.4.
	//
	// Class value: 1
	ClassIN DNSClass = 1
)

// DNS Header Flags per RFC 1035 §4.1.1 and RFC 6762 §18
const (
	// FlagQR is the Query/Response bit (bit 15).
	//
	// RFC 6762 §18.2: In query messages the QR bit MUST be zero.
	// RFC 6762 §18.2: In response messages the QR bit MUST be one.
	FlagQR uint16 = 1 << 15 // 0x8000

	// FlagAA is the Authoritative Answer bit (bit 10).
	//
	// RFC 6762 §18.4: In query messages, the Authoritative Answer (AA) bit MUST be zero on transmission.
	FlagAA uint16 = 1 << 10 // 0x0400

	// FlagTC is the Truncated bit (bit 9).
	//
	// RFC 6762 §18.5: In query messages, if the TC bit is set, it indicates that additional
	// Known-Answer records may be following shortly. matterlink does not implement
	// Known-Answer suppression, so it always sends TC=0.
	FlagTC uint16 = 1 << 9 // 0x0200

	// FlagRD is the Recursion Desired bit (bit 8).
	//
	// RFC 6762 §18.6: In query messages, the Recursion Desired (RD) bit SHOULD be zero.
	// matterlink enforces RD=0 unconditionally for simplicity.
	FlagRD uint16 = 1 << 8 // 0x0100
)

// OPCODE values per RFC 1035 §4.1.1
const (
	// OpcodeQuery is the standard query OPCODE (0).
	//
	// RFC 6762 §18.3: In both multicast query and multicast response messages,
	// the OPCODE MUST be zero on transmission.
	OpcodeQuery uint16 = 0
)

// RCODE values per RFC 1035 §4.1.1
const (
	// RCodeNoError is the no error RCODE (0).
	//
	// RFC 6762 §18.11: Multicast DNS messages received with non-zero
	// Response Codes MUST be silently ignored.
	RCodeNoError uint16 = 0
)

// DNS Name Constraints per RFC 1035 §3.1
const (
	// MaxLabelLength is the maximum length of a DNS label (63 bytes) per RFC 1035 §3.1.
	MaxLabelLength = 63

	// MaxNameLength is the maximum length of a DNS name (255 bytes) per RFC 1035 §3.1.
	MaxNameLength = 255

	// MaxCompressionPointers is the maximum number of compression pointer jumps allowed
	// when decompressing DNS names per RFC 1035 §4.1.4.
	//
	// This prevents infinite loops in malformed packets with circular compression pointers.
	MaxCompressionPointers = 256
)

// Compression pointer mask per RFC 1035 §4.1.4
const (
	// CompressionMask identifies a compression pointer (high 2 bits = 11).
	//
	// RFC 1035 §4.1.4: Message compression uses a pointer where the first two bits
	// are ones (0xC0), and the remaining 14 bits specify an offset.
	CompressionMask byte = 0xC0
)

// TTL values per RFC 6762 §10
const (
	// TTLService is 120 seconds, the RFC 6762 §10 recommended TTL for records named by or
	// pointing at a host name (e.g. A, AAAA, SRV).
	//
	// RFC 6762 §10: "The recommended TTL value for Multicast DNS resource records
	// with a host name as the resource record's name (e.g., A, AAAA, HINFO, etc.) or
	// contained within the resource record's rdata (e.g., SRV, reverse mapping PTR
	// record, etc.) is 120 seconds."
	TTLService = 120

	// TTLHostname is 4500 seconds (75 minutes), the RFC 6762 §10 recommended TTL for all
	// other records (e.g. TXT); it is not the RFC's value for A/AAAA records.
	//
	// RFC 6762 §10: "The recommended TTL value for other Multicast DNS resource records is 75 minutes (4500 seconds)."
	TTLHostname = 4500
)
