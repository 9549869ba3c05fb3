// Package address implements the server address value type and the
// versioned, desirability-ordered address set (spec §3 "Server address",
// "Address set"; §4.3).
package address

import (
	"fmt"
	"net/netip"
)

// Kind distinguishes the two transports a ServerAddress can name.
type Kind int

const (
	KindUDP Kind = iota
	KindBLE
)

// Health is the mutable health triple attached to a ServerAddress (§3).
type Health struct {
	HealthyAt    int64 // ms timestamp of last successful use, 0 if never.
	UnhealthyAt  int64 // ms timestamp of last failure, 0 if never.
	Priority     int32 // final tiebreaker, criterion (c) of Less: higher wins.
	HasPriority  bool
}

// Lifespan is the optional discovery bookkeeping attached to a
// ServerAddress (§3 "optionally annotated with a lifespan").
type Lifespan struct {
	DiscoveredAt int64 // ms
	TTL          int64 // ms
	HasLifespan  bool
}

// ServerAddress is the tagged variant from spec §3: either a UDP (ip, port)
// pair or a BLE peripheral id, plus the optional lifespan/health
// annotations. Equality (Equal) compares only the transport-identifying
// fields, per spec.
type ServerAddress struct {
	Kind Kind

	// UDP fields.
	IP   netip.Addr
	Port uint16

	// BLE field.
	PeripheralID string

	Lifespan Lifespan
	Health   Health

	// SelectionPreference is criterion (a) of desirability ordering:
	// smaller wins.
	SelectionPreference int32
}

// UDP constructs a UDP ServerAddress.
func UDP(ip netip.Addr, port uint16) ServerAddress {
	return ServerAddress{Kind: KindUDP, IP: ip, Port: port}
}

// BLE constructs a BLE ServerAddress.
func BLE(peripheralID string) ServerAddress {
	return ServerAddress{Kind: KindBLE, PeripheralID: peripheralID}
}

// Equal compares only the transport-identifying fields (§3: "Equality
// compares only the transport-identifying fields").
func (a ServerAddress) Equal(b ServerAddress) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindUDP:
		return a.IP == b.IP && a.Port == b.Port
	case KindBLE:
		return a.PeripheralID == b.PeripheralID
	default:
		return false
	}
}

// URL returns the address's interning key, used by Set to dedupe and by
// iteration to detect "already yielded" membership.
func (a ServerAddress) URL() string {
	switch a.Kind {
	case KindUDP:
		return fmt.Sprintf("udp://%s:%d", a.IP, a.Port)
	case KindBLE:
		return "ble://" + a.PeripheralID
	default:
		return "invalid://"
	}
}

// Less reports whether a is strictly more desirable than b, applying the
// three-way tiebreak from spec §3:
//
//	(a) smaller SelectionPreference wins
//	(b) healthier wins: prefer older UnhealthyAt if both unhealthy, prefer
//	    larger HealthyAt if both healthy, a known-healthy beats untested
//	(c) higher Priority wins
func (a ServerAddress) Less(b ServerAddress) bool {
	if a.SelectionPreference != b.SelectionPreference {
		return a.SelectionPreference < b.SelectionPreference
	}

	aUnhealthy, bUnhealthy := a.Health.UnhealthyAt != 0, b.Health.UnhealthyAt != 0
	aHealthy, bHealthy := a.Health.HealthyAt != 0, b.Health.HealthyAt != 0

	if aUnhealthy && bUnhealthy {
		if a.Health.UnhealthyAt != b.Health.UnhealthyAt {
			// Older unhealthy-at wins: it has had longer to recover / was
			// least-recently seen as bad.
			return a.Health.UnhealthyAt < b.Health.UnhealthyAt
		}
	} else if aUnhealthy != bUnhealthy {
		// The healthy one (or untested one) beats the unhealthy one.
		return bUnhealthy
	}

	if aHealthy && bHealthy {
		if a.Health.HealthyAt != b.Health.HealthyAt {
			return a.Health.HealthyAt > b.Health.HealthyAt
		}
	} else if aHealthy != bHealthy {
		// A known-healthy address beats an untested one.
		return aHealthy
	}

	if a.Health.Priority != b.Health.Priority {
		return a.Health.Priority > b.Health.Priority
	}

	return false
}
