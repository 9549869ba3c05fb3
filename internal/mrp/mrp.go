// Package mrp implements the Message Reliability Protocol timing
// computations for UDP exchanges (spec §4.6): retransmission interval
// backoff and max-peer-response-time estimation.
package mrp

import (
	"math"
	"time"

	"github.com/joshuafuller/matterlink/internal/errors"

	"github.com/joshuafuller/matterlink/internal/clock"
)

const (
	MaxTransmissions              = 5
	BackoffBase                   = 1.6
	BackoffJitter                 = 0.25
	BackoffMargin                 = 1.1
	BackoffThreshold              = 1
	StandaloneAckTimeout          = 200 * time.Millisecond
	DefaultExpectedProcessingTime = 2 * time.Second
	AdditionalMRPDelay            = 1500 * time.Millisecond
)

// SessionParameters are the per-peer MRP timing parameters negotiated out
// of band (Matter Core spec §4.11.2.1).
type SessionParameters struct {
	IdleInterval   time.Duration
	ActiveInterval time.Duration
	// ActiveThreshold bounds how long a peer is assumed to remain "active"
	// once observed active, used by MaxPeerResponseTime's summation.
	ActiveThreshold time.Duration
}

// ChannelType distinguishes the transports MaxPeerResponseTime supports.
type ChannelType int

const (
	ChannelUDP ChannelType = iota
	ChannelTCP
	ChannelBLE
)

// RetransmissionInterval computes the n-th retransmission interval, per
// spec §4.6.
//
//	base = peerActive ? params.ActiveInterval : params.IdleInterval   (n == 0 always treats the peer as idle)
//	if !maxOut { base += AdditionalMRPDelay }
//	interval = base * BackoffMargin * BackoffBase^max(0, n-BackoffThreshold) * (1 + r*BackoffJitter)
//
// where r == 1 when maxOut is true (computing the theoretical maximum),
// else a uniform random draw in [0,1) from entropy. The result is floored
// to integer milliseconds.
func RetransmissionInterval(n int, params SessionParameters, peerActive bool, maxOut bool, entropy clock.Entropy) time.Duration {
	effectiveActive := peerActive && n != 0

	base := params.IdleInterval
	if effectiveActive {
		base = params.ActiveInterval
	}
	if !maxOut {
		base += AdditionalMRPDelay
	}

	exp := n - BackoffThreshold
	if exp < 0 {
		exp = 0
	}
	backoff := BackoffMargin * math.Pow(BackoffBase, float64(exp))

	r := 1.0
	if !maxOut {
		r = 0.0
		if entropy != nil {
			r = clock.NextFloat01(entropy)
		}
	}
	jitter := 1 + r*BackoffJitter

	ms := math.Floor(float64(base.Milliseconds()) * backoff * jitter)
	return time.Duration(ms) * time.Millisecond
}

// MaxPeerResponseTime computes the worst-case time to wait for a peer
// response, per spec §4.6.
func MaxPeerResponseTime(channelType ChannelType, params SessionParameters, peerActive bool, usesMRP bool) (time.Duration, error) {
	switch channelType {
	case ChannelTCP, ChannelBLE:
		return 30*time.Second + 5*time.Second, nil
	case ChannelUDP:
		if !usesMRP {
			return 0, &errors.ImplementationError{Message: "max-peer-response-time requires MRP for UDP channels"}
		}
		return udpMaxPeerResponseTime(params, peerActive), nil
	default:
		return 0, &errors.ImplementationError{Message: "unknown channel type"}
	}
}

func udpMaxPeerResponseTime(params SessionParameters, peerActive bool) time.Duration {
	var total time.Duration
	var elapsedSincePeerActive time.Duration
	active := peerActive

	sumRetransmissions := func() {
		for n := 0; n < MaxTransmissions; n++ {
			interval := RetransmissionInterval(n, params, active, true, nil)
			total += interval
			if peerActive {
				elapsedSincePeerActive += interval
				if active && params.ActiveThreshold > 0 && elapsedSincePeerActive > params.ActiveThreshold {
					active = false
				}
			}
		}
	}

	// Outbound retransmissions, then inbound (the peer's ack retransmits).
	sumRetransmissions()
	sumRetransmissions()

	total += DefaultExpectedProcessingTime
	total += 5 * time.Second
	return total
}
