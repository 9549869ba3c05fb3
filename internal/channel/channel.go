// Package channel implements the message channel (spec §4.7, C7): a
// per-session transport wrapper that tracks the remote address, exposes
// reliability/max-payload metadata, and delegates MRP timing calculations.
package channel

import (
	"net/netip"
	"sync"
	"time"

	"github.com/joshuafuller/matterlink/internal/clock"
	"github.com/joshuafuller/matterlink/internal/mrp"
)

// RawChannel is the byte-transport port a Channel wraps (spec §6 "UDP
// socket abstraction") as seen from the sending side: send raw datagrams,
// report max payload size, close idempotently.
type RawChannel interface {
	Send(payload []byte) error
	MaxPayloadSize() int
	Close() error
	// IsUDP distinguishes UDP transports, which rebind in place on address
	// change, from others (TCP/BLE), which do not.
	IsUDP() bool
}

// Session is the minimal view of an authenticated session a Channel needs:
// whether it uses MRP, and its negotiated MRP session parameters.
type Session interface {
	UsesMRP() bool
	MRPParameters() mrp.SessionParameters
	ChannelType() mrp.ChannelType
}

// Channel wraps a RawChannel with session/address bookkeeping (spec §4.7).
type Channel struct {
	raw     RawChannel
	session Session
	clk     clock.Clock

	mu          sync.Mutex
	remote      netip.AddrPort
	onAddrChange []func(netip.AddrPort)
	closed      bool
	onClose     func()
}

// New constructs a Channel bound to raw/session, with the peer's initial
// remote address.
func New(raw RawChannel, session Session, remote netip.AddrPort, clk clock.Clock, onClose func()) *Channel {
	if clk == nil {
		clk = clock.System{}
	}
	return &Channel{raw: raw, session: session, remote: remote, clk: clk, onClose: onClose}
}

// Session returns the wrapped session.
func (c *Channel) Session() Session { return c.session }

// IsReliable reports whether the underlying transport requires MRP.
func (c *Channel) IsReliable() bool { return c.session.UsesMRP() }

// MaxPayloadSize reports the largest payload the underlying transport can
// carry, defaulting per spec §6 when the raw channel doesn't know.
func (c *Channel) MaxPayloadSize() int {
	if n := c.raw.MaxPayloadSize(); n > 0 {
		return n
	}
	if c.raw.IsUDP() {
		return 1280
	}
	return 8192
}

// RemoteAddress returns the current remote endpoint.
func (c *Channel) RemoteAddress() netip.AddrPort {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// OnAddressChanged registers fn to be called whenever SetRemoteAddress
// updates the endpoint on a UDP channel (spec §4.7: "For UDP channels,
// emits a network-address-changed event when the remote address changes").
func (c *Channel) OnAddressChanged(fn func(netip.AddrPort)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAddrChange = append(c.onAddrChange, fn)
}

// SetRemoteAddress updates the remote endpoint in place (consumers replace
// the underlying socket's destination rather than recreating the Channel)
// and fires registered listeners if it actually changed and the transport
// is UDP.
func (c *Channel) SetRemoteAddress(addr netip.AddrPort) {
	c.mu.Lock()
	if !c.raw.IsUDP() || addr == c.remote {
		c.mu.Unlock()
		return
	}
	c.remote = addr
	listeners := append([]func(netip.AddrPort){}, c.onAddrChange...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(addr)
	}
}

// Send transmits payload over the wrapped raw channel.
func (c *Channel) Send(payload []byte) error { return c.raw.Send(payload) }

// Close closes the raw channel and invokes the close hook exactly once.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.raw.Close()
	if c.onClose != nil {
		c.onClose()
	}
	return err
}

// CalculateMaxPeerResponseTime delegates to internal/mrp (spec §4.7/§4.6).
func (c *Channel) CalculateMaxPeerResponseTime(peerActive bool) (time.Duration, error) {
	return mrp.MaxPeerResponseTime(c.session.ChannelType(), c.session.MRPParameters(), peerActive, c.session.UsesMRP())
}

// GetMRPBackoff delegates to internal/mrp's retransmission-interval
// computation for attempt n.
func (c *Channel) GetMRPBackoff(n int, peerActive bool, maxOut bool, entropy clock.Entropy) time.Duration {
	return mrp.RetransmissionInterval(n, c.session.MRPParameters(), peerActive, maxOut, entropy)
}
