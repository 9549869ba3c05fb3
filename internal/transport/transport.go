package transport

import (
	"context"
	"net"
)

// Transport abstracts the mDNS multicast socket so callers (the dnssd
// listener, tests) don't depend on a concrete implementation like
// UDPv4Transport.
type Transport interface {
	Send(ctx context.Context, packet []byte, dest net.Addr) error
	Receive(ctx context.Context) ([]byte, net.Addr, error)
	Close() error
}
