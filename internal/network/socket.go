// Package network implements UDP multicast socket operations for mDNS.
package network

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"

	"github.com/joshuafuller/matterlink/internal/errors"
	"github.com/joshuafuller/matterlink/internal/protocol"
	"github.com/joshuafuller/matterlink/internal/transport"
)

// CreateSocket creates a UDP multicast socket bound to mDNS port 5353
// per RFC 6762 §5, tuned so matterlink can coexist with another mDNS
// responder (Avahi, Bonjour, systemd-resolved) already bound to the
// port:
//   - Uses net.ListenConfig with platform-specific socket options (SO_REUSEADDR + SO_REUSEPORT)
//   - Uses golang.org/x/net/ipv4 for proper multicast group membership
//   - Sets TTL=255 per RFC 6762 §11
//   - Enables multicast loopback for local testing
//
// Returns:
//   - conn: UDP connection bound to mDNS port with multicast configured
//   - error: NetworkError if socket creation fails
func CreateSocket() (net.PacketConn, error) {
	ctx := context.Background()

	// Step 1: Create ListenConfig with platform-specific socket options
	// This sets SO_REUSEADDR (all platforms) and SO_REUSEPORT (Linux/macOS)
	// BEFORE binding to enable coexistence with Avahi/Bonjour
	lc := net.ListenConfig{
		Control: transport.PlatformControl, // Platform-specific socket options
	}

	// Step 2: Listen on port 5353 (bind to 0.0.0.0:5353)
	// Note: We bind to 0.0.0.0, NOT the multicast address
	// (ListenMulticastUDP had bugs, see Go issues #73484, #34728)
	conn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", protocol.Port))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind to port %d (is Avahi/Bonjour running without SO_REUSEPORT?)", protocol.Port),
		}
	}

	// Step 3: Wrap in ipv4.PacketConn for multicast control
	p := ipv4.NewPacketConn(conn)

	// Step 4: Join multicast group 224.0.0.251 on candidate interfaces.
	// Per RFC 6762 §5: Must join group to receive multicast packets.
	// DefaultInterfaces already excludes loopback, down, VPN, and Docker
	// interfaces, so this only attempts real LAN interfaces.
	multicastGroup := net.IPv4(224, 0, 0, 251)
	ifaces, err := DefaultInterfaces()
	if err != nil {
		_ = conn.Close() // Ignore error, already returning primary error
		return nil, &errors.NetworkError{
			Operation: "enumerate interfaces",
			Err:       err,
			Details:   "failed to get network interfaces for multicast join",
		}
	}

	joinedCount := 0
	for _, iface := range ifaces {
		// Create a copy of iface to avoid implicit memory aliasing: the
		// loop variable is reused, so we must copy before taking its address.
		ifaceCopy := iface
		if err := p.JoinGroup(&ifaceCopy, &net.UDPAddr{IP: multicastGroup}); err != nil {
			// Log but don't fail - interface might not support multicast
			// In production, we'd use a logger here
			continue
		}
		joinedCount++
	}

	if joinedCount == 0 {
		_ = conn.Close() // Ignore error, already returning primary error
		return nil, &errors.NetworkError{
			Operation: "join multicast group",
			Err:       fmt.Errorf("no interfaces available"),
			Details:   "failed to join 224.0.0.251 on any interface",
		}
	}

	// Step 5: Set multicast TTL to 255 per RFC 6762 §11
	if err := p.SetMulticastTTL(255); err != nil {
		_ = conn.Close() // Ignore error, already returning primary error
		return nil, &errors.NetworkError{
			Operation: "set multicast TTL",
			Err:       err,
			Details:   "failed to set TTL=255",
		}
	}

	// Step 6: Enable multicast loopback (receive own packets)
	// Required for some mDNS behavior and local testing
	if err := p.SetMulticastLoopback(true); err != nil {
		_ = conn.Close() // Ignore error, already returning primary error
		return nil, &errors.NetworkError{
			Operation: "set multicast loopback",
			Err:       err,
			Details:   "failed to enable loopback",
		}
	}

	// Step 7: Configure socket buffer
	if udpConn, ok := conn.(*net.UDPConn); ok {
		if err := udpConn.SetReadBuffer(65536); err != nil {
			_ = conn.Close() // Ignore error, already returning primary error
			return nil, &errors.NetworkError{
				Operation: "configure socket",
				Err:       err,
				Details:   "failed to set read buffer size",
			}
		}
	}

	return conn, nil
}
