package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/joshuafuller/matterlink/internal/errors"
	"github.com/joshuafuller/matterlink/internal/protocol"
)

// UDPv4Transport implements Transport interface for IPv4 UDP multicast.
type UDPv4Transport struct {
	conn net.PacketConn
}

// NewUDPv4Transport creates a UDP multicast transport bound to mDNS port
// 5353 using net.ListenMulticastUDP. It does not set SO_REUSEPORT, so it
// cannot coexist with another mDNS responder bound to the same port — use
// NewUDPv4TransportFromConn with network.CreateSocket's connection when
// that matters.
func NewUDPv4Transport() (*UDPv4Transport, error) {
	multicastAddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(protocol.MulticastAddrIPv4, strconv.Itoa(protocol.Port)))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "resolve multicast address",
			Err:       err,
			Details:   fmt.Sprintf("failed to resolve %s:%d", protocol.MulticastAddrIPv4, protocol.Port),
		}
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, multicastAddr)
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind to multicast %s:%d", protocol.MulticastAddrIPv4, protocol.Port),
		}
	}

	return newUDPv4Transport(conn)
}

// NewUDPv4TransportFromConn wraps an already-bound connection — typically
// network.CreateSocket's platform-tuned SO_REUSEPORT/SO_REUSEADDR socket —
// as a Transport. The Transport takes ownership of conn and closes it.
func NewUDPv4TransportFromConn(conn net.PacketConn) (*UDPv4Transport, error) {
	return newUDPv4Transport(conn)
}

func newUDPv4Transport(conn net.PacketConn) (*UDPv4Transport, error) {
	if err := conn.(interface{ SetReadBuffer(int) error }).SetReadBuffer(65536); err != nil { // 64KB buffer for DNS messages
		_ = conn.Close()
		return nil, &errors.NetworkError{
			Operation: "configure socket",
			Err:       err,
			Details:   "failed to set read buffer size",
		}
	}

	return &UDPv4Transport{conn: conn}, nil
}

// Send transmits a packet to the specified destination address.
//
// RFC 6762 §5: Queries are sent to 224.0.0.251:5353.
func (t *UDPv4Transport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
	// Check context cancellation before sending
	select {
	case <-ctx.Done():
		return &errors.NetworkError{
			Operation: "send query",
			Err:       ctx.Err(),
			Details:   "context canceled before send",
		}
	default:
	}

	// Send query to destination
	n, err := t.conn.WriteTo(packet, dest)
	if err != nil {
		return &errors.NetworkError{
			Operation: "send query",
			Err:       err,
			Details:   fmt.Sprintf("failed to send %d bytes to %s", len(packet), dest),
		}
	}

	// Verify full message was sent
	if n != len(packet) {
		return &errors.NetworkError{
			Operation: "send query",
			Err:       fmt.Errorf("partial write: %d/%d bytes", n, len(packet)),
			Details:   "incomplete transmission",
		}
	}

	return nil
}

// Receive waits for an incoming packet, respecting context cancellation/deadline.
func (t *UDPv4Transport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	// Check context cancellation before receive
	select {
	case <-ctx.Done():
		return nil, nil, &errors.NetworkError{
			Operation: "receive response",
			Err:       ctx.Err(),
			Details:   "context canceled before receive",
		}
	default:
	}

	// Propagate context deadline to socket
	if deadline, ok := ctx.Deadline(); ok {
		err := t.conn.SetReadDeadline(deadline)
		if err != nil {
			return nil, nil, &errors.NetworkError{
				Operation: "set read timeout",
				Err:       err,
				Details:   fmt.Sprintf("failed to set deadline %v", deadline),
			}
		}
	}

	// Get buffer from pool; this eliminates hot path allocations
	// (9KB/receive → near-zero after warmup)
	bufPtr := GetBuffer()
	defer PutBuffer(bufPtr)

	buffer := *bufPtr

	// Read response
	n, srcAddr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		// Check if it's a timeout error
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, &errors.NetworkError{
				Operation: "receive response",
				Err:       err,
				Details:   "timeout",
			}
		}

		return nil, nil, &errors.NetworkError{
			Operation: "receive response",
			Err:       err,
			Details:   "failed to read from socket",
		}
	}

	// Return a copy to the caller: the pool owns buffer, the caller owns result,
	// so the result must survive PutBuffer() zeroing it.
	result := make([]byte, n)
	copy(result, buffer[:n])
	return result, srcAddr, nil
}

// Close releases network resources, propagating any close error to the caller
// rather than swallowing it.
func (t *UDPv4Transport) Close() error {
	if t.conn == nil {
		return nil // Gracefully handle nil connection
	}

	err := t.conn.Close()
	if err != nil {
		return &errors.NetworkError{
			Operation: "close socket",
			Err:       err,
			Details:   "failed to close UDP connection",
		}
	}

	return nil
}
