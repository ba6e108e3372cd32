// Package transport provides network transport abstractions for mDNS
// communication, decoupling the engine-driven host loop from a specific
// socket implementation (real multicast UDP vs an in-memory mock for tests).
package transport

import (
	"context"
	"net"
)

// Transport abstracts network operations for sending and receiving mDNS
// packets.
//
// Implementations:
//   - UDPv4Transport: production IPv4 multicast transport
//   - MockTransport: test double for unit testing
type Transport interface {
	// Send transmits a packet to dest (typically the mDNS multicast group,
	// 224.0.0.251:5353).
	Send(ctx context.Context, packet []byte, dest net.Addr) error

	// Receive waits for an incoming packet, respecting context
	// cancellation/deadline. ctx.Deadline(), if set, is propagated to the
	// socket's read deadline.
	Receive(ctx context.Context) (packet []byte, srcAddr net.Addr, err error)

	// Close releases network resources.
	Close() error
}
