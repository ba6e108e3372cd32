package transport_test

import (
	"context"
	"net"
	"testing"

	"github.com/hollowpath/mdnsengine/internal/transport"
)

func TestMockTransport_ImplementsTransportInterface(_ *testing.T) {
	var _ transport.Transport = (*transport.MockTransport)(nil)
}

func TestMockTransport_Send_RecordsCalls(t *testing.T) {
	mock := transport.NewMockTransport()
	defer func() { _ = mock.Close() }()

	ctx := context.Background()
	packet1 := []byte{0x01, 0x02}
	packet2 := []byte{0x03, 0x04}
	addr1 := &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: 5353}
	addr2 := &net.UDPAddr{IP: net.IPv4(224, 0, 0, 252), Port: 5353}

	// Send two packets
	err := mock.Send(ctx, packet1, addr1)
	if err != nil {
		t.Fatalf("Send(packet1) failed: %v", err)
	}

	err = mock.Send(ctx, packet2, addr2)
	if err != nil {
		t.Fatalf("Send(packet2) failed: %v", err)
	}

	// Verify calls were recorded
	calls := mock.SendCalls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 Send() calls, got %d", len(calls))
	}

	// Verify first call
	if string(calls[0].Packet) != string(packet1) {
		t.Errorf("First call packet mismatch: got %v, want %v", calls[0].Packet, packet1)
	}
	if calls[0].Dest.String() != addr1.String() {
		t.Errorf("First call addr mismatch: got %v, want %v", calls[0].Dest, addr1)
	}

	// Verify second call
	if string(calls[1].Packet) != string(packet2) {
		t.Errorf("Second call packet mismatch: got %v, want %v", calls[1].Packet, packet2)
	}
	if calls[1].Dest.String() != addr2.String() {
		t.Errorf("Second call addr mismatch: got %v, want %v", calls[1].Dest, addr2)
	}
}
