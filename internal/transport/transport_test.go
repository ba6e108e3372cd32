package transport_test

import (
	"testing"

	"github.com/hollowpath/mdnsengine/internal/transport"
)

func TestTransportInterface_HasRequiredMethods(_ *testing.T) {
	var _ transport.Transport = (*transport.MockTransport)(nil)
	var _ transport.Transport = (*transport.UDPv4Transport)(nil)
}
