package responder

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hollowpath/mdnsengine/internal/message"
	"github.com/hollowpath/mdnsengine/internal/transport"
)

func newTestResponder(t *testing.T) (*Responder, *transport.MockTransport) {
	t.Helper()
	mock := transport.NewMockTransport()
	r, err := New(context.Background(), WithTransport(mock), WithHostname("test-host.local"))
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, mock
}

func TestResponder_New(t *testing.T) {
	r, _ := newTestResponder(t)
	if r.eng == nil {
		t.Error("Responder.eng = nil, want non-nil")
	}
	if r.transport == nil {
		t.Error("Responder.transport = nil, want non-nil")
	}
}

func TestResponder_New_WithHostname(t *testing.T) {
	r, _ := newTestResponder(t)
	if r.hostname != "test-host.local" {
		t.Errorf("hostname = %q, want %q", r.hostname, "test-host.local")
	}
}

func TestResponder_Register_Validation(t *testing.T) {
	r, _ := newTestResponder(t)

	tests := []struct {
		name    string
		service *Service
		wantErr bool
	}{
		{"nil service", nil, true},
		{"empty instance name", &Service{ServiceType: "_http._tcp.local", Port: 8080}, true},
		{"empty service type", &Service{InstanceName: "My Service", Port: 8080}, true},
		{"invalid port", &Service{InstanceName: "My Service", ServiceType: "_http._tcp.local", Port: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.service)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponder_Register_SendsProbesAndAnnouncements(t *testing.T) {
	r, mock := newTestResponder(t)

	svc := &Service{
		InstanceName: "My Printer",
		ServiceType:  "_http._tcp.local",
		Port:         8080,
		TXTRecords:   map[string]string{"path": "/"},
	}

	if err := r.Register(svc); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(mock.SendCalls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if len(mock.SendCalls()) == 0 {
		t.Error("no packets sent after Register(), want at least a probe or announcement")
	}
}

func TestResponder_Unregister(t *testing.T) {
	r, _ := newTestResponder(t)

	svc := &Service{InstanceName: "My Printer", ServiceType: "_http._tcp.local", Port: 8080}
	if err := r.Register(svc); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	if err := r.Unregister("My Printer"); err != nil {
		t.Fatalf("Unregister() error = %v, want nil", err)
	}

	if _, ok := r.GetService("My Printer"); ok {
		t.Error("GetService() found service after Unregister(), want not found")
	}
}

func TestResponder_Unregister_NotFound(t *testing.T) {
	r, _ := newTestResponder(t)
	if err := r.Unregister("nonexistent"); err == nil {
		t.Error("Unregister() of an unknown service returned nil error, want error")
	}
}

func TestResponder_GetService_ByFullName(t *testing.T) {
	r, _ := newTestResponder(t)

	svc := &Service{InstanceName: "My Printer", ServiceType: "_http._tcp.local", Port: 8080}
	if err := r.Register(svc); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	got, ok := r.GetService("My Printer._http._tcp.local")
	if !ok {
		t.Fatal("GetService() by full name not found")
	}
	if got.InstanceName != "My Printer" {
		t.Errorf("InstanceName = %q, want %q", got.InstanceName, "My Printer")
	}
}

func TestResponder_UpdateService(t *testing.T) {
	r, _ := newTestResponder(t)

	svc := &Service{InstanceName: "My Printer", ServiceType: "_http._tcp.local", Port: 8080}
	if err := r.Register(svc); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	newTXT := map[string]string{"version": "2.0"}
	if err := r.UpdateService("My Printer", newTXT); err != nil {
		t.Fatalf("UpdateService() error = %v, want nil", err)
	}

	got, ok := r.GetService("My Printer")
	if !ok {
		t.Fatal("GetService() not found after UpdateService()")
	}
	if got.TXTRecords["version"] != "2.0" {
		t.Errorf("TXTRecords[version] = %q, want %q", got.TXTRecords["version"], "2.0")
	}
}

func TestResponder_UpdateService_NotFound(t *testing.T) {
	r, _ := newTestResponder(t)
	if err := r.UpdateService("nonexistent", nil); err == nil {
		t.Error("UpdateService() of an unknown service returned nil error, want error")
	}
}

func TestResponder_RegisterMultipleServices(t *testing.T) {
	r, _ := newTestResponder(t)

	services := []*Service{
		{InstanceName: "Printer A", ServiceType: "_http._tcp.local", Port: 8080},
		{InstanceName: "Printer B", ServiceType: "_http._tcp.local", Port: 8081},
	}

	for _, svc := range services {
		if err := r.Register(svc); err != nil {
			t.Fatalf("Register(%q) error = %v, want nil", svc.InstanceName, err)
		}
	}

	for _, svc := range services {
		if _, ok := r.GetService(svc.InstanceName); !ok {
			t.Errorf("GetService(%q) not found after registering multiple services", svc.InstanceName)
		}
	}
}

func TestResponder_Close_SendsGoodbyes(t *testing.T) {
	r, mock := newTestResponder(t)

	svc := &Service{InstanceName: "My Printer", ServiceType: "_http._tcp.local", Port: 8080}
	if err := r.Register(svc); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	before := len(mock.SendCalls())
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}

	if len(mock.SendCalls()) <= before {
		t.Error("Close() sent no additional packets, want goodbye records to be flushed")
	}
}

func TestResponder_InboundQueryTriggersResponse(t *testing.T) {
	r, mock := newTestResponder(t)

	svc := &Service{InstanceName: "My Printer", ServiceType: "_http._tcp.local", Port: 8080}
	if err := r.Register(svc); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	before := len(mock.SendCalls())

	query, err := message.BuildQuery("_http._tcp.local", 12) // PTR
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	// 169.254.0.0/16 is link-local (RFC 3927) and always passes source
	// filtering regardless of the test host's actual interface subnets.
	mock.Inject(query, &net.UDPAddr{IP: net.ParseIP("169.254.1.2"), Port: 5353})

	deadline := time.Now().Add(2 * time.Second)
	for len(mock.SendCalls()) <= before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if len(mock.SendCalls()) <= before {
		t.Error("no response sent after an inbound PTR query, want an answer")
	}
}
