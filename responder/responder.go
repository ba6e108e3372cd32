package responder

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hollowpath/mdnsengine/engine"
	"github.com/hollowpath/mdnsengine/internal/clock"
	"github.com/hollowpath/mdnsengine/internal/logging"
	"github.com/hollowpath/mdnsengine/internal/message"
	"github.com/hollowpath/mdnsengine/internal/network"
	"github.com/hollowpath/mdnsengine/internal/random"
	"github.com/hollowpath/mdnsengine/internal/records"
	"github.com/hollowpath/mdnsengine/internal/security"
	"github.com/hollowpath/mdnsengine/internal/transport"
)

// Rate limiter defaults, matching the querier's (RFC 6762 §2 doesn't bound
// query rate itself, but a responder sharing a host with the querier should
// apply the same multicast-storm defense).
const (
	defaultRateLimitThreshold = 100
	defaultRateLimitCooldown  = 60 * time.Second
	defaultRateLimitEntries   = 10000
)

// maxRenameAttempts bounds the RFC 6762 §9 rename loop so a persistently
// contested name can't spin forever.
const maxRenameAttempts = 10

// entry tracks one registered service's engine records alongside the
// bookkeeping Register/Unregister/GetService need: the public Service the
// caller sees, and a channel the conflict callback signals so Register can
// block until probing resolves.
type entry struct {
	service  *Service
	records  *records.RegisteredService
	conflict chan struct{}
}

// Responder manages mDNS service registration and query response per RFC
// 6762, driving an engine.Engine over a UDP multicast transport.
type Responder struct {
	ctx    context.Context
	cancel context.CancelFunc

	eng       *engine.Engine
	codec     *message.Codec
	transport transport.Transport

	rateLimiter   *security.RateLimiter
	sourceFilters []*security.SourceFilter

	hostname string
	localIP  []byte

	mu       sync.Mutex
	services map[string]*entry // keyed by instance name

	wg sync.WaitGroup
}

// New creates a responder bound to a fresh UDP multicast transport and
// starts its host loop (receive → engine.Input, engine.Output → send).
func New(ctx context.Context, opts ...Option) (*Responder, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	hostname += ".local"

	ipv4, err := getLocalIPv4()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPv4: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	r := &Responder{
		ctx:         runCtx,
		cancel:      cancel,
		eng:         engine.New(engine.ClassIN, message.MaxMessageSize, clock.System{}, random.NewUniform()),
		codec:       message.NewCodec(),
		hostname:    hostname,
		localIP:     ipv4,
		services:    make(map[string]*entry),
		rateLimiter: security.NewRateLimiter(defaultRateLimitThreshold, defaultRateLimitCooldown, defaultRateLimitEntries),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if r.transport == nil {
		t, err := transport.NewUDPv4Transport()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		r.transport = t
	}

	ifaces, err := network.DefaultInterfaces()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to enumerate interfaces: %w", err)
	}
	r.sourceFilters = security.SourceFiltersForInterfaces(ifaces)

	r.wg.Add(3)
	go r.receiveLoop()
	go r.sendLoop()
	go r.cleanupLoop()

	return r, nil
}

// Register publishes service's full DNS-SD record set and blocks until
// probing resolves, renaming on conflict up to maxRenameAttempts times per
// RFC 6762 §9.
func (r *Responder) Register(service *Service) error {
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}
	if err := service.Validate(); err != nil {
		return err
	}
	if service.Hostname == "" {
		service.Hostname = r.hostname
	}

	for attempt := 1; attempt <= maxRenameAttempts; attempt++ {
		e := &entry{service: service, conflict: make(chan struct{}, 1)}

		info := &records.ServiceInfo{
			InstanceName: service.InstanceName,
			ServiceType:  service.ServiceType,
			Hostname:     service.Hostname,
			Port:         service.Port,
			IPv4Address:  r.localIP,
			TXTRecords:   service.TXTRecords,
		}

		r.mu.Lock()
		e.records = records.RegisterService(r.eng, info, onConflict, e)
		r.services[service.InstanceName] = e
		count := len(r.services)
		r.mu.Unlock()
		servicesRegistered.Set(float64(count))
		logging.Log.WithFields(logrus.Fields{
			"instance": service.InstanceName,
			"type":     service.ServiceType,
			"attempt":  attempt,
		}).Debug("probing service name")

		select {
		case <-e.conflict:
			// RFC 6762 §9: a contested unique record was torn down by the
			// engine already; rename and probe again under the new name.
			r.mu.Lock()
			delete(r.services, service.InstanceName)
			count := len(r.services)
			r.mu.Unlock()
			servicesRegistered.Set(float64(count))
			logging.Log.WithFields(logrus.Fields{
				"instance": service.InstanceName,
				"attempt":  attempt,
			}).Warn("name conflict during probing, renaming")
			if attempt >= maxRenameAttempts {
				return fmt.Errorf("max rename attempts (%d) exceeded for service %q", maxRenameAttempts, service.InstanceName)
			}
			service.Rename()
			continue
		case <-r.probeSettled(e):
			return nil
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}

	return fmt.Errorf("unexpected: register loop completed without result")
}

// probeWindow is how long to wait for RFC 6762 §8.1 probing (four
// ProbeInterval steps) to either complete or surface a conflict.
const probeWindow = (engine.ProbeStepLimit + 1) * engine.ProbeInterval

// probeSettled returns a channel that closes once e's records have had time
// to finish probing without a conflict.
func (r *Responder) probeSettled(e *entry) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		timer := time.NewTimer(probeWindow)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-e.conflict:
			// Conflict already delivered; let Register's own select on
			// e.conflict observe it instead of racing two closes.
			e.conflict <- struct{}{}
		case <-r.ctx.Done():
		}
		close(done)
	}()
	return done
}

// onConflict is the engine.ConflictCallback fired when a unique record this
// responder owns loses a name contest (probing or post-publish).
func onConflict(_ *engine.Record, arg any) {
	e, ok := arg.(*entry)
	if !ok || e == nil {
		return
	}
	select {
	case e.conflict <- struct{}{}:
	default:
	}
}

// Unregister retires a registered service, sending goodbye packets for any
// of its records that had already published (RFC 6762 §10.1).
func (r *Responder) Unregister(serviceID string) error {
	r.mu.Lock()
	name, e := r.findLocked(serviceID)
	if e == nil {
		r.mu.Unlock()
		return fmt.Errorf("service %q not registered", serviceID)
	}
	delete(r.services, name)
	count := len(r.services)
	r.mu.Unlock()

	servicesRegistered.Set(float64(count))
	e.records.Deregister(r.eng)
	logging.Log.WithField("instance", name).Info("service unregistered")
	return nil
}

// Close stops the host loop, says goodbye to every registered service, and
// releases the transport.
func (r *Responder) Close() error {
	r.mu.Lock()
	for name, e := range r.services {
		e.records.Deregister(r.eng)
		delete(r.services, name)
	}
	r.mu.Unlock()
	servicesRegistered.Set(0)

	r.eng.Shutdown()
	// Drain the goodbyes before tearing down: Output until it returns 0.
	dest := engine.MulticastDestination()
	r.mu.Lock()
	for {
		d, n := r.eng.Output(r.codec)
		if n == 0 {
			break
		}
		r.send(d, dest)
	}
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()

	err := r.transport.Close()
	r.eng.Free()
	logging.Log.Info("responder closed")
	return err
}

// GetService retrieves a registered service by service ID, which can be
// either the bare instance name or the full "Instance.Type" name.
func (r *Responder) GetService(serviceID string) (*Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, e := r.findLocked(serviceID)
	if e == nil {
		return nil, false
	}
	svc := *e.service
	return &svc, true
}

// UpdateService replaces a registered service's TXT records and republishes
// the TXT record immediately, without re-probing: RFC 6762 §8.1 probing
// exists to defend the unique name, and TXT content change doesn't affect
// it.
func (r *Responder) UpdateService(serviceID string, txtRecords map[string]string) error {
	r.mu.Lock()
	_, e := r.findLocked(serviceID)
	if e == nil {
		r.mu.Unlock()
		return fmt.Errorf("service %q not found", serviceID)
	}
	e.service.TXTRecords = txtRecords
	txt := e.records.TXT
	r.mu.Unlock()

	txt.SetRaw(r.eng, records.EncodeTXT(txtRecords))
	return nil
}

func (r *Responder) findLocked(serviceID string) (string, *entry) {
	if e, ok := r.services[serviceID]; ok {
		return serviceID, e
	}
	for name, e := range r.services {
		if name+"."+e.service.ServiceType == serviceID {
			return name, e
		}
	}
	return "", nil
}

// receiveLoop decodes inbound datagrams and feeds them to the engine,
// dropping anything from a source IP that has exceeded the multicast-storm
// rate limit.
func (r *Responder) receiveLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		// A bounded per-iteration deadline, not r.ctx directly: UDPv4Transport
		// only honors a deadline via ctx.Deadline(), so without one a blocking
		// ReadFrom would outlive Shutdown/Close until the next packet arrives.
		recvCtx, cancel := context.WithTimeout(r.ctx, 100*time.Millisecond)
		packet, src, err := r.transport.Receive(recvCtx)
		cancel()
		if err != nil {
			continue
		}

		srcIP, srcPort := splitAddr(src)
		if srcIP != nil && !security.AnyValid(r.sourceFilters, srcIP) {
			packetsDropped.WithLabelValues("non_link_local").Inc()
			logging.Log.WithField("src", srcIP).Debug("dropping non-link-local datagram")
			continue
		}
		if srcIP != nil && !r.rateLimiter.Allow(srcIP.String()) {
			packetsDropped.WithLabelValues("rate_limited").Inc()
			continue
		}

		decoded, err := message.DecodeInbound(packet)
		if err != nil {
			packetsDropped.WithLabelValues("malformed").Inc()
			logging.Log.WithError(err).WithField("src", srcIP).Debug("dropping malformed datagram")
			continue // malformed datagram, RFC 6762 §6 says ignore it
		}

		r.mu.Lock()
		r.eng.Input(decoded, srcIP, srcPort)
		r.mu.Unlock()
	}
}

// cleanupLoop periodically evicts stale rate limiter entries, mirroring the
// querier's own cleanup cadence.
func (r *Responder) cleanupLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(engine.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.rateLimiter.Cleanup()
		}
	}
}

// sendLoop drains the engine's Output queue on its own schedule (the
// duration Output itself reports via MaxSleepTime) and multicasts or
// unicasts whatever it produces. The engine's own pause-jitter and
// publish-retry spacing already keep any one record off the wire more
// often than RFC 6762 §6.2 requires; records.RecordSet provides the same
// guarantee for transports that fan a responder out across several
// interfaces, which this single-socket transport doesn't do.
func (r *Responder) sendLoop() {
	defer r.wg.Done()
	dest := engine.MulticastDestination()

	for {
		r.mu.Lock()
		d, n := r.eng.Output(r.codec)
		sleep := r.eng.MaxSleepTime()
		r.mu.Unlock()

		if n > 0 {
			r.send(d, dest)
		}

		if sleep <= 0 {
			select {
			case <-r.ctx.Done():
				return
			default:
				continue
			}
		}

		timer := time.NewTimer(sleep)
		select {
		case <-r.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Responder) send(d engine.Destination, multicast engine.Destination) {
	addr := &net.UDPAddr{IP: d.IP, Port: d.Port}
	if addr.IP == nil || addr.IP.Equal(multicast.IP) {
		addr = &net.UDPAddr{IP: multicast.IP, Port: multicast.Port}
	}
	if err := r.transport.Send(r.ctx, r.codec.Bytes(), addr); err != nil {
		logging.Log.WithError(err).WithField("dest", addr).Debug("send failed")
		return
	}
	packetsSent.Inc()
}

func splitAddr(addr net.Addr) (net.IP, int) {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP, udp.Port
	}
	return nil, 0
}

func getLocalIPv4() ([]byte, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipv4 := ipnet.IP.To4(); ipv4 != nil {
				return ipv4, nil
			}
		}
	}
	return nil, fmt.Errorf("no non-loopback IPv4 address found")
}
