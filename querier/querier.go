package querier

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hollowpath/mdnsengine/internal/errors"
	"github.com/hollowpath/mdnsengine/internal/logging"
	"github.com/hollowpath/mdnsengine/internal/message"
	"github.com/hollowpath/mdnsengine/internal/network"
	"github.com/hollowpath/mdnsengine/internal/protocol"
	"github.com/hollowpath/mdnsengine/internal/security"
	"github.com/hollowpath/mdnsengine/internal/transport"
)

// Querier provides high-level mDNS query functionality.
//
// Querier manages a UDP multicast socket and background receiver goroutine
//
// Example:
//
//	q, err := querier.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer q.Close()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
//	defer cancel()
//
//	response, err := q.Query(ctx, "printer.local", querier.RecordTypeA)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, record := range response.Records {
//	    if ip := record.AsA(); ip != nil {
//	        fmt.Printf("Found printer at %s\n", ip)
//	    }
//	}
//
// NOTE: Fields are ordered for memory alignment (fieldalignment optimization).
// Larger types (interfaces, slices, sync types) come first, then smaller types.
// On 64-bit platforms the struct is 168 bytes.
// Related fields are still documented together via comments.
type Querier struct {
	// transport is the network transport abstraction (UDP multicast for mDNS)
	transport transport.Transport

	// ctx is the lifecycle context for the Querier
	ctx context.Context

	// wg tracks background goroutines (receiver)
	// Placed early due to 16-byte alignment requirement of sync.WaitGroup
	wg sync.WaitGroup

	// explicitInterfaces is the user-provided explicit list of interfaces (if set)
	// Takes priority over interfaceFilter if non-nil
	explicitInterfaces []net.Interface

	// defaultTimeout is the default timeout for queries (default: 1 second)
	defaultTimeout time.Duration

	// rateLimitCooldown is the duration to drop packets after threshold exceeded (default: 60s)
	rateLimitCooldown time.Duration

	// cancel cancels the lifecycle context
	cancel context.CancelFunc

	// responseChan receives incoming mDNS responses from the receiver goroutine
	responseChan chan []byte

	// interfaceFilter is a custom interface selection function (if set)
	// Used only if explicitInterfaces is nil
	interfaceFilter func(net.Interface) bool

	// rateLimiter is the rate limiter instance (created in New() if enabled)
	rateLimiter *security.RateLimiter

	// sourceFilters validate inbound response source addresses against the
	// resolved interfaces' link-local/subnet ranges (one filter per interface).
	sourceFilters []*security.SourceFilter

	// rateLimitThreshold is the max queries/second per source IP (default: 100)
	rateLimitThreshold int

	// mu protects concurrent access to Query operations
	mu sync.Mutex

	// rateLimitEnabled indicates whether rate limiting is enabled (default: true)
	rateLimitEnabled bool
}

// New creates a new Querier with optional configuration.
//
// New initializes the UDP multicast socket and starts a background receiver
//
//
// Parameters:
//   - opts: Optional functional options (e.g., WithTimeout)
//
// Returns:
//   - *Querier: Configured querier instance
//   - error: NetworkError if socket creation fails
//
// Example:
//
//	q, err := querier.New(querier.WithTimeout(2 * time.Second))
func New(opts ...Option) (*Querier, error) {
	// Create lifecycle context
	ctx, cancel := context.WithCancel(context.Background())

	// Create querier with defaults
	q := &Querier{
		defaultTimeout:     1 * time.Second,
		responseChan:       make(chan []byte, 100), // Buffer for incoming responses
		ctx:                ctx,
		cancel:             cancel,
		rateLimitEnabled:   true,
		rateLimitThreshold: 100,
		rateLimitCooldown:  60 * time.Second,
	}

	// Apply options first, so WithTransport can preempt the real socket below.
	for _, opt := range opts {
		if err := opt(q); err != nil {
			cancel()
			return nil, err
		}
	}

	if q.transport == nil {
		tr, err := transport.NewUDPv4Transport()
		if err != nil {
			cancel()
			return nil, err // Already wrapped as NetworkError
		}
		q.transport = tr
	}

	ifaces, err := q.resolveInterfaces()
	if err != nil {
		cancel()
		return nil, err
	}
	names := make([]string, len(ifaces))
	for i, iface := range ifaces {
		names[i] = iface.Name
	}
	logging.Log.WithField("interfaces", names).Debug("querier bound to multicast group on these interfaces")
	q.sourceFilters = security.SourceFiltersForInterfaces(ifaces)

	// Initialize rate limiter if enabled (after options applied)
	if q.rateLimitEnabled {
		q.rateLimiter = security.NewRateLimiter(
			q.rateLimitThreshold,
			q.rateLimitCooldown,
			10000, // Max 10,000 source IPs tracked
		)
		q.wg.Add(1)
		go q.cleanupLoop()
	}
	q.wg.Add(1)
	go q.receiveLoop()

	return q, nil
}

// resolveInterfaces applies explicitInterfaces, then interfaceFilter, then
// falls back to network.DefaultInterfaces' VPN/Docker/loopback exclusions.
// The UDP transport joins the multicast group on every up, multicast-capable
// interface regardless of this result, so it does not restrict the socket:
// it selects the address ranges the source filters accept responses from,
// and it is logged.
func (q *Querier) resolveInterfaces() ([]net.Interface, error) {
	if q.explicitInterfaces != nil {
		return q.explicitInterfaces, nil
	}
	if q.interfaceFilter != nil {
		all, err := net.Interfaces()
		if err != nil {
			return nil, &errors.NetworkError{
				Operation: "list interfaces",
				Err:       err,
				Details:   "failed to enumerate system interfaces",
			}
		}
		filtered := make([]net.Interface, 0, len(all))
		for _, iface := range all {
			if q.interfaceFilter(iface) {
				filtered = append(filtered, iface)
			}
		}
		return filtered, nil
	}
	ifaces, err := network.DefaultInterfaces()
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "list interfaces",
			Err:       err,
			Details:   "failed to enumerate default multicast interfaces",
		}
	}
	return ifaces, nil
}

// Query sends an mDNS query and returns all responses received within the timeout.
//
// Query validates inputs, builds the query message, sends it to the multicast group,
//
//
// Parameters:
//   - ctx: Context for timeout/cancellation (use context.WithTimeout for custom timeout)
//   - name: DNS name to query (e.g., "printer.local")
//   - recordType: Type of record to query (RecordTypeA, RecordTypePTR, etc.)
//
// Returns:
//   - *Response: Aggregated response with all discovered records
//   - error: ValidationError for invalid inputs, context.Canceled/context.DeadlineExceeded, or other errors
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
//	defer cancel()
//
//	response, err := q.Query(ctx, "printer.local", querier.RecordTypeA)
//	if err != nil {
//	    return err
//	}
//
//	for _, record := range response.Records {
//	    fmt.Printf("Found: %s → %v\n", record.Name, record.Data)
//	}
func (q *Querier) Query(ctx context.Context, name string, recordType RecordType) (*Response, error) {
	// Protect concurrent query operations
	q.mu.Lock()
	defer q.mu.Unlock()

	// Check context cancellation upfront
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	// Without a caller deadline, wait for the querier's default timeout.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.defaultTimeout)
		defer cancel()
	}
	err := protocol.ValidateName(name)
	if err != nil {
		return nil, err // Already wrapped as ValidationError
	}
	err = protocol.ValidateRecordType(uint16(recordType))
	if err != nil {
		return nil, err // Already wrapped as ValidationError
	}
	queryMsg, err := message.BuildQuery(name, uint16(recordType))
	if err != nil {
		return nil, err
	}
	mdnsAddr := &net.UDPAddr{
		IP:   net.IPv4(224, 0, 0, 251),
		Port: 5353,
	}
	err = q.transport.Send(ctx, queryMsg, mdnsAddr)
	if err != nil {
		return nil, err // Already wrapped as NetworkError
	}
	return q.collectResponses(ctx, name, recordType)
}

// collectResponses aggregates mDNS responses within the timeout window.
//
func (q *Querier) collectResponses(ctx context.Context, _ string, queryType RecordType) (*Response, error) {
	response := &Response{
		Records: make([]ResourceRecord, 0),
	}
	seen := make(map[string]bool)

	// Collect responses until timeout or cancellation
	for {
		select {
		case <-ctx.Done():
			return response, nil

		case responseMsg := <-q.responseChan:
			parsedMsg, err := message.ParseMessage(responseMsg)
			if err != nil {
				// Silently continue; a production system might log this
				continue
			}
			err = protocol.ValidateResponse(parsedMsg.Header.Flags)
			if err != nil {
				continue
			}
			for _, answer := range parsedMsg.Answers {
				// Filter by query type (optional - could also return all types)
				if RecordType(answer.TYPE) != queryType {
					// Skip records of different type
					// (Production might include related records)
					continue
				}

				// Parse type-specific RDATA
				data, err := message.ParseRDATA(answer.TYPE, answer.RDATA)
				if err != nil {
					continue
				}
				// ParseRDATA yields message.SRVData; records carry the public SRVData.
				if srv, ok := data.(message.SRVData); ok {
					data = SRVData{Target: srv.Target, Priority: srv.Priority, Weight: srv.Weight, Port: srv.Port}
				}
				// Key: name + type + data representation
				dedupeKey := fmt.Sprintf("%s|%d|%v", answer.NAME, answer.TYPE, data)
				if seen[dedupeKey] {
					continue // Duplicate - skip
				}
				seen[dedupeKey] = true

				// Convert to public ResourceRecord
				record := ResourceRecord{
					Name:  answer.NAME,
					Type:  RecordType(answer.TYPE),
					Class: answer.CLASS,
					TTL:   answer.TTL,
					Data:  data,
				}

				response.Records = append(response.Records, record)
			}
		}
	}
}

// receiveLoop runs in a background goroutine to continuously receive mDNS responses.
//
//
// nolint:gocyclo // Complexity 22 due to network packet handling with rate limiting, context management, source IP validation, and error recovery
func (q *Querier) receiveLoop() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			// Querier closed - exit loop
			return

		default:
			ctx, cancel := context.WithTimeout(q.ctx, 100*time.Millisecond)
			responseMsg, srcAddr, err := q.transport.Receive(ctx)
			cancel()

			if err != nil {
				// Timeout or network error - continue listening
				// Check if it's a timeout (expected) or real error
				var netErr *errors.NetworkError
				if goerrors.As(err, &netErr) {
					// Network timeout is expected - continue
					continue
				}
				// Real network error - might want to log in production
				continue
			}
			// Fail fast - reject oversized packets before parsing
			const maxMDNSPacketSize = 9000 // RFC 6762 §17
			if len(responseMsg) > maxMDNSPacketSize {
				// Packet exceeds RFC limit - drop it
				logging.Log.WithField("size", len(responseMsg)).Debug("dropping oversized datagram")
				continue
			}

			// Extract source IP for validation and rate limiting
			var srcIP net.IP
			var srcIPStr string
			if udpAddr, ok := srcAddr.(*net.UDPAddr); ok {
				srcIP = udpAddr.IP
				srcIPStr = udpAddr.IP.String()
			}

			// RFC 6762 §2: mDNS is link-local scope. Validate against the
			// resolved interfaces' link-local/subnet ranges.
			if srcIP != nil && !security.AnyValid(q.sourceFilters, srcIP) {
				logging.Log.WithField("src", srcIPStr).Debug("dropping non-link-local response")
				continue
			}
			if q.rateLimitEnabled && q.rateLimiter != nil && srcIPStr != "" {
				if !q.rateLimiter.Allow(srcIPStr) {
					logging.Log.WithField("src", srcIPStr).Debug("dropping rate-limited response")
					continue
				}
			}

			// Send response to channel (non-blocking)
			select {
			case q.responseChan <- responseMsg:
				// Sent successfully
			default:
				// Channel full - drop packet
				// Production might want to expand buffer or log
			}
		}
	}
}

// cleanupLoop periodically cleans up stale rate limiter entries.
func (q *Querier) cleanupLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			// Querier closed - exit loop
			return

		case <-ticker.C:
			// Periodic cleanup
			if q.rateLimiter != nil {
				q.rateLimiter.Cleanup()
			}
		}
	}
}

// Close gracefully shuts down the Querier and releases resources.
//
// Close cancels the lifecycle context, waits for background goroutines to exit,
//
//
// Example:
//
//	q, err := querier.New()
//	if err != nil {
//	    return err
//	}
//	defer q.Close() // Always close to release resources
func (q *Querier) Close() error {
	// Cancel lifecycle context (stops receiver goroutine)
	q.cancel()

	// Wait for receiver goroutine to exit
	q.wg.Wait()
	err := q.transport.Close()
	if err != nil {
		return err
	}

	// Close response channel
	close(q.responseChan)

	return nil
}
