package responder

import "github.com/prometheus/client_golang/prometheus"

var (
	packetsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mdnsengine",
		Subsystem: "responder",
		Name:      "packets_sent_total",
		Help:      "Total datagrams sent by the responder's host loop.",
	})
	packetsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mdnsengine",
		Subsystem: "responder",
		Name:      "packets_dropped_total",
		Help:      "Total inbound datagrams dropped before reaching the engine, by reason.",
	}, []string{"reason"})
	servicesRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mdnsengine",
		Subsystem: "responder",
		Name:      "services_registered",
		Help:      "Number of services currently registered with this responder.",
	})
)

func init() {
	prometheus.MustRegister(packetsSent, packetsDropped, servicesRegistered)
}
