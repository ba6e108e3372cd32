// Command mdnsd advertises a single DNS-SD service over mDNS until
// terminated, exposing Prometheus metrics on a local HTTP port.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hollowpath/mdnsengine/internal/logging"
	"github.com/hollowpath/mdnsengine/responder"
)

type options struct {
	logLevel    uint32
	instance    string
	serviceType string
	port        int
	hostname    string
	txt         []string
	metricsAddr string
}

func main() {
	var opt options
	cmd := &cobra.Command{
		Use:   "mdnsd",
		Short: "Advertise a DNS-SD service over multicast DNS",
		Long: `mdnsd registers a single DNS-SD service (RFC 6763) and answers
mDNS queries for it (RFC 6762) until the process is terminated.`,
		Example: `  mdnsd --instance "Office Printer" --type _http._tcp.local --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opt)
		},
		SilenceUsage: true,
	}

	cmd.Flags().Uint32VarP(&opt.logLevel, "log-level", "l", uint32(logrus.InfoLevel), "log level; 0=Panic .. 6=Trace")
	cmd.Flags().StringVar(&opt.instance, "instance", "", "service instance name, e.g. \"Office Printer\" (required)")
	cmd.Flags().StringVar(&opt.serviceType, "type", "", "service type, e.g. _http._tcp.local (required)")
	cmd.Flags().IntVar(&opt.port, "port", 0, "service port (required)")
	cmd.Flags().StringVar(&opt.hostname, "hostname", "", "hostname for the A record; defaults to the system hostname")
	cmd.Flags().StringArrayVar(&opt.txt, "txt", nil, "TXT record entry in key=value form, may be repeated")
	cmd.Flags().StringVar(&opt.metricsAddr, "metrics-addr", ":9153", "address to serve Prometheus metrics on")

	_ = cmd.MarkFlagRequired("instance")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("port")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opt options) error {
	if opt.logLevel > uint32(logrus.TraceLevel) {
		return fmt.Errorf("invalid log level: %d", opt.logLevel)
	}
	logging.Log.SetLevel(logrus.Level(opt.logLevel))

	txtRecords, err := parseTXT(opt.txt)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: opt.metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Log.WithError(err).Error("metrics server stopped")
		}
	}()
	defer metricsServer.Close()

	r, err := responder.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to start responder: %w", err)
	}
	defer r.Close()

	svc := &responder.Service{
		InstanceName: opt.instance,
		ServiceType:  opt.serviceType,
		Port:         opt.port,
		Hostname:     opt.hostname,
		TXTRecords:   txtRecords,
	}
	if err := r.Register(svc); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	logging.Log.WithFields(logrus.Fields{
		"instance": opt.instance,
		"type":     opt.serviceType,
		"port":     opt.port,
	}).Info("service registered, advertising until interrupted")

	<-ctx.Done()
	logging.Log.Info("shutting down")
	return nil
}

func parseTXT(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --txt entry %q, want key=value", entry)
		}
		out[key] = value
	}
	return out, nil
}
