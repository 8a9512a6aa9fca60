// Package metrics exposes gateway client activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clawlink/internal/gateway"
	"clawlink/pkg/protocol"
)

const namespace = "clawlink"

// Collector turns client diagnostics and events into Prometheus series
type Collector struct {
	registry *prometheus.Registry

	connects          prometheus.Counter
	connectFailures   prometheus.Counter
	transportErrors   prometheus.Counter
	reconnects        prometheus.Counter
	exhaustions       prometheus.Counter
	decodeErrors      prometheus.Counter
	sendsRejected     prometheus.Counter
	events            *prometheus.CounterVec
	reconnectDelay    prometheus.Histogram
	state             *prometheus.GaugeVec
	lastConnectedTime prometheus.Gauge
}

// New registers the client metrics on a fresh registry
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		connects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Successful gateway connections",
		}),
		connectFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Dial attempts that did not open a transport",
		}),
		transportErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Open transports lost without a caller disconnect",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled",
		}),
		exhaustions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_exhausted_total",
			Help:      "Times the retry ceiling was reached",
		}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames that could not be decoded",
		}),
		sendsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_rejected_total",
			Help:      "Outbound payloads dropped",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Decoded gateway events by type",
		}, []string{"type"}),
		reconnectDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconnect_delay_seconds",
			Help:      "Backoff delay of scheduled reconnects",
			Buckets:   []float64{1, 2, 4, 8, 16, 30, 60},
		}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),
		lastConnectedTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_connected_timestamp_seconds",
			Help:      "Unix time of the last successful connection",
		}),
	}

	for _, t := range []protocol.EventType{protocol.TypeMessage, protocol.TypeStatus, protocol.TypeTyping, protocol.TypeError} {
		c.events.WithLabelValues(string(t))
	}
	c.SetState(gateway.Disconnected)

	return c
}

// Registry returns the registry holding the client metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveEvent counts a decoded gateway event
func (c *Collector) ObserveEvent(ev protocol.Event) {
	c.events.WithLabelValues(string(ev.Type())).Inc()
}

// ObserveDiagnostic counts a client diagnostic
func (c *Collector) ObserveDiagnostic(d gateway.Diagnostic) {
	switch d.Kind {
	case gateway.DiagConnected:
		c.connects.Inc()
		c.lastConnectedTime.Set(float64(d.Time.Unix()))
	case gateway.DiagConnectFailure:
		c.connectFailures.Inc()
	case gateway.DiagTransportError:
		c.transportErrors.Inc()
	case gateway.DiagReconnectScheduled:
		c.reconnects.Inc()
		c.reconnectDelay.Observe(d.Delay.Seconds())
	case gateway.DiagReconnectExhausted:
		c.exhaustions.Inc()
	case gateway.DiagDecodeError:
		c.decodeErrors.Inc()
	case gateway.DiagSendRejected:
		c.sendsRejected.Inc()
	}
}

// SetState marks s as the current connection state
func (c *Collector) SetState(s gateway.State) {
	for _, known := range []gateway.State{gateway.Disconnected, gateway.Connecting, gateway.Connected, gateway.Reconnecting} {
		v := 0.0
		if known == s {
			v = 1
		}
		c.state.WithLabelValues(known.String()).Set(v)
	}
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
