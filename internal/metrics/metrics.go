// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "protocolscope"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	blocksProcessed   *prometheus.CounterVec
	blocksFailed      *prometheus.CounterVec
	componentsCreated *prometheus.CounterVec
	deltasEmitted     *prometheus.CounterVec
	decodeFailures    *prometheus.CounterVec
	blockDuration     *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		blocksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_processed_total",
			Help:      "Blocks whose changes were committed.",
		}, []string{"protocol"}),
		blocksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_failed_total",
			Help:      "Blocks aborted before commit.",
		}, []string{"protocol"}),
		componentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "components_created_total",
			Help:      "Protocol components discovered.",
		}, []string{"protocol"}),
		deltasEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_deltas_total",
			Help:      "Balance deltas extracted from logs.",
		}, []string{"protocol"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Logs or calls that matched a shape but failed to decode.",
		}, []string{"protocol"}),
		blockDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_duration_seconds",
			Help:      "Time spent running the pipeline for one block.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"protocol"}),
	}
	for _, c := range []prometheus.Collector{
		m.blocksProcessed,
		m.blocksFailed,
		m.componentsCreated,
		m.deltasEmitted,
		m.decodeFailures,
		m.blockDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) BlockProcessed(protocol string, took time.Duration) {
	if m == nil {
		return
	}
	m.blocksProcessed.WithLabelValues(protocol).Inc()
	m.blockDuration.WithLabelValues(protocol).Observe(took.Seconds())
}

func (m *Metrics) BlockFailed(protocol string) {
	if m == nil {
		return
	}
	m.blocksFailed.WithLabelValues(protocol).Inc()
}

func (m *Metrics) ComponentsCreated(protocol string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.componentsCreated.WithLabelValues(protocol).Add(float64(n))
}

func (m *Metrics) DeltasEmitted(protocol string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.deltasEmitted.WithLabelValues(protocol).Add(float64(n))
}

func (m *Metrics) DecodeFailure(protocol string) {
	if m == nil {
		return
	}
	m.decodeFailures.WithLabelValues(protocol).Inc()
}

// Serve exposes gatherer on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
