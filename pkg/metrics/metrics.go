// Package metrics exposes load progress as Prometheus metrics.
//
// A Collector owns the cqlload collectors registered on one registry. The
// CLI registers them on the default registry and serves /metrics with
// Serve; tests use a private registry.
//
//	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
//	collector.RecordsRead(len(batch.Records))
//	done := collector.BatchStarted()
//	err := write(batch)
//	done(len(batch.Records), err)
package metrics

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Collector records read and write progress. A nil Collector records nothing.
type Collector struct {
	recordsRead    prometheus.Counter
	batches        *prometheus.CounterVec
	recordsWritten *prometheus.CounterVec
	inFlight       prometheus.Gauge
	writeLatency   prometheus.Histogram
}

// NewCollector registers the cqlload collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		recordsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "cqlload_records_read_total",
			Help: "Records decoded from the source",
		}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cqlload_batches_total",
			Help: "Batch writes by outcome",
		}, []string{"status"}),
		recordsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cqlload_records_written_total",
			Help: "Records in completed batch writes by outcome",
		}, []string{"status"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cqlload_batches_in_flight",
			Help: "Batch writes currently in flight",
		}),
		writeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cqlload_batch_write_seconds",
			Help:    "Batch write latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// RecordsRead adds n decoded records.
func (c *Collector) RecordsRead(n int) {
	if c == nil {
		return
	}
	c.recordsRead.Add(float64(n))
}

// BatchStarted marks a write as in flight. The returned func must be called
// once with the batch size and the write error.
func (c *Collector) BatchStarted() func(size int, err error) {
	if c == nil {
		return func(int, error) {}
	}

	start := time.Now()
	c.inFlight.Inc()

	return func(size int, err error) {
		c.inFlight.Dec()
		c.writeLatency.Observe(time.Since(start).Seconds())

		status := StatusSuccess
		if err != nil {
			status = StatusFailure
		}
		c.batches.WithLabelValues(status).Inc()
		c.recordsWritten.WithLabelValues(status).Add(float64(size))
	}
}

// Serve exposes the metrics in gatherer on addr under /metrics until ctx is
// done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ProcessRSS returns the resident set size of this process in bytes.
func ProcessRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits int32
	if err != nil {
		return 0, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}
