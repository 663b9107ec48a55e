package main

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	mp "github.com/nbrownus/go-metrics-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"

	"github.com/knieriem/tinygo-gem/efm32gg/eth/internal/gem"
)

// driverCollector exports the counters of the driver. They are read
// atomically at scrape time, so no copy needs to be kept up to date.
type driverCollector struct {
	stats   func() gem.Stats
	metrics []driverMetric
}

type driverMetric struct {
	desc  *prometheus.Desc
	value func(gem.Stats) uint32
}

func newDriverCollector(namespace, subsystem string, stats func() gem.Stats) *driverCollector {
	m := func(name, help string, value func(gem.Stats) uint32) driverMetric {
		return driverMetric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
			value: value,
		}
	}
	return &driverCollector{
		stats: stats,
		metrics: []driverMetric{
			m("rx_frames_total", "Frames passed to the network stack", func(s gem.Stats) uint32 { return s.RxFrames }),
			m("rx_bytes_total", "Bytes in received buffers", func(s gem.Stats) uint32 { return s.RxBytes }),
			m("rx_dropped_total", "Received frames exceeding the maximum size", func(s gem.Stats) uint32 { return s.RxDropped }),
			m("rx_overruns_total", "Receive overrun interrupts", func(s gem.Stats) uint32 { return s.RxOverruns }),
			m("tx_frames_total", "Frames queued for transmission", func(s gem.Stats) uint32 { return s.TxFrames }),
			m("tx_bytes_total", "Bytes queued for transmission", func(s gem.Stats) uint32 { return s.TxBytes }),
			m("tx_exhausted_total", "Frames not fitting the transmit window", func(s gem.Stats) uint32 { return s.TxExhausted }),
			m("tx_errors_total", "Frames reported as failed by the MAC", func(s gem.Stats) uint32 { return s.TxErrors }),
			m("tx_underruns_total", "Transmit underrun interrupts", func(s gem.Stats) uint32 { return s.TxUnderruns }),
			m("tx_reclaimed_total", "Transmit descriptors claimed back", func(s gem.Stats) uint32 { return s.TxReclaimed }),
			m("tx_dangling_total", "Dangling transmit descriptors seen", func(s gem.Stats) uint32 { return s.Dangling }),
			m("tx_duplicates_total", "Possibly duplicate transmit descriptors seen", func(s gem.Stats) uint32 { return s.Duplicates }),
			m("bus_errors_total", "DMA bus errors", func(s gem.Stats) uint32 { return s.BusErrors }),
			m("unhandled_interrupts_total", "Interrupts with unknown conditions", func(s gem.Stats) uint32 { return s.UnhandledIRQs }),
		},
	}
}

func (c *driverCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *driverCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(m.value(s)))
	}
}

// statsServer serves the driver counters and the gauges of the simulated
// wire and the responder, which are kept in a go-metrics registry.
type statsServer struct {
	l        *logrus.Logger
	c        StatsConfig
	pr       *prometheus.Registry
	registry metrics.Registry
	provider *mp.PrometheusConfig
	update   func(metrics.Registry)
}

func newStatsServer(l *logrus.Logger, c StatsConfig, build string, stats func() gem.Stats, update func(metrics.Registry)) *statsServer {
	pr := prometheus.NewRegistry()
	pr.MustRegister(newDriverCollector(c.Namespace, c.Subsystem, stats))

	// Export our version information as labels on a static gauge
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: c.Namespace,
		Subsystem: c.Subsystem,
		Name:      "info",
		Help:      "Version information for the simulator binary",
		ConstLabels: prometheus.Labels{
			"version":   build,
			"goversion": runtime.Version(),
		},
	})
	pr.MustRegister(g)
	g.Set(1)

	registry := metrics.NewRegistry()
	return &statsServer{
		l:        l,
		c:        c,
		pr:       pr,
		registry: registry,
		provider: mp.NewPrometheusProvider(registry, c.Namespace, c.Subsystem, pr, c.Interval),
		update:   update,
	}
}

// flush copies the current gauge values over to prometheus.
func (s *statsServer) flush() error {
	s.update(s.registry)
	return s.provider.UpdatePrometheusMetricsOnce()
}

func (s *statsServer) handler() http.Handler {
	return promhttp.HandlerFor(s.pr, promhttp.HandlerOpts{ErrorLog: s.l})
}

// run serves the metrics until ctx is done.
func (s *statsServer) run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.c.Path, s.handler())
	srv := &http.Server{Addr: s.c.Listen, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		s.l.Infof("Prometheus stats listening on %s at %s", s.c.Listen, s.c.Path)
		errc <- srv.ListenAndServe()
	}()

	t := time.NewTicker(s.c.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-t.C:
			if err := s.flush(); err != nil {
				s.l.WithError(err).Warn("Failed to update metrics")
			}
		}
	}
}
