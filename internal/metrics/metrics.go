// Package metrics exposes Prometheus instrumentation for scans, connection
// attempts, the current mode and scheduled restarts.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Collector owns the wifisetup metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	Scans           *prometheus.CounterVec
	ScanDuration    *prometheus.HistogramVec
	ConnectAttempts *prometheus.CounterVec
	ConnectDuration *prometheus.HistogramVec
	Mode            *prometheus.GaugeVec
	Restarts        prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg, or with the default registerer
// when reg is nil. Collectors already registered under the same name are
// reused.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scans, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wifisetup",
		Name:      "scans_total",
		Help:      "Radio scans by result.",
	}, []string{"result"}), "wifisetup_scans_total")
	if err != nil {
		return nil, err
	}

	scanDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wifisetup",
		Name:      "scan_duration_seconds",
		Help:      "Duration of radio scans.",
		Buckets:   []float64{0.5, 1, 2, 4, 8, 16},
	}, []string{"result"}), "wifisetup_scan_duration_seconds")
	if err != nil {
		return nil, err
	}

	attempts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wifisetup",
		Name:      "connect_attempts_total",
		Help:      "Client connection attempts by result.",
	}, []string{"result"}), "wifisetup_connect_attempts_total")
	if err != nil {
		return nil, err
	}

	connectDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wifisetup",
		Name:      "connect_duration_seconds",
		Help:      "Duration of client connection attempts.",
		Buckets:   []float64{5, 10, 20, 30, 45, 60, 90},
	}, []string{"result"}), "wifisetup_connect_duration_seconds")
	if err != nil {
		return nil, err
	}

	mode, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wifisetup",
		Name:      "mode",
		Help:      "Current network mode, 1 for the active mode.",
	}, []string{"mode"}), "wifisetup_mode")
	if err != nil {
		return nil, err
	}

	restarts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wifisetup",
		Name:      "restarts_scheduled_total",
		Help:      "Device restarts scheduled to apply a mode change.",
	}), "wifisetup_restarts_scheduled_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		Scans:           scans,
		ScanDuration:    scanDuration,
		ConnectAttempts: attempts,
		ConnectDuration: connectDuration,
		Mode:            mode,
		Restarts:        restarts,
		gatherer:        gatherer,
	}, nil
}

// ObserveScan records one scan.
func (c *Collector) ObserveScan(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Scans.WithLabelValues(result).Inc()
	c.ScanDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveConnect records one finished connection attempt.
func (c *Collector) ObserveConnect(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.ConnectAttempts.WithLabelValues(result).Inc()
	c.ConnectDuration.WithLabelValues(result).Observe(d.Seconds())
}

// SetMode marks m as the active mode.
func (c *Collector) SetMode(m wifi.Mode) {
	if c == nil {
		return
	}
	for _, mode := range []wifi.Mode{wifi.ModeHotspot, wifi.ModeClient, wifi.ModeTransitioning} {
		v := 0.0
		if mode == m {
			v = 1
		}
		c.Mode.WithLabelValues(string(mode)).Set(v)
	}
}

// IncRestart counts a scheduled restart.
func (c *Collector) IncRestart() {
	if c == nil {
		return
	}
	c.Restarts.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
