package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the mount's Prometheus metrics. A nil *Collector is a
// valid no-op, so the pointing code can run without metrics wired.
type Collector struct {
	gatherer prometheus.Gatherer

	PointingUpdates   *prometheus.CounterVec
	StepsMoved        *prometheus.CounterVec
	HorizonRejections prometheus.Counter
	SlewDuration      prometheus.Histogram
	Azimuth           prometheus.Gauge
	Altitude          prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		PointingUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telego_pointing_updates_total",
			Help: "Pointing computations sent to the motors, labeled by mode (goto or track).",
		}, []string{"mode"}),
		StepsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telego_steps_moved_total",
			Help: "Absolute motor steps issued, labeled by axis.",
		}, []string{"axis"}),
		HorizonRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telego_horizon_rejections_total",
			Help: "Targets refused because they were below the altitude limit.",
		}),
		SlewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "telego_slew_duration_seconds",
			Help:    "Time spent moving the axes for one pointing update.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		Azimuth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telego_commanded_azimuth_degrees",
			Help: "Azimuth of the last pointing update.",
		}),
		Altitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telego_commanded_altitude_degrees",
			Help: "Altitude of the last pointing update.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telego_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "telego_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
	}

	for _, col := range []prometheus.Collector{
		c.PointingUpdates, c.StepsMoved, c.HorizonRejections, c.SlewDuration,
		c.Azimuth, c.Altitude, c.HTTPRequests, c.HTTPDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

// ObservePointing records one pointing update sent to the motors.
func (c *Collector) ObservePointing(mode string, azimuth, altitude float32, azSteps, altSteps int64, took time.Duration) {
	if c == nil {
		return
	}
	c.PointingUpdates.WithLabelValues(mode).Inc()
	c.StepsMoved.WithLabelValues("azimuth").Add(float64(abs(azSteps)))
	c.StepsMoved.WithLabelValues("altitude").Add(float64(abs(altSteps)))
	c.SlewDuration.Observe(took.Seconds())
	c.Azimuth.Set(float64(azimuth))
	c.Altitude.Set(float64(altitude))
}

// ObserveHorizonRejection counts a target refused by the altitude limit.
func (c *Collector) ObserveHorizonRejection() {
	if c == nil {
		return
	}
	c.HorizonRejections.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps the status stream working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request count and duration for each request.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		code := strconv.Itoa(rw.statusCode)
		c.HTTPRequests.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		c.HTTPDuration.WithLabelValues(r.URL.Path, r.Method).Observe(time.Since(start).Seconds())
	})
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
