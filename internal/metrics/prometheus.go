package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const DefaultNamespace = "httpd"

// Metrics holds the Prometheus collectors for the worker pool and the
// connection handler. All methods are safe on a nil receiver.
type Metrics struct {
	jobsSubmitted prometheus.Counter
	jobsRejected  prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsPanicked  prometheus.Counter
	busyWorkers   prometheus.Gauge
	queueDepth    prometheus.Gauge
	jobDuration   prometheus.Histogram

	responses     *prometheus.CounterVec
	responseBytes prometheus.Counter
	connErrors    prometheus.Counter
}

// NewMetrics registers every collector with reg under namespace.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		jobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs accepted by the worker pool.",
		}),
		jobsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_rejected_total",
			Help:      "Total number of jobs refused because the pool was shutting down.",
		}),
		jobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that ran to completion.",
		}),
		jobsPanicked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs that panicked and were recovered.",
		}),
		busyWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "busy_workers",
			Help:      "Number of workers currently running a job.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "queue_depth",
			Help:      "Number of entries waiting in the job queue.",
		}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_duration_seconds",
			Help:      "Time spent running a single job.",
			Buckets:   prometheus.DefBuckets,
		}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "Responses written, by request method and status code.",
		}, []string{"method", "status"}),
		responseBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_body_bytes_total",
			Help:      "Total body bytes written to clients.",
		}),
		connErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "connection_errors_total",
			Help:      "Connections dropped because of a read or write failure.",
		}),
	}
}

func (m *Metrics) JobSubmitted() {
	if m == nil {
		return
	}
	m.jobsSubmitted.Inc()
	m.queueDepth.Inc()
}

func (m *Metrics) JobRejected() {
	if m == nil {
		return
	}
	m.jobsRejected.Inc()
}

// JobStarted is called when a worker dequeues a job.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.queueDepth.Dec()
	m.busyWorkers.Inc()
}

// JobFinished records the outcome of a job that was started.
func (m *Metrics) JobFinished(d time.Duration, panicked bool) {
	if m == nil {
		return
	}
	m.busyWorkers.Dec()
	m.jobDuration.Observe(d.Seconds())
	if panicked {
		m.jobsPanicked.Inc()
		return
	}
	m.jobsCompleted.Inc()
}

func (m *Metrics) ResponseWritten(method string, status int, bodyBytes int64) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.responseBytes.Add(float64(bodyBytes))
}

func (m *Metrics) ConnectionFailed() {
	if m == nil {
		return
	}
	m.connErrors.Inc()
}
