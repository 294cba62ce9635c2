// Package metrics provides metrics for the file server.
//
// Two layers are kept:
//   - Metrics, a set of Prometheus collectors updated synchronously by the
//     worker pool (queue depth, busy workers, job latency, recovered panics)
//     and by the Collector (responses by method and status, bytes sent).
//   - Collector, a channel-based event pipeline fed by the connection handler.
//     It keeps an in-memory Stats view with response time percentiles
//     (P50, P95, P99) served as JSON on /stats.
//
// Example usage:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewMetrics("httpd", reg)
//	collector := metrics.NewCollector(1024, m, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:      metrics.EventResponseSent,
//		Method:    "GET",
//		Status:    200,
//		BodyBytes: 512,
//		Duration:  3 * time.Millisecond,
//	})
//
// Emit never blocks the worker; events are dropped when the buffer is full.
// On context cancellation the collector drains buffered events before exiting.
package metrics
