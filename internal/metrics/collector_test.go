package metrics_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/static-server/internal/metrics"
	"github.com/angeloszaimis/static-server/pkg/logger"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		reg       *prometheus.Registry
		m         *metrics.Metrics
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		m = metrics.NewMetrics("test", reg)
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, m, logger.Discard())
	})

	AfterEach(func() {
		cancel()
	})

	responseEvent := func(method string, status int, n int64) metrics.MetricEvent {
		return metrics.MetricEvent{
			Type:      metrics.EventResponseSent,
			Timestamp: time.Now(),
			Method:    method,
			Status:    status,
			BodyBytes: n,
			Duration:  10 * time.Millisecond,
		}
	}

	Describe("Start and event processing", func() {
		It("should record a sent response", func() {
			collector.Start(ctx)
			collector.Emit(responseEvent("GET", 200, 128))

			Eventually(func() int64 {
				return collector.Snapshot().TotalResponses
			}).Should(Equal(int64(1)))

			snap := collector.Snapshot()
			Expect(snap.BytesSent).To(Equal(int64(128)))
			Expect(snap.Methods["GET"]).To(Equal(int64(1)))
			Expect(snap.StatusCodes[200]).To(Equal(int64(1)))
			Expect(snap.AvgResponse).To(Equal(10 * time.Millisecond))
		})

		It("should record connection failures", func() {
			collector.Start(ctx)
			collector.Emit(metrics.MetricEvent{Type: metrics.EventConnectionFailed, Timestamp: time.Now()})

			Eventually(func() int64 {
				return collector.Snapshot().Failures
			}).Should(Equal(int64(1)))
		})

		It("should forward responses to prometheus", func() {
			collector.Start(ctx)
			collector.Emit(responseEvent("HEAD", 404, 0))
			collector.Emit(responseEvent("GET", 200, 64))

			Eventually(func() int64 {
				return collector.Snapshot().TotalResponses
			}).Should(Equal(int64(2)))

			count, err := testutil.GatherAndCount(reg, "test_http_responses_total")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("should drain events queued before start on context cancellation", func() {
			for i := 0; i < 5; i++ {
				collector.Emit(responseEvent("GET", 200, 1))
			}

			collector.Start(ctx)
			cancel()
			collector.Wait()

			Expect(collector.Snapshot().TotalResponses).To(Equal(int64(5)))
		})
	})

	Describe("Emit", func() {
		It("should not block when the buffer is full", func() {
			small := metrics.NewCollector(1, nil, logger.Discard())
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 10; i++ {
					small.Emit(responseEvent("GET", 200, 1))
				}
			}()
			Eventually(done).Should(BeClosed())
		})

		It("should be a no-op on a nil collector", func() {
			var nilCollector *metrics.Collector
			Expect(func() { nilCollector.Emit(responseEvent("GET", 200, 1)) }).NotTo(Panic())
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)
			collector.Emit(responseEvent("GET", 403, 42))
			Eventually(func() int64 {
				return collector.Snapshot().TotalResponses
			}).Should(Equal(int64(1)))

			rec := httptest.NewRecorder()
			collector.Handler()(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.StatusCodes[403]).To(Equal(int64(1)))
			Expect(snap.BytesSent).To(Equal(int64(42)))
		})
	})
})
