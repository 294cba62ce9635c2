package httpserver_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/static-server/internal/httpserver"
	"github.com/angeloszaimis/static-server/pkg/logger"
)

var _ = Describe("Admin server", func() {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	Context("server creation", func() {
		DescribeTable("accepting addresses",
			func(addr string) {
				srv, err := httpserver.New(addr, noop, logger.Discard())
				Expect(err).NotTo(HaveOccurred())
				Expect(srv).NotTo(BeNil())
			},
			Entry("hostname", "localhost:9999"),
			Entry("IP address", "127.0.0.1:9999"),
			Entry("port only", ":9999"),
		)

		DescribeTable("rejecting addresses",
			func(addr string) {
				srv, err := httpserver.New(addr, noop, logger.Discard())
				Expect(err).To(HaveOccurred())
				Expect(srv).To(BeNil())
			},
			Entry("too many colons", "invalid:host:port"),
			Entry("missing port", "localhost"),
			Entry("empty port", "localhost:"),
		)
	})

	Context("server lifecycle", func() {
		var (
			srv   *httpserver.Server
			ln    net.Listener
			errCh chan error
		)

		BeforeEach(func() {
			var err error
			ln, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			errCh = make(chan error, 1)
		})

		AfterEach(func() {
			if srv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}
		})

		It("serves requests and shuts down cleanly", func() {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("test"))
			})

			var err error
			srv, err = httpserver.New(ln.Addr().String(), handler, logger.Discard())
			Expect(err).NotTo(HaveOccurred())

			go func() {
				errCh <- srv.Serve(ln)
			}()

			resp, err := http.Get("http://" + ln.Addr().String())
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("test"))

			Expect(srv.Shutdown(context.Background())).To(Succeed())
			Eventually(errCh).Should(Receive(BeNil()))
		})
	})
})
