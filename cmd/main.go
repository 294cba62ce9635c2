package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/angeloszaimis/static-server/config"
	"github.com/angeloszaimis/static-server/internal/fileserver"
	"github.com/angeloszaimis/static-server/internal/httpserver"
	"github.com/angeloszaimis/static-server/internal/listener"
	"github.com/angeloszaimis/static-server/internal/metrics"
	"github.com/angeloszaimis/static-server/internal/workerpool"
	"github.com/angeloszaimis/static-server/pkg/logger"
)

// Version is injected via ldflags.
var Version = "dev"

const eventBufferSize = 1024

var configPath string

var rootCmd = &cobra.Command{
	Use:           "httpd",
	Short:         "Minimal static file server",
	Long:          `httpd serves files from a document root over HTTP/1.x using a fixed pool of workers.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, true, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
	}

	var adminLn net.Listener
	if cfg.AdminAddress != "" {
		adminLn, err = net.Listen("tcp", cfg.AdminAddress)
		if err != nil {
			ln.Close()
			return fmt.Errorf("failed to listen on %s: %w", cfg.AdminAddress, err)
		}
	}

	return srv.run(ctx, ln, adminLn)
}

// server owns every long-lived component of the process.
type server struct {
	cfg       *config.Config
	log       *slog.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector
	pool      *workerpool.Pool
	handler   *fileserver.Handler
}

func newServer(cfg *config.Config, log *slog.Logger, registry *prometheus.Registry) (*server, error) {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.NewMetrics(metrics.DefaultNamespace, registry)
	collector := metrics.NewCollector(eventBufferSize, m, log)

	handler, err := fileserver.NewHandler(cfg.DocumentRoot, log,
		fileserver.WithServerName(cfg.ServerName),
		fileserver.WithTimeout(cfg.Timeout()),
		fileserver.WithCollector(collector))
	if err != nil {
		return nil, fmt.Errorf("invalid document root: %w", err)
	}

	pool := workerpool.New(cfg.ThreadLimit,
		workerpool.WithLogger(log),
		workerpool.WithMetrics(m))

	return &server{
		cfg:       cfg,
		log:       log,
		registry:  registry,
		collector: collector,
		pool:      pool,
		handler:   handler,
	}, nil
}

// run serves connections from ln until ctx is cancelled or the accept loop
// fails, then drains the pool. adminLn may be nil.
func (s *server) run(ctx context.Context, ln net.Listener, adminLn net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collectorCtx, stopCollector := context.WithCancel(context.Background())
	s.collector.Start(collectorCtx)

	var admin *httpserver.Server
	adminErrCh := make(chan error, 1)
	if adminLn != nil {
		var err error
		admin, err = httpserver.New(adminLn.Addr().String(), setupRouter(s.collector, s.pool, s.registry), s.log)
		if err != nil {
			adminLn.Close()
			ln.Close()
			stopCollector()
			return fmt.Errorf("failed to create admin server: %w", err)
		}
		go func() {
			adminErrCh <- admin.Serve(adminLn)
		}()
	}

	s.log.Info("Server starting",
		slog.String("addr", ln.Addr().String()),
		slog.String("document_root", s.handler.Root()),
		slog.Int("thread_limit", s.pool.Size()))

	l := listener.New(ln, s.pool, s.handler, s.log)
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- l.Serve(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info("Shutting down gracefully...")
		runErr = <-serveErrCh
	case err := <-serveErrCh:
		runErr = err
	case err := <-adminErrCh:
		if err != nil {
			s.log.Error("Admin server stopped", slog.Any("err", err))
		}
		cancel()
		runErr = <-serveErrCh
	}

	if admin != nil {
		if err := admin.Shutdown(context.Background()); err != nil {
			s.log.Error("Error during admin shutdown", slog.Any("err", err))
		}
	}

	if err := s.pool.Shutdown(); err != nil && !errors.Is(err, workerpool.ErrPoolClosed) {
		s.log.Error("Error during pool shutdown", slog.Any("err", err))
	}

	stopCollector()
	s.collector.Wait()

	s.log.Info("Server stopped")
	return runErr
}
