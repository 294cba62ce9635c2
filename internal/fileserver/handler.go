package fileserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/static-server/internal/metrics"
)

const (
	// ReadBufferSize is the single read taken from each connection.
	ReadBufferSize = 1024
	// WriteChunkSize bounds each write so the idle timeout is renewed while
	// a slow client keeps reading.
	WriteChunkSize    = 16 * 1024
	DefaultServerName = "Go Static Server"
)

// Handler answers one request per connection from files below a document
// root. It holds no per-request state and is safe for concurrent use.
type Handler struct {
	resolver   *Resolver
	serverName string
	timeout    time.Duration
	logger     *slog.Logger
	collector  *metrics.Collector
	now        func() time.Time
}

type Option func(*Handler)

func WithServerName(name string) Option {
	return func(h *Handler) {
		h.serverName = name
	}
}

// WithTimeout bounds how long the request read and each response write
// chunk may stall. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

func WithCollector(c *metrics.Collector) Option {
	return func(h *Handler) {
		h.collector = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

func NewHandler(documentRoot string, logger *slog.Logger, opts ...Option) (*Handler, error) {
	resolver, err := NewResolver(documentRoot)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		resolver:   resolver,
		serverName: DefaultServerName,
		logger:     logger,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Root returns the normalized document root.
func (h *Handler) Root() string {
	return h.resolver.Root()
}

// Result summarizes a handled request for logging and metrics.
type Result struct {
	Method    string
	Path      string
	Status    int
	BodyBytes int64
}

// ServeConn reads one request from conn, writes the response and closes the
// connection. Failures are logged and never propagate to the caller.
func (h *Handler) ServeConn(conn net.Conn) {
	defer conn.Close()

	start := time.Now()
	log := h.logger.With(
		slog.String("conn", uuid.NewString()),
		slog.String("remote", conn.RemoteAddr().String()))

	if h.timeout > 0 {
		if err := conn.SetReadDeadline(start.Add(h.timeout)); err != nil {
			log.Warn("Failed to set read deadline", slog.Any("err", err))
		}
	}

	buf := make([]byte, ReadBufferSize)
	n, err := conn.Read(buf)
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		log.Warn("Failed to read request", slog.Any("err", err))
		h.emitFailure()
		return
	}

	result, err := h.Handle(&idleWriter{conn: conn, timeout: h.timeout}, buf[:n])
	if err != nil {
		log.Warn("Failed to write response",
			slog.String("method", result.Method),
			slog.String("path", result.Path),
			slog.Int("status", result.Status),
			slog.Any("err", err))
		h.emitFailure()
		return
	}

	duration := time.Since(start)
	log.Info("Served request",
		slog.String("method", result.Method),
		slog.String("path", result.Path),
		slog.Int("status", result.Status),
		slog.Int64("bytes", result.BodyBytes),
		slog.Duration("duration", duration))

	h.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventResponseSent,
		Timestamp: time.Now(),
		Method:    result.Method,
		Status:    result.Status,
		BodyBytes: result.BodyBytes,
		Duration:  duration,
	})
}

// Handle parses raw, resolves it and writes the full response to w.
func (h *Handler) Handle(w io.Writer, raw []byte) (Result, error) {
	req, parseErr := ParseRequest(raw)

	result := Result{Method: methodLabel(req)}
	if req.Allowed() {
		result.Path = "/" + req.Path
	}

	resp := h.Respond(req, parseErr)
	defer resp.Close()

	result.Status = resp.Status
	result.BodyBytes = resp.BodyLength()

	if _, err := resp.WriteTo(w, h.serverName, h.now()); err != nil {
		return result, err
	}

	return result, nil
}

// Respond builds the response for req. A non-nil parseErr yields 400.
func (h *Handler) Respond(req Request, parseErr error) Response {
	if parseErr != nil {
		return pageResponse(req, errorOutcome(http.StatusBadRequest))
	}

	outcome := h.resolver.Resolve(req)
	if outcome.Page != nil {
		return pageResponse(req, outcome)
	}

	resp, err := openFile(req, outcome)
	if err != nil {
		h.logger.Warn("Failed to open resolved file",
			slog.String("path", outcome.Path),
			slog.Any("err", err))

		if errors.Is(err, os.ErrNotExist) {
			return pageResponse(req, errorOutcome(http.StatusNotFound))
		}
		return pageResponse(req, errorOutcome(http.StatusInternalServerError))
	}

	return resp
}

func pageResponse(req Request, outcome Outcome) Response {
	resp := Response{
		Status:        outcome.Status,
		MimeType:      outcome.MimeType,
		ContentLength: int64(len(outcome.Page)),
	}
	if req.Method != MethodHead {
		resp.Body = outcome.Page
	}
	return resp
}

// openFile opens the resolved file at serve time and records its size. The
// file may have vanished since resolution, which surfaces as os.ErrNotExist.
// For GET the open file is handed to the response, which the caller closes.
func openFile(req Request, outcome Outcome) (Response, error) {
	f, err := os.Open(outcome.Path)
	if err != nil {
		return Response{}, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Response{}, fmt.Errorf("stat %s: %w", outcome.Path, err)
	}

	resp := Response{
		Status:        outcome.Status,
		MimeType:      outcome.MimeType,
		ContentLength: info.Size(),
	}

	if req.Method == MethodHead {
		f.Close()
		return resp, nil
	}

	resp.File = f
	return resp, nil
}

func methodLabel(req Request) string {
	if req.Allowed() {
		return req.Method
	}
	return "OTHER"
}

func (h *Handler) emitFailure() {
	h.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventConnectionFailed,
		Timestamp: time.Now(),
	})
}

// idleWriter writes to conn in chunks of at most WriteChunkSize, renewing the
// write deadline before each one.
type idleWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w *idleWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		chunk := p[written:]
		if len(chunk) > WriteChunkSize {
			chunk = chunk[:WriteChunkSize]
		}

		if w.timeout > 0 {
			if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
				return written, err
			}
		}

		n, err := w.conn.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
