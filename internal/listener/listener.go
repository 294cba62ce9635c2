package listener

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/angeloszaimis/static-server/internal/workerpool"
)

// ConnHandler serves a single accepted connection and closes it.
type ConnHandler interface {
	ServeConn(conn net.Conn)
}

// Submitter queues deferred work. *workerpool.Pool satisfies it.
type Submitter interface {
	Submit(job workerpool.Job) error
}

// Listener accepts connections sequentially and hands each one to the pool
// as a single job.
type Listener struct {
	ln      net.Listener
	pool    Submitter
	handler ConnHandler
	logger  *slog.Logger

	maxAcceptDelay time.Duration
	closeOnce      sync.Once
}

type Option func(*Listener)

// WithMaxAcceptDelay caps the backoff between failed Accept calls.
func WithMaxAcceptDelay(d time.Duration) Option {
	return func(l *Listener) {
		l.maxAcceptDelay = d
	}
}

func New(ln net.Listener, pool Submitter, handler ConnHandler, logger *slog.Logger, opts ...Option) *Listener {
	l := &Listener{
		ln:             ln,
		pool:           pool,
		handler:        handler,
		logger:         logger,
		maxAcceptDelay: time.Second,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts until ctx is cancelled or Accept fails permanently. It
// returns nil after a cancellation and the Accept error otherwise. The
// underlying listener is closed in both cases.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, l.close)
	defer stop()
	defer l.close()

	l.logger.Info("Listening for connections", slog.String("addr", l.ln.Addr().String()))

	delay := l.newBackOff()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("Listener stopped")
				return nil
			}

			if !isTemporary(err) {
				l.logger.Error("Accept failed", slog.Any("err", err))
				return err
			}

			wait := delay.NextBackOff()
			l.logger.Warn("Accept error, retrying",
				slog.Any("err", err),
				slog.Duration("retry_in", wait))

			select {
			case <-ctx.Done():
				l.logger.Info("Listener stopped")
				return nil
			case <-time.After(wait):
			}
			continue
		}

		delay.Reset()
		l.dispatch(conn)
	}
}

func (l *Listener) dispatch(conn net.Conn) {
	err := l.pool.Submit(func() {
		l.handler.ServeConn(conn)
	})
	if err != nil {
		l.logger.Warn("Dropping connection, pool refused job",
			slog.String("remote", conn.RemoteAddr().String()),
			slog.Any("err", err))
		conn.Close()
	}
}

func (l *Listener) close() {
	l.closeOnce.Do(func() {
		if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.logger.Warn("Failed to close listener", slog.Any("err", err))
		}
	})
}

func (l *Listener) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = l.maxAcceptDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// isTemporary reports whether an Accept error is worth retrying, such as
// running out of file descriptors or an aborted handshake.
func isTemporary(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return false
	}

	var ne interface{ Temporary() bool }
	if errors.As(err, &ne) {
		return ne.Temporary()
	}

	return false
}
