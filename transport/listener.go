package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler is the interface for handling accepted sockets.
type Handler interface {
	// Handle is called on its own goroutine for each accepted socket. The
	// implementation owns the socket from that point on, including closing
	// it exactly once.
	Handle(s *Socket, peer *net.TCPAddr)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(s *Socket, peer *net.TCPAddr)

// Handle calls f(s, peer).
func (f HandlerFunc) Handle(s *Socket, peer *net.TCPAddr) { f(s, peer) }

// Listener accepts inbound TCP connections and wraps each into a Socket.
type Listener struct {
	lis      *net.TCPListener
	logger   zerolog.Logger
	sockOpts []Option

	mu       sync.Mutex
	shutdown bool
}

// Listen binds a TCP listener on addr. The given options are applied to
// every accepted socket.
func Listen(addr *net.TCPAddr, opts ...Option) (*Listener, error) {
	lis, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, err
	}

	var opt options
	for _, o := range opts {
		o(&opt)
	}
	checkOptions(&opt)

	return &Listener{
		lis:      lis,
		logger:   *opt.logger,
		sockOpts: opts,
	}, nil
}

// Accept waits for one inbound connection and returns it wrapped into a
// Socket, together with the peer address taken from the accepted
// connection. ctx bounds the wait.
func (l *Listener) Accept(ctx context.Context) (*Socket, *net.TCPAddr, error) {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = l.lis.SetDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			<-fired
		}
		_ = l.lis.SetDeadline(time.Time{})
	}()

	conn, err := l.lis.AcceptTCP()
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}
	_ = conn.SetNoDelay(true)

	peer := conn.RemoteAddr().(*net.TCPAddr)
	s, err := New(conn, l.sockOpts...)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	l.logger.Debug().Str("addr", peer.String()).Msg("connection accepted")
	return s, peer, nil
}

// Serve accepts connections and dispatches each to handler on its own
// goroutine, until ctx is canceled, Close is called, or the listener fails.
// It returns ctx's error after a cancellation and nil after a Close.
func (l *Listener) Serve(ctx context.Context, handler Handler) error {
	l.logger.Info().Str("addr", l.lis.Addr().String()).Msg("listener started")

	accepting := make(chan struct{})
	defer close(accepting)
	go func() {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.shutdown = true
			l.mu.Unlock()
			_ = l.lis.SetDeadline(time.Now())
		case <-accepting:
		}
	}()

	for {
		conn, err := l.lis.AcceptTCP()
		if err != nil {
			l.mu.Lock()
			stopped := l.shutdown
			l.mu.Unlock()
			if stopped {
				l.logger.Info().Str("addr", l.lis.Addr().String()).Msg("listener stopped")
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			l.logger.Error().Err(err).Msg("accept error")
			return err
		}
		_ = conn.SetNoDelay(true)

		peer := conn.RemoteAddr().(*net.TCPAddr)
		s, err := New(conn, l.sockOpts...)
		if err != nil {
			l.logger.Error().Err(err).Str("addr", peer.String()).Msg("wrap error")
			_ = conn.Close()
			continue
		}
		l.logger.Debug().Str("addr", peer.String()).Msg("connection accepted")
		go handler.Handle(s, peer)
	}
}

// Close stops the listener. A Serve or Accept blocked in the accept call
// returns promptly. Sockets already handed out are unaffected.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.shutdown = true
	l.mu.Unlock()
	return l.lis.Close()
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.lis.Addr() }
