// Package transport wraps a connected byte-stream transport into a Socket
// with exactly-sized reads, buffered writes and a lifecycle that enforces
// once-only shutdown and close.
//
// A Socket hides the transport's chunking entirely: Read assembles exactly
// the requested number of bytes from however many deliveries it takes, or
// fails with ErrReadEOF when the stream ends short. Lifecycle violations and
// unexpected teardown errors come back as UnrecoverableError values so a
// supervisor above the socket decides what dies.
package transport

import (
	"context"
	"io"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/penglaiyxy/ceph/buffer"
	"github.com/penglaiyxy/ceph/task"
)

// Socket owns one transport connection decomposed into an input and an
// output half-duplex stream.
//
// The read path and the write path are independent and may run concurrently
// with each other. Within each path calls are serialized: reads under a
// mutex, output operations on the socket's runner goroutine. Shutdown cuts
// both halves so blocked I/O fails instead of hanging; Shutdown and Close
// may each be called exactly once, with Close mandatory and Shutdown
// optional before it.
type Socket struct {
	conn   Conn
	in     *inputStream
	out    *outputStream
	runner *task.Runner
	logger zerolog.Logger

	life lifecycle

	readMu sync.Mutex
	// r is the per-read scratch state, reset at the start of every Read.
	r accumulator
}

// New wraps an established transport connection into a Socket. The socket
// takes unique ownership of conn; the caller must eventually Close the
// socket, exactly once.
func New(conn Conn, opts ...Option) (*Socket, error) {
	if conn == nil {
		return nil, ErrNilConn
	}

	var opt options
	for _, o := range opts {
		o(&opt)
	}
	checkOptions(&opt)

	s := &Socket{
		conn:   conn,
		in:     &inputStream{conn: conn, chunkSize: opt.readChunkSize},
		out:    newOutputStream(conn, opt.writeBufferSize),
		runner: task.NewRunner(),
		logger: *opt.logger,
	}
	runtime.SetFinalizer(s, (*Socket).finalize)
	return s, nil
}

// Connect establishes a TCP connection to addr and wraps it into a Socket.
// Connection errors propagate as they are.
func Connect(ctx context.Context, addr *net.TCPAddr, opts ...Option) (*Socket, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, addr.Network(), addr.String())
	if err != nil {
		return nil, err
	}

	tc := conn.(*net.TCPConn)
	_ = tc.SetNoDelay(true)

	s, err := New(tc, opts...)
	if err != nil {
		_ = tc.Close()
		return nil, err
	}
	s.logger.Debug().Str("addr", tc.RemoteAddr().String()).Msg("connection established")
	return s, nil
}

// finalize catches sockets reclaimed while still open. That is a leak in the
// owner; the transport is released so the process does not bleed descriptors.
func (s *Socket) finalize() {
	if s.life.current() == stateClosed {
		return
	}
	s.logger.Error().Str("addr", addrString(s.conn.RemoteAddr())).
		Msg("socket dropped without close, releasing transport")
	_ = s.conn.Close()
	s.runner.Close()
}

// Read returns exactly n bytes assembled from however many chunks the input
// half delivers, in stream order. n <= 0 completes immediately with an empty
// list and touches neither the stream nor the lifecycle. If the stream ends
// before n bytes arrive, Read fails with ErrReadEOF and exposes no partial
// result. A deadline on ctx bounds the transport reads for the duration of
// the call; a read interrupted before the stream ended puts the chunks it
// already consumed back, so the next read continues the byte sequence
// unbroken.
func (s *Socket) Read(ctx context.Context, n int) (*buffer.List, error) {
	if n <= 0 {
		return new(buffer.List), nil
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	if st := s.life.current(); st != stateOpen {
		return nil, errors.Wrap(stateErr(st), "read")
	}
	defer s.pushReadDeadline(ctx)()

	s.r.reset(n)
	for {
		seg, err := s.in.next(ctx)
		if err == io.EOF {
			return nil, errors.Wrapf(ErrReadEOF, "read %d of %d bytes", n-s.r.remaining, n)
		}
		if err != nil {
			s.unreadConsumed()
			return nil, err
		}
		leftover, done := s.r.consume(seg)
		s.in.unread(leftover)
		if done {
			return s.r.take(), nil
		}
	}
}

// unreadConsumed hands the chunks an interrupted read collected back to the
// input stream, earliest first, so they are not lost to the stream.
func (s *Socket) unreadConsumed() {
	segs := s.r.drain()
	for i := len(segs) - 1; i >= 0; i-- {
		s.in.unread(segs[i])
	}
}

// ReadExactly returns exactly n bytes as one contiguous segment. When the
// next incoming chunk already holds at least n bytes the result shares its
// storage without copying; otherwise the bytes are gathered into a fresh
// segment. n <= 0 completes immediately with an empty segment; end of stream
// before n bytes fails with ErrReadEOF.
func (s *Socket) ReadExactly(ctx context.Context, n int) (buffer.Segment, error) {
	if n <= 0 {
		return buffer.Segment{}, nil
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	if st := s.life.current(); st != stateOpen {
		return buffer.Segment{}, errors.Wrap(stateErr(st), "read")
	}
	defer s.pushReadDeadline(ctx)()

	seg, err := s.in.readExactly(ctx, n)
	if err == io.EOF {
		return buffer.Segment{}, errors.Wrapf(ErrReadEOF, "read exactly %d bytes", n)
	}
	if err != nil {
		return buffer.Segment{}, err
	}
	return seg, nil
}

// Write enqueues bl onto the buffered output half. Delivery to the peer is
// not guaranteed until a flush. The list's segments go out in order without
// being copied into an intermediate form.
func (s *Socket) Write(ctx context.Context, bl *buffer.List) error {
	return s.output(ctx, "write", func() error { return s.out.write(bl) })
}

// Flush forces buffered output onto the transport.
func (s *Socket) Flush(ctx context.Context) error {
	return s.output(ctx, "flush", func() error { return s.out.flush() })
}

// WriteFlush writes bl and flushes in one step, completing only once the
// flush has.
func (s *Socket) WriteFlush(ctx context.Context, bl *buffer.List) error {
	return s.output(ctx, "write-flush", func() error {
		if err := s.out.write(bl); err != nil {
			return err
		}
		return s.out.flush()
	})
}

// output runs one operation of the write path on the socket's runner, so
// writes and flushes never interleave with each other or with the final
// flush of Close.
func (s *Socket) output(ctx context.Context, op string, fn func() error) error {
	if st := s.life.current(); st != stateOpen {
		return errors.Wrap(stateErr(st), op)
	}

	err := s.runner.Do(ctx, func() error {
		defer s.pushWriteDeadline(ctx)()
		return fn()
	})
	if err == task.ErrRunnerClosed {
		// Close won the race between our state check and the submit.
		return errors.Wrap(ErrClosed, op)
	}
	return errors.Wrap(err, op)
}

// Shutdown immediately disables both stream halves: pending and later reads
// and writes fail instead of blocking. It is this layer's cancellation
// primitive and may be called exactly once; a second call is a contract
// violation reported as an UnrecoverableError. Shutdown does not release the
// transport; Close still must follow.
func (s *Socket) Shutdown() error {
	if err := s.life.shutdown(); err != nil {
		return err
	}
	s.logger.Debug().Str("addr", addrString(s.conn.RemoteAddr())).Msg("socket shutdown")

	// Straight to the transport rather than through the runner: shutdown
	// has to cut through an output path blocked mid-write.
	rerr := s.conn.CloseRead()
	werr := s.conn.CloseWrite()
	if rerr != nil {
		return errors.Wrap(rerr, "shutdown input")
	}
	return errors.Wrap(werr, "shutdown output")
}

// ForceShutdownIn disables only the input half, bypassing the once-only
// lifecycle accounting. Reserved for harnesses that need to provoke
// half-closed states.
func (s *Socket) ForceShutdownIn() {
	_ = s.conn.CloseRead()
}

// ForceShutdownOut disables only the output half, bypassing the once-only
// lifecycle accounting. Reserved for harnesses that need to provoke
// half-closed states.
func (s *Socket) ForceShutdownOut() {
	_ = s.conn.CloseWrite()
}

// Close flushes and shuts down the output half, then releases the
// transport, which takes the input half down with it. It may be called
// exactly once; a second call is a contract violation reported as an
// UnrecoverableError.
//
// Output-half errors that a torn-down peer legitimately produces, broken
// pipe and connection reset, are swallowed. Any other teardown error comes
// back as an UnrecoverableError for the caller's supervisor to act on.
// Close after Shutdown is legal and does not re-shut the output half.
func (s *Socket) Close() error {
	wasShutdown, err := s.life.close()
	if err != nil {
		return err
	}

	terr := s.runner.Do(context.Background(), func() error {
		return s.teardown(wasShutdown)
	})
	s.runner.Close()
	runtime.SetFinalizer(s, nil)
	return terr
}

// teardown flushes and shuts the output half, then releases the transport,
// taking the input half down with it. The input half has no close step of
// its own, so normal peer-initiated teardown cannot produce an input-side
// errno. Runs on the socket's runner so no output operation can interleave
// with the final flush.
func (s *Socket) teardown(wasShutdown bool) error {
	var err error
	if cerr := s.out.close(wasShutdown); cerr != nil {
		if isBenignCloseError(cerr) {
			s.logger.Debug().Err(cerr).Msg("benign error closing output half")
		} else {
			s.logger.Error().Err(cerr).Msg("unexpected error closing output half")
			err = unrecoverable("output close", cerr)
		}
	}
	if cerr := s.conn.Close(); cerr != nil {
		s.logger.Error().Err(cerr).Msg("unexpected error releasing transport")
		if err == nil {
			err = unrecoverable("transport release", cerr)
		}
	}
	return err
}

// LocalAddr returns the local address of the transport connection.
func (s *Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// RemoteAddr returns the peer address of the transport connection.
func (s *Socket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// pushReadDeadline propagates a ctx deadline to the transport's read half
// and returns the function that clears it again.
func (s *Socket) pushReadDeadline(ctx context.Context) func() {
	d, ok := ctx.Deadline()
	if !ok {
		return func() {}
	}
	_ = s.conn.SetReadDeadline(d)
	return func() { _ = s.conn.SetReadDeadline(time.Time{}) }
}

// pushWriteDeadline propagates a ctx deadline to the transport's write half
// and returns the function that clears it again.
func (s *Socket) pushWriteDeadline(ctx context.Context) func() {
	d, ok := ctx.Deadline()
	if !ok {
		return func() {}
	}
	_ = s.conn.SetWriteDeadline(d)
	return func() { _ = s.conn.SetWriteDeadline(time.Time{}) }
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
