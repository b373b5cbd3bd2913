package transport

import (
	"bufio"
	"context"
	"io"

	"github.com/gammazero/deque"
	"github.com/pkg/errors"

	"github.com/penglaiyxy/ceph/buffer"
)

// inputStream is the read half of a socket. It turns the transport's chunk
// deliveries into segments and keeps the unconsumed suffix of an
// overshooting chunk pending, so successive reads observe one gapless byte
// sequence no matter how the transport framed its deliveries.
type inputStream struct {
	conn      Conn
	chunkSize int

	// pending holds put-back segments, consumed front first before any new
	// transport read.
	pending deque.Deque[buffer.Segment]
	eof     bool
}

// next returns the next non-empty segment: the front put-back when one
// exists, otherwise one fresh chunk from the transport. End of stream is
// reported as io.EOF and is sticky.
func (in *inputStream) next(ctx context.Context) (buffer.Segment, error) {
	if in.pending.Len() > 0 {
		return in.pending.PopFront(), nil
	}
	if in.eof {
		return buffer.Segment{}, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return buffer.Segment{}, err
		}
		chunk := make([]byte, in.chunkSize)
		n, err := in.conn.Read(chunk)
		if n > 0 {
			// Deliver the bytes; a non-EOF error will recur on the next
			// call against the same broken transport.
			if err == io.EOF {
				in.eof = true
			}
			return buffer.Own(chunk[:n]), nil
		}
		if err == io.EOF {
			in.eof = true
			return buffer.Segment{}, io.EOF
		}
		if err != nil {
			return buffer.Segment{}, errors.Wrap(err, "transport read")
		}
	}
}

// unread returns a segment to the stream; the next read sees it first.
func (in *inputStream) unread(seg buffer.Segment) {
	if !seg.Empty() {
		in.pending.PushFront(seg)
	}
}

// readExactly returns exactly n contiguous bytes. When the next segment
// already holds them the result shares its storage; otherwise the bytes are
// gathered into a fresh segment. Overshoot goes back to the stream, as do
// the bytes of a gather interrupted before the stream ended.
func (in *inputStream) readExactly(ctx context.Context, n int) (buffer.Segment, error) {
	seg, err := in.next(ctx)
	if err != nil {
		return buffer.Segment{}, err
	}
	if seg.Size() == n {
		return seg, nil
	}
	if seg.Size() > n {
		head := seg.Share(0, n)
		in.unread(seg.TrimFront(n))
		return head, nil
	}

	out := make([]byte, n)
	filled := copy(out, seg.Bytes())
	for filled < n {
		seg, err = in.next(ctx)
		if err != nil {
			if err != io.EOF {
				in.unread(buffer.Own(out[:filled]))
			}
			return buffer.Segment{}, err
		}
		c := copy(out[filled:], seg.Bytes())
		filled += c
		if c < seg.Size() {
			in.unread(seg.TrimFront(c))
		}
	}
	return buffer.Own(out), nil
}

// outputStream is the write half of a socket: a buffered writer over the
// transport. Data sits in the buffer until flushed.
type outputStream struct {
	conn Conn
	w    *bufio.Writer
}

func newOutputStream(conn Conn, size int) *outputStream {
	return &outputStream{conn: conn, w: bufio.NewWriterSize(conn, size)}
}

// write appends the list's segments to the buffer in order, without copying
// them into an intermediate form.
func (out *outputStream) write(bl *buffer.List) error {
	_, err := bl.WriteTo(out.w)
	return err
}

// flush forces buffered output onto the transport.
func (out *outputStream) flush() error {
	return out.w.Flush()
}

// close flushes whatever is still buffered and shuts down the output half,
// unless a socket-wide shutdown already did. The final flush against a
// torn-down peer is where broken-pipe and connection-reset surface.
func (out *outputStream) close(alreadyShut bool) error {
	err := out.w.Flush()
	if !alreadyShut {
		if cerr := out.conn.CloseWrite(); err == nil {
			err = cerr
		}
	}
	return err
}
