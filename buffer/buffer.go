// Package buffer provides the byte containers used by the transport layer:
// Segment, an opaque run of bytes with zero-copy ownership transfer and
// zero-copy sub-range sharing, and List, an append-only ordered sequence of
// segments that assembles a logical byte string without copying its parts.
package buffer

import "io"

// Segment is an opaque run of bytes. The zero value is the empty segment.
//
// A Segment is a small header over an underlying byte array and is passed by
// value. Own and Share never copy bytes; a shared segment stays valid for as
// long as its backing array does, and callers that hand a slice to Own must
// not write to it afterwards.
type Segment struct {
	b []byte
}

// Own takes ownership of b without copying. The caller must not reuse or
// mutate b after the call.
func Own(b []byte) Segment {
	return Segment{b: b}
}

// Copy returns a segment backed by a fresh copy of b. Use it when the caller
// keeps writing to b, for example a reused scratch buffer.
func Copy(b []byte) Segment {
	if len(b) == 0 {
		return Segment{}
	}
	c := make([]byte, len(b))
	copy(c, b)
	return Segment{b: c}
}

// Size returns the number of bytes in the segment.
func (s Segment) Size() int {
	return len(s.b)
}

// Empty reports whether the segment holds no bytes.
func (s Segment) Empty() bool {
	return len(s.b) == 0
}

// Bytes returns the segment's bytes without copying. The result must be
// treated as read-only.
func (s Segment) Bytes() []byte {
	return s.b
}

// Share returns a segment aliasing n bytes of s starting at off, without
// copying. The result is bound to the same backing array as s.
// It panics if the range is out of bounds.
func (s Segment) Share(off, n int) Segment {
	return Segment{b: s.b[off : off+n : off+n]}
}

// TrimFront returns the segment with its first n bytes dropped, aliasing the
// same backing array. It panics if n exceeds the segment size.
func (s Segment) TrimFront(n int) Segment {
	return Segment{b: s.b[n:]}
}

// List is an append-only ordered sequence of segments. Appending moves a
// segment into the list without copying its bytes. The zero value is an empty
// list ready to use.
type List struct {
	segs   []Segment
	length int
}

// Append moves seg to the end of the list. No bytes are copied.
func (l *List) Append(seg Segment) {
	l.segs = append(l.segs, seg)
	l.length += seg.Size()
}

// AppendBytes takes ownership of b and appends it as one segment.
func (l *List) AppendBytes(b []byte) {
	l.Append(Own(b))
}

// Length returns the total number of bytes across all segments.
func (l *List) Length() int {
	return l.length
}

// Count returns the number of segments in the list.
func (l *List) Count() int {
	return len(l.segs)
}

// Segments returns the list's segments in append order, without copying. The
// returned slice is valid until the list is next modified.
func (l *List) Segments() []Segment {
	return l.segs
}

// Clear removes all segments.
func (l *List) Clear() {
	l.segs = nil
	l.length = 0
}

// Bytes returns the list's contents as one contiguous slice, in append order.
// A list holding a single segment returns that segment's bytes without
// copying; otherwise a fresh slice is built. The result must be treated as
// read-only.
func (l *List) Bytes() []byte {
	if len(l.segs) == 1 {
		return l.segs[0].b
	}
	out := make([]byte, 0, l.length)
	for _, seg := range l.segs {
		out = append(out, seg.b...)
	}
	return out
}

// WriteTo writes the segments to w in order without flattening them first.
// It implements io.WriterTo.
func (l *List) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for _, seg := range l.segs {
		if seg.Empty() {
			continue
		}
		n, err := w.Write(seg.b)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
