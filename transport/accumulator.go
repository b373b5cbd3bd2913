package transport

import "github.com/penglaiyxy/ceph/buffer"

// accumulator assembles incoming segments into a result list against a
// remaining-byte budget. A segment that fits is moved into the list whole; a
// segment that overshoots contributes an aliasing sub-range and hands the
// untouched suffix back so the stream can replay it on the next read. No
// byte is ever copied, duplicated or dropped on the way through.
type accumulator struct {
	list      buffer.List
	remaining int
}

// reset clears the scratch list and arms the accumulator for n bytes.
func (a *accumulator) reset(n int) {
	a.list.Clear()
	a.remaining = n
}

// consume folds one segment into the result. done reports that the budget is
// met; a non-empty leftover is the suffix the caller must return to the
// stream.
func (a *accumulator) consume(seg buffer.Segment) (leftover buffer.Segment, done bool) {
	if seg.Size() <= a.remaining {
		a.remaining -= seg.Size()
		a.list.Append(seg)
		return buffer.Segment{}, a.remaining == 0
	}
	if a.remaining > 0 {
		a.list.Append(seg.Share(0, a.remaining))
		seg = seg.TrimFront(a.remaining)
		a.remaining = 0
	}
	return seg, true
}

// take moves the assembled list out, leaving the accumulator empty.
func (a *accumulator) take() *buffer.List {
	bl := a.list
	a.list = buffer.List{}
	return &bl
}

// drain moves the segments collected so far out of an interrupted
// accumulation, in the order they were consumed, leaving the accumulator
// empty.
func (a *accumulator) drain() []buffer.Segment {
	segs := a.list.Segments()
	a.list = buffer.List{}
	a.remaining = 0
	return segs
}
