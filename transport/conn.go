package transport

import (
	"net"
	"time"
)

// Conn is the transport contract a Socket drives: one connected byte stream
// decomposed into two independently shutdownable half-duplex sides plus a
// final release of the underlying resource. *net.TCPConn satisfies it; tests
// substitute scripted implementations.
//
// The Socket takes unique ownership of its Conn and is the only caller of
// these methods after construction.
type Conn interface {
	// Read delivers the next chunk of the input half, with the usual
	// io.Reader semantics.
	Read(p []byte) (int, error)
	// Write appends to the output half.
	Write(p []byte) (int, error)
	// CloseRead shuts down the input half; pending and later reads fail.
	CloseRead() error
	// CloseWrite shuts down the output half; pending and later writes fail.
	CloseWrite() error
	// Close releases the connection.
	Close() error
	// LocalAddr returns the local endpoint address.
	LocalAddr() net.Addr
	// RemoteAddr returns the peer endpoint address.
	RemoteAddr() net.Addr
	// SetReadDeadline bounds pending and future reads.
	SetReadDeadline(t time.Time) error
	// SetWriteDeadline bounds pending and future writes.
	SetWriteDeadline(t time.Time) error
}

var _ Conn = (*net.TCPConn)(nil)
