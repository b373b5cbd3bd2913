package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestIsUnrecoverable(t *testing.T) {
	plain := errors.New("plain")
	if IsUnrecoverable(plain) {
		t.Error("plain error classified as unrecoverable")
	}
	if IsUnrecoverable(nil) {
		t.Error("nil classified as unrecoverable")
	}

	ue := unrecoverable("broken contract", nil)
	if !IsUnrecoverable(ue) {
		t.Error("UnrecoverableError not detected")
	}

	wrapped := fmt.Errorf("outer: %w", ue)
	if !IsUnrecoverable(wrapped) {
		t.Error("wrapped UnrecoverableError not detected")
	}
}

func TestUnrecoverableError_Error(t *testing.T) {
	ue := unrecoverable("close of a closed socket", nil)
	if got := ue.Error(); got != "unrecoverable: close of a closed socket" {
		t.Errorf("Error() = %q", got)
	}

	withCause := unrecoverable("output close", syscall.EBADF)
	want := "unrecoverable: output close: bad file descriptor"
	if got := withCause.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUnrecoverableError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	ue := unrecoverable("teardown", cause)
	if !errors.Is(ue, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestIsBenignCloseError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"broken pipe", syscall.EPIPE, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"wrapped broken pipe", &net.OpError{
			Op:  "write",
			Net: "tcp",
			Err: os.NewSyscallError("write", syscall.EPIPE),
		}, true},
		{"bad descriptor", syscall.EBADF, false},
		{"eof", io.EOF, false},
		{"plain", errors.New("boom"), false},
	}
	for _, c := range cases {
		if got := isBenignCloseError(c.err); got != c.want {
			t.Errorf("%s: isBenignCloseError = %v, want %v", c.name, got, c.want)
		}
	}
}
