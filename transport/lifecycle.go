package transport

import "sync"

// lifecycleState tracks how far a socket has progressed through teardown. A
// socket moves open -> shutdown-requested -> closed, or open -> closed
// directly; each transition happens at most once.
type lifecycleState int

const (
	stateOpen lifecycleState = iota
	stateShutdownRequested
	stateClosed
)

func (s lifecycleState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateShutdownRequested:
		return "shutdown-requested"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// stateErr maps a non-open state to the sentinel operations fail with.
func stateErr(s lifecycleState) error {
	if s == stateClosed {
		return ErrClosed
	}
	return ErrShutdown
}

// lifecycle enforces the once-only shutdown and close contract. Calling a
// transition twice is a bug in the owner, so violations come back as
// UnrecoverableError values rather than plain sentinels.
type lifecycle struct {
	mu    sync.Mutex
	state lifecycleState
}

func (l *lifecycle) current() lifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// shutdown moves open -> shutdown-requested.
func (l *lifecycle) shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateOpen {
		return unrecoverable("shutdown of a "+l.state.String()+" socket", stateErr(l.state))
	}
	l.state = stateShutdownRequested
	return nil
}

// close moves open or shutdown-requested -> closed. wasShutdown reports
// whether a shutdown already ran, letting the caller skip re-shutting the
// stream halves.
func (l *lifecycle) close() (wasShutdown bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == stateClosed {
		return false, unrecoverable("close of a closed socket", ErrClosed)
	}
	wasShutdown = l.state == stateShutdownRequested
	l.state = stateClosed
	return wasShutdown, nil
}
