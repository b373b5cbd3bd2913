package transport

import "github.com/rs/zerolog"

const (
	// defaultReadChunkSize is how many bytes a single transport read may
	// deliver into the input stream.
	defaultReadChunkSize = 8192

	// defaultWriteBufferSize sizes the output stream's buffer. The bufio
	// default of 4 KiB is small enough to fragment bulk writes, so the
	// output half uses 64 KiB unless configured otherwise.
	defaultWriteBufferSize = 64 * 1024
)

// options holds the configuration for a socket.
type options struct {
	logger          *zerolog.Logger
	readChunkSize   int
	writeBufferSize int
}

// Option is a function that configures socket options.
type Option func(*options)

// WithLogger returns an Option that sets the logger. If not set, the
// process-wide zerolog logger is used.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithReadChunkSize returns an Option that sets the size of the chunks read
// from the transport's input half. Values of zero or less select the
// default.
func WithReadChunkSize(size int) Option {
	return func(o *options) {
		o.readChunkSize = size
	}
}

// WithWriteBufferSize returns an Option that sets the size of the buffered
// output half. Values of zero or less select the default.
func WithWriteBufferSize(size int) Option {
	return func(o *options) {
		o.writeBufferSize = size
	}
}

// checkOptions fills in default values for anything left unset.
func checkOptions(opts *options) {
	if opts.logger == nil {
		logger := defaultLogger()
		opts.logger = &logger
	}
	if opts.readChunkSize <= 0 {
		opts.readChunkSize = defaultReadChunkSize
	}
	if opts.writeBufferSize <= 0 {
		opts.writeBufferSize = defaultWriteBufferSize
	}
}
