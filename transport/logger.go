package transport

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultLogger returns the process-wide zerolog logger. Sockets log through
// it unless WithLogger overrides the choice.
func defaultLogger() zerolog.Logger {
	return log.Logger
}
