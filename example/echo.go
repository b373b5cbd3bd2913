package main

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/penglaiyxy/ceph/buffer"
	"github.com/penglaiyxy/ceph/transport"
)

// frame prefixes payload with a 4-byte big-endian length. Framing lives
// above the socket: the socket only moves exactly sized byte ranges, so the
// protocol decides where messages begin and end.
func frame(payload []byte) *buffer.List {
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, uint32(len(payload)))

	var bl buffer.List
	bl.AppendBytes(hdr)
	bl.AppendBytes(payload)
	return &bl
}

// readFrame reads one length-prefixed message: the fixed header via
// ReadExactly, then exactly the announced number of payload bytes.
func readFrame(ctx context.Context, s *transport.Socket) ([]byte, error) {
	hdr, err := s.ReadExactly(ctx, 4)
	if err != nil {
		return nil, err
	}

	n := int(binary.BigEndian.Uint32(hdr.Bytes()))
	body, err := s.Read(ctx, n)
	if err != nil {
		return nil, err
	}
	return body.Bytes(), nil
}

// echoServer echoes every frame back to its sender.
type echoServer struct {
	logger zerolog.Logger
}

func (e *echoServer) Handle(s *transport.Socket, peer *net.TCPAddr) {
	logger := e.logger.With().Str("peer", peer.String()).Logger()
	defer func() {
		if err := s.Close(); err != nil {
			if transport.IsUnrecoverable(err) {
				logger.Fatal().Err(err).Msg("socket teardown failed")
			}
			logger.Error().Err(err).Msg("close error")
		}
	}()

	ctx := context.Background()
	for {
		payload, err := readFrame(ctx, s)
		if err != nil {
			if errors.Is(err, transport.ErrReadEOF) {
				logger.Info().Msg("peer finished")
				return
			}
			logger.Error().Err(err).Msg("read error")
			return
		}

		if err := s.WriteFlush(ctx, frame(payload)); err != nil {
			logger.Error().Err(err).Msg("write error")
			return
		}
	}
}

func runClient(ctx context.Context, addr *net.TCPAddr, logger zerolog.Logger) error {
	s, err := transport.Connect(ctx, addr, transport.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			if transport.IsUnrecoverable(err) {
				logger.Fatal().Err(err).Msg("client teardown failed")
			}
			logger.Error().Err(err).Msg("close error")
		}
	}()

	for _, text := range []string{"hello", "exactly sized", "goodbye"} {
		if err := s.WriteFlush(ctx, frame([]byte(text))); err != nil {
			return err
		}

		echo, err := readFrame(ctx, s)
		if err != nil {
			return err
		}
		logger.Info().Str("sent", text).Str("echo", string(echo)).Msg("round trip")
	}
	return nil
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:12345")
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve failed")
	}

	lis, err := transport.Listen(addr, transport.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("listen failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return lis.Serve(ctx, &echoServer{logger: logger})
	})
	g.Go(func() error {
		// Stopping the client stops the server loop with it.
		defer cancel()
		return runClient(ctx, lis.Addr().(*net.TCPAddr), logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("echo run failed")
	}
	if err := lis.Close(); err != nil {
		logger.Error().Err(err).Msg("listener close error")
	}
}
