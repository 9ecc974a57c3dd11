// Package server implements the TCP listener a capturing GUI attaches to
// (spec §4.10): it binds the first free port in a fixed range, accepts
// exactly one client connection at a time, frames outgoing messages with
// wire.EncodeFrame, and resynchronizes incoming bytes with wire.Scanner
// before dispatching Start/Stop/TurnSampling requests into a Core.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	coralerrors "github.com/coral-mesh/pulse/internal/errors"
	"github.com/coral-mesh/pulse/internal/pulse/core"
	"github.com/coral-mesh/pulse/internal/pulse/perrors"
	"github.com/coral-mesh/pulse/internal/pulse/trace"
	"github.com/coral-mesh/pulse/internal/pulse/wire"
	"github.com/coral-mesh/pulse/internal/retry"
)

// PortRangeStart and PortRangeEnd bound the ports the server tries to
// bind, in order, during Listen (spec §4.10).
const (
	PortRangeStart = 31313
	PortRangeEnd   = 31316
)

// Server owns the listening socket and, at most, one live client
// connection. It implements dump.Sender so Core can send framed
// messages directly to whatever client is currently attached.
type Server struct {
	logger zerolog.Logger
	core   *core.Core

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	writer   *bufio.Writer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Server bound to no socket yet; call Listen to start
// accepting connections.
func New(logger zerolog.Logger, c *core.Core) *Server {
	return &Server{
		logger: logger.With().Str("component", "pulse_server").Logger(),
		core:   c,
		stopCh: make(chan struct{}),
	}
}

// Listen binds the first free port in [PortRangeStart, PortRangeEnd] and
// starts the accept loop in the background.
func (s *Server) Listen() error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return perrors.ErrAlreadyConnected
	}
	retryCfg := retry.Config{MaxRetries: 3, InitialBackoff: 20 * time.Millisecond, MaxBackoff: 200 * time.Millisecond}
	var ln net.Listener
	var err error
	for port := PortRangeStart; port <= PortRangeEnd; port++ {
		addr := fmt.Sprintf(":%d", port)
		err = retry.Do(context.Background(), retryCfg, func() error {
			var dialErr error
			ln, dialErr = net.Listen("tcp", addr)
			return dialErr
		}, func(error) bool { return true }) // a just-closed port may still be in TIME_WAIT
		if err == nil {
			break
		}
	}
	if ln == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: tried [%d, %d]", perrors.ErrNoFreePort, PortRangeStart, PortRangeEnd)
	}
	s.listener = ln
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening for capture clients")
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and any live connection, unblocking the
// accept loop.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.listener != nil {
		coralerrors.DeferClose(s.logger, s.listener, "closing listener")
	}
	if s.conn != nil {
		coralerrors.DeferClose(s.logger, s.conn, "closing client connection")
	}
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()
		if ln == nil {
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Debug().Err(err).Msg("accept failed")
				return
			}
		}

		s.mu.Lock()
		if s.conn != nil {
			// Single-client constraint (spec §4.10): refuse the new
			// connection rather than displace the attached one.
			s.mu.Unlock()
			coralerrors.DeferClose(s.logger, conn, "closing refused second connection")
			continue
		}
		s.conn = conn
		s.writer = bufio.NewWriter(conn)
		s.core.SetSender(s)
		s.mu.Unlock()

		// A per-connection id distinguishes overlapping capture sessions in
		// the server's logs, since the single-client slot gets reused by
		// every client that attaches over the server's lifetime.
		sessionID := uuid.New().String()
		s.logger.Info().Str("remote", conn.RemoteAddr().String()).Str("session_id", sessionID).Msg("client attached")
		s.serve(conn, sessionID)
	}
}

// serve reads framed requests off conn until it closes or Stop is
// called, decoding and applying each one against the Core.
func (s *Server) serve(conn net.Conn, sessionID string) {
	scanner := wire.NewScanner()
	buf := make([]byte, 64*1024)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			scanner.Feed(buf[:n])
			for {
				frame, ok := scanner.Next()
				if !ok {
					break
				}
				s.dispatch(frame)
			}
		}
		if err != nil {
			break
		}
	}

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.writer = nil
		s.core.SetSender(nil)
	}
	s.mu.Unlock()
	coralerrors.DeferClose(s.logger, conn, "closing detached connection")
	s.logger.Info().Str("session_id", sessionID).Msg("client detached")
}

func (s *Server) dispatch(f wire.Frame) {
	switch f.Type {
	case wire.TypeStart:
		req, err := wire.DecodeStart(f.Payload)
		if err != nil {
			s.logger.Warn().Err(err).Msg("malformed Start request")
			return
		}
		if req.Password != "" {
			s.core.SetTracePassword(req.Password)
		}
		s.core.StartCapture(trace.Mode(req.Mode))
	case wire.TypeStop:
		s.core.StopCapture()
	case wire.TypeTurnSampling:
		_, err := wire.DecodeTurnSampling(f.Payload)
		if err != nil {
			s.logger.Warn().Err(err).Msg("malformed TurnSampling request")
			return
		}
		// Per-category sampling toggles are a Sampling-mode concern
		// (spec §1 Non-goals excludes the statistical sampler); accepted
		// and parsed for protocol compatibility, otherwise a no-op.
	default:
		s.logger.Debug().Uint16("type", uint16(f.Type)).Msg("unhandled request type")
	}
}

// Send implements dump.Sender: it frames and writes one message to the
// currently attached client, if any. Called from the thread that drives
// Core.NextFrame, never concurrently with itself.
func (s *Server) Send(t wire.MessageType, payload []byte) {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return
	}
	if _, err := w.Write(wire.EncodeResponseEnvelope(wire.ProtocolVersion, t, payload)); err != nil {
		s.logger.Debug().Err(err).Msg("send failed")
		return
	}
	if err := w.Flush(); err != nil {
		s.logger.Debug().Err(err).Msg("flush failed")
	}
}
