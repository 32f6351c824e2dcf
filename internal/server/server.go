// Package server accepts TLS connections and answers one Gemini request
// per connection out of an embedded zip archive.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/geminizip/geminizip/internal/gemini"
	"github.com/geminizip/geminizip/internal/zipfile"
)

// Defaults for the connection lifecycle.
const (
	// DefaultDeadline bounds a whole connection, handshake to close.
	DefaultDeadline = 10 * time.Minute

	// DefaultHandshakeTimeout bounds the TLS handshake alone.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultMaxConns caps concurrently served connections.
	DefaultMaxConns = 512
)

// Server serves Gemini requests from an immutable archive.
//
// The archive and TLS identity are fixed at construction and shared
// read-only by every connection, so the serving path takes no locks.
type Server struct {
	archive          *zipfile.Archive
	tlsConfig        *tls.Config
	indexDocument    string
	deadline         time.Duration
	handshakeTimeout time.Duration
	maxConns         int64
	logger           *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for connection-level events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithIndexDocument sets the file name served for directory requests.
func WithIndexDocument(name string) Option {
	return func(s *Server) {
		s.indexDocument = name
	}
}

// WithDeadline sets the absolute per-connection deadline.
func WithDeadline(d time.Duration) Option {
	return func(s *Server) {
		s.deadline = d
	}
}

// WithHandshakeTimeout bounds the TLS handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.handshakeTimeout = d
	}
}

// WithMaxConns caps the number of concurrently served connections.
func WithMaxConns(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// New creates a Server for the given archive and TLS identity.
func New(archive *zipfile.Archive, tlsConfig *tls.Config, opts ...Option) *Server {
	s := &Server{
		archive:          archive,
		tlsConfig:        tlsConfig,
		indexDocument:    DefaultIndexDocument,
		deadline:         DefaultDeadline,
		handshakeTimeout: DefaultHandshakeTimeout,
		maxConns:         DefaultMaxConns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Serve accepts connections on ln until ctx is canceled or the listener
// fails, running each connection in its own goroutine. Connections are
// causally independent; a failure in one never affects another.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	sem := semaphore.NewWeighted(s.maxConns)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return nil
		}
		go func() {
			defer sem.Release(1)
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn runs the single request/response cycle of one connection.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// One absolute deadline covers the whole exchange; Gemini has no
	// resumption semantics, so an expired connection is simply dropped.
	if err := conn.SetDeadline(time.Now().Add(s.deadline)); err != nil {
		s.log().Warn("set deadline", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	tc := tls.Server(conn, s.tlsConfig)
	hctx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	err := tc.HandshakeContext(hctx)
	cancel()
	if err != nil {
		s.log().Debug("tls handshake failed", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	resp := s.respond(tc)
	if resp == nil {
		// The transport failed before a request arrived; there is nobody
		// left to answer.
		return
	}
	defer resp.Close()

	if err := gemini.WriteResponse(tc, resp); err != nil {
		// The status line may already be out; closing the raw connection
		// without close_notify tells the client the response was cut short.
		s.log().Warn("write response", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	if err := tc.Close(); err != nil {
		s.log().Debug("close connection", "remote", conn.RemoteAddr(), "error", err)
	}
}

// respond reads and answers the request line. It returns nil when the
// request could not be read at all; an over-long line is still answered,
// since the transport remains usable.
func (s *Server) respond(tc *tls.Conn) *gemini.Response {
	line, err := gemini.ReadRequestLine(tc)
	switch {
	case errors.Is(err, gemini.ErrRequestTooLong):
		s.log().Debug("request too long", "remote", tc.RemoteAddr())
		return gemini.Failure(gemini.StatusBadRequest, "request line too long")
	case err != nil:
		s.log().Debug("request read failed", "remote", tc.RemoteAddr(), "error", err)
		return nil
	}

	req, err := gemini.ParseRequest(line)
	if err != nil {
		var se *gemini.StatusError
		if errors.As(err, &se) {
			s.log().Debug("request rejected", "remote", tc.RemoteAddr(), "line", line, "status", int(se.Status))
			return gemini.Failure(se.Status, se.Meta)
		}
		return gemini.Failure(gemini.StatusBadRequest, "bad request")
	}

	resp := s.resolve(req.Path)
	s.log().Debug("request resolved", "remote", tc.RemoteAddr(), "path", req.Path, "status", int(resp.Status))
	return resp
}
