// Package server accepts tocket clients one at a time.
package server

import (
	"context"
	"net"
	"time"

	"github.com/m-lab/go/warnonerror"
	"github.com/m-lab/tocket/logging"
	"github.com/m-lab/tocket/metrics"
	"github.com/m-lab/tocket/tocket/session"
)

// acceptRetryDelay is how long Serve waits after a failed Accept.
const acceptRetryDelay = 50 * time.Millisecond

// Server runs sessions sequentially: the next client is accepted only once
// the previous session has closed its connection.
type Server struct {
	cfg session.Config
}

// New creates a Server whose sessions use |cfg|.
func New(cfg session.Config) *Server {
	return &Server{cfg: cfg}
}

// Serve accepts connections from |ln| and runs one session at a time until
// |ctx| is canceled. Connections accepted by |ln| must implement
// session.Conn, as *magic.Conn does. Serve closes |ln| before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Close the listener when the context is canceled, so that context
	// cancellation interrupts the Accept() call.
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
		}
		ln.Close()
	}()
	for ctx.Err() == nil {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			metrics.AcceptErrors.Inc()
			logging.Logger.WithError(err).Warn("server: accept failed")
			select {
			case <-time.After(acceptRetryDelay):
			case <-ctx.Done():
			}
			continue
		}
		s.handle(ctx, conn)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger.Errorf("server: recovered from panic in session: %v", r)
		}
	}()
	sc, ok := conn.(session.Conn)
	if !ok {
		logging.Logger.Errorf("server: unsupported conn type: %T", conn)
		warnonerror.Close(conn, "server: cannot close connection")
		return
	}
	if _, err := session.Do(ctx, sc, s.cfg); err != nil {
		logging.Logger.WithError(err).Warn("server: session failed")
	}
}
