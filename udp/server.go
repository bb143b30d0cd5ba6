// Copyright (c) 2023, 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package udp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

var _ = interface {
	Listen(ctx context.Context, port int, processFn func([]byte, net.UDPAddr) []byte) error
	ListenAddr(ctx context.Context, addr *net.UDPAddr, processFn func(data []byte, addr net.UDPAddr) []byte) error
	Send(data []byte, addr net.Addr) error
	Addr() net.Addr
}((*Server)(nil))

const durBreakDefault = 5 * time.Second

// bufferSize is larger than message.MaxMessageSize so oversized datagrams are read whole and rejected by the caller.
const bufferSize = 4 << 10

type Server struct {
	connection  *net.UDPConn
	durBreak    time.Duration
	dscp        int
	handleError func(error)
	ready       chan struct{}
	readyOnce   sync.Once
	mx          sync.Mutex
}

func NewServer() *Server {
	return &Server{
		durBreak: durBreakDefault,
		handleError: func(err error) {
			slog.Error("udp server", "err", err)
		},
		ready: make(chan struct{}),
	}
}

func (s *Server) SetHandleError(handleError func(error)) {
	if handleError == nil {
		s.handleError = func(err error) {
			slog.Error("udp server", "err", err)
		}
		return
	}

	s.handleError = handleError
}

func (s *Server) SetBreakPeriod(durBreak time.Duration) {
	if durBreak <= 0 {
		s.durBreak = durBreakDefault
		return
	}

	s.durBreak = durBreak
}

// SetDSCP sets the code point applied to the connection when listening starts.
func (s *Server) SetDSCP(dscp int) {
	s.dscp = dscp
}

func (s *Server) Listen(ctx context.Context, port int, processFn func(data []byte, addr net.UDPAddr) []byte) error {
	addr := &net.UDPAddr{
		IP:   nil,
		Port: port,
	}

	return s.ListenAddr(ctx, addr, processFn)
}

// ListenAddr reads datagrams until the context is cancelled. The data slice passed to processFn
// is reused for the next datagram, so processFn must copy it if it keeps it.
// A non-nil response returned by processFn is sent back to the origin.
func (s *Server) ListenAddr(ctx context.Context, addr *net.UDPAddr, processFn func(data []byte, addr net.UDPAddr) []byte) (err error) {
	connection, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("udp server: failed to listen: %w", FailedToStartError{err})
	}

	if err := SetDSCP(connection, s.dscp); err != nil {
		_ = connection.Close()
		return fmt.Errorf("udp server: %w", FailedToStartError{err})
	}

	s.mx.Lock()
	s.connection = connection
	s.mx.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })

	defer func() {
		s.mx.Lock()
		s.connection = nil
		s.mx.Unlock()

		errClose := connection.Close()
		if errClose != nil {
			errClose = fmt.Errorf("udp server: failed to close listener: %w", errClose)
			if err == nil {
				err = errClose
			}
		}
	}()

	if err := connection.SetReadDeadline(time.Now().Add(s.durBreak)); err != nil {
		return fmt.Errorf("udp server: failed to set read deadline: %w", err)
	}

	buffer := [bufferSize]byte{}

	for {
		n, clientAddr, err := connection.ReadFromUDP(buffer[:])
		if errTimeout, ok := err.(net.Error); ok && errTimeout.Timeout() {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := connection.SetReadDeadline(time.Now().Add(s.durBreak)); err != nil {
				return fmt.Errorf("udp server: failed to set read deadline: %w", err)
			}

			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			s.handleError(fmt.Errorf("udp server: failed to listen: %w", err))
			continue
		}

		data := buffer[:n]
		response := processFn(data, *clientAddr)
		if response == nil {
			continue
		}

		if _, err := connection.WriteToUDP(response, clientAddr); err != nil {
			s.handleError(fmt.Errorf("udp server: failed to respond to %s: %w", clientAddr.String(), err))
			continue
		}
	}
}

// Ready returns a channel that is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the local address of the listening connection or nil if the server is not listening.
func (s *Server) Addr() net.Addr {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.connection == nil {
		return nil
	}

	return s.connection.LocalAddr()
}

func (s *Server) Send(data []byte, addr net.Addr) error {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("udp server: unsupported address type %T", addr)
	}

	s.mx.Lock()
	connection := s.connection
	s.mx.Unlock()

	if connection == nil {
		return fmt.Errorf("udp server: connection is nil")
	}

	if _, err := connection.WriteToUDP(data, udpAddr); err != nil {
		err = fmt.Errorf("udp server: failed to send message to %s: %w", udpAddr.String(), err)
		return err
	}

	return nil
}

type FailedToStartError struct {
	inner error
}

func (e FailedToStartError) Error() string { return e.inner.Error() }
func (e FailedToStartError) Unwrap() error { return e.inner }
