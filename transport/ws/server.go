// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package ws

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var _ = interface {
	Handler() http.HandlerFunc
	Send(data []byte, addr net.Addr) error
	Close()
}((*Server)(nil))

var (
	ErrUnknownPeer = errors.New("unknown peer")
	ErrClosed      = errors.New("server closed")
)

const (
	outQueueSize = 64
	writeTimeout = time.Second
	readTimeout  = 30 * time.Second
)

// Server accepts websocket connections and exposes them as datagram peers: every binary message is
// one packet and the peer address is the remote address of the connection. Messages are not
// retransmitted by this layer; if a peer's outgoing queue is full the packet is dropped.
type Server struct {
	upgrader  websocket.Upgrader
	processFn func(data []byte, addr net.Addr)

	mx     sync.Mutex
	conns  map[string]*serverConn
	closed bool

	log *slog.Logger
}

type serverConn struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
}

type ServerOption func(*Server)

func WithServerLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

func WithCheckOrigin(fn func(r *http.Request) bool) ServerOption {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// NewServer creates a websocket server. The processFn is called from the connection's read goroutine,
// the data slice is owned by the callee.
func NewServer(processFn func(data []byte, addr net.Addr), opts ...ServerOption) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 << 10,
			WriteBufferSize: 4 << 10,
		},
		processFn: processFn,
		conns:     make(map[string]*serverConn),
		log:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("ws server: upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}

		c := &serverConn{
			conn: conn,
			out:  make(chan []byte, outQueueSize),
			done: make(chan struct{}),
		}

		addr := conn.RemoteAddr()
		key := addr.String()

		s.mx.Lock()
		if s.closed {
			s.mx.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[key] = c
		s.mx.Unlock()

		log := s.log.With("remote", key)
		log.Info("ws server: peer connected")

		defer func() {
			s.mx.Lock()
			if s.conns[key] == c {
				delete(s.conns, key)
			}
			s.mx.Unlock()

			close(c.done)
			_ = conn.Close()

			log.Info("ws server: peer disconnected")
		}()

		go c.write(log)

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

			typ, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug("ws server: read failed", "err", err)
				}
				return
			}

			if typ != websocket.BinaryMessage {
				continue
			}

			s.processFn(data, addr)
		}
	}
}

func (c *serverConn) write(log *slog.Logger) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				log.Debug("ws server: write failed", "err", err)
				_ = c.conn.Close()
				return
			}
		}
	}
}

// Send queues the packet for the peer. The data is copied.
func (s *Server) Send(data []byte, addr net.Addr) error {
	s.mx.Lock()
	closed := s.closed
	c := s.conns[addr.String()]
	s.mx.Unlock()

	if closed {
		return fmt.Errorf("ws server: %w", ErrClosed)
	}

	if c == nil {
		return fmt.Errorf("ws server: %w: %s", ErrUnknownPeer, addr)
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case c.out <- msg:
	case <-c.done:
		return fmt.Errorf("ws server: %w: %s", ErrUnknownPeer, addr)
	default:
		s.log.Warn("ws server: outgoing queue full, packet dropped", "remote", addr.String())
	}

	return nil
}

// Close disconnects all peers.
func (s *Server) Close() {
	s.mx.Lock()
	s.closed = true
	conns := make([]*serverConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mx.Unlock()

	for _, c := range conns {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closed"),
			time.Now().Add(writeTimeout))
		_ = c.conn.Close()
	}
}
