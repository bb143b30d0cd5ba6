// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var _ = interface {
	Listen(ctx context.Context, processFn func(data []byte)) error
	Send(data []byte) error
	Close() error
}((*Client)(nil))

type Client struct {
	conn *websocket.Conn
	mx   sync.Mutex
}

// Dial connects to a websocket server, url is in the form ws://host:port/path.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws client: failed to dial: %w", err)
	}

	return &Client{conn: conn}, nil
}

// Listen reads messages until the context is cancelled or the connection fails.
func (c *Client) Listen(ctx context.Context, processFn func(data []byte)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ws client: failed to read message: %w", err)
		}

		if typ != websocket.BinaryMessage {
			continue
		}

		processFn(data)
	}
}

func (c *Client) Send(data []byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("ws client: failed to send message: %w", err)
	}

	return nil
}

func (c *Client) Close() error {
	c.mx.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.mx.Unlock()

	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("ws client: failed to close: %w", err)
	}

	return nil
}
