// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package ws

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestServerClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type packet struct {
		data []byte
		addr net.Addr
	}

	incoming := make(chan packet, 4)

	srv := NewServer(func(data []byte, addr net.Addr) {
		incoming <- packet{data: data, addr: addr}
	})

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http")

	cli, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	received := make(chan []byte, 4)
	listenCtx, listenCancel := context.WithCancel(ctx)
	listenDone := make(chan error, 1)
	go func() {
		listenDone <- cli.Listen(listenCtx, func(data []byte) {
			received <- data
		})
	}()

	if err := cli.Send([]byte{1, 2, 3}); err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	var p packet
	select {
	case p = <-incoming:
	case <-ctx.Done():
		t.Fatalf("server received nothing")
	}

	if string(p.data) != string([]byte{1, 2, 3}) {
		t.Errorf("unexpected data: %v", p.data)
	}

	if err := srv.Send([]byte{4, 5}, p.addr); err != nil {
		t.Fatalf("failed to reply: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != string([]byte{4, 5}) {
			t.Errorf("unexpected reply: %v", data)
		}
	case <-ctx.Done():
		t.Fatalf("client received nothing")
	}

	unknown := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 1}
	if err := srv.Send([]byte{0}, unknown); !errors.Is(err, ErrUnknownPeer) {
		t.Errorf("expected unknown peer error, got %v", err)
	}

	listenCancel()
	if err := <-listenDone; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancelled, got %v", err)
	}

	_ = cli.Close()

	srv.Close()
	if err := srv.Send([]byte{0}, p.addr); !errors.Is(err, ErrClosed) {
		t.Errorf("expected closed error, got %v", err)
	}
}
