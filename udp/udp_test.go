// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package udp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestServerClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := NewServer()
	srv.SetBreakPeriod(50 * time.Millisecond)

	srvDone := make(chan error, 1)
	go func() {
		srvDone <- srv.ListenAddr(ctx, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, func(data []byte, addr net.UDPAddr) []byte {
			return append([]byte("echo:"), data...)
		})
	}()

	select {
	case <-srv.Ready():
	case err := <-srvDone:
		t.Fatalf("server failed to start: %v", err)
	}

	serverAddr := *srv.Addr().(*net.UDPAddr)

	cli := NewClient(serverAddr)
	cli.SetBreakPeriod(50 * time.Millisecond)
	if err := cli.Connect(); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	received := make(chan []byte, 1)
	cliCtx, cliCancel := context.WithCancel(ctx)
	cliDone := make(chan error, 1)
	go func() {
		cliDone <- cli.Listen(cliCtx, func(data []byte) {
			select {
			case received <- bytes.Clone(data):
			default:
			}
		})
	}()

	if err := cli.Send([]byte("ping")); err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	select {
	case data := <-received:
		if want := "echo:ping"; string(data) != want {
			t.Errorf("expected %q, got %q", want, data)
		}
	case <-ctx.Done():
		t.Fatalf("no response")
	}

	if err := srv.Send([]byte("push"), cli.LocalAddr()); err != nil {
		t.Fatalf("failed to push: %v", err)
	}

	select {
	case data := <-received:
		if want := "push"; string(data) != want {
			t.Errorf("expected %q, got %q", want, data)
		}
	case <-ctx.Done():
		t.Fatalf("no pushed message")
	}

	cliCancel()
	if err := <-cliDone; !errors.Is(err, context.Canceled) {
		t.Errorf("client listen should end with context cancelled, got %v", err)
	}

	cancel()
	if err := <-srvDone; !errors.Is(err, context.Canceled) {
		t.Errorf("server listen should end with context cancelled, got %v", err)
	}

	if srv.Addr() != nil {
		t.Errorf("address should be cleared after the server stops")
	}
}

func TestSetDSCP(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer conn.Close()

	if err := SetDSCP(conn, 64); !errors.Is(err, ErrInvalidDSCP) {
		t.Errorf("expected invalid DSCP error, got %v", err)
	}

	if err := SetDSCP(conn, DSCPExpedited); err != nil {
		t.Skipf("platform does not allow setting DSCP: %v", err)
	}

	dscp, err := DSCP(conn)
	if err != nil {
		t.Fatalf("failed to read DSCP: %v", err)
	}
	if dscp != DSCPExpedited {
		t.Errorf("expected DSCP %d, got %d", DSCPExpedited, dscp)
	}
}
