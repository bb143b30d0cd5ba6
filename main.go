// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marko-gacesa/udpsync/transport/ws"
	"github.com/marko-gacesa/udpsync/udp"
	"github.com/marko-gacesa/udpsync/udpsync"
	"github.com/marko-gacesa/udpsync/udpsync/client"
	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/config"
	"github.com/marko-gacesa/udpsync/udpsync/game"
	"github.com/marko-gacesa/udpsync/udpsync/replay"
	"github.com/marko-gacesa/udpsync/udpsync/server"
)

const (
	defaultPort = 45286
	wsPath      = "/sync"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error

	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "server":
		err = runServer(ctx, args)
	case "client":
		err = runClient(ctx, args)
	case "replay":
		err = runReplay(args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: udpsync server|client|replay [flags]")
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// ignoreCancel treats the end of the context as a normal shutdown.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runServer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration")
	port := fs.Int("port", defaultPort, "UDP port")
	wsAddr := fs.String("ws", "", "serve WebSocket clients on this address instead of UDP, e.g. :8080")
	debug := fs.Bool("debug", false, "debug logging")
	_ = fs.Parse(args)

	log := newLogger(*debug)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	opts := append(cfg.ServerOptions(log), server.WithPeerCallback(func(info udpsync.PeerInfo, event udpsync.PeerEvent) {
		log.Info("peer", "event", event.String(), "token", info.Token, "name", info.Name, "addr", info.Addr)
	}))

	if cfg.ReplayPath != "" {
		w, err := replay.Create(cfg.ReplayPath)
		if err != nil {
			return fmt.Errorf("failed to create replay file: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Error("failed to close replay file", "err", err)
			}
			log.Info("replay saved", "path", cfg.ReplayPath, "frames", w.Count())
		}()
		opts = append(opts, server.WithRecorder(w))
	}

	g, ctx := errgroup.WithContext(ctx)

	var srv *server.Server

	if *wsAddr != "" {
		wsSrv := ws.NewServer(func(data []byte, addr net.Addr) {
			srv.HandleIncomingMessage(data, addr)
		}, ws.WithServerLogger(log))

		srv = server.New(wsSrv, game.New(cfg.Step()), nil, opts...)

		mux := http.NewServeMux()
		mux.Handle(wsPath, wsSrv.Handler())

		httpSrv := &http.Server{
			Addr:              *wsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info("websocket server listening", "addr", *wsAddr, "path", wsPath)
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			wsSrv.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	} else {
		udpSrv := udp.NewServer()
		udpSrv.SetDSCP(cfg.DSCP)
		udpSrv.SetHandleError(func(err error) {
			log.Warn("udp server error", "err", err)
		})

		srv = server.New(udpSrv, game.New(cfg.Step()), nil, opts...)

		g.Go(func() error {
			log.Info("udp server listening", "port", *port, "dscp", cfg.DSCP)
			return ignoreCancel(udpSrv.Listen(ctx, *port, func(data []byte, addr net.UDPAddr) []byte {
				srv.HandleIncomingMessage(data, &addr)
				return nil
			}))
		})
	}

	g.Go(func() error {
		return srv.Start(ctx)
	})

	return g.Wait()
}

// clientTransport is the client side of either the UDP or the WebSocket connection.
type clientTransport interface {
	Listen(ctx context.Context, processFn func(data []byte)) error
	Send(data []byte) error
}

func runClient(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("client", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration")
	addr := fs.String("addr", fmt.Sprintf("127.0.0.1:%d", defaultPort), "UDP address of the server")
	wsURL := fs.String("ws", "", "connect over WebSocket to this URL instead of UDP, e.g. ws://localhost:8080"+wsPath)
	name := fs.String("name", "bot", "player name")
	debug := fs.Bool("debug", false, "debug logging")
	_ = fs.Parse(args)

	log := newLogger(*debug)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	var transport clientTransport

	if *wsURL != "" {
		wsCli, err := ws.Dial(ctx, *wsURL)
		if err != nil {
			return err
		}
		defer func() { _ = wsCli.Close() }()
		transport = wsCli
	} else {
		serverAddr, err := net.ResolveUDPAddr("udp", *addr)
		if err != nil {
			return fmt.Errorf("invalid server address: %w", err)
		}

		udpCli := udp.NewClient(*serverAddr)
		udpCli.SetDSCP(cfg.DSCP)
		if err := udpCli.Connect(); err != nil {
			return err
		}
		transport = udpCli
	}

	// the bot walks in circles
	input := func(frame uint32) command.Input {
		angle := float64(frame) * 0.05
		return command.Input{
			MoveX: float32(math.Cos(angle)),
			MoveY: float32(math.Sin(angle)),
			Aim:   float32(angle),
		}
	}

	opts := append(cfg.ClientOptions(log),
		client.WithName(*name),
		client.WithPredictor(game.New(cfg.Step())),
		client.WithInput(input))

	cli := client.New(transport, opts...)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCancel(transport.Listen(ctx, cli.HandleIncomingMessage))
	})

	g.Go(func() error {
		return cli.Start(ctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				st := cli.Status()
				log.Info("client",
					"joined", st.Joined,
					"synced", st.Synced,
					"entity", st.Entity,
					"frame_diff", st.FrameDiff,
					"ahead", st.Clock.ClientAhead,
					"behind", st.Clock.RenderBehind,
					"rtt", st.Link.AverageRTT,
					"loss", st.Link.PacketLossRatio,
					"entities", len(cli.WorldState()))
			}
		}
	})

	return g.Wait()
}

func runReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration used to record the replay")
	path := fs.String("file", "", "replay file")
	_ = fs.Parse(args)

	if *path == "" {
		return errors.New("the replay file is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	r, err := replay.Open(*path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	res, err := replay.Verify(game.New(cfg.Step()), r)
	if err != nil {
		return fmt.Errorf("verified frames %d-%d: %w", res.First, res.Last, err)
	}

	fmt.Printf("replay is deterministic: frames %d-%d (%d)\n", res.First, res.Last, res.Frames)

	return nil
}
