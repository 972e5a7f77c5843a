// Command arqrecv is the receiver endpoint: it binds an ephemeral UDP
// port, announces it on stderr, and writes the reassembled byte stream
// to stdout as it arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/arqnet/reliudp/internal/config"
	"github.com/arqnet/reliudp/internal/logging"
	"github.com/arqnet/reliudp/internal/metrics"
	"github.com/arqnet/reliudp/internal/receiver"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file (ambient settings only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arqrecv: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(logging.ParseLevel(cfg.LogLevel))

	if err := run(cfg, log); err != nil {
		log.Error("fatal: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("bind local socket: %w", err)
	}
	defer conn.Close()

	// The harness learns the bound port only from this line; it must be
	// the first and only thing written to stderr on startup.
	fmt.Fprintf(os.Stderr, "Bound to port %d\n", conn.LocalAddr().(*net.UDPAddr).Port)

	r := receiver.New(conn, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		srv, err := metrics.NewServer(cfg.Metrics.Listen, metrics.NewCollector("receiver", r))
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		g.Go(func() error {
			if err := srv.Run(gctx); err != nil {
				log.Warn("metrics server: %v", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		err := r.Run(gctx, os.Stdout)
		stop()
		return err
	})

	return g.Wait()
}
