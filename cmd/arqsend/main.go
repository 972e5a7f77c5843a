// Command arqsend is the sender endpoint: it reads a byte stream from
// stdin and reliably delivers it, in order, to the receiver named on the
// command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/arqnet/reliudp/internal/config"
	"github.com/arqnet/reliudp/internal/logging"
	"github.com/arqnet/reliudp/internal/metrics"
	"github.com/arqnet/reliudp/internal/sender"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file (ambient settings only)")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: arqsend <host> <port>")
		os.Exit(1)
	}
	host := args[0]
	portStr := args[1]

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintf(os.Stderr, "arqsend: invalid port %q\n", portStr)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arqsend: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(logging.ParseLevel(cfg.LogLevel))

	if err := run(host, port, cfg, log); err != nil {
		log.Error("fatal: %v", err)
		os.Exit(1)
	}
}

func run(host string, port int, cfg *config.Config, log *logging.Logger) error {
	peer, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("resolve %s:%d: %w", host, port, err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("bind local socket: %w", err)
	}
	defer conn.Close()

	s := sender.New(conn, peer, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		srv, err := metrics.NewServer(cfg.Metrics.Listen, metrics.NewCollector("sender", s))
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
		// Cancel the shared context once the transfer completes (success
		// or failure) so the metrics server, which only exits on
		// cancellation, shuts down instead of leaving Wait blocked.
		err := s.Run(gctx, os.Stdin)
		stop()
		return err
	})

	return g.Wait()
}
