// Command peerd is a demo host binary: it wires dnssd discovery, the IP
// service, the peer connection orchestrator, a sustained subscription, and
// the WAL store together against one operational node, logging state
// transitions as they happen. It has no CASE/secure-channel implementation
// of its own — the pairing and subscribe steps are stubbed so the wiring
// can be exercised end to end without a real Matter fabric.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuafuller/matterlink/internal/address"
	"github.com/joshuafuller/matterlink/internal/cancel"
	"github.com/joshuafuller/matterlink/internal/dnssd"
	"github.com/joshuafuller/matterlink/internal/fsab"
	"github.com/joshuafuller/matterlink/internal/ipservice"
	"github.com/joshuafuller/matterlink/internal/network"
	"github.com/joshuafuller/matterlink/internal/peerconn"
	"github.com/joshuafuller/matterlink/internal/storage/wal"
	"github.com/joshuafuller/matterlink/internal/subscription"
	"github.com/joshuafuller/matterlink/internal/transport"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var instance string
	var dataDir string
	var debug bool

	cmd := &cobra.Command{
		Use:   "peerd",
		Short: "Demo host for the matterlink peer interaction core",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, instance, dataDir)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&instance, "instance", "", "DNS-SD instance name to track, e.g. inst._matter._udp.local (required)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./peerd-data", "directory for the WAL store")
	_ = cmd.MarkFlagRequired("instance")
	return cmd
}

func run(ctx context.Context, instance string, dataDir string) error {
	logger := slog.Default()

	store, err := wal.Open(ctx, fsab.Open(dataDir), wal.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("open wal store: %w", err)
	}
	defer store.Close()

	cache := dnssd.NewCache(dnssd.Options{Logger: logger})
	svc := ipservice.New(cache, instance)
	defer svc.Close()

	conn, err := network.CreateSocket()
	if err != nil {
		return fmt.Errorf("create mdns socket: %w", err)
	}
	tr, err := transport.NewUDPv4TransportFromConn(conn)
	if err != nil {
		return fmt.Errorf("wrap mdns socket: %w", err)
	}
	listener := dnssd.NewListener(cache, tr, dnssd.ListenerOptions{Logger: logger, RateLimitThreshold: 50})
	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("dns-sd listener stopped", "error", err)
		}
	}()
	defer func() {
		listener.Close()
		_ = tr.Close()
	}()

	sem := peerconn.NewSemaphore(4)
	pair := stubPairer(logger)
	orch := peerconn.New[string](sem, pair, peerconn.Options{Logger: logger})

	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	session, err := orch.Connect(connectCtx, svc, nil)
	cancelConnect()
	if err != nil {
		return fmt.Errorf("connect to peer: %w", err)
	}
	logger.Info("connected to peer", "session", session)

	if _, err := store.Set("peer/"+instance, "last-session", session); err != nil {
		logger.Warn("record session in wal", "error", err)
	}

	hooks := subscription.Hooks[string, string]{
		Subscribe: stubSubscriber(logger),
		Updated: func(report string) {
			logger.Info("subscription report", "report", report)
		},
	}
	driver := subscription.New[string, string](hooks, subscription.Options{Logger: logger})

	abort := cancel.NewWithOptions(cancel.Options{})
	defer abort.Close()
	go func() {
		<-ctx.Done()
		abort.Abort(ctx.Err())
	}()

	driver.Run(abort, session)
	return nil
}

// stubPairer stands in for CASE/secure-channel establishment, which is
// outside this module's scope; it succeeds immediately against whichever
// address the orchestrator tries first.
func stubPairer(logger *slog.Logger) peerconn.Pairer[string] {
	return func(ctx context.Context, addr address.ServerAddress, maxRetransmissionTime time.Duration, reducedInitialRT bool) (string, error) {
		logger.Info("pairing (stub)", "address", addr.URL())
		return "session:" + addr.URL(), nil
	}
}

// stubSubscriber stands in for the interaction-model subscribe call; it
// returns a subscription that never closes on its own so the demo keeps
// running until interrupted.
func stubSubscriber(logger *slog.Logger) func(req string) (subscription.ActiveSubscription, error) {
	return func(req string) (subscription.ActiveSubscription, error) {
		logger.Info("subscribing (stub)", "request", req)
		return &stubSubscription{id: "stub-" + req, closed: make(chan struct{})}, nil
	}
}

type stubSubscription struct {
	id     string
	closed chan struct{}
}

func (s *stubSubscription) ID() string                      { return s.id }
func (s *stubSubscription) Closed() <-chan struct{}         { return s.closed }
func (s *stubSubscription) MaxInterval() time.Duration      { return 60 * time.Second }
func (s *stubSubscription) InteractionModelRevision() uint8 { return 11 }
