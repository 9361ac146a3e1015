package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ruteri/vanity-name-registrar/api"
	"github.com/ruteri/vanity-name-registrar/cmd/flags"
	"github.com/ruteri/vanity-name-registrar/escrow"
	"github.com/ruteri/vanity-name-registrar/events"
	"github.com/ruteri/vanity-name-registrar/httpserver"
	"github.com/ruteri/vanity-name-registrar/interfaces"
	"github.com/ruteri/vanity-name-registrar/metrics"
	"github.com/ruteri/vanity-name-registrar/nameresolver"
	"github.com/ruteri/vanity-name-registrar/registrar"
	"github.com/ruteri/vanity-name-registrar/storage"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var flagSnapshotInterval = &cli.DurationFlag{
	Name:   "snapshot-interval",
	Value:  5 * time.Minute,
	Usage:  "how often to snapshot state to storage",
	Action: positiveDuration("snapshot-interval"),
}

func positiveDuration(name string) func(*cli.Context, time.Duration) error {
	return func(_ *cli.Context, d time.Duration) error {
		if d <= 0 {
			return fmt.Errorf("--%s must be positive, got %s", name, d)
		}
		return nil
	}
}

var serverFlags = []cli.Flag{
	flagListenAddr,
	flags.LogServiceFlagFn("vns-registrar"),
	&cli.StringFlag{
		Name:  "genesis-alloc",
		Usage: "JSON file of initial ledger balances (address -> wei)",
	},
	&cli.DurationFlag{
		Name:   "min-commitment-age",
		Value:  registrar.DefaultMinCommitmentAge,
		Usage:  "minimum delay between commit and register",
		Action: positiveDuration("min-commitment-age"),
	},
	&cli.DurationFlag{
		Name:   "lock-period",
		Value:  registrar.DefaultLockPeriod,
		Usage:  "lock length granted by register and renew",
		Action: positiveDuration("lock-period"),
	},
	&cli.StringSliceFlag{
		Name:  "storage",
		Usage: "snapshot storage backend URI, may be repeated",
	},
	flagSnapshotInterval,
	&cli.StringFlag{
		Name:  "restore-snapshot",
		Usage: "content ID of the snapshot to restore on startup",
	},
	&cli.StringFlag{
		Name:  "dns-addr",
		Usage: "UDP address for the DNS resolver, disabled when empty",
	},
	flags.DNSZoneFlag,
	flags.RedisURLFlag,
	flags.RedisChannelFlag,
}

func main() {
	app := &cli.App{
		Name:  "vns-registrar",
		Usage: "Serve the vanity name registrar API",
		Flags: append(serverFlags, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))
			return run(cCtx, logger, cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context, logger *slog.Logger, cfg *api.HTTPServerConfig) error {
	ctx := cCtx.Context

	ledger := escrow.NewLedger(logger)

	metricsSrv, err := metrics.New("vns", cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("could not create metrics server: %w", err)
	}

	registrarMetrics := metrics.NewRegistrarMetrics(metricsSrv.Registry(), metricsSrv.Namespace(), ledger.Held)
	sinks := []interfaces.EventSink{events.NewLogSink(logger), registrarMetrics}

	if redisURL := cCtx.String(flags.RedisURLFlag.Name); redisURL != "" {
		client, err := events.DialRedis(ctx, redisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		channel := cCtx.String(flags.RedisChannelFlag.Name)
		sinks = append(sinks, events.NewRedisPublisher(client, channel, logger))
		logger.Info("Publishing events to redis", "channel", channel)
	}

	reg := registrar.New(registrar.Config{
		MinCommitmentAge: cCtx.Duration("min-commitment-age"),
		LockPeriod:       cCtx.Duration("lock-period"),
	}, clock.New(), ledger, logger, sinks...)

	store, err := setupSnapshotStore(cCtx.StringSlice("storage"), logger)
	if err != nil {
		return err
	}

	if err := initState(ctx, cCtx, reg, ledger, store, logger); err != nil {
		return err
	}

	handler := httpserver.NewHandler(reg, ledger, registrarMetrics, logger)
	server, err := httpserver.New(cfg, handler, metricsSrv)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	var dnsServer *nameresolver.Server
	if dnsAddr := cCtx.String("dns-addr"); dnsAddr != "" {
		zone := cCtx.String(flags.DNSZoneFlag.Name)
		dnsServer = nameresolver.NewServer(dnsAddr, nameresolver.NewHandler(zone, reg, logger), logger)
		if err := dnsServer.RunInBackground(nil); err != nil {
			return err
		}
	}

	snapshotCtx, stopSnapshots := context.WithCancel(ctx)
	snapshotsDone := make(chan struct{})
	go func() {
		defer close(snapshotsDone)
		if store != nil {
			runSnapshots(snapshotCtx, store, reg, cCtx.Duration(flagSnapshotInterval.Name), logger)
		}
	}()

	logger.Info("Starting server")
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()

	if dnsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := dnsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("DNS server shutdown failed", "err", err)
		}
		cancel()
	}

	stopSnapshots()
	<-snapshotsDone

	logger.Info("Server shutdown complete")
	return nil
}

func setupSnapshotStore(uris []string, logger *slog.Logger) (*storage.SnapshotStore, error) {
	if len(uris) == 0 {
		logger.Warn("No storage configured, state will not survive restarts")
		return nil, nil
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}

	backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return nil, fmt.Errorf("could not create storage backend: %w", err)
	}
	return storage.NewSnapshotStore(backend, logger), nil
}

// initState restores a snapshot when one is requested and otherwise funds
// the ledger from the genesis allocation.
func initState(ctx context.Context, cCtx *cli.Context, reg *registrar.Registrar, ledger *escrow.Ledger, store *storage.SnapshotStore, logger *slog.Logger) error {
	if snapshotID := cCtx.String("restore-snapshot"); snapshotID != "" {
		if store == nil {
			return errors.New("--restore-snapshot requires --storage")
		}

		id, err := interfaces.ParseContentID(snapshotID)
		if err != nil {
			return fmt.Errorf("invalid snapshot id: %w", err)
		}

		snap, err := store.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("could not load snapshot %s: %w", id, err)
		}
		if err := reg.Restore(snap); err != nil {
			return fmt.Errorf("could not restore registrar: %w", err)
		}
		if err := ledger.Restore(snap.Balances, reg.TotalEscrowHeld()); err != nil {
			return fmt.Errorf("could not restore ledger: %w", err)
		}

		logger.Info("Restored snapshot",
			"content_id", id.String(),
			"taken_at", snap.TakenAt,
			"locks", len(snap.Locks))
		return nil
	}

	path := cCtx.String("genesis-alloc")
	if path == "" {
		logger.Warn("No genesis allocation, every account starts empty")
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open genesis allocation: %w", err)
	}
	defer f.Close()

	alloc, err := escrow.LoadGenesisAlloc(f)
	if err != nil {
		return err
	}
	if err := alloc.Apply(ledger); err != nil {
		return err
	}

	logger.Info("Applied genesis allocation", "accounts", len(alloc))
	return nil
}

func runSnapshots(ctx context.Context, store *storage.SnapshotStore, reg *registrar.Registrar, interval time.Duration, logger *slog.Logger) {
	save := func(ctx context.Context) {
		if _, err := store.Save(ctx, reg.Snapshot()); err != nil {
			logger.Error("Snapshot failed", "err", err)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			save(ctx)
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			save(finalCtx)
			cancel()
			return
		}
	}
}
