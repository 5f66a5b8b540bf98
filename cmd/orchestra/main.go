package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/oscied/orchestra/pkg/api"
	"github.com/oscied/orchestra/pkg/auth"
	"github.com/oscied/orchestra/pkg/blobstore"
	"github.com/oscied/orchestra/pkg/broker"
	"github.com/oscied/orchestra/pkg/capacity"
	"github.com/oscied/orchestra/pkg/cluster"
	"github.com/oscied/orchestra/pkg/config"
	"github.com/oscied/orchestra/pkg/core"
	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/janitor"
	"github.com/oscied/orchestra/pkg/log"
	"github.com/oscied/orchestra/pkg/mail"
	"github.com/oscied/orchestra/pkg/observer"
	"github.com/oscied/orchestra/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagConfig   string
	flagListen   string
	flagLogLevel string
	flagMock     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orchestra",
	Short: "Orchestra - media-processing cluster control plane",
	Long: `Orchestra is the control plane of a distributed media-processing
cluster. It tracks users, media assets and transformation profiles,
dispatches transcoding and publication jobs to worker queues, handles the
workers' callbacks, and keeps worker capacity aligned with a planning table.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Orchestra version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serveCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to the YAML configuration file")
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address, overrides the configuration")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level, overrides the configuration")
	serveCmd.Flags().BoolVar(&flagMock, "mock", false, "run with in-process queue, storage and cluster fakes")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagListen != "" {
			cfg.ListenAddr = flagListen
		}
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}
		if flagMock {
			cfg.Mock = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: true})
		logger := log.WithComponent("main")

		// Store: a configured connection selects the database, otherwise
		// everything lives in memory.
		var store storage.Store
		if cfg.MongoAdminConnection != "" {
			store, err = storage.NewMongoStore(cfg.MongoAdminConnection, cfg.Database)
			if err != nil {
				return err
			}
			logger.Info().Msg("connected to database")
		} else {
			store = storage.NewMemStore()
			logger.Warn().Msg("no database configured, state is in memory only")
		}
		defer store.Close()

		var queue broker.JobQueue
		if cfg.Mock {
			queue = broker.NewMockQueue()
		} else {
			queue, err = broker.NewAMQPQueue(cfg.RabbitConnection)
			if err != nil {
				return err
			}
			logger.Info().Msg("connected to broker")
		}
		defer queue.Close()

		layout := blobstore.Layout{
			Path:       cfg.StoragePath,
			Address:    cfg.StorageAddress,
			Mountpoint: cfg.StorageMountpoint,
		}
		var blobs blobstore.BlobStore
		if cfg.Mock {
			blobs = blobstore.NewMock(layout)
		} else {
			blobs = blobstore.NewLocal(layout)
		}

		evs := events.NewBroker()
		evs.Start()
		defer evs.Stop()
		go logEvents(evs)

		var notifier core.Notifier
		if cfg.EmailEnabled() {
			notifier = mail.New(cfg.EmailServer, cfg.EmailTLS, cfg.EmailAddress,
				cfg.EmailUsername, cfg.EmailPassword)
		}

		registry := cluster.NewRegistry()
		c := core.New(cfg, store, queue, blobs, registry, evs, notifier)
		if err := c.RestoreEnvironments(); err != nil {
			return err
		}

		table, err := loadTable(cfg)
		if err != nil {
			return err
		}

		statsDB, err := bolt.Open(cfg.StatisticsPath, 0o600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return fmt.Errorf("open statistics database: %w", err)
		}
		defer statsDB.Close()

		var stoppers []interface{ Stop() }
		for _, name := range registry.Names() {
			adapter, err := registry.Get(name)
			if err != nil {
				continue
			}
			ctrl := capacity.NewController(name, adapter, table, cfg.ChecksPerHour, evs)
			ctrl.Start()
			obs := observer.New(name, adapter, table, store, statsDB,
				cfg.ChecksPerHour, cfg.StatisticsLimit())
			obs.Start()
			stoppers = append(stoppers, ctrl, obs)
		}

		jan := janitor.New(c, table.TickInterval(cfg.ChecksPerHour),
			cfg.CleanupProgressTime.Std(), cfg.PendingMediaGrace.Std(), cfg.MaxOutputMedias)
		jan.Start()
		stoppers = append(stoppers, jan)

		authenticator := auth.NewAuthenticator(store, cfg.RootSecret, cfg.NodeSecret)
		server := api.NewServer(cfg, c, authenticator)
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		}

		for _, s := range stoppers {
			s.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	},
}

func loadTable(cfg *config.Config) (*capacity.EventsTable, error) {
	if cfg.EventsTable != "" {
		return capacity.LoadEventsTable(cfg.EventsTable)
	}
	return capacity.NewEventsTable(nil, 24, cfg.TimeSpeedup), nil
}

func logEvents(evs *events.Broker) {
	sub := evs.Subscribe()
	logger := log.WithComponent("events")
	for event := range sub {
		logger.Info().Str("type", string(event.Type)).Str("message", event.Message).
			Fields(map[string]any{"metadata": event.Metadata}).Msg("event")
	}
}
