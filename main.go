package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/config"
	"github.com/IliaW/jamaah-scrape-worker/internal/api"
	"github.com/IliaW/jamaah-scrape-worker/internal/aws_s3"
	"github.com/IliaW/jamaah-scrape-worker/internal/broker"
	"github.com/IliaW/jamaah-scrape-worker/internal/cache"
	"github.com/IliaW/jamaah-scrape-worker/internal/crawler"
	"github.com/IliaW/jamaah-scrape-worker/internal/extractor"
	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/IliaW/jamaah-scrape-worker/internal/persistence"
	"github.com/IliaW/jamaah-scrape-worker/internal/registry"
	"github.com/IliaW/jamaah-scrape-worker/internal/scheduler"
	"github.com/IliaW/jamaah-scrape-worker/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
	db      *sql.DB
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jamaah-scraper",
		Short: "Daily jamaah and jummah times for Kent mosques",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.MustLoad(cfgFile)
			log = setupLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(serveCmd(), scrapeCmd(), mosquesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the daily refresh scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := loadRegistry()
	scrapeWorker := newScrapeWorker(reg)
	defer closeDatabase()
	store, closeStore := setupStore()
	defer closeStore()
	loc := cfg.Location()
	dailyCache := cache.NewDailyCache(store, scrapeWorker, cfg.CacheSettings, loc, log)
	log.Info("starting application on port "+cfg.Port, slog.String("env", cfg.Env),
		slog.Int("mosques", reg.Len()), slog.String("timezone", loc.String()))

	kafkaWg := &sync.WaitGroup{}
	var producer *broker.SnapshotProducer
	kafkaSettings := cfg.KafkaSettings
	if kafkaSettings == nil {
		kafkaSettings = &config.KafkaConfig{}
	}
	if p := kafkaSettings.Producer; p != nil && p.Addr != "" {
		producer = broker.NewSnapshotProducer(p, log, kafkaWg)
		dailyCache.SetPublisher(producer)
		kafkaWg.Add(1)
		go producer.Run()
	}
	if c := kafkaSettings.Consumer; c != nil && c.Brokers != "" {
		kafkaWg.Add(1)
		go broker.NewRefreshConsumer(dailyCache, c, loc, log, kafkaWg).Run(ctx)
	}

	// First snapshot of the day, in the background so the API is up while it is scraped.
	go func() {
		if err := dailyCache.Warm(ctx); err != nil {
			log.Error("failed to warm daily cache.", slog.String("err", err.Error()))
		}
	}()

	var refreshScheduler *scheduler.RefreshScheduler
	if cfg.SchedulerSettings.Enabled {
		var err error
		refreshScheduler, err = scheduler.NewRefreshScheduler(cfg.SchedulerSettings.Spec, loc, dailyCache,
			time.Hour, log)
		if err != nil {
			log.Error("failed to create refresh scheduler.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		refreshScheduler.Start()
	}

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(dailyCache, reg, loc, cfg.Version, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, cfg.HttpSettings.AllowedOrigins, log),
		ReadTimeout:  cfg.HttpSettings.ReadTimeout,
		WriteTimeout: cfg.HttpSettings.WriteTimeout,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed.", slog.String("err", err.Error()))
			stop()
		}
	}()

	// Graceful shutdown.
	// 1. Stop accepting requests and the scheduler
	// 2. Stop the Kafka consumer (by ctx) and close the producer queue
	// 3. Wait till the producer has sent what is queued. Close store and database connections
	<-ctx.Done()
	log.Info("stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down http server.", slog.String("err", err.Error()))
	}
	if refreshScheduler != nil {
		refreshScheduler.Stop(shutdownCtx)
	}
	if producer != nil {
		producer.Close()
	}
	kafkaWg.Wait()

	return nil
}

func scrapeCmd() *cobra.Command {
	var date, format string
	var save bool
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape every mosque once and print the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			loc := cfg.Location()
			day := time.Now().In(loc)
			if date != "" {
				var err error
				if day, err = time.ParseInLocation(model.DateLayout, date, loc); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}
			scrapeWorker := newScrapeWorker(loadRegistry())
			defer closeDatabase()

			snapshot, err := scrapeWorker.RunAll(ctx, day)
			if err != nil {
				return err
			}
			if save {
				store, closeStore := setupStore()
				defer closeStore()
				if err = store.Save(ctx, snapshot); err != nil {
					return fmt.Errorf("save snapshot: %w", err)
				}
				log.Info("snapshot saved.", slog.String("date", snapshot.Date))
			}
			return printSnapshot(cmd.OutOrStdout(), snapshot, format)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date to scrape, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&save, "save", false, "also write the snapshot to the configured store")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or table")
	return cmd
}

func mosquesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mosques",
		Short: "List the mosques being scraped",
		Run: func(cmd *cobra.Command, args []string) {
			printRegistry(cmd.OutOrStdout(), loadRegistry())
		},
	}
}

func loadRegistry() *registry.Registry {
	reg, err := registry.Load(cfg.RegistryFile)
	if err != nil {
		log.Error("failed to load mosque registry.", slog.String("file", cfg.RegistryFile),
			slog.String("err", err.Error()))
		os.Exit(1)
	}
	return reg
}

func newScrapeWorker(reg *registry.Registry) *worker.ScrapeWorker {
	strategies := extractor.NewStrategies(extractor.RowText{}, log)
	for _, d := range reg.All() {
		if _, ok := strategies.Lookup(&d); !ok {
			log.Warn("no extractor for mosque. It will always be empty.", slog.String("mosque", d.ID),
				slog.String("kind", string(d.SourceKind)), slog.String("site", d.SourceParams.Site))
		}
	}

	var metadataRepo persistence.MetadataStorage = persistence.NoopMetadataStorage{}
	if cfg.DbSettings != nil && cfg.DbSettings.Host != "" {
		db = setupDatabase()
		metadataRepo = persistence.NewMetadataRepository(db, log)
	}

	return &worker.ScrapeWorker{
		Registry:    reg,
		Strategies:  strategies,
		OpenSession: worker.BrowserSessions(crawler.NewBrowser(cfg.BrowserSettings, log)),
		Downloader:  crawler.NewDownloader(cfg.DownloadSettings, log),
		Db:          metadataRepo,
		Version:     cfg.Version,
		Log:         log,
	}
}

// setupStore returns the durable snapshot store for cache.backend and a func releasing it.
func setupStore() (cache.SnapshotStore, func()) {
	switch strings.ToLower(cfg.CacheSettings.Backend) {
	case "memcached":
		s := cache.NewMemcachedStore(cfg.CacheSettings, log)
		return s, s.Close
	case "redis":
		s := cache.NewRedisStore(cfg.CacheSettings, log)
		return s, s.Close
	case "s3":
		return aws_s3.NewSnapshotBucket(cfg.S3Settings, log), func() {}
	case "", "file":
		s, err := cache.NewFileStore(cfg.CacheSettings.DataDir, log)
		if err != nil {
			log.Error("failed to create file store.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		return s, func() {}
	default:
		log.Error("unknown cache backend.", slog.String("backend", cfg.CacheSettings.Backend))
		os.Exit(1)
		return nil, nil
	}
}

func setupLogger() *slog.Logger {
	resolvedLogLevel := func() slog.Level {
		envLogLevel := strings.ToLower(cfg.LogLevel)
		switch envLogLevel {
		case "info":
			return slog.LevelInfo
		case "warn":
			return slog.LevelWarn
		case "error":
			return slog.LevelError
		default:
			return slog.LevelDebug
		}
	}

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	// stdout carries command output (scrape, mosques), so logs go to stderr
	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs,
			NoColor:     false}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}

func setupDatabase() *sql.DB {
	log.Info("connecting to the database...")
	sqlCfg := mysql.Config{
		User:                 cfg.DbSettings.User,
		Passwd:               cfg.DbSettings.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%s", cfg.DbSettings.Host, cfg.DbSettings.Port),
		DBName:               cfg.DbSettings.Name,
		AllowNativePasswords: true,
		ParseTime:            true,
	}
	database, err := sql.Open("mysql", sqlCfg.FormatDSN())
	if err != nil {
		log.Error("failed to establish database connection.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	database.SetConnMaxLifetime(cfg.DbSettings.ConnMaxLifetime)
	database.SetMaxOpenConns(cfg.DbSettings.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DbSettings.MaxIdleConns)

	maxRetry := 6
	for i := 1; i <= maxRetry; i++ {
		log.Info("ping the database.", slog.String("attempt", fmt.Sprintf("%d/%d", i, maxRetry)))
		pingErr := database.Ping()
		if pingErr != nil {
			log.Error("not responding.", slog.String("err", pingErr.Error()))
			if i == maxRetry {
				log.Error("failed to establish database connection.")
				os.Exit(1)
			}
			log.Info(fmt.Sprintf("wait %d seconds", 5*i))
			time.Sleep(time.Duration(5*i) * time.Second)
		} else {
			break
		}
	}
	log.Info("connected to the database!")

	return database
}

func closeDatabase() {
	if db == nil {
		return
	}
	log.Info("closing database connection.")
	err := db.Close()
	if err != nil {
		log.Error("failed to close database connection.", slog.String("err", err.Error()))
	}
}
