package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"authwatch/internal/alerts"
	"authwatch/internal/api"
	"authwatch/internal/config"
	"authwatch/internal/engine"
	"authwatch/internal/ingest"
	"authwatch/internal/logging"
	"authwatch/internal/sink"
	"authwatch/internal/stats"
	"authwatch/internal/storage"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to yaml/json config file")
	useStdin := flag.Bool("stdin", false, "read log lines from stdin regardless of config")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("authwatch " + version)
		return
	}

	// .env can carry deployment secrets like the storage DSN.
	_ = godotenv.Load()

	var manager *config.Manager
	if *configPath != "" {
		m, err := config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		manager = m
	} else {
		cfg := config.DefaultConfig()
		applyEnvOverrides(cfg)
		if err := config.Validate(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		manager = config.NewStaticManager(cfg)
	}
	cfg := manager.Get()
	if *useStdin {
		cfg.Ingest.Stdin.Enabled = true
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting authwatch", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if store != nil {
		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		err := store.Init(initCtx)
		initCancel()
		if err != nil {
			logger.Error("storage schema init failed", "err", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	sinks, err := buildSinks(cfg, store)
	if err != nil {
		logger.Error("sink setup failed", "err", err)
		os.Exit(1)
	}
	dispatcher := sink.NewDispatcher(cfg.Delivery.QueueSize, logger, sinks...)

	statsStore := stats.NewStore()
	alertsStore := alerts.NewStore(cfg.Alerts.StoreLimit)

	eng, err := engine.NewEngine(cfg, logger, statsStore, alertsStore, dispatcher)
	if err != nil {
		logger.Error("engine setup failed", "err", err)
		os.Exit(1)
	}

	lines := make(chan ingest.Line, cfg.Ingest.ChannelBuffer)
	eng.Start(ctx, lines)

	var stdinDone <-chan struct{}
	if cfg.Ingest.Stdin.Enabled {
		stdinDone = ingest.StartStdin(ctx, lines, logger)
	}
	ingest.StartFileTail(ctx, manager, lines, logger)
	ingest.StartSyslog(ctx, manager, lines, logger)
	ingest.StartTCPStream(ctx, manager, lines, logger)
	ingest.StartKafka(ctx, manager, lines, logger)
	ingest.StartREST(ctx, manager, lines, logger)

	api.Start(ctx, manager, statsStore, alertsStore, eng, logger, version)

	stop := make(chan struct{})
	go manager.Watch(3*time.Second,
		func(next *config.Config) {
			logger.Info("config reloaded", "path", manager.Path())
			eng.UpdateConfig(next)
		},
		func(err error) {
			logger.Warn("config reload failed", "err", err)
		},
		stop,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("shutting down", "signal", s.String())
	case <-stdinWait(stdinDone):
		logger.Info("input exhausted, shutting down")
	}

	close(stop)
	cancel()
	eng.Drain(lines)
	_ = dispatcher.Close()
	logger.Info("stopped")
}

// stdinWait turns a possibly nil done channel into one that never fires.
func stdinWait(done <-chan struct{}) <-chan struct{} {
	if done != nil {
		return done
	}
	return make(chan struct{})
}

func buildSinks(cfg *config.Config, store storage.Store) ([]sink.Sink, error) {
	var sinks []sink.Sink
	if cfg.Delivery.Stdout.Enabled {
		sinks = append(sinks, sink.NewStdout())
	}
	if cfg.Delivery.File.Enabled {
		fs, err := sink.NewFile(cfg.Delivery.File.Path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if cfg.Delivery.Webhook.Enabled {
		sinks = append(sinks, sink.NewWebhook(cfg.Delivery.Webhook.URL, cfg.Delivery.Webhook.Timeout))
	}
	if cfg.Delivery.Kafka.Enabled {
		sinks = append(sinks, sink.NewKafka(cfg.Delivery.Kafka.Brokers, cfg.Delivery.Kafka.Topic))
	}
	if store != nil {
		sinks = append(sinks, sink.NewStore(store))
	}
	return sinks, nil
}

func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("AUTHWATCH_STORAGE_DSN"); v != "" {
		cfg.Storage.Enabled = true
		cfg.Storage.DSN = v
		if d := os.Getenv("AUTHWATCH_STORAGE_DRIVER"); d != "" {
			cfg.Storage.Driver = d
		}
	}
	if v := os.Getenv("AUTHWATCH_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("AUTHWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AUTHWATCH_TAIL_FILES"); v != "" {
		cfg.Ingest.FileTail.Enabled = true
		cfg.Ingest.FileTail.Files = strings.Split(v, ",")
	}
}
