package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	simpleproducer "github.com/solarmarket/creative-rotation/internal/amqp/producer"
	"github.com/solarmarket/creative-rotation/internal/app"
	"github.com/solarmarket/creative-rotation/internal/frequency"
	"github.com/solarmarket/creative-rotation/internal/logger"
	internalhttp "github.com/solarmarket/creative-rotation/internal/server/http"
	memorystorage "github.com/solarmarket/creative-rotation/internal/storage/memory"
	sqlstorage "github.com/solarmarket/creative-rotation/internal/storage/sql"
	"github.com/solarmarket/creative-rotation/internal/version"

	_ "github.com/lib/pq"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "/etc/creative-rotation/config.json", "Path to configuration file")
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "version" {
		version.PrintVersion()

		return
	}

	config, err := NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	logg := logger.New(config.Logger.Level, config.Logger.File)

	ctx, cancel := context.WithCancel(context.Background())

	storage, err := initStorage(ctx, config)
	if err != nil {
		logg.Error(err.Error())

		log.Fatal(err)
	}

	producer, err := initProducer(config)
	if err != nil {
		logg.Error(err.Error())

		log.Fatal(err)
	}

	capper := frequency.New(initSessionStore(config), logg)

	crApp := app.New(logg, storage, capper, producer, app.Options{
		Fallback:    config.Fallback.Creative(),
		DedupWindow: config.Telemetry.DedupWindow,
	})

	// Events past the dedup window are dead weight; drop them at startup
	// and then periodically.
	if err := crApp.PurgeExpiredEvents(ctx); err != nil {
		logg.Error("cannot purge expired events: " + err.Error())
	}

	go runEventJanitor(ctx, crApp, time.Hour)

	server := internalhttp.NewServer(crApp, config.HTTP.Host, config.HTTP.Port, config.Rotation.IntervalMS)

	defer cancel()

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGHUP)

		select {
		case <-ctx.Done():
			return
		case <-signals:
		}

		signal.Stop(signals)
		cancel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			logg.Error("failed to stop http server: " + err.Error())
		}
	}()

	logg.Info("creative rotation service is running...")

	if err := server.Start(ctx); err != nil {
		logg.Error("failed to start http server: " + err.Error())
		cancel()
		os.Exit(1) //nolint:gocritic
	}
}

func initStorage(ctx context.Context, config Config) (app.Storage, error) {
	if config.DB.ConnectionString == "" {
		return memorystorage.New(), nil
	}

	storage, err := sqlstorage.New(ctx, config.DB.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("can't create new storage instance, %w", err)
	}

	if err := storage.Connect(ctx); err != nil {
		return nil, fmt.Errorf("can't connect to storage, %w", err)
	}

	if err := storage.Init(ctx); err != nil {
		return nil, fmt.Errorf("can't init storage schema, %w", err)
	}

	return storage, nil
}

func initProducer(config Config) (app.Producer, error) {
	if config.AMQP.URI == "" {
		return nil, nil
	}

	conn, err := amqp.Dial(config.AMQP.URI)
	if err != nil {
		return nil, fmt.Errorf("can't connect to amqp, %w", err)
	}

	producer := simpleproducer.New(config.AMQP.Exchange, conn)
	if err := producer.Connect(); err != nil {
		return nil, fmt.Errorf("can't connect amqp producer, %w", err)
	}

	return producer, nil
}

func initSessionStore(config Config) frequency.Store {
	if config.Redis.Addr == "" {
		return frequency.NewMemoryStore(config.Redis.StateTTL)
	}

	client := redis.NewClient(&redis.Options{Addr: config.Redis.Addr})

	return frequency.NewRedisStore(client, config.Redis.StateTTL)
}

func runEventJanitor(ctx context.Context, crApp *app.App, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := crApp.PurgeExpiredEvents(ctx); err != nil {
				crApp.GetLogger().Warn("cannot purge expired events", "error", err.Error())
			}
		}
	}
}
