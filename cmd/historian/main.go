// cmd/historian/main.go is the historian service: it drains the room event
// queue from Redis into the room_events table.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/historian"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "uno-historian",
		Usage: "persist room events from the redis queue to postgres",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Usage: "load environment from `FILE` before reading UNO_* variables"},
			&cli.IntFlag{Name: "batch-size", Usage: "records per insert (overrides UNO_HISTORIAN_BATCH_SIZE)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides UNO_LOG_LEVEL)"},
		},
		Action: run,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		logrus.WithError(err).Fatal("historian exited")
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return err
	}
	if cmd.IsSet("batch-size") {
		cfg.HistorianBatchSize = cmd.Int("batch-size")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.RedisAddr == "" || cfg.PostgresDSN == "" {
		return errors.New("historian needs UNO_REDIS_ADDR and UNO_POSTGRES_DSN")
	}
	logger := cfg.Logger()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, 0)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	svc := historian.New(
		cache.NewQueueReader(rdb, cfg.RedisQueue),
		database.NewEventStore(pool),
		logger,
		historian.WithBatchSize(cfg.HistorianBatchSize),
		historian.WithFlushEvery(cfg.HistorianFlushEvery),
		historian.WithPopTimeout(time.Second),
	)
	return svc.Run(ctx)
}
