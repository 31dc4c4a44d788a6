// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/handlers"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "uno-server",
		Usage: "host UNO rooms over HTTP and websockets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Usage: "load environment from `FILE` before reading UNO_* variables"},
			&cli.IntFlag{Name: "port", Usage: "listen port (overrides UNO_PORT)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides UNO_LOG_LEVEL)"},
		},
		Action: run,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	// Background writers outlive the signal context so they can flush
	// after the rooms are closed.
	workCtx, stopWork := context.WithCancel(context.Background())
	defer stopWork()
	workers, workCtx := errgroup.WithContext(workCtx)

	opts := room.Options{
		Rules:  game.NewRules(cfg.HouseRules()),
		Policy: cfg.Policy(),
		Logger: logger,
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, 0)
		if err != nil {
			return err
		}
		defer rdb.Close()
		actions := cache.NewActionLog(rdb, cfg.RedisQueue, 4096, logger)
		opts.Journal = actions
		workers.Go(func() error { return actions.Run(workCtx) })
		logger.WithField("addr", cfg.RedisAddr).Info("publishing room events to redis")
	}

	if cfg.PostgresDSN != "" {
		pool, err := database.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		results := database.NewResultStore(pool, 64, logger)
		opts.Results = results
		workers.Go(func() error { return results.Run(workCtx) })
		logger.Info("saving round results to postgres")
	}

	var signer *auth.Signer
	if cfg.SeatKeyFile != "" {
		signer, err = auth.LoadSigner(cfg.SeatKeyFile, cfg.SeatPubFile, cfg.TokenTTL)
	} else {
		signer, err = auth.NewSigner(cfg.TokenTTL)
	}
	if err != nil {
		return err
	}

	reg := room.NewRegistry(opts)
	gw := gateway.New(reg, logger, gateway.WithSeatVerifier(signer, cfg.RequireSeatToken))
	srv := handlers.NewServer(reg, gw, signer, logger,
		handlers.WithHouseRules(cfg.HouseRules()),
		handlers.WithAllowedOrigins(cfg.AllowedOrigins),
	)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Router(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", httpSrv.Addr)
		serveErr <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			stopWork()
			_ = workers.Wait()
			return fmt.Errorf("listen: %w", err)
		}
	}

	// Closing every room ends the websocket handlers, which Shutdown does
	// not wait for on its own.
	reg.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}

	stopWork()
	return workers.Wait()
}
