package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/safar/go-pdv/internal/api"
	"github.com/safar/go-pdv/internal/auth"
	"github.com/safar/go-pdv/internal/config"
	"github.com/safar/go-pdv/internal/database"
	"github.com/safar/go-pdv/internal/idempotency"
	"github.com/safar/go-pdv/internal/logger"
	"github.com/safar/go-pdv/internal/metrics"
	"github.com/safar/go-pdv/internal/orders"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const serviceName = "pdv"

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "apply pending migrations before serving",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log, serviceName)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		log.Warn("JWT_SECRET is using the default value")
	}

	if c.Bool("migrate") {
		if err := database.Migrate(cfg.Database.URL, database.MigrateUp); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to database")

	var idem *idempotency.Store
	if cfg.Redis.URL != "" {
		idem, err = idempotency.NewStore(cfg.Redis.URL, cfg.Redis.IdempotencyTTL)
		if err != nil {
			return err
		}
		defer idem.Close()
		log.Info("idempotent order submission enabled", zap.Duration("ttl", cfg.Redis.IdempotencyTTL))
	} else {
		log.Info("REDIS_URL not set, Idempotency-Key is ignored")
	}

	m := metrics.New(serviceName)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	h := api.New(api.Deps{
		DB: db,
		Orders: orders.NewService(db, log,
			orders.WithObserver(m),
			orders.WithTimeout(cfg.Orders.Timeout),
			orders.WithMaxRetries(cfg.Orders.MaxRetries),
		),
		Users:          auth.NewService(db, tokens),
		Verifier:       auth.BearerVerifier{Tokens: tokens},
		Metrics:        m,
		Log:            log,
		Idempotency:    idem,
		RequestTimeout: cfg.Server.WriteTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited properly")
	return nil
}
