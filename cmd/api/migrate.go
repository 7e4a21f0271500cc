package main

import (
	"github.com/safar/go-pdv/internal/config"
	"github.com/safar/go-pdv/internal/database"
	"github.com/safar/go-pdv/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back the embedded schema migrations",
		Subcommands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply all pending migrations",
				Action: runMigrations(database.MigrateUp),
			},
			{
				Name:   "down",
				Usage:  "roll back all migrations",
				Action: runMigrations(database.MigrateDown),
			},
		},
	}
}

func runMigrations(direction database.MigrateDirection) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log, err := logger.New(cfg.Log, serviceName)
		if err != nil {
			return err
		}
		defer log.Sync()

		if err := database.Migrate(cfg.Database.URL, direction); err != nil {
			return err
		}

		log.Info("migrations completed", zap.String("direction", string(direction)))
		return nil
	}
}
