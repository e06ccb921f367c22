package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/segyhp/collection-ledger/internal/config"
	"github.com/segyhp/collection-ledger/internal/database"
	"github.com/segyhp/collection-ledger/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg.Logging)

	if err := run(os.Args[1:], cfg.Database.URL, log); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
}

func run(args []string, databaseURL string, log *logrus.Logger) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: migrate [up|down N|status]")
	}

	switch args[0] {
	case "up":
		return database.RunMigrations(databaseURL, log)
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("down expects a positive step count, got %q", args[1])
			}
			steps = n
		}
		return database.MigrateDown(databaseURL, steps, log)
	case "status":
		status, err := database.GetMigrationStatus(databaseURL)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"version": status.Version,
			"dirty":   status.Dirty,
			"applied": status.Applied,
		}).Info("Migration status")
		return nil
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}
