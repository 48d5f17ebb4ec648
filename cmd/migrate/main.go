package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"coinflip/internal/config"
	"coinflip/internal/db"
	"coinflip/internal/logging"

	log "github.com/sirupsen/logrus"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up | down N | status]")
	}
	flag.Parse()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	switch command {
	case "up":
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			log.WithError(err).Fatal("migrate up failed")
		}
	case "down":
		steps := 1
		if flag.NArg() > 1 {
			parsed, err := strconv.Atoi(flag.Arg(1))
			if err != nil {
				log.WithError(err).Fatal("invalid step count")
			}
			steps = parsed
		}
		if err := db.MigrateDown(cfg.DatabaseURL, steps); err != nil {
			log.WithError(err).Fatal("migrate down failed")
		}
	case "status":
	default:
		flag.Usage()
		os.Exit(2)
	}

	status, err := db.Status(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to read migration status")
	}
	log.WithFields(log.Fields{
		"version": status.Version,
		"dirty":   status.Dirty,
		"applied": status.Applied,
	}).Info("schema version")
}
