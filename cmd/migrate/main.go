package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"smartqr-backend/internal/config"
	"smartqr-backend/internal/infra/db/migrations"
	"smartqr-backend/internal/infra/logging"
)

// usage: migrate -config config.yaml [up|down|status]
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, false)

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch cmd {
	case "up":
		err = migrations.Up(ctx, cfg.Database.URL)
	case "down":
		err = migrations.Down(ctx, cfg.Database.URL)
	case "status":
		err = migrations.Status(ctx, cfg.Database.URL)
	default:
		logger.Fatal().Str("command", cmd).Msg("unknown command, want up|down|status")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migrate failed")
	}
	logger.Info().Str("command", cmd).Msg("migrate done")
}
