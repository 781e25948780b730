// Command redubd runs the re-voicing daemon without the surrounding CLI.
// It is a thin wrapper over the same runtime loop `redub start` uses.
package main

import (
	"context"
	"errors"
	"log"

	"github.com/joho/godotenv"

	"redub/internal/config"
	"redub/internal/daemonrun"
)

func main() {
	_ = godotenv.Load()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("redubd: %v", err)
	}
}
