// Package main is the entry point for the matcher CLI binary.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"addrmatch/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.LoadFromEnv()
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(log)
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	rootCmd := newRootCmd(cfg, log)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
