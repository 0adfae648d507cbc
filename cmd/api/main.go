package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/finvora/invoicing-auth/internal/infra/app"
	"github.com/finvora/invoicing-auth/internal/infra/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("invoicing-auth: %v", err)
	}
}

func run() error {
	// A missing .env is fine; containers configure through real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	return application.Run(ctx)
}
