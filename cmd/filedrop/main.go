package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/filedrop/app/filedrop"
	"github.com/dmitrymomot/filedrop/core/config"
	"github.com/dmitrymomot/filedrop/core/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg filedrop.Config
	config.MustLoad(&cfg) // panic on error

	app, err := filedrop.New(ctx, cfg)
	if err != nil {
		logger.New().Error("Failed to initialize filedrop", logger.Error(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.New().Error("filedrop stopped with error", logger.Error(err))
		os.Exit(1)
	}
}
