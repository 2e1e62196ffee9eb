package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/dmitrijs2005/mediaoffload/internal/app"
	"github.com/dmitrijs2005/mediaoffload/internal/cli"
	"github.com/dmitrijs2005/mediaoffload/internal/config"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
)

func main() {
	args := os.Args[1:]

	cfg, err := config.LoadConfig(args)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger logging.Logger
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger = logging.NewText(os.Stderr, cfg.LogLevel)
	} else {
		logger = logging.NewJSON(os.Stderr, cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connect := func(ctx context.Context) (*cli.Services, func(), error) {
		deps, err := app.Build(ctx, cfg, logger)
		if err != nil {
			return nil, func() {}, err
		}
		release := func() {
			if err := deps.Close(); err != nil {
				logger.Error(ctx, "close failed", "error", err)
			}
		}
		return &cli.Services{Items: deps.Items, Engine: deps.Engine, Queue: deps.Queue, Signer: deps.Store}, release, nil
	}

	code := cli.NewApp(cfg, os.Stdout, logger, connect).Run(ctx, args)
	stop()
	os.Exit(code)
}
