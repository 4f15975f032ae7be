package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"critique-backend/internal/bootstrap"
	"critique-backend/internal/conversation"
	"critique-backend/internal/shared/config"
	"critique-backend/internal/shared/server"
	"critique-backend/internal/shared/telemetry"
)

const sweepInterval = time.Minute

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	addr := server.Addr(cfg.BotPort)
	log.Printf("Starting chat webhook on %s", addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, server.NewHTTPServer(addr, app.BotRouter))
	})
	if mem, ok := app.States.(*conversation.MemoryStateStore); ok {
		g.Go(func() error {
			return mem.Run(gctx, sweepInterval, func(removed int) {
				telemetry.Debug("conversation.sweep", map[string]any{"removed": removed})
			})
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("bot stopped: %v", err)
	}
}
