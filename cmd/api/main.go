package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"critique-backend/internal/bootstrap"
	"critique-backend/internal/shared/config"
	"critique-backend/internal/shared/server"
	"critique-backend/internal/shared/telemetry"
)

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

	addr := server.Addr(cfg.Port)
	log.Printf("Starting query API on %s", addr)

	if err := server.Serve(ctx, server.NewHTTPServer(addr, app.QueryRouter)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
