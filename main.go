package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"

	"imgcdn/config"
	"imgcdn/di"
	"imgcdn/rest"
	"imgcdn/utils/logger"
)

func main() {
	log := logger.InitLogger()
	log.Info("Starting image proxy")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.NewApplicationComponents(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to build application components", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	rest.RegisterRoutes(e, container, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped", "error", err)
			stop()
		}
	}()
	log.Info("Server listening", "addr", addr,
		"storage", container.Storage.Name(), "cache", container.EdgeCache.Name())

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}
