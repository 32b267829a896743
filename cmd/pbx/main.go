package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/coreswitch/pbx/internal/admin"
	"github.com/coreswitch/pbx/internal/config"
	"github.com/coreswitch/pbx/internal/conn"
	"github.com/coreswitch/pbx/internal/metrics"
	"github.com/coreswitch/pbx/internal/pbx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	logger.Info("starting pbx switch",
		"port", cfg.Port,
		"admin_port", cfg.AdminPort,
		"max_extensions", cfg.MaxExtensions,
	)

	startTime := time.Now()
	registry := pbx.NewRegistry(cfg.MaxExtensions, logger)
	coordinator := pbx.NewCoordinator(registry, logger)

	collector := metrics.NewCollector(registry, startTime)
	if err := prometheus.Register(collector); err != nil {
		logger.Error("failed to register metrics collector", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	listenAddr := fmt.Sprintf(":%d", cfg.Port)
	connServer := conn.NewServer(listenAddr, coordinator, logger)
	group.Go(func() error {
		return connServer.Run(groupCtx)
	})

	var adminSrv *http.Server
	if cfg.AdminEnabled() {
		adminAddr := fmt.Sprintf(":%d", cfg.AdminPort)
		adminHandler := admin.NewServer(registry, startTime, logger)
		adminSrv = &http.Server{
			Addr:         adminAddr,
			Handler:      adminHandler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		group.Go(func() error {
			logger.Info("admin http listening", "addr", adminAddr)
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	<-groupCtx.Done()
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer cancel()

	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin http shutdown error", "error", err)
		}
	}

	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Error("registry shutdown did not complete cleanly", "error", err)
	}

	if err := group.Wait(); err != nil {
		logger.Error("pbx exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("pbx stopped")
}
