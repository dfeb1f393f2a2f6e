package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkwelldev/inkwell/internal/config"
	"github.com/inkwelldev/inkwell/internal/db"
	httpx "github.com/inkwelldev/inkwell/internal/http"
	"github.com/inkwelldev/inkwell/internal/observability"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	// tracing is opt-in via OTLP_ENDPOINT
	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), "inkwell", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	bootCtx, bootCancel := config.WithTimeout(10 * time.Second)

	if err := db.EnsureSchema(bootCtx, pool); err != nil {
		bootCancel()
		log.Error("schema bootstrap failed", "err", err)
		os.Exit(1)
	}

	if err := db.EnsureAdminUser(bootCtx, pool, cfg); err != nil {
		bootCancel()
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	bootCancel()

	router := httpx.NewRouter(log, pool, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
