// Command devbackend serves the registration API from memory for local runs
// of regwatch and for manual testing. State is lost on exit.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"hackmate/internal/devbackend"
	"hackmate/internal/platform/config"
	"hackmate/internal/platform/httpserver"
	"hackmate/internal/platform/logger"
)

func main() {
	config.LoadDotEnv()
	cfg := config.DevBackendFromEnv()
	log := logger.New(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := devbackend.NewApp(cfg, log, reg)
	if err != nil {
		log.Error("failed to build dev backend", "error", err)
		os.Exit(1)
	}

	log.Info("initializing devbackend",
		"addr", cfg.Addr,
		"demo_hackathon", devbackend.DemoHackathonID,
		"max_proof_bytes", cfg.MaxProofBytes,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httpserver.ListenAndServe(ctx, httpserver.New(cfg.Addr, app.Router), log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
