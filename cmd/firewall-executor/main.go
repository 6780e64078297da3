// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crypto-pepe/firewall-executor/internal/api"
	"github.com/crypto-pepe/firewall-executor/internal/cloudflare"
	"github.com/crypto-pepe/firewall-executor/internal/config"
	"github.com/crypto-pepe/firewall-executor/internal/executor"
	"github.com/crypto-pepe/firewall-executor/internal/invalidator"
	"github.com/crypto-pepe/firewall-executor/internal/logging"
	"github.com/crypto-pepe/firewall-executor/internal/metrics"
	"github.com/crypto-pepe/firewall-executor/internal/modegate"
	"github.com/crypto-pepe/firewall-executor/internal/store"
	"github.com/crypto-pepe/firewall-executor/internal/tracing"
)

const invalidationInterval = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "/etc/firewall-executor/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}

	logHandle := logging.New(logging.DefaultConfig())
	log := logHandle.Logger()

	shutdownTracing, err := tracing.Setup(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
	})
	if err != nil {
		log.Error().Err(err).Msg("tracing setup failed")
		return 2
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	st, err := store.Open(store.Config{
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DB:       cfg.DB.DB,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
	})
	if err != nil {
		log.Error().Err(err).Msg("open store")
		return 2
	}
	defer st.Close()

	if err := st.LoadSchema(context.Background()); err != nil {
		log.Error().Err(err).Msg("load schema")
		return 2
	}

	timeout, err := cfg.Cloudflare.Timeout()
	if err != nil {
		log.Error().Err(err).Msg("parse cloudflare timeout")
		return 2
	}

	upstream := cloudflare.New(cloudflare.Config{
		BaseURL:             cfg.Cloudflare.BaseURL,
		AccountID:           cfg.Cloudflare.AccountID,
		ZoneID:              cfg.Cloudflare.ZoneID,
		Token:               cfg.Cloudflare.Token,
		InvalidationTimeout: timeout,
	})

	metricsCollector := metrics.NewCollector(prometheus.DefaultRegisterer)

	realExec := &executor.RealExecutor{
		Store:    st,
		Upstream: upstream,
		Logger:   log,
		Metrics:  metricsCollector,
	}
	dryExec := &executor.DryRunExecutor{Logger: log}

	gate := modegate.New(realExec, dryExec, cfg.Server.DryRun, metricsCollector)

	inv := &invalidator.Invalidator{
		Store:    st,
		Upstream: upstream,
		Interval: invalidationInterval,
		Logger:   log,
		Metrics:  metricsCollector,
	}

	server := api.NewServer(api.ServerOptions{
		Gate:    gate,
		Logging: logHandle,
		Config:  api.DefaultServerConfig(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 2)
	go func() {
		errCh <- inv.Run(ctx)
	}()
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		errCh <- server.Start(ctx, addr)
	}()

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		return 0
	case err := <-errCh:
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("task terminated")
			return 2
		}
		return 0
	}
}
