// axld is the rack control daemon. It opens the motion library over
// the configured rack layout, attaches Modbus-TCP remote I/O gateways,
// and serves the REST/WebSocket control API.
//
// Usage:
//
//	axld [-config /etc/axl/axld.yaml]
//
// Options:
//
//	-config string  Daemon configuration file (YAML); built-in
//	                defaults with AXL_* environment overrides when
//	                omitted
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"axl-go/pkg/axl"
	"axl-go/pkg/board"
	"axl-go/pkg/config"
	"axl-go/pkg/dio"
	"axl-go/pkg/metrics"
	"axl-go/pkg/monitor"
	"axl-go/pkg/safety"
	"axl-go/pkg/server"
)

func main() {
	configFile := flag.String("config", "", "Daemon configuration file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "axld: %v\n", err)
		os.Exit(1)
	}

	log, _, err := cfg.Log.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "axld: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, cfg); err != nil {
		log.Fatal("daemon failed", zap.Error(err))
	}
}

func run(log *zap.Logger, cfg *config.Config) error {
	layout := board.DefaultLayout()
	if cfg.Rack.LayoutFile != "" {
		var err error
		layout, err = board.LoadLayout(cfg.Rack.LayoutFile)
		if err != nil {
			return fmt.Errorf("load layout: %w", err)
		}
		log.Info("rack layout loaded", zap.String("file", cfg.Rack.LayoutFile))
	}

	lib, err := axl.Open(axl.Config{
		Layout:     layout,
		LockPath:   cfg.Rack.LockFile,
		TickPeriod: cfg.Rack.TickPeriod,
		TimeScale:  cfg.Rack.TimeScale,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer lib.Close()

	log.Info("library open",
		zap.String("version", axl.Version),
		zap.Int("boards", lib.Topology().BoardCount()),
		zap.Int("axes", lib.Motion().AxisCount()),
		zap.Float64("tick_period", cfg.Rack.TickPeriod))

	for _, gw := range cfg.Rack.Gateways {
		mod, err := lib.DIO().Module(gw.Module)
		if err != nil {
			return fmt.Errorf("gateway module %d: %w", gw.Module, err)
		}
		err = mod.ConnectGateway(dio.GatewayConfig{
			Address: gw.Address,
			SlaveID: gw.SlaveID,
			InBase:  gw.InBase,
			OutBase: gw.OutBase,
			Period:  gw.Period,
			Timeout: gw.Timeout,
		})
		if err != nil {
			return fmt.Errorf("connect gateway %s: %w", gw.Address, err)
		}
		log.Info("gateway connected",
			zap.Int("module", gw.Module), zap.String("address", gw.Address))
	}

	var archive *monitor.Archive
	if cfg.Monitor.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archive, err = monitor.OpenArchive(ctx, log, cfg.Monitor.DSN)
		cancel()
		if err != nil {
			return fmt.Errorf("open monitor archive: %w", err)
		}
		defer archive.Close()
		log.Info("monitor archive open")
	}

	chain := safety.NewChain(log)
	for no := 0; no < lib.Motion().AxisCount(); no++ {
		ax, err := lib.Motion().Axis(no)
		if err != nil {
			return err
		}
		chain.RegisterAxis(fmt.Sprintf("axis-%d", no), ax)
	}
	for no := 0; no < lib.DIO().ModuleCount(); no++ {
		mod, err := lib.DIO().Module(no)
		if err != nil {
			return err
		}
		chain.RegisterOutputs(fmt.Sprintf("dio-%d", no), mod)
	}

	rm := metrics.NewRackMetrics(nil)
	srv := server.New(log, cfg.Server, lib, rm, chain, archive)
	pub := server.NewPublisher(log, lib, srv.Hub(), rm)

	srv.Start()
	pub.Start(0)
	log.Info("control server ready", zap.String("bind", cfg.Server.Bind))

	sigCtx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Info("shutting down")
	pub.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	return nil
}
