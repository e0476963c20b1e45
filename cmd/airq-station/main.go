// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// airq-station drives the air-quality acquisition pipeline: it loads a YAML
// configuration, wires the configured SPS30 particulate sensors, ambient
// sensors and real-time clock into an observer.Machine, and steps the
// machine on a fixed interval until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/aq-station/core/station"
)

func mainImpl() error {
	configPath := flag.String("config", "/etc/airq-station.yaml", "path to the station's YAML configuration")
	bootTimestamp := flag.String("boot-time", "", "14-digit YYYYMMDDhhmmss; timestamp from the provisioning channel, if any")
	flag.Parse()
	if flag.NArg() != 0 {
		return fmt.Errorf("airq-station: unexpected argument, try -help")
	}

	cfg, err := station.Load(*configPath)
	if err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("airq-station: host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("airq-station: open i2c bus %q: %w", cfg.I2CBus, err)
	}
	defer bus.Close()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	st, err := station.Build(cfg, bus, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Printf("[WARN] airq-station: close: %v", err)
		}
	}()

	ctx := context.Background()
	if err := station.Provision(ctx, st.Clock, *bootTimestamp, cfg); err != nil {
		logger.Printf("[WARN] airq-station: provisioning: %v", err)
	}

	logger.Printf("[OK] airq-station: station %q running, tick=%s", cfg.Location.Name, cfg.TickInterval)
	return run(ctx, st, cfg.TickInterval, logger)
}

// run drives st.Machine.Step on a ticker until the process receives
// SIGINT/SIGTERM, matching the single-threaded cooperative scheduling model
// documented for the observation pipeline: one goroutine, no worker pool.
func run(ctx context.Context, st *station.Station, interval time.Duration, logger *log.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			logger.Printf("[OK] airq-station: shutting down")
			return nil
		case <-ticker.C:
			if err := st.Machine.Step(ctx); err != nil {
				logger.Printf("[WARN] airq-station: step: %v", err)
			}
		}
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "airq-station: %s\n", err)
		os.Exit(1)
	}
}
