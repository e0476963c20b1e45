// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package station

import (
	"context"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/aq-station/core/ambient"
	"github.com/aq-station/core/clock"
	"github.com/aq-station/core/observer"
	"github.com/aq-station/core/sps30"
	"github.com/aq-station/core/storage"
	"github.com/aq-station/core/transport"
)

// defaultSerialTimeout bounds sps30 transport exchanges when
// Config.SerialTimeout is left unset.
const defaultSerialTimeout = 500 * time.Millisecond

// Station bundles the assembled observer.Machine with the concrete
// transport.Ports and clock it owns, so the caller can release the former
// on shutdown and provision the latter at boot.
type Station struct {
	Machine *observer.Machine
	Clock   clock.Clock
	ports   []*transport.SerialPort
}

// Close releases every configured particulate sensor's serial port. It does
// not close the I²C bus; the caller opened it via i2creg and owns its
// lifetime.
func (s *Station) Close() error {
	var first error
	for _, p := range s.ports {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build constructs every concrete driver named by cfg and wires them into a
// fresh observer.Machine: one sps30.Dev per configured particulate sensor,
// one ambient.Sensor per configured ambient sensor (ambient.I2CSensor or
// ambient.SHT4xSensor, chosen by Kind), one clock.I2CDev, and a
// storage.CSVStore rooted at cfg.StorageRoot backed by storage.FSSink.
//
// bus must already be open (the caller does this once with
// periph.io/x/conn/v3/i2c/i2creg.Open); Build never opens or closes it.
func Build(cfg Config, bus i2c.Bus, logger *log.Logger) (*Station, error) {
	timeout := cfg.SerialTimeout
	if timeout <= 0 {
		timeout = defaultSerialTimeout
	}

	var sensors []observer.ParticulateSensor
	var ports []*transport.SerialPort
	for _, sc := range cfg.ParticulateSensors {
		port, err := transport.OpenSerial(sc.SerialPort, timeout)
		if err != nil {
			return nil, fmt.Errorf("station: open %s for sensor %d: %w", sc.SerialPort, sc.ID, err)
		}
		ports = append(ports, port)
		dev := sps30.New(port, sc.ID)
		if serial, err := dev.ReadSerial(context.Background()); err != nil {
			logger.Printf("[WARN] station: sensor %d serial number unavailable: %v", sc.ID, err)
		} else {
			logger.Printf("[OK] station: sensor %d serial=%s", sc.ID, serial)
		}
		sensors = append(sensors, dev)
	}

	var ambients []ambient.Sensor
	for _, ac := range cfg.AmbientSensors {
		sensor, err := buildAmbientSensor(bus, ac)
		if err != nil {
			return nil, fmt.Errorf("station: ambient sensor %q at 0x%02x: %w", ac.Role, ac.Address, err)
		}
		ambients = append(ambients, sensor)
	}

	clockAddr := cfg.Clock.Address
	if clockAddr == 0 {
		clockAddr = clock.I2CAddr
	}
	clk, err := clock.NewI2C(bus, clockAddr)
	if err != nil {
		return nil, fmt.Errorf("station: clock at 0x%02x: %w", clockAddr, err)
	}

	store := storage.New(storage.FSSink{}, cfg.StorageRoot)
	machine := observer.New(clk, ambients, sensors, store, logger)

	return &Station{Machine: machine, Clock: clk, ports: ports}, nil
}

// buildAmbientSensor constructs the concrete ambient.Sensor named by ac.Kind
// ("am2320", the default, or "sht4x").
func buildAmbientSensor(bus i2c.Bus, ac AmbientSensorConfig) (ambient.Sensor, error) {
	switch ac.Kind {
	case "", "am2320":
		return ambient.NewI2C(bus, ac.Address)
	case "sht4x":
		return ambient.NewSHT4x(bus, ac.Address)
	default:
		return nil, fmt.Errorf("station: unknown ambient sensor kind %q", ac.Kind)
	}
}
