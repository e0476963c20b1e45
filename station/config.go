// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package station loads the acquisition station's YAML configuration and
// wires concrete drivers into an observer.Machine. Nothing here is part of
// the observation pipeline itself (package observer owns that); station only
// assembles it.
package station

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ParticulateSensorConfig names one SPS30's serial device and the sensor ID
// the observation pipeline files its samples and rings under.
type ParticulateSensorConfig struct {
	ID         int    `yaml:"id"`
	SerialPort string `yaml:"serial_port"`
}

// AmbientSensorConfig names one temperature/humidity sensor's kind, I²C
// address, and role (e.g. "enclosure", "outside"); role is carried through
// for diagnostics only, while package observer tries every configured
// ambient sensor in the order given here. Kind selects the concrete driver:
// "am2320" (the default) or "sht4x".
type AmbientSensorConfig struct {
	Role    string `yaml:"role"`
	Kind    string `yaml:"kind"`
	Address uint16 `yaml:"address"`
}

// ClockConfig names the real-time clock's I²C address.
type ClockConfig struct {
	Address uint16 `yaml:"address"`
}

// Location carries the station's site metadata, unused by the observation
// pipeline itself but persisted alongside it for downstream reporting.
type Location struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Config is the station's full YAML configuration.
type Config struct {
	// StorageRoot is the mount point the date-indexed CSV tree is rooted
	// under (package storage's root argument).
	StorageRoot string `yaml:"storage_root"`

	// I2CBus names the periph.io/x/conn/v3/i2c/i2creg bus to open for the
	// clock and ambient sensors; empty string opens the default bus.
	I2CBus string `yaml:"i2c_bus"`

	// TickInterval is the period the host drives observer.Machine.Step on.
	TickInterval time.Duration `yaml:"tick_interval"`

	// SerialTimeout bounds each sps30 transport.Exchange call.
	SerialTimeout time.Duration `yaml:"serial_timeout"`

	// BuildTimestamp is the 14-digit "YYYYMMDDhhmmss;" fallback used when
	// the provisioning channel at boot yields nothing usable.
	BuildTimestamp string `yaml:"build_timestamp"`

	ParticulateSensors []ParticulateSensorConfig `yaml:"particulate_sensors"`
	AmbientSensors     []AmbientSensorConfig     `yaml:"ambient_sensors"`
	Clock              ClockConfig               `yaml:"clock"`
	Location           Location                  `yaml:"location"`
}

// Load reads and parses the YAML configuration at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("station: read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("station: parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.StorageRoot == "" {
		return fmt.Errorf("station: storage_root is required")
	}
	if len(c.ParticulateSensors) == 0 {
		return fmt.Errorf("station: at least one particulate sensor is required")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("station: tick_interval must be positive")
	}
	seen := map[int]bool{}
	for _, s := range c.ParticulateSensors {
		if s.SerialPort == "" {
			return fmt.Errorf("station: particulate sensor %d: serial_port is required", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("station: duplicate particulate sensor id %d", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
