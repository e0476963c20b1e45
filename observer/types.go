// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package observer implements the observation state machine and window
// manager: the loop that orders read -> store -> compute -> persist -> clean
// cycles, owns every ring buffer, and is the only component that mutates
// them. External collaborators sit behind the
// ParticulateSensor/ambient.Sensor/clock.Clock/Store interfaces so the whole
// pipeline can be driven from a fake clock and fake sensors in tests.
package observer

import (
	"context"

	"github.com/aq-station/core/sample"
)

// ParticulateSensor is the subset of sps30.Dev the observer drives: start,
// stop, and a single concentration read. Retries, validation and buffering
// live here, not in the sensor driver.
type ParticulateSensor interface {
	ID() int
	StartMeasurement(ctx context.Context) error
	StopMeasurement(ctx context.Context) error
	ReadConcentrations(ctx context.Context) (sample.Concentrations, error)
}

// Store is the persistence surface the observer writes through: one raw
// sample append per successful read, one statistic append per closed window.
// storage.CSVStore implements it.
type Store interface {
	WriteRaw(smp sample.Sample) error
	WriteStatistic(resolution string, stat sample.Statistic) error
}

// Resolution names a window duration, matching the file-name suffix used by
// Store.WriteStatistic ("10", "60", "24").
type Resolution string

const (
	Resolution10Min  Resolution = "10"
	Resolution1Hour  Resolution = "60"
	Resolution24Hour Resolution = "24"
)
