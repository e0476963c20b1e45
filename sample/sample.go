// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sample defines the immutable value types shared across the
// acquisition pipeline: timestamps, particulate concentration readings,
// ambient temperature/humidity readings, and the statistic records emitted
// when a window closes.
package sample

import "fmt"

// Bounds used to decide whether a single concentration channel is usable.
//
// A channel is valid iff strictly greater than MinConc and less than or
// equal to MaxConc.
const (
	MinConc = 0.5
	MaxConc = 500.0
)

// NumSensors is the number of particulate sensors the station reads.
const NumSensors = 3

// Time is the wall-clock tuple reported by the external clock. It carries no
// timezone; the station treats it as local/UTC per configuration.
type Time struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// TenMinBlock returns the 10-minute-of-day block index, 0..143.
func (t Time) TenMinBlock() int {
	return t.Hour*6 + t.Minute/10
}

// ISO8601 renders the timestamp as YYYY-MM-DDTHH:MM:SSZ.
func (t Time) ISO8601() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// Before reports whether t occurs strictly before o, assuming both share the
// same calendar (no timezone normalization).
func (t Time) Before(o Time) bool {
	if t.Year != o.Year {
		return t.Year < o.Year
	}
	if t.Month != o.Month {
		return t.Month < o.Month
	}
	if t.Day != o.Day {
		return t.Day < o.Day
	}
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	if t.Minute != o.Minute {
		return t.Minute < o.Minute
	}
	return t.Second < o.Second
}

// Concentrations holds the four particulate channels reported by one
// measurement, in micrograms per cubic meter.
type Concentrations struct {
	PM1_0 float64
	PM2_5 float64
	PM4_0 float64
	PM10  float64
}

// Valid reports whether c as a whole should be retained: at least one
// channel must fall in (MinConc, MaxConc].
func (c Concentrations) Valid() bool {
	return channelValid(c.PM1_0) || channelValid(c.PM2_5) || channelValid(c.PM4_0) || channelValid(c.PM10)
}

func channelValid(v float64) bool {
	return v > MinConc && v <= MaxConc
}

// Ambient is a temperature/humidity pair read alongside a particulate
// sample. Valid is false when every configured ambient sensor failed for
// that read cycle, or none is configured; the particulate reading is still
// stored (see DESIGN.md).
type Ambient struct {
	TemperatureC float64
	HumidityPct  float64
	Valid        bool
}

// Sample is one reading from one particulate sensor at one instant.
// Immutable once constructed.
type Sample struct {
	SensorID int
	Time     Time
	Conc     Concentrations
	Ambient  Ambient
}

// Statistic is one aggregation record: the result of closing a window over
// validated samples for one sensor.
type Statistic struct {
	SensorID int
	End      Time
	Count    int
	Mean     float64
	Min      float64
	Max      float64
	StdDev   float64
}
