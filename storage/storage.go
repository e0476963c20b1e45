// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package storage persists raw samples and window statistics as CSV files
// under a date-indexed directory tree rooted at the station's storage mount,
// typically a removable SD card.
package storage

import (
	"fmt"

	"github.com/aq-station/core/sample"
)

// Sink is the filesystem surface package observer writes through. It is
// narrow enough that tests substitute MemSink instead of touching disk.
type Sink interface {
	MkdirAll(path string) error
	Exists(path string) bool
	AppendLine(path, line string) error
}

// RawPath returns the path for a sensor's raw-sample CSV on the given date,
// rooted at root: root/YYYY/MM/DD/RAW_YYYYMMDD.CSV.
func RawPath(root string, t sample.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/RAW_%04d%02d%02d.CSV",
		root, t.Year, t.Month, t.Day, t.Year, t.Month, t.Day)
}

// StatPath returns the path for a resolution's statistics CSV on the given
// date: root/YYYY/MM/DD/AVG10.csv, AVG60.csv, or AVG24.csv.
func StatPath(root string, t sample.Time, resolution string) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/AVG%s.csv", root, t.Year, t.Month, t.Day, resolution)
}

const (
	rawHeader  = "timestamp,sensor_id,pm1_0,pm2_5,pm4_0,pm10,temp,hum"
	statHeader = "timestamp,pm2_5_mean,sample_count,pm2_5_min,pm2_5_max,pm2_5_std"
)

// CSVStore writes raw samples and closed-window statistics, creating the
// date directory and the header row the first time each file is touched.
type CSVStore struct {
	sink Sink
	root string
}

// New returns a CSVStore rooted at root.
func New(sink Sink, root string) *CSVStore {
	return &CSVStore{sink: sink, root: root}
}

func (s *CSVStore) ensureHeader(path, header string) error {
	if s.sink.Exists(path) {
		return nil
	}
	if err := s.sink.MkdirAll(dirOf(path)); err != nil {
		return fmt.Errorf("storage: mkdir for %s: %w", path, err)
	}
	return s.sink.AppendLine(path, header)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// WriteRaw appends one validated sample to the day's raw CSV, writing the
// header first if the file doesn't yet exist. An ambient reading that failed
// for this sample (sample.Ambient.Valid == false) serializes as empty temp/hum
// fields rather than a misleading 0.00, per the Open Question resolution in
// DESIGN.md.
func (s *CSVStore) WriteRaw(smp sample.Sample) error {
	path := RawPath(s.root, smp.Time)
	if err := s.ensureHeader(path, rawHeader); err != nil {
		return err
	}
	temp, hum := "", ""
	if smp.Ambient.Valid {
		temp = fmt.Sprintf("%.2f", smp.Ambient.TemperatureC)
		hum = fmt.Sprintf("%.2f", smp.Ambient.HumidityPct)
	}
	line := fmt.Sprintf("%s,%d,%.2f,%.2f,%.2f,%.2f,%s,%s",
		smp.Time.ISO8601(), smp.SensorID,
		smp.Conc.PM1_0, smp.Conc.PM2_5, smp.Conc.PM4_0, smp.Conc.PM10,
		temp, hum)
	return s.sink.AppendLine(path, line)
}

// WriteStatistic appends one closed-window statistic record to the
// resolution's CSV ("10", "60", or "24"), writing the header first if
// needed. The file path depends only on root, date and resolution, so every
// sensor's records for that day land in the same file; SensorID is not
// written, and rows of different sensors are not distinguished by any
// column.
func (s *CSVStore) WriteStatistic(resolution string, stat sample.Statistic) error {
	path := StatPath(s.root, stat.End, resolution)
	if err := s.ensureHeader(path, statHeader); err != nil {
		return err
	}
	line := fmt.Sprintf("%s,%.2f,%d,%.2f,%.2f,%.2f",
		stat.End.ISO8601(), stat.Mean, stat.Count, stat.Min, stat.Max, stat.StdDev)
	return s.sink.AppendLine(path, line)
}
