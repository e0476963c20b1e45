// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package observer

import (
	"context"
	"fmt"

	"github.com/aq-station/core/sample"
)

// stepIdle checks that the external clock is present and responsive; on
// success the machine advances to StateRead. A clock failure aborts this
// tick only, per ErrClockUnavailable's documented propagation: the caller
// retries by calling Step again next tick, still in StateIdle.
func (m *Machine) stepIdle(ctx context.Context) error {
	if _, err := m.clk.Now(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrClockUnavailable, err)
	}
	m.pending = pendingCycle{}
	m.state = StateRead
	return nil
}

// stepRead runs the per-sensor retry protocol for every configured sensor,
// collecting one sample.Sample per sensor that succeeds. If every sensor
// fails after NumRetries attempts, the machine moves to StateError with a
// diagnostic; otherwise it moves to StateStore carrying the successful
// samples.
func (m *Machine) stepRead(ctx context.Context) error {
	now, err := m.clk.Now(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrClockUnavailable, err)
	}
	amb := m.readAmbient(ctx)

	var samples []sample.Sample
	var failed []int
	for _, s := range m.sensors {
		conc, ok := m.readWithRetry(ctx, s)
		if !ok {
			failed = append(failed, s.sensor.ID())
			continue
		}
		samples = append(samples, sample.Sample{
			SensorID: s.sensor.ID(),
			Time:     now,
			Conc:     conc,
			Ambient:  amb,
		})
	}

	for _, id := range failed {
		m.log.Printf("[ERROR][SPS30_FAIL] sensor=%d time=%s", id, now.ISO8601())
	}
	if len(samples) == 0 {
		m.state = StateError
		return fmt.Errorf("%w: %v", ErrAllSensorsFailed, failed)
	}

	m.pending.samples = samples
	m.pending.readTime = now
	m.state = StateStore
	return nil
}

// readWithRetry runs up to NumRetries attempts against s, returning the
// first successful concentration reading. An attempt succeeds iff at least
// one channel is valid; transport/codec errors and all-invalid readings are
// both treated as attempt failures and simply retried.
func (m *Machine) readWithRetry(ctx context.Context, s *sensorState) (sample.Concentrations, bool) {
	for attempt := 0; attempt < NumRetries; attempt++ {
		conc, ok := m.readOnce(ctx, s.sensor)
		if ok {
			return conc, true
		}
	}
	return sample.Concentrations{}, false
}

// readOnce runs one StartMeasurement -> wait -> ReadConcentrations ->
// StopMeasurement attempt.
func (m *Machine) readOnce(ctx context.Context, s ParticulateSensor) (sample.Concentrations, bool) {
	if err := s.StartMeasurement(ctx); err != nil {
		return sample.Concentrations{}, false
	}
	defer func() { _ = s.StopMeasurement(ctx) }()

	if err := sleepCtx(ctx, m.measurementDelay); err != nil {
		return sample.Concentrations{}, false
	}

	conc, err := s.ReadConcentrations(ctx)
	if err != nil {
		return sample.Concentrations{}, false
	}
	if !conc.Valid() {
		return sample.Concentrations{}, false
	}
	return conc, true
}

// readAmbient tries each configured ambient sensor in order and returns the
// first successful reading. If none succeed (or none are configured), it
// returns an invalid reading: the particulate sample is still stored, per
// the Open Question resolution in DESIGN.md.
func (m *Machine) readAmbient(ctx context.Context) sample.Ambient {
	for _, s := range m.ambients {
		r, err := s.Read(ctx)
		if err == nil {
			return r
		}
	}
	return sample.Ambient{Valid: false}
}
