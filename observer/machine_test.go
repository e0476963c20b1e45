// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package observer

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aq-station/core/ambient"
	"github.com/aq-station/core/clock"
	"github.com/aq-station/core/sample"
	"github.com/aq-station/core/storage"
)

// fakeSensor is a ParticulateSensor test double that always returns the same
// concentration reading, or always fails if errRead is set.
type fakeSensor struct {
	id       int
	conc     sample.Concentrations
	errRead  error
	errStart error
	attempts int
}

func (f *fakeSensor) ID() int { return f.id }

func (f *fakeSensor) StartMeasurement(ctx context.Context) error { return f.errStart }

func (f *fakeSensor) StopMeasurement(ctx context.Context) error { return nil }

func (f *fakeSensor) ReadConcentrations(ctx context.Context) (sample.Concentrations, error) {
	f.attempts++
	if f.errRead != nil {
		return sample.Concentrations{}, f.errRead
	}
	return f.conc, nil
}

func newMachine(t *testing.T, clk clock.Clock, sensors []ParticulateSensor, ambients []ambient.Sensor) (*Machine, *storage.MemSink, *bytes.Buffer) {
	t.Helper()
	mem := storage.NewMem()
	store := storage.New(mem, "/data")
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	m := New(clk, ambients, sensors, store, logger)
	m.SetMeasurementDelay(0)
	return m, mem, &buf
}

// feedSamples drives m through exactly n measurement cycles, advancing clk
// by advanceSeconds before each simulated sensor read, and returns once the
// machine settles (either back in StateRead, having closed no window, or
// back in StateIdle, having closed the final one).
func feedSamples(t *testing.T, m *Machine, clk *clock.FakeClock, ctx context.Context, n, advanceSeconds int) {
	t.Helper()
	count := 0
	for i := 0; i < 10_000; i++ {
		if count >= n && (m.State() == StateIdle || m.State() == StateRead) {
			return
		}
		if m.State() == StateRead {
			clk.Advance(advanceSeconds)
		}
		wasRead := m.State() == StateRead
		err := m.Step(ctx)
		require.NoError(t, err)
		if wasRead {
			count++
		}
	}
	t.Fatal("feedSamples: did not settle within bound")
}

func concOf(v float64) sample.Concentrations {
	return sample.Concentrations{PM1_0: v, PM2_5: v, PM4_0: v, PM10: v}
}

// TestExact10MinuteClosure: 60 samples of
// PM2.5=10.0 spaced 10 seconds apart close exactly one AVG10 window with
// count=60, mean=10.00, std=0.00.
func TestExact10MinuteClosure(t *testing.T) {
	clk := clock.NewFake(sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 12, Minute: 0, Second: 0})
	sensor := &fakeSensor{id: 1, conc: concOf(10.0)}
	m, mem, _ := newMachine(t, clk, []ParticulateSensor{sensor}, nil)
	ctx := context.Background()

	feedSamples(t, m, clk, ctx, 60, 10)

	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 0, m.RingLen(1, Resolution10Min))

	end := sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 12, Minute: 10, Second: 0}
	lines := mem.Lines(storage.StatPath("/data", end, "10"))
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,pm2_5_mean,sample_count,pm2_5_min,pm2_5_max,pm2_5_std", lines[0])
	assert.Equal(t, end.ISO8601()+",10.00,60,10.00,10.00,0.00", lines[1])
}

// TestHourlyRollupFoldsSixTenMinuteMeans: six
// consecutive 10-minute closures, each with a distinct constant PM2.5 value,
// roll up into one hourly mean of the six closure means.
func TestHourlyRollupFoldsSixTenMinuteMeans(t *testing.T) {
	clk := clock.NewFake(sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 12, Minute: 0, Second: 0})
	sensor := &fakeSensor{id: 1, conc: concOf(10.0)}
	m, mem, _ := newMachine(t, clk, []ParticulateSensor{sensor}, nil)
	ctx := context.Background()

	values := []float64{10, 20, 30, 40, 50, 60}
	for _, v := range values {
		sensor.conc = concOf(v)
		feedSamples(t, m, clk, ctx, 6, 100)
	}

	assert.Equal(t, StateIdle, m.State())
	end := sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 13, Minute: 0, Second: 0}
	lines := mem.Lines(storage.StatPath("/data", end, "60"))
	require.Len(t, lines, 2)
	// mean of 10,20,30,40,50,60 = 35.00; sample variance = 1750/5 = 350,
	// sqrt(350) ~= 18.71.
	assert.Equal(t, end.ISO8601()+",35.00,6,10.00,60.00,18.71", lines[1])
}

// TestDailyRollupClosesAtMidnight drives a full simulated day of 10-minute
// closures (one sample per window, 600 seconds apart) and checks that the
// store at midnight cascades through the ten-minute, hourly and daily
// closures, emitting one AVG24 record over the 24 hourly means.
func TestDailyRollupClosesAtMidnight(t *testing.T) {
	clk := clock.NewFake(sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 0, Minute: 0, Second: 0})
	sensor := &fakeSensor{id: 1, conc: concOf(10.0)}
	m, mem, _ := newMachine(t, clk, []ParticulateSensor{sensor}, nil)
	ctx := context.Background()

	// Read k lands at k*10min past midnight; read 144 is the first store of
	// the next day and triggers the daily closure.
	feedSamples(t, m, clk, ctx, 144, 600)

	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 0, m.RingLen(1, Resolution1Hour))
	assert.Equal(t, 0, m.RingLen(1, Resolution24Hour))

	end := sample.Time{Year: 2026, Month: 8, Day: 1}
	lines := mem.Lines(storage.StatPath("/data", end, "24"))
	require.Len(t, lines, 2)
	assert.Equal(t, end.ISO8601()+",10.00,24,10.00,10.00,0.00", lines[1])
}

// TestRetryExhaustionEntersErrorThenIdle: a
// sensor that always fails its read exhausts NumRetries attempts, the
// machine logs [ERROR][SPS30_FAIL] and transitions StateError -> StateIdle
// without touching ring buffers.
func TestRetryExhaustionEntersErrorThenIdle(t *testing.T) {
	clk := clock.NewFake(sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 12, Minute: 0, Second: 0})
	sensor := &fakeSensor{id: 2, errRead: errors.New("transport timeout")}
	m, _, logBuf := newMachine(t, clk, []ParticulateSensor{sensor}, nil)
	ctx := context.Background()

	require.NoError(t, m.Step(ctx)) // Idle -> Read
	err := m.Step(ctx)              // Read -> Error
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllSensorsFailed)
	assert.Equal(t, StateError, m.State())
	assert.Equal(t, NumRetries, sensor.attempts)
	assert.Contains(t, logBuf.String(), "[ERROR][SPS30_FAIL]")
	assert.Contains(t, logBuf.String(), "sensor=2")

	require.NoError(t, m.Step(ctx)) // Error -> Idle
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 0, m.RingLen(2, Resolution10Min))
}

// TestPartialSensorFailureStillAdvances checks that one sensor exhausting
// its retries is diagnosed but does not fail the cycle while another sensor
// succeeds.
func TestPartialSensorFailureStillAdvances(t *testing.T) {
	clk := clock.NewFake(sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 12, Minute: 0, Second: 0})
	good := &fakeSensor{id: 1, conc: concOf(10.0)}
	bad := &fakeSensor{id: 2, errRead: errors.New("transport timeout")}
	m, _, logBuf := newMachine(t, clk, []ParticulateSensor{good, bad}, nil)
	ctx := context.Background()

	require.NoError(t, m.Step(ctx)) // Idle -> Read
	require.NoError(t, m.Step(ctx)) // Read -> Store despite sensor 2 failing
	assert.Equal(t, StateStore, m.State())
	assert.Equal(t, NumRetries, bad.attempts)
	assert.Contains(t, logBuf.String(), "[ERROR][SPS30_FAIL] sensor=2")

	require.NoError(t, m.Step(ctx)) // Store -> Read (no boundary yet)
	assert.Equal(t, 1, m.RingLen(1, Resolution10Min))
	assert.Equal(t, 0, m.RingLen(2, Resolution10Min))
}

// TestClockJumpReportsSkippedWindows: the clock
// jumps forward by three 10-minute blocks between two successful stores; the
// machine reports two skipped windows and still closes the window that was
// open before the jump.
func TestClockJumpReportsSkippedWindows(t *testing.T) {
	clk := clock.NewFake(sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 12, Minute: 5, Second: 0})
	sensor := &fakeSensor{id: 1, conc: concOf(10.0)}
	m, _, logBuf := newMachine(t, clk, []ParticulateSensor{sensor}, nil)
	ctx := context.Background()

	// First sample seeds the boundary tracker; no window closes yet.
	feedSamples(t, m, clk, ctx, 1, 0)
	assert.Equal(t, StateRead, m.State())

	clk.Set(ctx, sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 12, Minute: 35, Second: 0})
	require.NoError(t, m.Step(ctx)) // Read -> Store
	require.NoError(t, m.Step(ctx)) // Store -> Compute (detects the jump)

	assert.Contains(t, logBuf.String(), "[WARN] windows skipped: 2")
}

// TestAmbientFailureStillStoresParticulateSample:
// every configured ambient sensor fails, but the particulate sample is still
// recorded with Ambient.Valid == false.
func TestAmbientFailureStillStoresParticulateSample(t *testing.T) {
	clk := clock.NewFake(sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 9, Minute: 0, Second: 0})
	sensor := &fakeSensor{id: 1, conc: concOf(10.0)}
	amb1 := &ambient.FakeSensor{Errs: []error{errors.New("i2c nack")}}
	amb2 := &ambient.FakeSensor{Errs: []error{errors.New("i2c nack")}}
	m, mem, _ := newMachine(t, clk, []ParticulateSensor{sensor}, []ambient.Sensor{amb1, amb2})
	ctx := context.Background()

	require.NoError(t, m.Step(ctx)) // Idle -> Read
	require.NoError(t, m.Step(ctx)) // Read -> Store
	require.NoError(t, m.Step(ctx)) // Store -> Read (writes the raw row)
	assert.Equal(t, StateRead, m.State())

	path := storage.RawPath("/data", sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 9, Minute: 0, Second: 0})
	lines := mem.Lines(path)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], ",,"), "temp/hum fields serialize empty when ambient failed")
}

func TestForceResetClearsRingsAndReturnsToIdle(t *testing.T) {
	clk := clock.NewFake(sample.Time{Year: 2026, Month: 7, Day: 31, Hour: 9, Minute: 0, Second: 0})
	sensor := &fakeSensor{id: 1, conc: concOf(10.0)}
	m, _, logBuf := newMachine(t, clk, []ParticulateSensor{sensor}, nil)
	ctx := context.Background()

	feedSamples(t, m, clk, ctx, 1, 0)
	require.Equal(t, 1, m.RingLen(1, Resolution10Min))

	m.ForceReset(ctx)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 0, m.RingLen(1, Resolution10Min))
	assert.Contains(t, logBuf.String(), "[WARN] observer: forced reset to IDLE")
}

func TestRingLenUnknownSensorReturnsNegativeOne(t *testing.T) {
	clk := clock.NewFake(sample.Time{})
	m, _, _ := newMachine(t, clk, nil, nil)
	assert.Equal(t, -1, m.RingLen(99, Resolution10Min))
}
