// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package observer

import (
	"context"
	"log"
	"time"

	"github.com/aq-station/core/ambient"
	"github.com/aq-station/core/clock"
	"github.com/aq-station/core/ring"
	"github.com/aq-station/core/sample"
)

// State names one node of the observation state machine.
type State int

// The seven states the machine cycles through. StateIdle is the initial
// state; StateError always returns to StateIdle on the following Step.
const (
	StateIdle State = iota
	StateRead
	StateStore
	StateCompute
	StatePersist
	StateClean
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRead:
		return "READ"
	case StateStore:
		return "STORE"
	case StateCompute:
		return "COMPUTE"
	case StatePersist:
		return "PERSIST"
	case StateClean:
		return "CLEAN"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Ring sizes per resolution: one sample every ten seconds fills 60 per
// 10-minute window, 6 ten-minute closures fill an hour, 24 hourly closures
// fill a day.
const (
	CapacityTenMin = 60
	CapacityHourly = 6
	CapacityDaily  = 24

	// NumRetries is the per-sensor retry budget inside StateRead.
	NumRetries = 3

	// DelayMeasurement is the minimum wait between StartMeasurement and
	// ReadConcentrations; the SPS30 needs a full measurement interval before
	// its first valid read.
	DelayMeasurement = 5 * time.Second
)

// sensorState bundles one particulate sensor with its three resolution
// rings; Machine owns and mutates these exclusively.
type sensorState struct {
	sensor ParticulateSensor
	hf     *ring.Ring[sample.Sample]
	hourly *ring.Ring[sample.Statistic]
	daily  *ring.Ring[sample.Statistic]
}

// pendingRecord is one statistic produced by a window closure, queued
// between StateCompute and StatePersist.
type pendingRecord struct {
	sensorID   int
	resolution Resolution
	stat       sample.Statistic
}

// pendingCycle carries state gathered in one state from the one after it;
// it is reset once a full IDLE->...->IDLE or IDLE->...->ERROR cycle
// completes.
type pendingCycle struct {
	samples  []sample.Sample
	readTime sample.Time
	crossing crossing

	records []pendingRecord
}

// Machine is the observation state machine and window manager (C5). It owns
// every ring buffer and is the only writer of sample/statistic state; all
// external collaborators are passed in at construction and used only
// through their narrow interfaces.
type Machine struct {
	clk      clock.Clock
	ambients []ambient.Sensor
	sensors  []*sensorState
	store    Store
	log      *log.Logger

	state   State
	bounds  boundaries
	pending pendingCycle

	// measurementDelay is the wait between StartMeasurement and
	// ReadConcentrations inside the retry protocol; defaults to
	// DelayMeasurement and is only overridden by tests (via
	// SetMeasurementDelay) so they don't block on real sensor timing.
	measurementDelay time.Duration
}

// New returns a Machine in StateIdle, with one set of rings allocated per
// sensor in sensors. ambients may be empty, one, or more than one device;
// Read tries each in order and stores the first successful reading (see
// readAmbient).
func New(clk clock.Clock, ambients []ambient.Sensor, sensors []ParticulateSensor, store Store, logger *log.Logger) *Machine {
	if logger == nil {
		logger = log.Default()
	}
	m := &Machine{clk: clk, ambients: ambients, store: store, log: logger, state: StateIdle, measurementDelay: DelayMeasurement}
	for _, s := range sensors {
		m.sensors = append(m.sensors, &sensorState{
			sensor: s,
			hf:     ring.New[sample.Sample](CapacityTenMin),
			hourly: ring.New[sample.Statistic](CapacityHourly),
			daily:  ring.New[sample.Statistic](CapacityDaily),
		})
	}
	return m
}

// State returns the machine's current state.
func (m *Machine) State() State {
	return m.state
}

// SetMeasurementDelay overrides the retry protocol's settle wait. Intended
// for tests; production callers rely on the DelayMeasurement default.
func (m *Machine) SetMeasurementDelay(d time.Duration) {
	m.measurementDelay = d
}

// Step advances the machine by exactly one transition, performing whatever
// work that state's entry action requires. The caller (station/cmd) drives
// Step on a timer; Step itself never sleeps except for the bounded
// measurement-settle delay inside the read protocol, which honors ctx.
func (m *Machine) Step(ctx context.Context) error {
	switch m.state {
	case StateIdle:
		return m.stepIdle(ctx)
	case StateRead:
		return m.stepRead(ctx)
	case StateStore:
		return m.stepStore(ctx)
	case StateCompute:
		return m.stepCompute(ctx)
	case StatePersist:
		return m.stepPersist(ctx)
	case StateClean:
		return m.stepClean(ctx)
	case StateError:
		return m.stepError(ctx)
	default:
		return ErrNotInState
	}
}

// ForceReset returns the machine to StateIdle immediately, clears every
// ring, and abandons any in-flight measurement. It is the only "hard" action
// available to a caller.
func (m *Machine) ForceReset(ctx context.Context) {
	for _, s := range m.sensors {
		_ = s.sensor.StopMeasurement(ctx)
		s.hf.Clear()
		s.hourly.Clear()
		s.daily.Clear()
	}
	m.bounds = boundaries{}
	m.pending = pendingCycle{}
	m.state = StateIdle
	m.log.Printf("[WARN] observer: forced reset to IDLE")
}

// RingLen reports the current population of one sensor's ring at the given
// resolution, for diagnostics and tests; it never panics on an unknown
// sensor ID, returning -1 instead.
func (m *Machine) RingLen(sensorID int, res Resolution) int {
	s := m.findSensor(sensorID)
	if s == nil {
		return -1
	}
	switch res {
	case Resolution10Min:
		return s.hf.Len()
	case Resolution1Hour:
		return s.hourly.Len()
	case Resolution24Hour:
		return s.daily.Len()
	default:
		return -1
	}
}

func (m *Machine) findSensor(id int) *sensorState {
	for _, s := range m.sensors {
		if s.sensor.ID() == id {
			return s
		}
	}
	return nil
}
