// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package observer

import (
	"context"

	"github.com/aq-station/core/sample"
	"github.com/aq-station/core/stats"
)

// stepStore appends the samples gathered in StateRead to their sensors'
// high-frequency rings and the raw CSV, then checks whether a 10-minute
// boundary has been crossed since the previous successful store. The very
// first successful store only seeds the boundary tracker; it never closes
// anything (there is no "previous" window yet).
func (m *Machine) stepStore(ctx context.Context) error {
	for _, smp := range m.pending.samples {
		s := m.findSensor(smp.SensorID)
		s.hf.Push(smp)
		if err := m.store.WriteRaw(smp); err != nil {
			m.log.Printf("[WARN] observer: raw persistence failed sensor=%d: %v", smp.SensorID, err)
		}
	}

	if !m.bounds.hasLast {
		m.bounds = boundariesAt(m.pending.readTime)
		m.state = StateRead
		return nil
	}

	c := m.bounds.observe(m.pending.readTime)
	if !c.tenMin {
		m.state = StateRead
		return nil
	}
	if c.windowsSkipped > 0 {
		m.log.Printf("[WARN] windows skipped: %d", c.windowsSkipped)
	}
	m.pending.crossing = c
	m.state = StateCompute
	return nil
}

// boundariesAt returns a boundaries value seeded from t, as if t were the
// most recently closed instant.
func boundariesAt(t sample.Time) boundaries {
	return boundaries{
		hasLast:  true,
		lastTen:  linearTenMinBlock(t),
		lastHour: linearHour(t),
		lastDay:  linearDay(t),
	}
}

// stepCompute computes the statistic(s) for whichever windows just closed:
// the 10-minute window always (that is what triggers StateCompute), and the
// 1-hour/24-hour windows too when the boundary crossing also crossed those
// resolutions. Each level's closing statistic is pushed into the
// next-resolution ring immediately, not deferred to StateClean, because the
// 1-hour (resp. 24-hour) closure's own value set must include the sibling
// closure that happens in the same pass: an hourly closure folds in the
// 10-minute closure coincident with it.
func (m *Machine) stepCompute(ctx context.Context) error {
	anyData := false
	for _, s := range m.sensors {
		if s.hf.Len() > 0 {
			anyData = true
			break
		}
	}
	if !anyData {
		m.log.Printf("[ERROR] observer: window closed empty at %s", m.pending.readTime.ISO8601())
		m.state = StateError
		return ErrEmptyWindow
	}

	m.pending.records = nil
	for _, s := range m.sensors {
		summary := stats.Summarize(pm25Values(s.hf.Slice()))
		stat := m.newStatistic(s.sensor.ID(), summary)
		m.pending.records = append(m.pending.records, pendingRecord{s.sensor.ID(), Resolution10Min, stat})
		if summary.Count > 0 {
			s.hourly.Push(stat)
		}
	}

	if m.pending.crossing.hour {
		for _, s := range m.sensors {
			summary := stats.Summarize(meanValues(s.hourly.Slice()))
			stat := m.newStatistic(s.sensor.ID(), summary)
			m.pending.records = append(m.pending.records, pendingRecord{s.sensor.ID(), Resolution1Hour, stat})
			if summary.Count > 0 {
				s.daily.Push(stat)
			}
		}
	}

	if m.pending.crossing.day {
		for _, s := range m.sensors {
			summary := stats.Summarize(meanValues(s.daily.Slice()))
			stat := m.newStatistic(s.sensor.ID(), summary)
			m.pending.records = append(m.pending.records, pendingRecord{s.sensor.ID(), Resolution24Hour, stat})
		}
	}

	m.state = StatePersist
	return nil
}

func (m *Machine) newStatistic(sensorID int, summary stats.Summary) sample.Statistic {
	return sample.Statistic{
		SensorID: sensorID,
		End:      m.pending.readTime,
		Count:    summary.Count,
		Mean:     summary.Mean,
		Min:      summary.Min,
		Max:      summary.Max,
		StdDev:   summary.StdDev,
	}
}

// stepPersist writes every pending record to the store. A sink failure is
// logged and non-fatal: acquisition must continue even when the card is
// missing or full.
func (m *Machine) stepPersist(ctx context.Context) error {
	for _, r := range m.pending.records {
		if err := m.store.WriteStatistic(string(r.resolution), r.stat); err != nil {
			m.log.Printf("[WARN] observer: statistic persistence failed sensor=%d resolution=%s: %v", r.sensorID, r.resolution, err)
		}
	}
	m.state = StateClean
	return nil
}

// stepClean clears every ring the just-closed window(s) touched and commits
// the new boundary markers, then returns to StateIdle.
func (m *Machine) stepClean(ctx context.Context) error {
	for _, s := range m.sensors {
		s.hf.Clear()
		if m.pending.crossing.hour {
			s.hourly.Clear()
		}
		if m.pending.crossing.day {
			s.daily.Clear()
		}
	}
	m.bounds = boundariesAt(m.pending.readTime)
	m.pending = pendingCycle{}
	m.state = StateIdle
	return nil
}

// stepError logs the recovery and unconditionally returns to StateIdle. The
// ring buffers are left untouched: an error cycle never corrupts
// already-buffered data.
func (m *Machine) stepError(ctx context.Context) error {
	m.log.Printf("[WARN] observer: ERROR -> IDLE")
	m.pending = pendingCycle{}
	m.state = StateIdle
	return nil
}

// pm25Values extracts the PM2.5 channel from a slice of samples; the
// AVG10/60/24 records report pm2_5 statistics only.
func pm25Values(samples []sample.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Conc.PM2_5
	}
	return out
}

// meanValues extracts the Mean field from a slice of closed-window
// statistics, the input stats.Summarize needs to roll a resolution up to
// the next one.
func meanValues(closures []sample.Statistic) []float64 {
	out := make([]float64, len(closures))
	for i, s := range closures {
		out[i] = s.Mean
	}
	return out
}
