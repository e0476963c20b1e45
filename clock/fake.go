// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package clock

import (
	"context"

	"github.com/aq-station/core/sample"
)

// FakeClock is a Clock test double holding an explicit, steppable time.
type FakeClock struct {
	t sample.Time
}

// NewFake returns a FakeClock starting at t.
func NewFake(t sample.Time) *FakeClock {
	return &FakeClock{t: t}
}

// Now returns the clock's current time. Never errors.
func (f *FakeClock) Now(ctx context.Context) (sample.Time, error) {
	return f.t, nil
}

// Set overwrites the clock's current time. Never errors.
func (f *FakeClock) Set(ctx context.Context, t sample.Time) error {
	f.t = t
	return nil
}

// Advance moves the clock forward by the given number of seconds, handling
// minute/hour/day/month/year carry.
func (f *FakeClock) Advance(seconds int) {
	t := f.t
	t.Second += seconds
	for t.Second >= 60 {
		t.Second -= 60
		t.Minute++
	}
	for t.Minute >= 60 {
		t.Minute -= 60
		t.Hour++
	}
	for t.Hour >= 24 {
		t.Hour -= 24
		t.Day++
	}
	daysIn := func(month, year int) int {
		switch month {
		case 1, 3, 5, 7, 8, 10, 12:
			return 31
		case 4, 6, 9, 11:
			return 30
		case 2:
			if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
				return 29
			}
			return 28
		}
		return 30
	}
	for t.Day > daysIn(t.Month, t.Year) {
		t.Day -= daysIn(t.Month, t.Year)
		t.Month++
		if t.Month > 12 {
			t.Month = 1
			t.Year++
		}
	}
	f.t = t
}
