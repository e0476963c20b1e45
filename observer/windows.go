// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package observer

import "github.com/aq-station/core/sample"

// daysFromCivil converts a (year, month, day) calendar date to a day count
// with an arbitrary but consistent epoch, using Howard Hinnant's
// days-from-civil algorithm. It lets the boundary detector below compare
// timestamps across month and year rollovers without depending on time.Time
// (the external clock reports sample.Time, not time.Time).
func daysFromCivil(y, m, d int) int64 {
	yy := int64(y)
	if m <= 2 {
		yy--
	}
	era := yy
	if era < 0 {
		era -= 399
	}
	era /= 400
	yoe := yy - era*400
	mm := int64(m)
	dd := int64(d)
	var doy int64
	if mm > 2 {
		doy = (153*(mm-3) + 2) / 5
	} else {
		doy = (153*(mm+9) + 2) / 5
	}
	doy += dd - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// linearTenMinBlock returns a monotonically increasing 10-minute block
// number: days-since-epoch * 144 + TenMinBlock(). Differencing two of these
// counts the number of 10-minute windows between two timestamps, including
// across day boundaries.
func linearTenMinBlock(t sample.Time) int64 {
	return daysFromCivil(t.Year, t.Month, t.Day)*144 + int64(t.TenMinBlock())
}

// linearHour returns a monotonically increasing hour number.
func linearHour(t sample.Time) int64 {
	return daysFromCivil(t.Year, t.Month, t.Day)*24 + int64(t.Hour)
}

// linearDay returns a monotonically increasing day number.
func linearDay(t sample.Time) int64 {
	return daysFromCivil(t.Year, t.Month, t.Day)
}

// boundaries tracks the last-closed block/hour/day seen by the window
// manager. The zero value means "nothing stored yet"; hasLast distinguishes
// that from a legitimately-zero linear count.
type boundaries struct {
	hasLast  bool
	lastTen  int64
	lastHour int64
	lastDay  int64
}

// crossing describes which resolutions a newly-observed timestamp closes,
// and how many 10-minute windows were skipped entirely (clock jumped
// forward by more than one window).
type crossing struct {
	tenMin         bool
	hour           bool
	day            bool
	windowsSkipped int64
}

// observe compares now against the last-seen boundaries and reports which
// windows just closed. It does not mutate b; callers commit the new
// boundaries explicitly once the closure has been persisted (see
// Machine.stepClean).
func (b boundaries) observe(now sample.Time) crossing {
	ten := linearTenMinBlock(now)
	hour := linearHour(now)
	day := linearDay(now)

	if !b.hasLast {
		return crossing{}
	}

	var c crossing
	if ten != b.lastTen {
		c.tenMin = true
		if ten > b.lastTen+1 {
			c.windowsSkipped = ten - b.lastTen - 1
		}
	}
	if hour != b.lastHour {
		c.hour = true
	}
	if day != b.lastDay {
		c.day = true
	}
	return c
}
