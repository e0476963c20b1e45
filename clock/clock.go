// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package clock provides the station's notion of wall-clock time: a small
// Clock interface, an I²C-backed implementation for a DS1307/DS3231-style
// real-time clock module, and a FakeClock for deterministic tests of the
// window-boundary logic in package observer.
package clock

import (
	"context"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"

	"github.com/aq-station/core/sample"
)

// I2CAddr is the default 7-bit I²C address for a DS1307/DS3231 real-time
// clock.
const I2CAddr uint16 = 0x68

// ErrConnectionFailed is returned when the driver fails to read the clock
// registers at construction time.
var ErrConnectionFailed = errors.New("clock: failed to connect to RTC")

// Clock reports and sets the station's current time. Time values are always
// expressed as sample.Time, the same tuple used throughout the observation
// pipeline, so that the window-boundary arithmetic in package observer never
// has to convert.
type Clock interface {
	Now(ctx context.Context) (sample.Time, error)
	Set(ctx context.Context, t sample.Time) error
}

// I2CDev reads and writes a DS1307/DS3231-compatible register layout: seven
// consecutive BCD registers starting at 0x00 (seconds, minutes, hours, day of
// week, date, month, year).
type I2CDev struct {
	d *i2c.Dev
}

// NewI2C returns a Clock backed by the given bus. The connection is tested
// immediately with a register read.
func NewI2C(b i2c.Bus, addr uint16) (*I2CDev, error) {
	d := &I2CDev{d: &i2c.Dev{Bus: b, Addr: addr}}
	if _, err := d.Now(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return d, nil
}

func bcdToDec(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

func decToBCD(v int) byte {
	return byte((v/10)<<4 | (v % 10))
}

// Now reads the seven clock registers and decodes them into a sample.Time.
func (d *I2CDev) Now(ctx context.Context) (sample.Time, error) {
	if err := ctx.Err(); err != nil {
		return sample.Time{}, err
	}
	w := []byte{0x00}
	r := make([]byte, 7)
	if err := d.d.Tx(w, r); err != nil {
		return sample.Time{}, fmt.Errorf("clock: read registers: %w", err)
	}
	return sample.Time{
		Second: bcdToDec(r[0] & 0x7F),
		Minute: bcdToDec(r[1]),
		Hour:   bcdToDec(r[2] & 0x3F),
		Day:    bcdToDec(r[4]),
		Month:  bcdToDec(r[5] & 0x1F),
		Year:   2000 + bcdToDec(r[6]),
	}, nil
}

// Set writes t to the seven clock registers. The day-of-week register (index
// 3) is left at 1; nothing in this package derives a weekday.
func (d *I2CDev) Set(ctx context.Context, t sample.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := []byte{
		0x00,
		decToBCD(t.Second),
		decToBCD(t.Minute),
		decToBCD(t.Hour),
		1,
		decToBCD(t.Day),
		decToBCD(t.Month),
		decToBCD(t.Year - 2000),
	}
	if err := d.d.Tx(w, nil); err != nil {
		return fmt.Errorf("clock: write registers: %w", err)
	}
	return nil
}

// String implements conn.Resource.
func (d *I2CDev) String() string {
	return "RTC"
}

// Halt implements conn.Resource. The clock has no running state to stop.
func (d *I2CDev) Halt() error {
	return nil
}
