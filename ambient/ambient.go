// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ambient reads the station's temperature/humidity pair. A failed
// ambient read never aborts a measurement cycle: package observer stores the
// particulate sample regardless and marks sample.Ambient.Valid false.
package ambient

import (
	"context"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/aq-station/core/sample"
)

// I2CAddr is the default 7-bit address for an AM2320-style temperature and
// humidity sensor.
const I2CAddr uint16 = 0x5C

// ErrConnectionFailed is returned when the driver cannot complete an initial
// probe read at construction time.
var ErrConnectionFailed = errors.New("ambient: failed to connect to sensor")

// Sensor reads one ambient temperature/humidity pair per call. The station
// may configure several ambient sensors; package observer tries them in
// order and keeps the first successful reading. Read itself decides and
// reports validity rather than leaving that to the caller, matching
// sample.Ambient.Valid.
type Sensor interface {
	Read(ctx context.Context) (sample.Ambient, error)
}

// I2CSensor adapts an AM2320-family device's wake-then-read command
// sequence: the sensor must be woken with a throwaway write before each
// measurement request.
type I2CSensor struct {
	d *i2c.Dev
}

// NewI2C returns a Sensor backed by the given bus. The connection is tested
// with one wake-and-read cycle.
func NewI2C(b i2c.Bus, addr uint16) (*I2CSensor, error) {
	s := &I2CSensor{d: &i2c.Dev{Bus: b, Addr: addr}}
	if _, err := s.Read(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return s, nil
}

// wake issues the AM2320's required throwaway write to bring it out of
// sleep before a measurement command is accepted.
func (s *I2CSensor) wake() {
	_ = s.d.Tx(nil, nil)
}

// Read wakes the sensor, requests registers 0x00-0x03 (humidity and
// temperature), and decodes them through physic.Env before narrowing to the
// plain floats the acquisition pipeline stores.
func (s *I2CSensor) Read(ctx context.Context) (sample.Ambient, error) {
	if err := ctx.Err(); err != nil {
		return sample.Ambient{}, err
	}
	s.wake()

	req := []byte{0x03, 0x00, 0x04}
	resp := make([]byte, 8)
	if err := s.d.Tx(req, resp); err != nil {
		return sample.Ambient{}, fmt.Errorf("ambient: read registers: %w", err)
	}
	if resp[0] != 0x03 || resp[1] != 0x04 {
		return sample.Ambient{}, fmt.Errorf("ambient: unexpected header %02x %02x", resp[0], resp[1])
	}

	humidityRaw := int(resp[2])<<8 | int(resp[3])
	tempRaw := int(resp[4])<<8 | int(resp[5])
	negative := tempRaw&0x8000 != 0
	tempRaw &^= 0x8000
	if negative {
		tempRaw = -tempRaw
	}

	// The registers carry tenths of a percent and tenths of a degree.
	env := physic.Env{
		Humidity:    physic.RelativeHumidity(humidityRaw) * (physic.PercentRH / 10),
		Temperature: physic.ZeroCelsius + physic.Temperature(tempRaw)*physic.MilliKelvin*100,
	}

	return sample.Ambient{
		TemperatureC: float64(env.Temperature-physic.ZeroCelsius) / float64(physic.Kelvin),
		HumidityPct:  float64(env.Humidity) / float64(physic.PercentRH),
		Valid:        true,
	}, nil
}
