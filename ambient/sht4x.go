// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ambient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/aq-station/core/common"
	"github.com/aq-station/core/sample"
)

// SHT4xAddr is the default 7-bit address for a Sensirion SHT4x-family
// temperature and humidity sensor, the station's second ambient sensor kind
// (the AM2320-style I2CSensor serves the first).
const SHT4xAddr uint16 = 0x44

const (
	cmdSHT4xMeasure      byte = 0xFD
	sht4xMeasureDelay         = 10 * time.Millisecond
	sht4xCountDivisor         = float64(65535)
)

// ErrCRC is returned when a SHT4x reading fails its CRC8 check.
var ErrCRC = errors.New("ambient: sht4x CRC mismatch")

// SHT4xSensor adapts a Sensirion SHT4x-family device: one measurement
// command, a fixed settle delay, then a six-byte response (temperature word,
// CRC, humidity word, CRC) validated with the Sensirion CRC8 polynomial
// shared by package common.
type SHT4xSensor struct {
	d *i2c.Dev
}

// NewSHT4x returns a Sensor backed by the given bus. The connection is
// tested with one measurement cycle.
func NewSHT4x(b i2c.Bus, addr uint16) (*SHT4xSensor, error) {
	s := &SHT4xSensor{d: &i2c.Dev{Bus: b, Addr: addr}}
	if _, err := s.Read(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return s, nil
}

// Read issues the measurement command, waits the fixed settle delay, then
// reads and CRC-validates the six-byte response.
func (s *SHT4xSensor) Read(ctx context.Context) (sample.Ambient, error) {
	if err := ctx.Err(); err != nil {
		return sample.Ambient{}, err
	}
	if err := s.d.Tx([]byte{cmdSHT4xMeasure}, nil); err != nil {
		return sample.Ambient{}, fmt.Errorf("ambient: sht4x measure: %w", err)
	}
	time.Sleep(sht4xMeasureDelay)

	resp := make([]byte, 6)
	if err := s.d.Tx(nil, resp); err != nil {
		return sample.Ambient{}, fmt.Errorf("ambient: sht4x read: %w", err)
	}
	if common.CRC8(resp[:2]) != resp[2] {
		return sample.Ambient{}, fmt.Errorf("%w: temperature word", ErrCRC)
	}
	if common.CRC8(resp[3:5]) != resp[5] {
		return sample.Ambient{}, fmt.Errorf("%w: humidity word", ErrCRC)
	}

	tempCount := uint16(resp[0])<<8 | uint16(resp[1])
	humCount := uint16(resp[3])<<8 | uint16(resp[4])

	return sample.Ambient{
		TemperatureC: -45.0 + 175.0*(float64(tempCount)/sht4xCountDivisor),
		HumidityPct:  clampPct(-6.0 + 125.0*(float64(humCount)/sht4xCountDivisor)),
		Valid:        true,
	}, nil
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
