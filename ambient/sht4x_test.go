// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ambient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/aq-station/core/common"
)

// sht4xCycle is the two Playback ops one SHT4xSensor.Read issues: the
// measurement command write, then the six-byte CRC-protected response.
func sht4xCycle(resp []byte) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: SHT4xAddr, W: []byte{cmdSHT4xMeasure}},
		{Addr: SHT4xAddr, R: resp},
	}
}

func sht4xResponse(tempCount, humCount uint16) []byte {
	resp := make([]byte, 6)
	resp[0] = byte(tempCount >> 8)
	resp[1] = byte(tempCount)
	resp[2] = common.CRC8(resp[:2])
	resp[3] = byte(humCount >> 8)
	resp[4] = byte(humCount)
	resp[5] = common.CRC8(resp[3:5])
	return resp
}

func TestSHT4xReadDecodesValidResponse(t *testing.T) {
	resp := sht4xResponse(20000, 30000)
	bus := i2ctest.Playback{Ops: append(sht4xCycle(resp), sht4xCycle(resp)...)}
	s, err := NewSHT4x(&bus, SHT4xAddr)
	require.NoError(t, err)

	got, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Valid)
	// T = -45 + 175*(20000/65535) = 8.406...
	assert.InDelta(t, -45.0+175.0*(20000.0/65535.0), got.TemperatureC, 0.001)
	// RH = -6 + 125*(30000/65535) = 51.22...
	assert.InDelta(t, -6.0+125.0*(30000.0/65535.0), got.HumidityPct, 0.001)
}

func TestSHT4xReadRejectsBadCRC(t *testing.T) {
	resp := sht4xResponse(20000, 30000)
	resp[2] ^= 0xFF // corrupt the temperature CRC
	bus := i2ctest.Playback{Ops: sht4xCycle(resp)}

	s := &SHT4xSensor{d: &i2c.Dev{Bus: &bus, Addr: SHT4xAddr}}
	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, ErrCRC)
}

func TestSHT4xNewPropagatesConnectionFailure(t *testing.T) {
	bus := i2ctest.Playback{DontPanic: true}
	_, err := NewSHT4x(&bus, SHT4xAddr)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestSHT4xHumidityClampsToPhysicalRange(t *testing.T) {
	assert.Equal(t, 0.0, clampPct(-5))
	assert.Equal(t, 100.0, clampPct(105))
	assert.Equal(t, 50.0, clampPct(50))
}
