// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sps30

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aq-station/core/shdlc"
)

// fakePort is a scripted transport.Port: each call to Exchange consumes the
// next scripted response, ignoring the request bytes unless the test wants
// to assert on them.
type fakePort struct {
	requests  [][]byte
	responses [][]byte
	errs      []error
	i         int
	pulses    []byte
}

func (f *fakePort) Exchange(ctx context.Context, request []byte, responseLen int) ([]byte, error) {
	f.requests = append(f.requests, append([]byte(nil), request...))
	if f.i >= len(f.responses) {
		return nil, assertUnexpectedCall
	}
	resp, err := f.responses[f.i], f.errs[f.i]
	f.i++
	return resp, err
}

func (f *fakePort) Pulse(ctx context.Context, b byte) error {
	f.pulses = append(f.pulses, b)
	return nil
}

var assertUnexpectedCall = errUnexpectedCall{}

type errUnexpectedCall struct{}

func (errUnexpectedCall) Error() string { return "fakePort: no more scripted responses" }

func (f *fakePort) push(resp []byte, err error) {
	f.responses = append(f.responses, resp)
	f.errs = append(f.errs, err)
}

func miso(addr, cmd, status byte, data []byte) []byte {
	body := []byte{addr, cmd, status, byte(len(data))}
	body = append(body, data...)
	var sum byte
	for _, b := range body {
		sum += b
	}
	frame := []byte{shdlc.Delimiter}
	frame = append(frame, body...)
	frame = append(frame, ^sum, shdlc.Delimiter)
	return frame
}

func TestStartMeasurementSendsSubcommand(t *testing.T) {
	p := &fakePort{}
	p.push(miso(0x00, cmdStartMeasurement, 0x00, nil), nil)
	d := New(p, 0)

	err := d.StartMeasurement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7E, 0x00, 0x00, 0x02, 0x01, 0x03, 0xF9, 0x7E}, p.requests[0])
}

func TestReadConcentrationsParsesPayload(t *testing.T) {
	// PM1.0=1.0, PM2.5=2.0, PM4.0=4.0, PM10=10.0, as big-endian float32.
	payload := make([]byte, 16)
	vals := []float32{1, 2, 4, 10}
	for i, v := range vals {
		binary.BigEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}

	p := &fakePort{}
	p.push(miso(0x00, cmdReadMeasurement, 0x00, payload), nil)
	d := New(p, 2)

	conc, err := d.ReadConcentrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, conc.PM1_0)
	assert.Equal(t, 2.0, conc.PM2_5)
	assert.Equal(t, 4.0, conc.PM4_0)
	assert.Equal(t, 10.0, conc.PM10)
}

func TestReadSerialTrimsNulTerminator(t *testing.T) {
	payload := append([]byte("SN123"), 0x00, 0x00, 0x00)
	p := &fakePort{}
	p.push(miso(0x00, cmdDeviceInfo, 0x00, payload), nil)
	d := New(p, 0)

	got, err := d.ReadSerial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SN123", got)
}

func TestExchangeRejectsMismatchedCommand(t *testing.T) {
	p := &fakePort{}
	p.push(miso(0x00, cmdStopMeasurement, 0x00, nil), nil) // wrong cmd for a start request
	d := New(p, 0)

	err := d.StartMeasurement(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedCommand)
}

func TestExchangePropagatesStatusError(t *testing.T) {
	p := &fakePort{}
	p.push(miso(0x00, cmdStartMeasurement, 0x01, nil), nil) // non-zero status
	d := New(p, 0)

	err := d.StartMeasurement(context.Background())
	assert.ErrorIs(t, err, shdlc.ErrStatus)
}

func TestSleepThenWakeRoundTrip(t *testing.T) {
	p := &fakePort{}
	p.push(miso(0x00, cmdSleep, 0x00, nil), nil)
	p.push(miso(0x00, cmdWakeUp, 0x00, nil), nil)
	d := New(p, 1)

	require.NoError(t, d.Sleep(context.Background()))
	require.NoError(t, d.Wake(context.Background()))
	assert.Len(t, p.requests, 2)
	assert.Equal(t, []byte{0xFF}, p.pulses, "Wake must raise the line with a raw 0xFF pulse before the framed request")
}
