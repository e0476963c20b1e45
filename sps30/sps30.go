// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sps30 drives a Sensirion SPS30 particulate matter sensor over its
// shdlc framed protocol, exchanged across a half-duplex UART transport.Port.
// The driver is a pure protocol translator: retries, validation and
// buffering belong to the caller.
package sps30

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aq-station/core/sample"
	"github.com/aq-station/core/shdlc"
	"github.com/aq-station/core/transport"
)

// Command bytes from the sensor's SHDLC command set.
const (
	cmdStartMeasurement byte = 0x00
	cmdStopMeasurement  byte = 0x01
	cmdReadMeasurement  byte = 0x03
	cmdSleep            byte = 0x10
	cmdWakeUp           byte = 0x11
	cmdDeviceInfo       byte = 0xD0
)

const addr byte = 0x00

// measurementSubcommand selects continuous measurement with big-endian
// IEEE-754 float output.
var measurementSubcommand = []byte{0x01, 0x03}

// deviceInfoTypeSerial is the device-information subcommand selecting the
// serial number.
var deviceInfoTypeSerial = []byte{0x03}

// wakePulseByte is the single raw byte that raises the sensor's UART line
// before the framed wake-up request.
const wakePulseByte = 0xFF

const (
	// WakeSettleDelay is the pause after sending the wake pulse before the
	// sensor accepts commands.
	WakeSettleDelay = 50 * time.Millisecond
	// StartSettleDelay is the pause after StartMeasurement before the
	// sensor's ADC has stabilized.
	StartSettleDelay = 2 * time.Millisecond

	maxResponseFrameLen = 64
)

// ErrUnexpectedCommand is returned when a response's echoed command byte
// does not match the request that produced it.
var ErrUnexpectedCommand = errors.New("sps30: response command mismatch")

// Dev is a handle to one SPS30 sensor reachable over port.
type Dev struct {
	port transport.Port
	id   int
}

// New returns a Dev identified by id (the sensor index used throughout
// sample.Sample and sample.Statistic), communicating over port.
func New(port transport.Port, id int) *Dev {
	return &Dev{port: port, id: id}
}

// ID returns the sensor index this Dev was constructed with.
func (d *Dev) ID() int {
	return d.id
}

func (d *Dev) exchange(ctx context.Context, cmd byte, data []byte) (shdlc.Response, error) {
	req := shdlc.EncodeRequest(addr, cmd, data)
	raw, err := d.port.Exchange(ctx, req, maxResponseFrameLen)
	if err != nil {
		return shdlc.Response{}, fmt.Errorf("sps30: exchange cmd=0x%02x: %w", cmd, err)
	}
	resp, err := shdlc.DecodeResponse(raw)
	if err != nil {
		return shdlc.Response{}, fmt.Errorf("sps30: decode cmd=0x%02x: %w", cmd, err)
	}
	if resp.Cmd != cmd {
		return shdlc.Response{}, fmt.Errorf("%w: sent 0x%02x, got 0x%02x", ErrUnexpectedCommand, cmd, resp.Cmd)
	}
	return resp, nil
}

// StartMeasurement puts the sensor into continuous IEEE-754 float output
// mode. Callers should wait StartSettleDelay before the first read.
func (d *Dev) StartMeasurement(ctx context.Context) error {
	_, err := d.exchange(ctx, cmdStartMeasurement, measurementSubcommand)
	return err
}

// StopMeasurement halts continuous measurement.
func (d *Dev) StopMeasurement(ctx context.Context) error {
	_, err := d.exchange(ctx, cmdStopMeasurement, nil)
	return err
}

// Sleep puts the sensor into its lowest power idle mode. Measurement must be
// stopped first.
func (d *Dev) Sleep(ctx context.Context) error {
	_, err := d.exchange(ctx, cmdSleep, nil)
	return err
}

// Wake raises the sensor's UART line with a single unframed 0xFF byte,
// waits WakeSettleDelay, then issues the framed wake-up command. The sensor
// does not reply to the raw pulse itself.
func (d *Dev) Wake(ctx context.Context) error {
	if err := d.port.Pulse(ctx, wakePulseByte); err != nil {
		return fmt.Errorf("sps30: wake pulse: %w", err)
	}
	if err := sleepCtx(ctx, WakeSettleDelay); err != nil {
		return err
	}
	_, err := d.exchange(ctx, cmdWakeUp, nil)
	return err
}

// sleepCtx blocks for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ReadConcentrations reads one measurement and returns the four PM channels.
// The sensor must already be in continuous measurement mode.
func (d *Dev) ReadConcentrations(ctx context.Context) (sample.Concentrations, error) {
	resp, err := d.exchange(ctx, cmdReadMeasurement, nil)
	if err != nil {
		return sample.Concentrations{}, err
	}
	pm1_0, pm2_5, pm4_0, pm10, err := shdlc.PayloadToConcentrations(resp.Payload)
	if err != nil {
		return sample.Concentrations{}, fmt.Errorf("sps30: %w", err)
	}
	return sample.Concentrations{
		PM1_0: float64(pm1_0),
		PM2_5: float64(pm2_5),
		PM4_0: float64(pm4_0),
		PM10:  float64(pm10),
	}, nil
}

// ReadSerial returns the sensor's ASCII serial number, trimmed of its
// trailing NUL terminator.
func (d *Dev) ReadSerial(ctx context.Context) (string, error) {
	resp, err := d.exchange(ctx, cmdDeviceInfo, deviceInfoTypeSerial)
	if err != nil {
		return "", err
	}
	end := len(resp.Payload)
	for i, b := range resp.Payload {
		if b == 0 {
			end = i
			break
		}
	}
	return string(resp.Payload[:end]), nil
}
