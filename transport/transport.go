// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package transport defines the half-duplex, caller-framed byte exchange
// that package sps30 drives: it sends an already-encoded shdlc request and
// waits for a complete response frame (or a timeout). The concrete
// implementation, SerialPort, is a small adapter over go.bug.st/serial that
// implements one interface and otherwise gets out of the way.
package transport

import (
	"context"
	"errors"
	"time"

	"go.bug.st/serial"
)

// ErrTimeout is returned by Port.Exchange when no response is read within
// the requested timeout.
var ErrTimeout = errors.New("transport: timeout waiting for response")

// Port is the sensor transport interface consumed by package sps30. caller
// supplies an already shdlc-framed request; Exchange returns up to
// responseLen bytes of the raw (still-framed, still-stuffed) response.
type Port interface {
	Exchange(ctx context.Context, request []byte, responseLen int) ([]byte, error)

	// Pulse writes a single unframed byte and does not wait for a reply,
	// used only to raise the sensor's UART line before a framed Wake
	// request (the sensor does not respond to the pulse itself).
	Pulse(ctx context.Context, b byte) error
}

// SerialPort talks to a particulate sensor over a UART, one sensor per SerialPort.
type SerialPort struct {
	port    serialPort
	timeout time.Duration
}

// serialPort is the subset of go.bug.st/serial's Port this package needs;
// declared locally so tests can substitute a fake without importing the
// real driver.
type serialPort interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// NewSerialPort wraps an already-opened serial port. timeout bounds each
// Exchange call.
func NewSerialPort(port serialPort, timeout time.Duration) *SerialPort {
	return &SerialPort{port: port, timeout: timeout}
}

// OpenSerial opens the named UART device (e.g. "/dev/ttyUSB0") at the SPS30's
// fixed 115200 8N1 configuration and returns a ready-to-use SerialPort.
func OpenSerial(name string, timeout time.Duration) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return NewSerialPort(port, timeout), nil
}

// Exchange writes request, then reads up to responseLen bytes. ctx is
// checked once, before the write; the reads themselves are bounded only by
// the configured per-call timeout set on the underlying driver, and a read
// already in progress does not observe ctx cancellation.
func (s *SerialPort) Exchange(ctx context.Context, request []byte, responseLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.port.SetReadTimeout(s.timeout); err != nil {
		return nil, err
	}
	if _, err := s.port.Write(request); err != nil {
		return nil, err
	}

	buf := make([]byte, responseLen)
	total := 0
	for total < responseLen {
		n, err := s.port.Read(buf[total:])
		total += n
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}
	if total == 0 {
		return nil, ErrTimeout
	}
	return buf[:total], nil
}

// Pulse writes b directly to the line, bypassing shdlc framing entirely.
func (s *SerialPort) Pulse(ctx context.Context, b byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.port.Write([]byte{b})
	return err
}

// Close releases the underlying serial port.
func (s *SerialPort) Close() error {
	return s.port.Close()
}
