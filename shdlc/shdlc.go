// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package shdlc implements the framed transport used by the station's
// particulate sensors: a byte-oriented protocol delimited by 0x7E, with
// byte-stuffed escapes for the four reserved values and a one's-complement
// checksum over the unescaped frame body.
//
// Frame layout, all bytes unless noted:
//
//	0x7E | ADDR | CMD | LEN | DATA[LEN] | CHK | 0x7E
//
// CHK is the bitwise NOT of the low byte of the sum of ADDR+CMD+LEN+DATA.
// Between the delimiters, {0x7E, 0x7D, 0x11, 0x13} are escaped as the pair
// 0x7D, (byte XOR 0x20).
package shdlc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Delimiter and escape bytes.
const (
	Delimiter  byte = 0x7E
	EscapeByte byte = 0x7D
	escapeXOR  byte = 0x20
)

var reservedBytes = [4]byte{0x7E, 0x7D, 0x11, 0x13}

// Sentinel errors returned by DecodeResponse. Use errors.Is to test for
// them; they may be wrapped with additional context.
var (
	// ErrFraming is returned when the two delimiters cannot be located, or
	// the declared length does not match the data present between them.
	ErrFraming = errors.New("shdlc: framing error")
	// ErrStuffing is returned when a stray escape byte appears with no
	// following byte to un-escape.
	ErrStuffing = errors.New("shdlc: dangling escape byte")
	// ErrChecksum is returned when the computed checksum does not match
	// the one carried in the frame.
	ErrChecksum = errors.New("shdlc: checksum mismatch")
	// ErrStatus is returned when the sensor reports a non-zero status byte
	// (carried as the first payload byte per the SPS30 command set).
	ErrStatus = errors.New("shdlc: sensor reported non-zero status")
)

// Response is the decoded, unescaped content of one frame.
type Response struct {
	Addr    byte
	Cmd     byte
	Status  byte
	Payload []byte
}

func isReserved(b byte) bool {
	for _, r := range reservedBytes {
		if b == r {
			return true
		}
	}
	return false
}

// stuff escapes the reserved bytes within body (ADDR..CHK, exclusive of the
// outer delimiters).
func stuff(body []byte) []byte {
	out := make([]byte, 0, len(body)+4)
	for _, b := range body {
		if isReserved(b) {
			out = append(out, EscapeByte, b^escapeXOR)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// unstuff reverses stuff, returning an error if a trailing escape byte has
// no following byte.
func unstuff(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != EscapeByte {
			out = append(out, data[i])
			continue
		}
		i++
		if i >= len(data) {
			return nil, ErrStuffing
		}
		out = append(out, data[i]^escapeXOR)
	}
	return out, nil
}

func checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return ^sum
}

// EncodeRequest builds a complete, escaped, checksummed frame for addr/cmd
// carrying data as its payload.
func EncodeRequest(addr, cmd byte, data []byte) []byte {
	body := make([]byte, 0, 3+len(data))
	body = append(body, addr, cmd, byte(len(data)))
	body = append(body, data...)
	chk := checksum(body)
	body = append(body, chk)

	stuffed := stuff(body)
	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, Delimiter)
	frame = append(frame, stuffed...)
	frame = append(frame, Delimiter)
	return frame
}

// DecodeResponse locates the frame between its delimiters, reverses byte
// stuffing, validates the checksum and the declared length, and returns the
// payload. It never panics; every failure mode returns a sentinel error from
// this package (optionally wrapped).
func DecodeResponse(frame []byte) (Response, error) {
	start := -1
	for i, b := range frame {
		if b == Delimiter {
			start = i
			break
		}
	}
	if start == -1 {
		return Response{}, fmt.Errorf("%w: no opening delimiter", ErrFraming)
	}
	end := -1
	for i := start + 1; i < len(frame); i++ {
		if frame[i] == Delimiter {
			end = i
			break
		}
	}
	if end == -1 || end <= start+1 {
		return Response{}, fmt.Errorf("%w: no closing delimiter", ErrFraming)
	}

	body, err := unstuff(frame[start+1 : end])
	if err != nil {
		return Response{}, err
	}
	if len(body) < 5 {
		return Response{}, fmt.Errorf("%w: frame body too short", ErrFraming)
	}

	addr, cmd, status, length := body[0], body[1], body[2], body[3]
	data := body[4 : len(body)-1]
	chk := body[len(body)-1]

	if int(length) != len(data) {
		return Response{}, fmt.Errorf("%w: declared length %d, got %d", ErrFraming, length, len(data))
	}
	if checksum(body[:len(body)-1]) != chk {
		return Response{}, ErrChecksum
	}
	if status != 0 {
		return Response{}, fmt.Errorf("%w: status=0x%02x", ErrStatus, status)
	}

	return Response{Addr: addr, Cmd: cmd, Status: status, Payload: data}, nil
}

// BytesToFloat32BE interprets a 4-byte big-endian IEEE-754 single-precision
// float.
func BytesToFloat32BE(b [4]byte) float32 {
	bits := binary.BigEndian.Uint32(b[:])
	return math.Float32frombits(bits)
}

// PayloadToConcentrations extracts the four big-endian PM channels from a
// response payload: PM1.0, PM2.5, PM4.0, PM10, each 4 bytes.
func PayloadToConcentrations(payload []byte) (pm1_0, pm2_5, pm4_0, pm10 float32, err error) {
	if len(payload) < 16 {
		return 0, 0, 0, 0, fmt.Errorf("shdlc: payload too short for concentrations: %d bytes", len(payload))
	}
	var b [4]byte
	copy(b[:], payload[0:4])
	pm1_0 = BytesToFloat32BE(b)
	copy(b[:], payload[4:8])
	pm2_5 = BytesToFloat32BE(b)
	copy(b[:], payload[8:12])
	pm4_0 = BytesToFloat32BE(b)
	copy(b[:], payload[12:16])
	pm10 = BytesToFloat32BE(b)
	return pm1_0, pm2_5, pm4_0, pm10, nil
}
