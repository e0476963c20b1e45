// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ambient

import (
	"context"
	"errors"

	"github.com/aq-station/core/sample"
)

// FakeSensor is a Sensor test double returning a scripted sequence of
// readings, one per call to Read. The last reading repeats once the script
// is exhausted.
type FakeSensor struct {
	Readings []sample.Ambient
	Errs     []error
	calls    int
}

// ErrExhausted is returned when Readings is empty and the call has no
// scripted error in Errs.
var ErrExhausted = errors.New("ambient: fake sensor has no script")

// Read returns the next scripted reading or error.
func (f *FakeSensor) Read(ctx context.Context) (sample.Ambient, error) {
	i := f.calls
	f.calls++
	if i < len(f.Errs) && f.Errs[i] != nil {
		return sample.Ambient{}, f.Errs[i]
	}
	if i < len(f.Readings) {
		return f.Readings[i], nil
	}
	if len(f.Readings) == 0 {
		return sample.Ambient{}, ErrExhausted
	}
	return f.Readings[len(f.Readings)-1], nil
}
