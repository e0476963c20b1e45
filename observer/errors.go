// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package observer

import "errors"

var (
	// ErrClockUnavailable is returned when the external clock cannot be read;
	// the current cycle is aborted and retried next tick.
	ErrClockUnavailable = errors.New("observer: clock unavailable")

	// ErrAllSensorsFailed is returned when every particulate sensor exhausted
	// its retry budget in one read cycle.
	ErrAllSensorsFailed = errors.New("observer: all sensors failed")

	// ErrEmptyWindow is returned when a window boundary closed with no
	// sensor having contributed a single sample.
	ErrEmptyWindow = errors.New("observer: window closed with no samples")

	// ErrNotInState is returned when Step (or a state-specific helper) is
	// called while the machine is not in the state it expects; this signals
	// a caller bug, not a recoverable protocol error.
	ErrNotInState = errors.New("observer: machine not in expected state")
)
