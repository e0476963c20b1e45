// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package clock

import (
	"errors"
	"fmt"

	"github.com/aq-station/core/sample"
)

// ErrProvisioning is returned by ParseProvisioningTimestamp when s is not a
// well-formed 14-digit timestamp terminated by ';', or the parsed year falls
// outside [2000, 2099].
var ErrProvisioning = errors.New("clock: malformed provisioning timestamp")

// ParseProvisioningTimestamp parses the 14-digit "YYYYMMDDhhmmss;" string
// accepted over the provisioning/diagnostic channel at boot, validating that
// the year falls within [2000, 2099]. Callers fall back to a build-time
// constant on error rather than leaving the clock unset;
// ParseProvisioningTimestamp does not itself touch a Clock.
func ParseProvisioningTimestamp(s string) (sample.Time, error) {
	if len(s) != 15 || s[14] != ';' {
		return sample.Time{}, fmt.Errorf("%w: %q", ErrProvisioning, s)
	}
	digits := s[:14]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return sample.Time{}, fmt.Errorf("%w: %q", ErrProvisioning, s)
		}
	}

	var t sample.Time
	_, err := fmt.Sscanf(digits, "%04d%02d%02d%02d%02d%02d",
		&t.Year, &t.Month, &t.Day, &t.Hour, &t.Minute, &t.Second)
	if err != nil {
		return sample.Time{}, fmt.Errorf("%w: %q: %w", ErrProvisioning, s, err)
	}
	if t.Year < 2000 || t.Year > 2099 {
		return sample.Time{}, fmt.Errorf("%w: year %d out of range: %q", ErrProvisioning, t.Year, s)
	}
	if t.Month < 1 || t.Month > 12 || t.Day < 1 || t.Day > 31 {
		return sample.Time{}, fmt.Errorf("%w: %q", ErrProvisioning, s)
	}
	if t.Hour > 23 || t.Minute > 59 || t.Second > 59 {
		return sample.Time{}, fmt.Errorf("%w: %q", ErrProvisioning, s)
	}
	return t, nil
}
