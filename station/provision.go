// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package station

import (
	"context"
	"fmt"

	"github.com/aq-station/core/clock"
)

// Provision sets clk's time at boot: it tries raw first (the 14-digit
// provisioning string received over the diagnostic channel), and falls back
// to cfg.BuildTimestamp when raw is empty or malformed. An error from the
// fallback itself is returned; a failure of raw alone is not.
func Provision(ctx context.Context, clk clock.Clock, raw string, cfg Config) error {
	if t, err := clock.ParseProvisioningTimestamp(raw); err == nil {
		return clk.Set(ctx, t)
	}
	t, err := clock.ParseProvisioningTimestamp(cfg.BuildTimestamp)
	if err != nil {
		return fmt.Errorf("station: build_timestamp fallback: %w", err)
	}
	return clk.Set(ctx, t)
}
