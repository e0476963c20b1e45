// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package observer

import (
	"context"
	"time"
)

// sleepCtx blocks for d or until ctx is cancelled, whichever comes first.
// Both of the pipeline's blocking waits (the measurement-settle delay here
// and sps30's wake-settle delay) use this shape so a station shutdown is
// never stuck behind a multi-second sleep.
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
