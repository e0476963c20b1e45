// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package stats computes mean, minimum, maximum and standard deviation over
// a sequence of particulate-matter readings. Every function is pure: it
// depends only on its argument slice, never on a clock or any package-level
// state, so windows can be closed and re-closed deterministically in tests.
package stats

import "github.com/aq-station/core/sample"

// Sentinel results, distinct and out of range of any physical concentration
// so callers can branch on them without ambiguity.
const (
	// NoData is returned when a function has no valid input to work with.
	NoData = -999.0
	// StdDevUndefined is returned by StdDev when fewer than two valid
	// samples are present (Bessel's correction divides by n-1).
	StdDevUndefined = -666.0
)

const sqrtTolerance = 1e-7

func valid(v float64) bool {
	return v > sample.MinConc && v <= sample.MaxConc
}

// Mean returns the arithmetic mean of the valid entries in xs, or NoData if
// none are valid.
func Mean(xs []float64) float64 {
	sum := 0.0
	n := 0
	for _, x := range xs {
		if valid(x) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return NoData
	}
	return sum / float64(n)
}

// Min returns the smallest valid entry in xs, or NoData if none are valid.
func Min(xs []float64) float64 {
	first := true
	var m float64
	for _, x := range xs {
		if !valid(x) {
			continue
		}
		if first || x < m {
			m = x
			first = false
		}
	}
	if first {
		return NoData
	}
	return m
}

// Max returns the largest valid entry in xs, or NoData if none are valid.
func Max(xs []float64) float64 {
	first := true
	var m float64
	for _, x := range xs {
		if !valid(x) {
			continue
		}
		if first || x > m {
			m = x
			first = false
		}
	}
	if first {
		return NoData
	}
	return m
}

// StdDev returns the Bessel-corrected sample standard deviation of the valid
// entries in xs: sqrt(sum((x-mean)^2) / (n-1)). Returns StdDevUndefined when
// fewer than two entries are valid, NoData when xs is empty or has no valid
// entries at all.
//
// The square root is computed by bisection to a fixed tolerance rather than
// math.Sqrt, preserving bit-for-bit parity with the records already on disk
// from earlier station builds that computed it the same way.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return NoData
	}
	mean := Mean(xs)
	if mean == NoData {
		return NoData
	}
	sumSq := 0.0
	n := 0
	for _, x := range xs {
		if !valid(x) {
			continue
		}
		d := x - mean
		sumSq += d * d
		n++
	}
	if n <= 1 {
		return StdDevUndefined
	}
	return sqrtBisect(sumSq / float64(n-1))
}

// sqrtBisect computes sqrt(x) for x >= 0 by binary search to within
// sqrtTolerance, avoiding a dependency on math.Sqrt.
func sqrtBisect(x float64) float64 {
	if x <= 0 {
		return 0
	}
	hi := x
	if hi < 1 {
		hi = 1
	}
	lo := 0.0
	for hi-lo > sqrtTolerance {
		mid := (lo + hi) / 2
		if mid*mid > x {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (lo + hi) / 2
}

// Count returns the number of valid entries in xs.
func Count(xs []float64) int {
	n := 0
	for _, x := range xs {
		if valid(x) {
			n++
		}
	}
	return n
}

// Summary bundles the four statistics computed over one closed window.
type Summary struct {
	Count  int
	Mean   float64
	Min    float64
	Max    float64
	StdDev float64
}

// Summarize computes Count, Mean, Min, Max and StdDev over xs in one call,
// the shape observer needs when closing a window.
func Summarize(xs []float64) Summary {
	return Summary{
		Count:  Count(xs),
		Mean:   Mean(xs),
		Min:    Min(xs),
		Max:    Max(xs),
		StdDev: StdDev(xs),
	}
}
