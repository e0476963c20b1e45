// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ring implements a single fixed-capacity, overwrite-oldest circular
// buffer type, generic over its element type. observer instantiates one per
// sensor per resolution (high-frequency samples, hourly statistics, daily
// statistics) instead of hand-rolling the index arithmetic once per buffer.
//
// Ring is single-owner: it is not safe for concurrent use, matching the
// cooperative, single-goroutine acquisition loop this package is built for.
package ring

// Ring is a fixed-capacity sequence with overwrite-oldest Push semantics.
// The zero value is not usable; construct with New.
type Ring[T any] struct {
	buf   []T
	start int
	count int
}

// New returns a Ring with the given capacity. Panics if capacity <= 0.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Cap returns the ring's fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Len returns the number of elements currently populated, 0 <= Len() <= Cap().
func (r *Ring[T]) Len() int {
	return r.count
}

// Push appends x. If the ring is full, the logically oldest element is
// overwritten and the start index advances by one.
func (r *Ring[T]) Push(x T) {
	cap := len(r.buf)
	if r.count < cap {
		idx := (r.start + r.count) % cap
		r.buf[idx] = x
		r.count++
		return
	}
	r.buf[r.start] = x
	r.start = (r.start + 1) % cap
}

// Get returns the i-th logically oldest element (0-indexed) and true, or the
// zero value and false if i is out of [0, Len()).
func (r *Ring[T]) Get(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.count {
		return zero, false
	}
	return r.buf[(r.start+i)%len(r.buf)], true
}

// Clear resets the ring to empty without touching the backing array.
func (r *Ring[T]) Clear() {
	r.start = 0
	r.count = 0
}

// Each calls fn once per populated element, in insertion (oldest-first)
// order.
func (r *Ring[T]) Each(fn func(T)) {
	for i := 0; i < r.count; i++ {
		fn(r.buf[(r.start+i)%len(r.buf)])
	}
}

// Slice returns a freshly allocated slice of the populated elements, in
// insertion order. Convenient for handing a window's contents to stats.
func (r *Ring[T]) Slice() []T {
	out := make([]T, 0, r.count)
	r.Each(func(x T) { out = append(out, x) })
	return out
}
