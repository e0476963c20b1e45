// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package storage

import "strings"

// MemSink is an in-memory Sink test double. Files are lines of text keyed
// by path; directories are tracked only so Exists/MkdirAll behave
// consistently with FSSink.
type MemSink struct {
	dirs  map[string]bool
	files map[string][]string
}

// NewMem returns an empty MemSink.
func NewMem() *MemSink {
	return &MemSink{dirs: map[string]bool{}, files: map[string][]string{}}
}

// MkdirAll records path (and its ancestors) as created.
func (m *MemSink) MkdirAll(path string) error {
	for p := path; p != "" && p != "."; p = dirOf(p) {
		m.dirs[p] = true
	}
	return nil
}

// Exists reports whether path has ever been written to.
func (m *MemSink) Exists(path string) bool {
	_, ok := m.files[path]
	return ok
}

// AppendLine appends line to path's in-memory line list, creating it if
// necessary.
func (m *MemSink) AppendLine(path, line string) error {
	m.files[path] = append(m.files[path], line)
	return nil
}

// Lines returns the lines written to path, or nil if it was never touched.
func (m *MemSink) Lines(path string) []string {
	return m.files[path]
}

// Contents joins path's lines with newlines, for snapshot-style assertions.
func (m *MemSink) Contents(path string) string {
	return strings.Join(m.files[path], "\n")
}
