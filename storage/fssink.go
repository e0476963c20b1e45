// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package storage

import (
	"fmt"
	"os"
)

// FSSink is the production Sink, backed by the local filesystem.
type FSSink struct{}

// MkdirAll creates path and any missing parents.
func (FSSink) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Exists reports whether path names a regular file.
func (FSSink) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// AppendLine opens path for append (creating it if needed) and writes line
// followed by a newline.
func (FSSink) AppendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}
