// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fileutil holds the atomic-write and quarantine helpers shared by
// the JSON ledgers.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteAtomic writes data to a temp file beside path and renames it into
// place, so readers see either the old file or the new one. Parent
// directories are created as needed.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// QuarantineName returns "<path>.corrupt.<YYYYMMDDTHHMMSSZ>" for now.
func QuarantineName(path string, now time.Time) string {
	return path + ".corrupt." + now.UTC().Format("20060102T150405Z")
}

// Quarantine renames an unreadable file out of the way and returns the new
// name. If the timestamped name is taken a numeric suffix is added.
func Quarantine(path string, now time.Time) (string, error) {
	dest := QuarantineName(path, now)
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = fmt.Sprintf("%s.%d", QuarantineName(path, now), i)
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("quarantining %s: %w", path, err)
	}
	return dest, nil
}
