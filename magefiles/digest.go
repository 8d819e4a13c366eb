//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Digest groups the run targets.
type Digest mg.Namespace

func runDigest(mode string) error {
	mg.SerialDeps(Init, Build)
	return sh.RunV(filepath.Join(binDir, binName), "run", "--mode", mode)
}

// Daily builds the CLI and runs a daily digest.
func (Digest) Daily() error { return runDigest("daily") }

// Weekly builds the CLI and runs a weekly digest.
func (Digest) Weekly() error { return runDigest("weekly") }

// Monthly builds the CLI and runs a monthly digest, updating the rollups.
func (Digest) Monthly() error { return runDigest("monthly") }
