// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/fileutil"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/logging"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

var (
	// ErrEmptyPath is returned by Save when no ledger path is configured.
	ErrEmptyPath = errors.New("state: empty ledger path")

	// ErrNilState is returned by Save when given a nil ledger.
	ErrNilState = errors.New("state: nil ledger")

	errNullRoot = errors.New("state: ledger root is not an object")
)

// itemKeyDelim separates report, source, and item ID in a compound key.
const itemKeyDelim = "||"

// Load reads the ledger at path. It never fails: a missing or empty file
// gives a fresh ledger, and a file that cannot be decoded is renamed to
// "<path>.corrupt.<timestamp>" before starting fresh.
func Load(path string, now time.Time, log logrus.FieldLogger) *Ledger {
	log = logging.OrDiscard(log)
	if path == "" {
		log.Warn("empty state path, starting fresh")
		return New(now)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Info("no state file found, starting fresh")
		} else {
			log.WithError(err).WithField("path", path).Warn("reading state file failed, starting fresh")
		}
		return New(now)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		log.WithField("path", path).Warn("state file is empty, starting fresh")
		return New(now)
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		dest, qerr := fileutil.Quarantine(path, now)
		if qerr != nil {
			log.WithError(err).WithField("path", path).
				Errorf("state file unreadable and could not be renamed (%v), starting fresh", qerr)
		} else {
			log.WithError(err).WithFields(logrus.Fields{"path": path, "renamed_to": dest}).
				Error("state file unreadable, renamed aside and starting fresh")
		}
		return New(now)
	}
	if l.UpdatedAt == "" {
		l.UpdatedAt = types.FormatUTC(now)
	}
	return &l
}

// Save stamps the ledger with now and writes it atomically as indented
// JSON with sorted keys and a trailing newline. Use it where the caller
// must know the ledger was persisted.
func Save(path string, l *Ledger, now time.Time) error {
	if path == "" {
		return ErrEmptyPath
	}
	if l == nil {
		return ErrNilState
	}
	l.UpdatedAt = types.FormatUTC(now)
	if l.Version <= 0 {
		l.Version = CurrentVersion
	}

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}
	data = append(data, '\n')

	if err := fileutil.WriteAtomic(path, data); err != nil {
		return fmt.Errorf("saving ledger to %s: %w", path, err)
	}
	return nil
}

// SaveBestEffort calls Save and logs instead of returning the error. It
// reports whether the ledger was written.
func SaveBestEffort(path string, l *Ledger, now time.Time, log logrus.FieldLogger) bool {
	log = logging.OrDiscard(log)
	if err := Save(path, l, now); err != nil {
		log.WithError(err).WithField("path", path).Error("saving state failed")
		return false
	}
	log.WithField("path", path).Debug("saved state")
	return true
}

// MakeItemKey joins report, source, and item ID into one compound key.
// Delimiter sequences inside the parts are replaced with "_".
func MakeItemKey(reportKey, source, itemID string) string {
	clean := func(s string) string { return strings.ReplaceAll(s, itemKeyDelim, "_") }
	return clean(reportKey) + itemKeyDelim + clean(source) + itemKeyDelim + clean(itemID)
}

// ParseItemKey splits a key built by MakeItemKey.
func ParseItemKey(key string) (reportKey, source, itemID string, ok bool) {
	parts := strings.Split(key, itemKeyDelim)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
