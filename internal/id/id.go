package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	runPrefix    = "run-"
	runStampFmt  = "20060102-150405"
	runSuffixLen = 8
)

// FormatRunID returns a run ID like "run-20250115-103000-1a2b3c4d".
// The suffix is the first eight hex digits of u.
func FormatRunID(t time.Time, u uuid.UUID) string {
	return runPrefix + t.UTC().Format(runStampFmt) + "-" + u.String()[:runSuffixLen]
}

// NewRunID returns a fresh run ID for a run started at t.
func NewRunID(t time.Time) string {
	return FormatRunID(t, uuid.New())
}

// ParseRunID parses a run ID into its start time and suffix.
func ParseRunID(id string) (time.Time, string, error) {
	rest, ok := strings.CutPrefix(id, runPrefix)
	if !ok {
		return time.Time{}, "", fmt.Errorf("invalid run ID format: %q", id)
	}
	if len(rest) != len(runStampFmt)+1+runSuffixLen || rest[len(runStampFmt)] != '-' {
		return time.Time{}, "", fmt.Errorf("invalid run ID format: %q", id)
	}

	ts, err := time.Parse(runStampFmt, rest[:len(runStampFmt)])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid timestamp in run ID %q: %w", id, err)
	}

	suffix := rest[len(runStampFmt)+1:]
	for _, c := range suffix {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return time.Time{}, "", fmt.Errorf("invalid suffix in run ID %q", id)
		}
	}
	return ts, suffix, nil
}
