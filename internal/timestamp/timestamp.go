// Package timestamp parses and renders entry timestamps.
//
// Persisted documents contain three timestamp shapes accumulated over the
// bot's history: RFC 3339 with a trailing "Z", RFC 3339 with an explicit
// numeric offset, and naive strings with no offset at all. Naive strings are
// read as UTC. Historical data must never become unreadable, so rendering
// degrades to the raw string and unknown zones degrade to UTC instead of
// failing the caller.
package timestamp

import (
	"fmt"
	"log/slog"
	"time"
)

// DisplayLayout renders instants as "Jan 02, 2006 at 03:04 PM MST".
const DisplayLayout = "Jan 02, 2006 at 03:04 PM MST"

// naive layouts carry no offset and are interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse converts a persisted timestamp string to an absolute instant.
// It accepts RFC 3339 (with "Z" or a numeric offset) and naive legacy shapes
// interpreted as UTC. The error is non-nil only when nothing parses;
// iteration paths skip and log such entries rather than aborting.
func Parse(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// Location resolves an IANA zone id, degrading to UTC with a logged warning
// for unknown or empty ids. It never fails the caller.
func Location(tzID string) *time.Location {
	if tzID == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tzID)
	if err != nil {
		slog.Warn("invalid timezone, falling back to UTC", "timezone", tzID)
		return time.UTC
	}
	return loc
}

// Format renders a persisted timestamp in the given zone. Entries are
// rendered in the zone they were recorded in, so callers pass the entry's
// own timezone, not the user's current one. An unparseable timestamp is
// returned verbatim.
func Format(raw string, tzID string) string {
	t, err := Parse(raw)
	if err != nil {
		slog.Error("failed to format timestamp", "timestamp", raw, "error", err)
		return raw
	}
	return t.In(Location(tzID)).Format(DisplayLayout)
}

// LocalDate truncates an instant to its calendar date in the given zone.
// Used to group history output by the day each entry was recorded.
func LocalDate(t time.Time, loc *time.Location) (year int, month time.Month, day int) {
	return t.In(loc).Date()
}

// Midnight returns the start of the instant's calendar day in the given zone.
func Midnight(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
