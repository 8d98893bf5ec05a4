// Package history builds the time-ordered, timezone-correct, chunked view
// of a category's or group's entries.
//
// All functions are pure computations over an already-loaded record: the
// command layer loads the record, calls in here, and renders the returned
// chunks. Window boundaries are computed in the user's configured timezone;
// each entry's display (and its calendar-date grouping) uses the timezone
// the entry was recorded in.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stattrack/bot/internal/models"
	"github.com/stattrack/bot/internal/timestamp"
)

var (
	// ErrNotFound means the target matches neither a group nor a category.
	ErrNotFound = errors.New("no such category or group")

	// ErrNoEntries means the target exists but has never had an entry.
	ErrNoEntries = errors.New("no entries recorded")

	// ErrNoneInRange means entries exist but the window filtered them all.
	ErrNoneInRange = errors.New("no entries in the requested range")

	// ErrInvalidTimezone means a window was requested but the user's
	// configured timezone does not resolve, so the boundaries cannot be
	// computed.
	ErrInvalidTimezone = errors.New("configured timezone is invalid")
)

// chunkLimit is the soft cap on one outbound message. A date group is never
// split across chunks, so a single oversized group may exceed it.
const chunkLimit = 3500

const dateSeparator = "─────────────────\n"

// Window is a relative day-count pair anchored to "today" in the user's
// timezone. DaysBack is read by absolute value; DaysForward counts days
// back from today that the range should stop short of (zero or negative
// values keep the end day inclusive).
type Window struct {
	DaysBack    int
	DaysForward int
}

// ParseWindow parses a "<back>:<forward>" argument. Anything malformed
// means "no window" (full history), never an error.
func ParseWindow(arg string) *Window {
	back, forward, ok := strings.Cut(arg, ":")
	if !ok {
		return nil
	}
	daysBack, err := strconv.Atoi(strings.TrimSpace(back))
	if err != nil {
		return nil
	}
	daysForward, err := strconv.Atoi(strings.TrimSpace(forward))
	if err != nil {
		return nil
	}
	return &Window{DaysBack: daysBack, DaysForward: daysForward}
}

// Item is one entry materialized for a query, carrying its source category
// (set only for group queries) and its stable storage index within that
// category. Neither is ever persisted.
type Item struct {
	Entry        models.Entry
	Category     string
	StorageIndex int
}

// Resolve collects the target's entries in storage order. Group targets
// union every member category that exists, stamp each item with its source
// category, and stable-sort the union by timestamp ascending (encounter
// order breaks ties). Returns ErrNotFound when the target is neither.
func Resolve(record *models.UserRecord, target string) ([]Item, error) {
	if members, ok := record.Groups[target]; ok {
		var items []Item
		for _, name := range members {
			cat, ok := record.Stats[name]
			if !ok {
				continue
			}
			for i, entry := range cat.Entries {
				items = append(items, Item{Entry: entry, Category: name, StorageIndex: i})
			}
		}
		sort.SliceStable(items, func(i, j int) bool {
			return instantOf(items[i].Entry).Before(instantOf(items[j].Entry))
		})
		return items, nil
	}

	if cat, ok := record.Stats[target]; ok {
		items := make([]Item, 0, len(cat.Entries))
		for i, entry := range cat.Entries {
			items = append(items, Item{Entry: entry, StorageIndex: i})
		}
		return items, nil
	}

	return nil, ErrNotFound
}

// instantOf resolves an entry's absolute instant, using the zero time for
// malformed timestamps so they sort first without breaking the query.
func instantOf(entry models.Entry) time.Time {
	t, err := timestamp.Parse(entry.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// filterWindow keeps items whose absolute instant falls in the window
// anchored at local midnight "today" in the user's configured timezone.
// Entries with malformed timestamps are skipped and logged, never fatal.
func filterWindow(items []Item, w *Window, userTZ string, now time.Time) ([]Item, error) {
	loc, err := time.LoadLocation(userTZ)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, userTZ)
	}

	midnight := timestamp.Midnight(now, loc)
	start := midnight.AddDate(0, 0, -abs(w.DaysBack))
	end := midnight.AddDate(0, 0, -w.DaysForward)
	if w.DaysForward <= 0 {
		// Keep the end day itself inside the range.
		end = end.AddDate(0, 0, 1)
	}

	filtered := items[:0:0]
	for _, item := range items {
		t, err := timestamp.Parse(item.Entry.Timestamp)
		if err != nil {
			slog.Warn("skipping entry with malformed timestamp",
				"timestamp", item.Entry.Timestamp, "error", err)
			continue
		}
		if !t.Before(start) && t.Before(end) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Query produces the display-ready message chunks for a category or group:
// active entries only, newest first, grouped by each entry's own local
// calendar date. now anchors the optional window.
func Query(record *models.UserRecord, target string, w *Window, now time.Time) ([]string, error) {
	return run(record, target, w, now, false)
}

// FullHistory is Query without the deleted-entry filter: every entry is
// annotated with its status, and soft-deleted entries reference the storage
// index /recover needs.
func FullHistory(record *models.UserRecord, target string, w *Window, now time.Time) ([]string, error) {
	return run(record, target, w, now, true)
}

func run(record *models.UserRecord, target string, w *Window, now time.Time, withStatus bool) ([]string, error) {
	items, err := Resolve(record, target)
	if err != nil {
		return nil, err
	}
	if !withStatus {
		items = activeOnly(items)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoEntries, target)
	}

	if w != nil {
		items, err = filterWindow(items, w, record.DisplayTimezone(), now)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w for %q", ErrNoneInRange, target)
		}
	}

	// Newest first for display.
	reverse(items)

	return chunk(target, groupByLocalDate(items), withStatus), nil
}

func activeOnly(items []Item) []Item {
	active := items[:0:0]
	for _, item := range items {
		if !item.Entry.IsDeleted {
			active = append(active, item)
		}
	}
	return active
}

func reverse(items []Item) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

type localDate struct {
	year  int
	month time.Month
	day   int
}

// groupByLocalDate splits consecutive items into runs sharing the same
// calendar date, where each entry's date is taken in its own recorded
// timezone. Items with malformed timestamps land in their own run keyed by
// the zero date.
func groupByLocalDate(items []Item) [][]Item {
	var groups [][]Item
	var current []Item
	var currentDate localDate
	for _, item := range items {
		var date localDate
		if t, err := timestamp.Parse(item.Entry.Timestamp); err == nil {
			loc := timestamp.Location(item.Entry.Timezone)
			date.year, date.month, date.day = timestamp.LocalDate(t, loc)
		}
		if len(current) > 0 && date != currentDate {
			groups = append(groups, current)
			current = nil
		}
		currentDate = date
		current = append(current, item)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// chunk packs date groups into messages. A new chunk starts whenever adding
// the next group would push the current chunk past chunkLimit; the first
// chunk carries the header.
func chunk(target string, groups [][]Item, withStatus bool) []string {
	var messages []string
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 *History for %s:*\n\n", target))

	for i, group := range groups {
		var g strings.Builder
		if i > 0 {
			g.WriteString(dateSeparator)
		}
		for _, item := range group {
			g.WriteString(renderItem(item, withStatus))
		}

		if b.Len()+g.Len() > chunkLimit && strings.TrimSpace(b.String()) != "" {
			messages = append(messages, b.String())
			b.Reset()
		}
		b.WriteString(g.String())
	}

	if strings.TrimSpace(b.String()) != "" {
		messages = append(messages, b.String())
	}
	return messages
}

func renderItem(item Item, withStatus bool) string {
	var b strings.Builder
	b.WriteString("• ")
	if item.Category != "" {
		b.WriteString(fmt.Sprintf("[%s] ", item.Category))
	}
	b.WriteString(FormatValue(item.Entry.Value))
	b.WriteString(" - ")
	b.WriteString(timestamp.Format(item.Entry.Timestamp, item.Entry.Timezone))
	if withStatus {
		if item.Entry.IsDeleted {
			b.WriteString(fmt.Sprintf(" 🗑 deleted (entry #%d, use /recover to restore)", item.StorageIndex))
		} else {
			b.WriteString(" ✅")
		}
	}
	b.WriteString("\n")
	if item.Entry.Note != "" {
		b.WriteString(fmt.Sprintf("  _%s_\n", item.Entry.Note))
	}
	return b.String()
}

// FormatValue renders a measurement without trailing zero noise.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
