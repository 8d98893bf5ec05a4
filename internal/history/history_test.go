package history

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stattrack/bot/internal/models"
)

// now anchors every windowed test: 2024-01-10T00:00:00Z.
var now = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func record(timezone string) *models.UserRecord {
	r := models.NewUserRecord()
	r.Timezone = timezone
	return r
}

func entry(value float64, ts string) models.Entry {
	return models.Entry{Value: value, Timestamp: ts, Timezone: "UTC"}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		arg  string
		want *Window
	}{
		{"-7:0", &Window{DaysBack: -7, DaysForward: 0}},
		{"-30:-7", &Window{DaysBack: -30, DaysForward: -7}},
		{"7:1", &Window{DaysBack: 7, DaysForward: 1}},
		{" -7 : 0 ", &Window{DaysBack: -7, DaysForward: 0}},
		{"abc:def", nil},
		{"-7", nil},
		{"", nil},
		{"1:2:3", nil},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseWindow(tt.arg))
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	_, err := Resolve(record("UTC"), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveGroupUnion(t *testing.T) {
	r := record("UTC")
	r.Stats["squats"] = &models.Category{Entries: []models.Entry{
		entry(10, "2024-01-02T10:00:00Z"),
		entry(12, "2024-01-04T10:00:00Z"),
	}}
	r.Stats["pushups"] = &models.Category{Entries: []models.Entry{
		entry(30, "2024-01-03T10:00:00Z"),
	}}
	r.Groups["workout"] = []string{"squats", "pushups", "missing"}

	items, err := Resolve(r, "workout")
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Sorted by timestamp ascending, each stamped with its source category.
	assert.Equal(t, []float64{10, 30, 12}, []float64{items[0].Entry.Value, items[1].Entry.Value, items[2].Entry.Value})
	assert.Equal(t, []string{"squats", "pushups", "squats"}, []string{items[0].Category, items[1].Category, items[2].Category})

	// Storage indices are positions within each source category.
	assert.Equal(t, 0, items[0].StorageIndex)
	assert.Equal(t, 0, items[1].StorageIndex)
	assert.Equal(t, 1, items[2].StorageIndex)
}

func TestQueryWindowSemantics(t *testing.T) {
	// Entries at 01-01, 01-05 and 01-10; window (-7,0) as-if today is
	// 01-10 in UTC keeps 01-05 and 01-10 (01-01 falls outside [01-03, 01-11)).
	r := record("UTC")
	r.Stats["weight"] = &models.Category{Entries: []models.Entry{
		entry(10, "2024-01-01T00:00:00Z"),
		entry(20, "2024-01-05T00:00:00Z"),
		entry(30, "2024-01-10T00:00:00Z"),
	}}

	messages, err := Query(r, "weight", &Window{DaysBack: -7, DaysForward: 0}, now)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.NotContains(t, messages[0], "• 10 -")
	assert.Contains(t, messages[0], "• 20 -")
	assert.Contains(t, messages[0], "• 30 -")

	// Newest first.
	assert.Less(t, strings.Index(messages[0], "• 30 -"), strings.Index(messages[0], "• 20 -"))
}

func TestQueryWindowBoundaries(t *testing.T) {
	r := record("UTC")
	r.Stats["weight"] = &models.Category{Entries: []models.Entry{
		entry(1, "2024-01-03T00:00:00Z"), // exactly at start: included
		entry(2, "2024-01-02T23:59:59Z"), // just before start: excluded
		entry(3, "2024-01-11T00:00:00Z"), // exactly at end: excluded
	}}

	messages, err := Query(r, "weight", &Window{DaysBack: -7, DaysForward: 0}, now)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "• 1 -")
	assert.NotContains(t, messages[0], "• 2 -")
	assert.NotContains(t, messages[0], "• 3 -")
}

func TestQueryWindowPositiveForwardExcludesToday(t *testing.T) {
	r := record("UTC")
	r.Stats["weight"] = &models.Category{Entries: []models.Entry{
		entry(5, "2024-01-08T12:00:00Z"),
		entry(6, "2024-01-09T06:00:00Z"),
	}}

	// forward=1 gets no inclusive bump: the range is [01-03, 01-09),
	// so the 01-09 entry is out.
	messages, err := Query(r, "weight", &Window{DaysBack: -7, DaysForward: 1}, now)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "• 5 -")
	assert.NotContains(t, messages[0], "• 6 -")
}

func TestQueryMalformedWindowMeansNoWindow(t *testing.T) {
	r := record("UTC")
	r.Stats["weight"] = &models.Category{Entries: []models.Entry{
		entry(10, "2020-06-01T00:00:00Z"),
	}}

	// A malformed window argument parses to nil and the full history is
	// returned; this mirrors the caller passing ParseWindow("abc:def").
	require.Nil(t, ParseWindow("abc:def"))
	messages, err := Query(r, "weight", ParseWindow("abc:def"), now)
	require.NoError(t, err)
	assert.Contains(t, messages[0], "• 10 -")
}

func TestQueryDistinguishesEmptyFromFiltered(t *testing.T) {
	r := record("UTC")
	r.Stats["empty"] = &models.Category{}
	r.Stats["old"] = &models.Category{Entries: []models.Entry{
		entry(10, "2020-01-01T00:00:00Z"),
	}}

	_, err := Query(r, "empty", nil, now)
	assert.ErrorIs(t, err, ErrNoEntries)

	_, err = Query(r, "old", &Window{DaysBack: -7, DaysForward: 0}, now)
	assert.ErrorIs(t, err, ErrNoneInRange)
}

func TestQueryInvalidUserTimezone(t *testing.T) {
	r := record("Invalid/Zone")
	r.Stats["weight"] = &models.Category{Entries: []models.Entry{
		entry(10, "2024-01-09T00:00:00Z"),
	}}

	// Only windowed queries need the user zone; without a window the
	// query must still succeed.
	_, err := Query(r, "weight", nil, now)
	require.NoError(t, err)

	_, err = Query(r, "weight", &Window{DaysBack: -7, DaysForward: 0}, now)
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestQueryExcludesDeletedFullHistoryKeepsThem(t *testing.T) {
	r := record("UTC")
	deleted := entry(20, "2024-01-09T10:00:00Z")
	deleted.IsDeleted = true
	r.Stats["weight"] = &models.Category{Entries: []models.Entry{
		entry(10, "2024-01-08T10:00:00Z"),
		deleted,
	}}

	messages, err := Query(r, "weight", nil, now)
	require.NoError(t, err)
	assert.NotContains(t, messages[0], "• 20 -")

	full, err := FullHistory(r, "weight", nil, now)
	require.NoError(t, err)
	assert.Contains(t, full[0], "• 20 -")
	assert.Contains(t, full[0], "🗑 deleted (entry #1")
	assert.Contains(t, full[0], "• 10 -")
}

func TestQueryGroupsByLocalDateWithSeparator(t *testing.T) {
	r := record("UTC")
	r.Stats["weight"] = &models.Category{Entries: []models.Entry{
		entry(1, "2024-01-08T09:00:00Z"),
		entry(2, "2024-01-08T21:00:00Z"),
		entry(3, "2024-01-09T09:00:00Z"),
	}}

	messages, err := Query(r, "weight", nil, now)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	// Two date groups => exactly one separator, between them.
	assert.Equal(t, 1, strings.Count(messages[0], dateSeparator))
	sep := strings.Index(messages[0], dateSeparator)
	assert.Less(t, strings.Index(messages[0], "• 3 -"), sep)
	assert.Greater(t, strings.Index(messages[0], "• 1 -"), sep)
}

func TestLocalDateGroupingUsesEntryTimezone(t *testing.T) {
	// 2024-01-08T20:00Z is Jan 9 in Ho Chi Minh City. Recorded there, it
	// must group with the Jan 9 entries, not the Jan 8 ones.
	r := record("UTC")
	hcmc := models.Entry{Value: 2, Timestamp: "2024-01-08T20:00:00Z", Timezone: "Asia/Ho_Chi_Minh"}
	r.Stats["weight"] = &models.Category{Entries: []models.Entry{
		entry(1, "2024-01-08T10:00:00Z"),
		hcmc,
		entry(3, "2024-01-09T02:00:00Z"),
	}}

	messages, err := Query(r, "weight", nil, now)
	require.NoError(t, err)

	// Entries 3 and 2 share Jan 9 locally; entry 1 stands alone.
	sep := strings.Index(messages[0], dateSeparator)
	assert.Less(t, strings.Index(messages[0], "• 3 -"), sep)
	assert.Less(t, strings.Index(messages[0], "• 2 -"), sep)
	assert.Greater(t, strings.Index(messages[0], "• 1 -"), sep)
}

func TestChunkingSplitsOnDateGroups(t *testing.T) {
	r := record("UTC")
	cat := &models.Category{}
	// 40 days x 3 entries with fat notes forces multiple chunks.
	note := strings.Repeat("x", 120)
	for day := 0; day < 40; day++ {
		ts := time.Date(2023, 11, 1, 8, 0, 0, 0, time.UTC).AddDate(0, 0, day)
		for i := 0; i < 3; i++ {
			cat.Entries = append(cat.Entries, models.Entry{
				Value:     float64(day*10 + i),
				Note:      note,
				Timestamp: ts.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
				Timezone:  "UTC",
			})
		}
	}
	r.Stats["weight"] = cat

	messages, err := Query(r, "weight", nil, now)
	require.NoError(t, err)
	require.Greater(t, len(messages), 1, "expected chunked output")

	for i, msg := range messages {
		assert.LessOrEqual(t, len(msg), chunkLimit+700, "chunk %d exceeds the soft limit by too much", i)
	}
	assert.True(t, strings.HasPrefix(messages[0], "📊 *History for weight:*"))

	// Every entry must appear exactly once across all chunks.
	all := strings.Join(messages, "")
	for day := 0; day < 40; day++ {
		assert.Equal(t, 1, strings.Count(all, fmt.Sprintf("• %d -", day*10)), "day %d", day)
	}
}

func TestGroupQueryTagsSourceCategory(t *testing.T) {
	r := record("UTC")
	r.Stats["squats"] = &models.Category{Entries: []models.Entry{entry(10, "2024-01-08T10:00:00Z")}}
	r.Stats["pushups"] = &models.Category{Entries: []models.Entry{entry(30, "2024-01-09T10:00:00Z")}}
	r.Groups["workout"] = []string{"squats", "pushups"}

	messages, err := Query(r, "workout", nil, now)
	require.NoError(t, err)
	assert.Contains(t, messages[0], "• [squats] 10 -")
	assert.Contains(t, messages[0], "• [pushups] 30 -")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "75.5", FormatValue(75.5))
	assert.Equal(t, "10", FormatValue(10))
	assert.Equal(t, "0.25", FormatValue(0.25))
}
