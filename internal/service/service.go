// Package service implements the chat command surface over the core
// engines. Every handler performs one full load-compute-save cycle against
// the store adapter; nothing is cached between requests, and concurrent
// commands for the same user are not serialized (last write wins, see
// storage.Adapter).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stattrack/bot/internal/deletion"
	"github.com/stattrack/bot/internal/history"
	"github.com/stattrack/bot/internal/metrics"
	"github.com/stattrack/bot/internal/models"
	"github.com/stattrack/bot/internal/storage"
	"github.com/stattrack/bot/internal/timestamp"
)

// Command is one inbound chat command.
type Command struct {
	Name   string
	Args   []string
	UserID string
}

// Choice is one interactive follow-up button paired with an opaque callback
// payload.
type Choice struct {
	Label string
	Data  string
}

// Reply is the outbound result of a command: one or more text payloads,
// optionally with follow-up choices.
type Reply struct {
	Messages []string
	Choices  []Choice
}

func text(messages ...string) Reply {
	return Reply{Messages: messages}
}

const saveFailedMsg = "⚠️ Your change may not have been saved. Please try again."

const welcomeText = `🎯 *Welcome to Stats Tracker Bot!*

Track any metric across all your devices:
• Weight, workout reps, study hours
• Daily habits, mood, water intake

*Commands:*
/new - Create a new stat category
/add - Add an entry to a stat
/view - View your stats
/history - See stat history
/full - History including deleted entries
/group - Add category groups
/groups - List your groups
/del - Delete entries by number
/recover - Restore a deleted entry
/delete - Delete a category or group
/timezone - Set your timezone
/help - Show this message`

// StatsService handles chat commands against the entry store.
type StatsService struct {
	store  *storage.Adapter
	tokens *deletion.TokenCodec

	// now is swappable for tests; history windows anchor on it.
	now func() time.Time
}

// New creates a StatsService with the given store adapter and token codec.
func New(store *storage.Adapter, tokens *deletion.TokenCodec) *StatsService {
	return &StatsService{
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
}

// Handle dispatches one inbound command. Business errors are converted to
// user-facing messages at the point of detection; anything unexpected is
// logged with context and reported as a generic failure, never swallowed.
func (s *StatsService) Handle(ctx context.Context, cmd Command) (reply Reply) {
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			slog.Error("command handler panicked",
				"command", cmd.Name, "user_id", cmd.UserID, "panic", r)
			outcome = "panic"
			reply = text("❌ Something went wrong, please try again.")
		}
		metrics.CommandsTotal.WithLabelValues(cmd.Name, outcome).Inc()
	}()

	slog.Info("command received", "command", cmd.Name, "user_id", cmd.UserID, "args", len(cmd.Args))

	switch cmd.Name {
	case "start", "help":
		return text(welcomeText)
	case "new":
		return s.handleNew(ctx, cmd)
	case "add":
		return s.handleAdd(ctx, cmd)
	case "view":
		return s.handleView(ctx, cmd.UserID)
	case "history":
		return s.handleHistory(ctx, cmd, false)
	case "full":
		return s.handleHistory(ctx, cmd, true)
	case "delete":
		return s.handleDeleteTarget(ctx, cmd)
	case "del":
		return s.handleDeleteEntries(ctx, cmd)
	case "recover":
		return s.handleRecover(ctx, cmd)
	case "timezone":
		return s.handleTimezone(ctx, cmd)
	case "group":
		return s.handleGroup(ctx, cmd)
	case "groups":
		return s.handleGroups(ctx, cmd.UserID)
	default:
		outcome = "unknown"
		return text(fmt.Sprintf("Unknown command /%s. Use /help to see what I understand.", cmd.Name))
	}
}

func (s *StatsService) handleNew(ctx context.Context, cmd Command) Reply {
	if len(cmd.Args) == 0 {
		return text("Usage: /new <category_name>\n" +
			"Example: /new weight\n" +
			"Example: /new study_hours")
	}

	category := strings.ToLower(strings.Join(cmd.Args, "_"))
	record := s.store.Get(ctx, cmd.UserID)

	if _, exists := record.Stats[category]; exists {
		return text(fmt.Sprintf("Category '%s' already exists!", category))
	}

	record.Stats[category] = &models.Category{
		Entries:   []models.Entry{},
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}

	if err := s.store.Set(ctx, cmd.UserID, record); err != nil {
		return text(saveFailedMsg)
	}
	return text(fmt.Sprintf("✅ Created new category: *%s*\nUse /add %s <value> to log entries!", category, category))
}

func (s *StatsService) handleAdd(ctx context.Context, cmd Command) Reply {
	if len(cmd.Args) < 2 {
		return text("Usage: /add <category> <value> [note]\n" +
			"Example: /add weight 75.5\n" +
			"Example: /add workout 50 push-ups today")
	}

	category := strings.ToLower(cmd.Args[0])
	value, err := strconv.ParseFloat(cmd.Args[1], 64)
	if err != nil {
		return text("❌ Value must be a number!")
	}
	note := strings.Join(cmd.Args[2:], " ")

	record := s.store.Get(ctx, cmd.UserID)

	cat, exists := record.Stats[category]
	if !exists {
		return text(fmt.Sprintf("❌ Category '%s' doesn't exist.\nCreate it first with: /new %s", category, category))
	}
	if !record.HasTimezone() {
		return text("❌ Set your timezone before logging entries: /timezone <zone>\nExample: /timezone Europe/London")
	}

	entry := models.Entry{
		ID:        uuid.New().String(),
		Value:     value,
		Note:      note,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Timezone:  record.Timezone,
	}
	cat.Entries = append(cat.Entries, entry)

	if err := s.store.Set(ctx, cmd.UserID, record); err != nil {
		return text(saveFailedMsg)
	}

	response := fmt.Sprintf("✅ Added to *%s*: %s", category, history.FormatValue(value))
	if note != "" {
		response += fmt.Sprintf("\n📝 Note: %s", note)
	}
	return text(response)
}

func (s *StatsService) handleView(ctx context.Context, userID string) Reply {
	record := s.store.Get(ctx, userID)
	return viewMenu(record)
}

// viewMenu lists ungrouped categories and groups as selectable choices.
func viewMenu(record *models.UserRecord) Reply {
	grouped := map[string]bool{}
	for _, members := range record.Groups {
		for _, name := range members {
			grouped[name] = true
		}
	}

	var ungrouped []string
	for name := range record.Stats {
		if !grouped[name] {
			ungrouped = append(ungrouped, name)
		}
	}
	sort.Strings(ungrouped)

	groupNames := make([]string, 0, len(record.Groups))
	for name := range record.Groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	var choices []Choice
	for _, name := range ungrouped {
		choices = append(choices, Choice{Label: "📈 " + name, Data: "view_" + name})
	}
	for _, name := range groupNames {
		choices = append(choices, Choice{Label: "🗂 " + name, Data: "viewgroup_" + name})
	}

	if len(choices) == 0 {
		return text("You don't have any categories or groups yet!\n" +
			"Create one with: /new <name> or /group <group> <cat1> [cat2] ...")
	}

	return Reply{
		Messages: []string{"📊 *Your Stats and Groups:*\nSelect one to view details."},
		Choices:  choices,
	}
}

func (s *StatsService) handleHistory(ctx context.Context, cmd Command, withStatus bool) Reply {
	if len(cmd.Args) == 0 {
		name := "history"
		if withStatus {
			name = "full"
		}
		return text(fmt.Sprintf("Usage: /%s <category_or_group> [-days_back:days_forward]\n", name) +
			fmt.Sprintf("Example: /%s weight\n", name) +
			fmt.Sprintf("Example: /%s weight -7:0 (last 7 days, excluding today)\n", name) +
			fmt.Sprintf("Example: /%s weight -7:1 (last 7 days, including today)\n", name) +
			fmt.Sprintf("Example: /%s workout_group -30:-7 (from 30 days ago to 7 days ago)", name))
	}

	target := strings.ToLower(cmd.Args[0])
	var window *history.Window
	if len(cmd.Args) > 1 {
		// Forgiving parse: a malformed window means full history.
		window = history.ParseWindow(cmd.Args[1])
	}

	record := s.store.Get(ctx, cmd.UserID)
	return s.renderHistory(record, target, window, withStatus)
}

func (s *StatsService) renderHistory(record *models.UserRecord, target string, window *history.Window, withStatus bool) Reply {
	var messages []string
	var err error
	if withStatus {
		messages, err = history.FullHistory(record, target, window, s.now())
	} else {
		messages, err = history.Query(record, target, window, s.now())
	}

	switch {
	case err == nil:
		return text(messages...)
	case errors.Is(err, history.ErrNotFound):
		return text(fmt.Sprintf("❌ No category or group named '%s'", target))
	case errors.Is(err, history.ErrNoEntries):
		return text(fmt.Sprintf("ℹ️ No entries recorded for '%s' yet.", target))
	case errors.Is(err, history.ErrNoneInRange):
		return text(fmt.Sprintf("ℹ️ No entries found for '%s' in the specified date range.\n", target) +
			"Try without date filters to see all entries.")
	case errors.Is(err, history.ErrInvalidTimezone):
		return text(fmt.Sprintf("❌ Invalid timezone setting: '%s'\nPlease set a valid timezone using /timezone", record.Timezone))
	default:
		slog.Error("history query failed", "target", target, "error", err)
		return text("❌ Something went wrong, please try again.")
	}
}

func (s *StatsService) handleDeleteTarget(ctx context.Context, cmd Command) Reply {
	if len(cmd.Args) == 0 {
		return text("Usage: /delete <category_or_group>\n" +
			"Example: /delete weight\n" +
			"Example: /delete workout_group")
	}

	target := strings.ToLower(cmd.Args[0])
	record := s.store.Get(ctx, cmd.UserID)

	if _, ok := record.Stats[target]; ok {
		delete(record.Stats, target)
		if err := s.store.Set(ctx, cmd.UserID, record); err != nil {
			return text(saveFailedMsg)
		}
		return text(fmt.Sprintf("✅ Deleted category: %s", target))
	}
	if _, ok := record.Groups[target]; ok {
		delete(record.Groups, target)
		if err := s.store.Set(ctx, cmd.UserID, record); err != nil {
			return text(saveFailedMsg)
		}
		return text(fmt.Sprintf("✅ Deleted group: %s", target))
	}
	return text(fmt.Sprintf("❌ Category or group '%s' not found", target))
}

func (s *StatsService) handleDeleteEntries(ctx context.Context, cmd Command) Reply {
	if len(cmd.Args) < 2 {
		return text("Usage: /del <category> <indices> [hard]\n" +
			"Indices are the numbers shown by /history, e.g. 2 or 1,3-5\n" +
			"Example: /del weight 1\n" +
			"Example: /del weight 1,3-5 hard (permanent, no recovery)")
	}

	category := strings.ToLower(cmd.Args[0])
	mode := deletion.Soft
	if len(cmd.Args) > 2 && strings.EqualFold(cmd.Args[2], "hard") {
		mode = deletion.Hard
	}

	indices, err := deletion.ParseIndexSpec(cmd.Args[1])
	if err != nil {
		return text(fmt.Sprintf("❌ Bad index list '%s'. Use numbers and ranges like: 1,3-5,7", cmd.Args[1]))
	}

	record := s.store.Get(ctx, cmd.UserID)
	cat, ok := record.Stats[category]
	if !ok {
		return text(fmt.Sprintf("❌ Category '%s' not found", category))
	}

	proposal, err := deletion.Propose(category, cat, indices, mode)
	if err != nil {
		return text(fmt.Sprintf("❌ %v", err))
	}

	token, err := s.tokens.Encode(cmd.UserID, proposal)
	if err != nil {
		slog.Error("failed to encode deletion token", "user_id", cmd.UserID, "error", err)
		return text("❌ Something went wrong, please try again.")
	}

	// Preview the targeted entries by display index.
	active := deletion.ListActive(cat)
	byDisplay := map[int]deletion.ActiveEntry{}
	for _, ae := range active {
		byDisplay[ae.DisplayIndex] = ae
	}
	var b strings.Builder
	verb := "Soft-delete"
	if mode == deletion.Hard {
		verb = "PERMANENTLY delete"
	}
	fmt.Fprintf(&b, "%s %d entr%s from *%s*?\n\n", verb, len(indices), plural(len(indices), "y", "ies"), category)
	for _, n := range indices {
		ae := byDisplay[n]
		fmt.Fprintf(&b, "%d. %s - %s\n", n, history.FormatValue(ae.Entry.Value),
			timestamp.Format(ae.Entry.Timestamp, ae.Entry.Timezone))
	}

	return Reply{
		Messages: []string{b.String()},
		Choices: []Choice{
			{Label: "✅ Confirm", Data: "confirm_" + token},
			{Label: "✖️ Cancel", Data: "cancel_delete"},
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (s *StatsService) handleRecover(ctx context.Context, cmd Command) Reply {
	if len(cmd.Args) < 2 {
		return text("Usage: /recover <category> <entry number>\n" +
			"Deleted entry numbers are shown by /full <category>")
	}

	category := strings.ToLower(cmd.Args[0])
	storageIndex, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		return text(fmt.Sprintf("❌ '%s' is not an entry number", cmd.Args[1]))
	}

	record := s.store.Get(ctx, cmd.UserID)
	cat, ok := record.Stats[category]
	if !ok {
		return text(fmt.Sprintf("❌ Category '%s' not found", category))
	}

	if err := deletion.Recover(cat, storageIndex); err != nil {
		return text(fmt.Sprintf("❌ %v", err))
	}
	if err := s.store.Set(ctx, cmd.UserID, record); err != nil {
		return text(saveFailedMsg)
	}
	return text(fmt.Sprintf("♻️ Restored entry #%d in *%s*", storageIndex, category))
}

func (s *StatsService) handleTimezone(ctx context.Context, cmd Command) Reply {
	if len(cmd.Args) == 0 {
		record := s.store.Get(ctx, cmd.UserID)
		return text(fmt.Sprintf("⏰ *Current timezone:* %s\n\n", record.DisplayTimezone()) +
			"To change, use: /timezone <timezone>\n\n" +
			"*Examples:*\n" +
			"/timezone America/New_York\n" +
			"/timezone Europe/London\n" +
			"/timezone Asia/Ho_Chi_Minh\n" +
			"/timezone Asia/Tokyo\n\n" +
			"Full list: https://en.wikipedia.org/wiki/List_of_tz_database_time_zones")
	}

	zone := strings.Join(cmd.Args, "_")
	if !strings.Contains(zone, "/") {
		return text(fmt.Sprintf("❌ Invalid timezone format: %s\n\n", zone) +
			"Use format like: America/New_York or Asia/Tokyo\n" +
			"Full list: https://en.wikipedia.org/wiki/List_of_tz_database_time_zones")
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return text(fmt.Sprintf("❌ Unknown timezone: %s\n\n", zone) +
			"Full list: https://en.wikipedia.org/wiki/List_of_tz_database_time_zones")
	}

	record := s.store.Get(ctx, cmd.UserID)
	record.Timezone = zone
	if err := s.store.Set(ctx, cmd.UserID, record); err != nil {
		return text(saveFailedMsg)
	}
	return text(fmt.Sprintf("✅ Timezone set to: *%s*", zone))
}

func (s *StatsService) handleGroup(ctx context.Context, cmd Command) Reply {
	if len(cmd.Args) < 2 {
		return text("Usage: /group <group_name> <category1> [category2] ...\n" +
			"Example: /group workout squats pushups lunges\n\n" +
			"To view a group: /history workout")
	}

	groupName := strings.ToLower(cmd.Args[0])
	categories := make([]string, 0, len(cmd.Args)-1)
	for _, name := range cmd.Args[1:] {
		categories = append(categories, strings.ToLower(name))
	}

	record := s.store.Get(ctx, cmd.UserID)

	var missing []string
	for _, name := range categories {
		if _, ok := record.Stats[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return text(fmt.Sprintf("❌ These categories don't exist: %s\nCreate them first with /new",
			strings.Join(missing, ", ")))
	}

	record.Groups[groupName] = categories
	if err := s.store.Set(ctx, cmd.UserID, record); err != nil {
		return text(saveFailedMsg)
	}
	return text(fmt.Sprintf("✅ Created group *%s*\nContains: %s", groupName, strings.Join(categories, ", ")))
}

func (s *StatsService) handleGroups(ctx context.Context, userID string) Reply {
	record := s.store.Get(ctx, userID)
	if len(record.Groups) == 0 {
		return text("You don't have any groups yet!\nCreate one with: /group <group> <cat1> [cat2] ...")
	}

	names := make([]string, 0, len(record.Groups))
	for name := range record.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("🗂 *Your groups:*\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "• %s: %s\n", name, strings.Join(record.Groups[name], ", "))
	}
	return text(b.String())
}
