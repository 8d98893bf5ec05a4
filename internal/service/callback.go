package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stattrack/bot/internal/deletion"
)

// Callback handles a choice selected from an earlier reply. The payload is
// the opaque Data string the reply carried; deletion confirmations embed the
// signed proposal token issued by /del.
func (s *StatsService) Callback(ctx context.Context, userID, data string) Reply {
	slog.Info("callback received", "user_id", userID, "data_prefix", prefixOf(data))

	switch {
	case data == "view_main":
		return s.handleView(ctx, userID)

	case strings.HasPrefix(data, "viewgroup_"):
		return s.handleGroupMenu(ctx, userID, strings.TrimPrefix(data, "viewgroup_"))

	case strings.HasPrefix(data, "view_"):
		target := strings.TrimPrefix(data, "view_")
		record := s.store.Get(ctx, userID)
		return s.renderHistory(record, target, nil, false)

	case strings.HasPrefix(data, "confirm_"):
		return s.handleConfirmDelete(ctx, userID, strings.TrimPrefix(data, "confirm_"))

	case data == "cancel_delete":
		return text("✖️ Deletion cancelled. Nothing was changed.")

	default:
		return text("That button has expired. Use /help to start over.")
	}
}

// handleGroupMenu shows the categories inside a group with a back button.
func (s *StatsService) handleGroupMenu(ctx context.Context, userID, groupName string) Reply {
	record := s.store.Get(ctx, userID)

	members, ok := record.Groups[groupName]
	if !ok {
		return text(fmt.Sprintf("Group '%s' not found.", groupName))
	}

	choices := make([]Choice, 0, len(members)+1)
	for _, name := range members {
		choices = append(choices, Choice{Label: "📈 " + name, Data: "view_" + name})
	}
	choices = append(choices, Choice{Label: "« Back to All Categories", Data: "view_main"})

	return Reply{
		Messages: []string{fmt.Sprintf("📂 *Group: %s*\n\nSelect a category to view its history:", groupName)},
		Choices:  choices,
	}
}

// handleConfirmDelete applies a proposed deletion against a fresh copy of
// the record. The reload guards against staleness: positions that drifted
// since the proposal are skipped by the engine, and a zero count is reported
// honestly instead of claiming success.
func (s *StatsService) handleConfirmDelete(ctx context.Context, userID, token string) Reply {
	proposal, err := s.tokens.Decode(userID, token)
	if err != nil {
		return text("❌ This confirmation has expired or is invalid. Run /del again.")
	}

	record := s.store.Get(ctx, userID)
	cat, ok := record.Stats[proposal.Category]
	if !ok {
		return text(fmt.Sprintf("❌ Category '%s' no longer exists.", proposal.Category))
	}

	mutated := deletion.Confirm(cat, proposal)
	if mutated == 0 {
		return text("⚠️ Nothing changed: the entries may have shifted since you proposed this deletion. Check /history and try again.")
	}

	if err := s.store.Set(ctx, userID, record); err != nil {
		return text(saveFailedMsg)
	}

	if proposal.Mode == deletion.Hard {
		return text(fmt.Sprintf("🗑 Permanently deleted %d entr%s from *%s*.",
			mutated, plural(mutated, "y", "ies"), proposal.Category))
	}
	return text(fmt.Sprintf("🗑 Deleted %d entr%s from *%s*. Use /full %s to see and /recover to restore them.",
		mutated, plural(mutated, "y", "ies"), proposal.Category, proposal.Category))
}

// prefixOf trims callback payloads for logging; confirmation tokens are
// signed secrets and must not land in logs whole.
func prefixOf(data string) string {
	if i := strings.IndexByte(data, '_'); i > 0 && i < 16 {
		return data[:i]
	}
	if len(data) > 16 {
		return data[:16]
	}
	return data
}
