// Package deletion maps the 1-based display indices users see onto stable
// storage positions and applies soft deletes, hard deletes, and recovery.
//
// Destructive actions follow a two-phase protocol: Propose validates the
// request against a snapshot and packages it as a Proposal; Confirm applies
// the proposal against a freshly reloaded record, skipping positions that
// drifted in between. The engine keeps no state between the two phases;
// the proposal round-trips through the chat transport as a signed token
// (see TokenCodec).
package deletion

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stattrack/bot/internal/models"
)

// Mode selects how confirmed entries are removed.
type Mode string

const (
	// Soft flags entries deleted in place; reversible with Recover.
	Soft Mode = "soft"
	// Hard physically removes entries, shifting later storage indices down.
	Hard Mode = "hard"
)

var (
	// ErrEmptySpec means the index spec parsed to nothing usable.
	ErrEmptySpec = errors.New("no valid indices in spec")

	// ErrInvalidIndex means a storage index no longer exists.
	ErrInvalidIndex = errors.New("storage index out of range")
)

// IndexOutOfRangeError reports every requested display index outside the
// active range. A proposal with any offender is rejected whole.
type IndexOutOfRangeError struct {
	Indices []int
	Bound   int
}

func (e *IndexOutOfRangeError) Error() string {
	parts := make([]string, len(e.Indices))
	for i, n := range e.Indices {
		parts[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("indices out of range: %s (valid: 1-%d)", strings.Join(parts, ", "), e.Bound)
}

// ActiveEntry pairs an active (non-deleted) entry with the only index space
// users ever see: 1-based, newest first. StorageIndex is the entry's stable
// position in the persisted log.
type ActiveEntry struct {
	DisplayIndex int
	StorageIndex int
	Entry        models.Entry
}

// ListActive returns the category's non-deleted entries newest first, with
// display indices assigned 1..N in that order.
func ListActive(cat *models.Category) []ActiveEntry {
	var active []ActiveEntry
	for i := len(cat.Entries) - 1; i >= 0; i-- {
		if cat.Entries[i].IsDeleted {
			continue
		}
		active = append(active, ActiveEntry{
			DisplayIndex: len(active) + 1,
			StorageIndex: i,
			Entry:        cat.Entries[i],
		})
	}
	return active
}

// ParseIndexSpec parses a comma-separated list of display indices and
// inclusive A-B ranges ("1,3-5,7"). Whitespace around commas is tolerated.
// Reversed ranges ("2-1") are rejected as malformed. The result is sorted
// and duplicate-free. An empty or fully malformed spec returns ErrEmptySpec.
func ParseIndexSpec(text string) ([]int, error) {
	seen := map[int]bool{}
	for _, token := range strings.Split(text, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(token, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("%w: bad range %q", ErrEmptySpec, token)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("%w: bad range %q", ErrEmptySpec, token)
			}
			if start > end {
				return nil, fmt.Errorf("%w: reversed range %q", ErrEmptySpec, token)
			}
			for n := start; n <= end; n++ {
				seen[n] = true
			}
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("%w: bad index %q", ErrEmptySpec, token)
		}
		seen[n] = true
	}
	if len(seen) == 0 {
		return nil, ErrEmptySpec
	}
	indices := make([]int, 0, len(seen))
	for n := range seen {
		indices = append(indices, n)
	}
	sort.Ints(indices)
	return indices, nil
}

// Proposal is a validated deletion request, resolved to storage positions.
// EntryIDs snapshots the ids at the proposed positions so Confirm can detect
// entries that moved underneath a concurrent hard delete; legacy entries
// without ids leave an empty slot and are matched positionally.
type Proposal struct {
	Category       string   `json:"category"`
	Mode           Mode     `json:"mode"`
	StorageIndices []int    `json:"storage_indices"`
	EntryIDs       []string `json:"entry_ids"`
}

// Propose validates every display index against the live active list and
// resolves them to storage positions. Any out-of-range index rejects the
// whole request with zero mutation.
func Propose(categoryName string, cat *models.Category, displayIndices []int, mode Mode) (*Proposal, error) {
	active := ListActive(cat)

	var offenders []int
	for _, n := range displayIndices {
		if n < 1 || n > len(active) {
			offenders = append(offenders, n)
		}
	}
	if len(offenders) > 0 {
		return nil, &IndexOutOfRangeError{Indices: offenders, Bound: len(active)}
	}

	proposal := &Proposal{
		Category:       categoryName,
		Mode:           mode,
		StorageIndices: make([]int, 0, len(displayIndices)),
		EntryIDs:       make([]string, 0, len(displayIndices)),
	}
	for _, n := range displayIndices {
		target := active[n-1] // display indices are 1-based
		proposal.StorageIndices = append(proposal.StorageIndices, target.StorageIndex)
		proposal.EntryIDs = append(proposal.EntryIDs, target.Entry.ID)
	}
	sort.Sort(byStorageIndex{proposal})
	return proposal, nil
}

type byStorageIndex struct{ p *Proposal }

func (s byStorageIndex) Len() int { return len(s.p.StorageIndices) }
func (s byStorageIndex) Less(i, j int) bool {
	return s.p.StorageIndices[i] < s.p.StorageIndices[j]
}
func (s byStorageIndex) Swap(i, j int) {
	s.p.StorageIndices[i], s.p.StorageIndices[j] = s.p.StorageIndices[j], s.p.StorageIndices[i]
	s.p.EntryIDs[i], s.p.EntryIDs[j] = s.p.EntryIDs[j], s.p.EntryIDs[i]
}

// Confirm applies a proposal against the current (freshly reloaded) category
// and returns how many entries were actually mutated. Positions that drifted
// since the proposal (out of range, or holding a different entry id than
// the snapshot) are skipped, not counted. Zero means the underlying data
// shifted and nothing changed; callers should say so rather than claim
// success.
func Confirm(cat *models.Category, p *Proposal) int {
	switch p.Mode {
	case Hard:
		return applyHard(cat, p)
	default:
		return applySoft(cat, p)
	}
}

func applySoft(cat *models.Category, p *Proposal) int {
	mutated := 0
	for i, idx := range p.StorageIndices {
		if idx < 0 || idx >= len(cat.Entries) {
			continue
		}
		if !matches(cat.Entries[idx], p.EntryIDs, i) {
			continue
		}
		if !cat.Entries[idx].IsDeleted {
			cat.Entries[idx].IsDeleted = true
			mutated++
		}
	}
	return mutated
}

func applyHard(cat *models.Category, p *Proposal) int {
	drop := map[int]bool{}
	for i, idx := range p.StorageIndices {
		if idx < 0 || idx >= len(cat.Entries) {
			continue
		}
		if !matches(cat.Entries[idx], p.EntryIDs, i) {
			continue
		}
		drop[idx] = true
	}
	if len(drop) == 0 {
		return 0
	}
	kept := make([]models.Entry, 0, len(cat.Entries)-len(drop))
	for i, entry := range cat.Entries {
		if !drop[i] {
			kept = append(kept, entry)
		}
	}
	cat.Entries = kept
	return len(drop)
}

// matches reports whether the entry at a proposed position is still the one
// snapshotted at proposal time. Entries without ids (legacy data) match
// positionally.
func matches(entry models.Entry, snapshotIDs []string, i int) bool {
	if i >= len(snapshotIDs) || snapshotIDs[i] == "" || entry.ID == "" {
		return true
	}
	return entry.ID == snapshotIDs[i]
}

// Recover flips a soft-deleted entry back to active. It is the exact mirror
// of a soft delete: the entry keeps its storage index and reappears in the
// active view at the position its timestamp dictates.
func Recover(cat *models.Category, storageIndex int) error {
	if storageIndex < 0 || storageIndex >= len(cat.Entries) {
		return fmt.Errorf("%w: %d (have %d entries)", ErrInvalidIndex, storageIndex, len(cat.Entries))
	}
	if !cat.Entries[storageIndex].IsDeleted {
		return fmt.Errorf("entry #%d is not deleted", storageIndex)
	}
	cat.Entries[storageIndex].IsDeleted = false
	return nil
}
