package models

// DefaultTimezone is applied to records that never had a timezone persisted.
const DefaultTimezone = "UTC"

// Entry is one recorded measurement within a category.
//
// Entries are append-only: an entry's position in Category.Entries is its
// storage index, stable for the entry's lifetime and renumbered only when a
// hard delete physically removes elements.
type Entry struct {
	// ID is a stable opaque identifier (UUID) assigned at creation.
	// Entries written by earlier versions have no ID; operations that
	// re-resolve entries fall back to positional matching for those.
	ID string `json:"id,omitempty"`

	// Value is the recorded measurement.
	Value float64 `json:"value"`

	// Note is optional free text attached to the measurement.
	Note string `json:"note,omitempty"`

	// Timestamp is the ISO-8601 instant the entry was recorded. Legacy
	// entries may carry a naive timestamp (no offset), which is read as UTC.
	Timestamp string `json:"timestamp"`

	// Timezone is the IANA zone the entry was recorded in. It is kept
	// per-entry so history rendered after a /timezone change still shows
	// each measurement in the zone it was taken in. Empty on legacy
	// entries, which display in UTC.
	Timezone string `json:"timezone,omitempty"`

	// IsDeleted marks a soft-deleted entry. Soft-deleted entries are hidden
	// from normal views but stay at their storage index until recovered or
	// hard-deleted.
	IsDeleted bool `json:"is_deleted,omitempty"`
}

// Category is a named metric series owned by a user.
type Category struct {
	// Entries is the append-only measurement log, oldest first.
	Entries []Entry `json:"entries"`

	// CreatedAt is the ISO-8601 instant the category was created.
	// Informational only.
	CreatedAt string `json:"created_at,omitempty"`
}

// UserRecord is the whole persisted document for one user.
type UserRecord struct {
	// Stats maps category name (lowercase token) to its series.
	Stats map[string]*Category `json:"stats"`

	// Groups maps group name (lowercase token) to an ordered list of
	// category names. Members may repeat and need not all exist; lookups
	// skip missing members.
	Groups map[string][]string `json:"groups"`

	// Timezone is the user's configured IANA zone. Empty means it was
	// never set: reads treat that as UTC, but adding entries requires it.
	Timezone string `json:"timezone"`
}

// NewUserRecord returns the default empty record substituted when a user has
// no stored document.
func NewUserRecord() *UserRecord {
	return &UserRecord{
		Stats:    map[string]*Category{},
		Groups:   map[string][]string{},
		Timezone: DefaultTimezone,
	}
}

// Normalize fills nil maps and nil categories so callers never have to guard
// against missing fields. It is called once at the store boundary.
func (r *UserRecord) Normalize() {
	if r.Stats == nil {
		r.Stats = map[string]*Category{}
	}
	if r.Groups == nil {
		r.Groups = map[string][]string{}
	}
	for name, cat := range r.Stats {
		if cat == nil {
			r.Stats[name] = &Category{}
		}
	}
}

// DisplayTimezone is the zone used for read paths: the configured zone, or
// UTC when none was ever set.
func (r *UserRecord) DisplayTimezone() string {
	if r.Timezone == "" {
		return DefaultTimezone
	}
	return r.Timezone
}

// HasTimezone reports whether the user explicitly carries a timezone.
// Entry creation requires this; reads do not.
func (r *UserRecord) HasTimezone() bool {
	return r.Timezone != ""
}
