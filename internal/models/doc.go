// Package models defines the core domain models for the stats tracker.
//
// # Models
//
//   - UserRecord: the whole persisted document for one chat user
//   - Category: a named metric series (e.g. "weight") with its entries
//   - Entry: one recorded value+timestamp(+note) within a category
//
// # Design Principles
//
//  1. **Whole-document ownership**: a UserRecord is loaded, mutated, and saved
//     as one unit per request. Nothing is cached between requests.
//  2. **Legacy-compatible JSON**: field tags match the documents written by
//     earlier versions of the bot. Optional fields (id, timezone, is_deleted)
//     are omitted when zero so old and new documents stay interchangeable.
//  3. **Defaults at the boundary**: Normalize fills missing maps and nil
//     categories exactly once when a record enters the process, so business
//     logic never has to guard against them. The timezone is left as stored:
//     an empty timezone is meaningful (it blocks entry creation).
package models
