package model

import (
	"time"

	"github.com/google/uuid"
)

// TermStatus is the lifecycle state stored on an active glossary term.
// The numeric values are part of the wire format: the admin listing
// reports them as the row "status" and the tab filter maps onto them.
type TermStatus int

const (
	StatusDraft     TermStatus = 0 // created, not yet visible to readers
	StatusPublished TermStatus = 1 // visible to readers
	StatusArchived  TermStatus = 2 // only ever reported for archived snapshots
)

// String returns the lower-case name used by the tab filter.
func (s TermStatus) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusPublished:
		return "published"
	case StatusArchived:
		return "archived"
	}
	return "unknown"
}

// ActiveTerm represents a row in the `glossary_terms` table.  There is at
// most one row per StableID; the version/archive engine keeps that
// invariant and the table backs it with a unique index.
//
// Fields:
//  ID          – internal primary key; changes when a term is restored.
//  StableID    – identifier shared by every version of the logical term.
//  Term        – the glossary headword.
//  Definition  – the definition text.
//  Version     – version number of this representation.
//  Status      – Draft or Published.
//  CreatedAt   – when this representation was materialised.
//  CreatedByID – id of the user who authored the term (string compared).
type ActiveTerm struct {
	ID          int64      `json:"id"`
	StableID    uuid.UUID  `json:"stableId"`
	Term        string     `json:"term"`
	Definition  string     `json:"definition"`
	Version     int        `json:"version"`
	Status      TermStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CreatedByID string     `json:"createdById"`
}

// ArchivedTerm mirrors the append-only `archived_glossary_terms` table.
// Rows are never deleted; the only mutation after insert is stamping
// RestoredAt/RestoredByID when the snapshot is promoted back to active.
type ArchivedTerm struct {
	ID             int64      `json:"id"`
	OriginalTermID int64      `json:"originalTermId"`
	StableID       uuid.UUID  `json:"stableId"`
	Term           string     `json:"term"`
	Definition     string     `json:"definition"`
	Version        int        `json:"version"`
	ArchivedAt     time.Time  `json:"archivedAt"`
	ArchivedByID   string     `json:"archivedById"`
	CreatedByID    string     `json:"createdById"`
	ChangeSummary  string     `json:"changeSummary"`
	RestoredAt     *time.Time `json:"restoredAt,omitempty"`
	RestoredByID   *string    `json:"restoredById,omitempty"`
}
