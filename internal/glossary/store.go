// Package glossary holds the term lifecycle: the version/archive engine
// that decides when snapshots are written, and the aggregators that turn
// active and archived records into admin listings and version timelines.
package glossary

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/finiti-glossary/internal/model"
	"github.com/iliyamo/finiti-glossary/internal/queue"
	"github.com/iliyamo/finiti-glossary/internal/repository"
)

// Store is the persistence the engine needs.  Lookups return
// repository.ErrNotFound when nothing matches; SaveChanges must apply the
// whole change set or nothing.  *repository.TermRepo satisfies it.
type Store interface {
	ActiveByID(ctx context.Context, id int64) (*model.ActiveTerm, error)
	ActiveByStableID(ctx context.Context, stableID uuid.UUID) (*model.ActiveTerm, error)
	ArchivedByStableID(ctx context.Context, stableID uuid.UUID) ([]model.ArchivedTerm, error)
	ArchivedVersion(ctx context.Context, stableID uuid.UUID, version int) (*model.ArchivedTerm, error)
	LatestVersion(ctx context.Context, stableID uuid.UUID) (int, error)
	ListActive(ctx context.Context, f repository.TermFilter) ([]model.ActiveTerm, error)
	ListArchived(ctx context.Context, f repository.TermFilter) ([]model.ArchivedTerm, error)
	CreateActive(ctx context.Context, t *model.ActiveTerm) error
	SaveChanges(ctx context.Context, c repository.TermChanges) error
}

// UserDirectory lists accounts so ids can be shown as usernames.
type UserDirectory interface {
	List(ctx context.Context) ([]model.User, error)
}

// EventPublisher receives an event after each committed mutation.
type EventPublisher interface {
	PublishGlossaryEvent(ctx context.Context, ev queue.GlossaryEvent) error
}

// Caller identifies who is acting.  It is passed explicitly to every
// operation; ID is compared as a string against created_by_id.
type Caller struct {
	ID      string
	Role    string
	IsAdmin bool
}

// Admin reports whether the caller sees every user's terms.
func (c Caller) Admin() bool {
	return c.IsAdmin || strings.EqualFold(c.Role, model.RoleAdmin)
}

// actorID is recorded as archived/restored by.  Unauthenticated internal
// calls are attributed to "system".
func (c Caller) actorID() string {
	if c.ID == "" {
		return "system"
	}
	return c.ID
}

func (c Caller) filter() repository.TermFilter {
	return repository.TermFilter{CreatedByID: c.ID, All: c.Admin()}
}

// sameContent compares two term/definition pairs ignoring surrounding
// whitespace.  It is the identity used for restore no-ops, duplicate
// archive suppression and canRestore.
func sameContent(termA, defA, termB, defB string) bool {
	return strings.TrimSpace(termA) == strings.TrimSpace(termB) &&
		strings.TrimSpace(defA) == strings.TrimSpace(defB)
}
