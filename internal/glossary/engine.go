package glossary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/finiti-glossary/internal/metrics"
	"github.com/iliyamo/finiti-glossary/internal/model"
	"github.com/iliyamo/finiti-glossary/internal/queue"
	"github.com/iliyamo/finiti-glossary/internal/repository"
)

// Change summaries recorded on archived snapshots.
const (
	SummaryUpdated      = "Updated"
	SummaryManual       = "Manual archive"
	SummaryAutoArchived = "Auto-archived before restore"
)

// Service is the version/archive engine.  It is the only writer of active
// and archived term records.
//
// Concurrent mutations of the same stable id are not serialised: two
// requests can read the same latest version and race.  The unique
// (stable_id, version) index turns the loser into an unexpected error
// instead of a duplicate version; there is no compare-and-swap.
type Service struct {
	store   Store
	users   UserDirectory
	events  EventPublisher
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() uuid.UUID
}

// Option customises a Service.
type Option func(*Service)

// WithEvents publishes an event after every committed mutation.
func WithEvents(p EventPublisher) Option { return func(s *Service) { s.events = p } }

// WithLogger sets the logger used for event publishing failures.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator overrides how stable ids are minted.
func WithIDGenerator(f func() uuid.UUID) Option { return func(s *Service) { s.newID = f } }

// NewService wires the engine to its store and user directory.
func NewService(store Store, users UserDirectory, opts ...Option) *Service {
	if store == nil || users == nil {
		panic("nil dependency passed to glossary.NewService")
	}
	s := &Service{
		store: store,
		users: users,
		log:   zerolog.Nop(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create stores a new draft at version 1 under a fresh stable id.
func (s *Service) Create(ctx context.Context, caller Caller, term, definition string) (*Result, error) {
	const op = "create"
	term, definition = strings.TrimSpace(term), strings.TrimSpace(definition)
	if term == "" || definition == "" {
		return nil, s.fail(op, validationErr(op, "Term and definition are required."))
	}

	draft := &model.ActiveTerm{
		StableID:    s.newID(),
		Term:        term,
		Definition:  definition,
		Version:     1,
		Status:      model.StatusDraft,
		CreatedAt:   s.now(),
		CreatedByID: caller.actorID(),
	}
	if err := s.store.CreateActive(ctx, draft); err != nil {
		if errors.Is(err, repository.ErrNotPersisted) {
			return nil, s.fail(op, validationErr(op, "Failed to create draft."))
		}
		return nil, s.fail(op, unexpectedErr(op, err))
	}

	s.emit(ctx, queue.EventTermCreated, caller, draft.StableID, draft.ID, draft.Term, draft.Version, 0)
	return s.ok(op, &Result{Message: "Draft created successfully.", Term: draft, Applied: true}), nil
}

// Publish marks a term as published in place.  Publishing a published
// term succeeds without writing.
func (s *Service) Publish(ctx context.Context, caller Caller, id int64) (*Result, error) {
	const op = "publish"
	t, err := s.activeByID(ctx, op, id, "Term not found.")
	if err != nil {
		return nil, err
	}
	if t.Status == model.StatusPublished {
		return s.ok(op, &Result{Message: "Already published."}), nil
	}

	t.Status = model.StatusPublished
	if res, err := s.save(ctx, op, repository.TermChanges{UpdateActive: []*model.ActiveTerm{t}}, "Failed to publish."); res != nil || err != nil {
		return res, err
	}

	s.emit(ctx, queue.EventTermPublished, caller, t.StableID, t.ID, t.Term, t.Version, 0)
	return s.ok(op, &Result{Message: "Term published.", Term: t, Applied: true}), nil
}

// Update replaces the content of an active term and publishes it.  The
// previous content is archived first unless an archived snapshot with the
// same trimmed content already exists, so saving unchanged text repeatedly
// does not grow the history.
func (s *Service) Update(ctx context.Context, caller Caller, id int64, term, definition string) (*Result, error) {
	const op = "update"
	term, definition = strings.TrimSpace(term), strings.TrimSpace(definition)
	if term == "" || definition == "" {
		return nil, s.fail(op, validationErr(op, "Term and definition are required."))
	}

	active, err := s.activeByID(ctx, op, id, "Term not found.")
	if err != nil {
		return nil, err
	}
	archived, err := s.store.ArchivedByStableID(ctx, active.StableID)
	if err != nil {
		return nil, s.fail(op, unexpectedErr(op, err))
	}

	identicalExists := false
	for _, a := range archived {
		if sameContent(a.Term, a.Definition, active.Term, active.Definition) {
			identicalExists = true
			break
		}
	}

	var changes repository.TermChanges
	archivedVersion := 0
	if !identicalExists {
		snap, err := s.snapshot(ctx, active, caller, SummaryUpdated)
		if err != nil {
			return nil, s.fail(op, unexpectedErr(op, err))
		}
		changes.AddArchived = append(changes.AddArchived, snap)
		archivedVersion = snap.Version
	}

	active.Term = term
	active.Definition = definition
	active.Status = model.StatusPublished
	changes.UpdateActive = append(changes.UpdateActive, active)

	if res, err := s.save(ctx, op, changes, "Failed to update term."); res != nil || err != nil {
		return res, err
	}

	s.emit(ctx, queue.EventTermUpdated, caller, active.StableID, active.ID, active.Term, active.Version, archivedVersion)
	return s.ok(op, &Result{Message: "Term updated successfully.", Term: active, Applied: true}), nil
}

// Archive snapshots the active term under the next version and removes
// it, leaving the logical term with no active record.
func (s *Service) Archive(ctx context.Context, caller Caller, id int64) (*Result, error) {
	const op = "archive"
	active, err := s.activeByID(ctx, op, id, "Term not found.")
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, active, caller, SummaryManual)
	if err != nil {
		return nil, s.fail(op, unexpectedErr(op, err))
	}

	changes := repository.TermChanges{
		AddArchived:  []*model.ArchivedTerm{snap},
		RemoveActive: []int64{active.ID},
	}
	if res, err := s.save(ctx, op, changes, "Failed to archive term."); res != nil || err != nil {
		return res, err
	}

	s.emit(ctx, queue.EventTermArchived, caller, active.StableID, active.ID, active.Term, 0, snap.Version)
	return s.ok(op, &Result{Message: "Term archived successfully.", StableID: &active.StableID, Applied: true}), nil
}

// Restore promotes an archived snapshot back to active.  When the active
// term already has the same trimmed content nothing is written and the
// result reports restored=false.  Otherwise the current active term, if
// any, is archived under the next version, replaced by the snapshot's
// content, and the snapshot is stamped as restored.  All of it commits as
// one unit.
func (s *Service) Restore(ctx context.Context, caller Caller, stableID uuid.UUID, version int) (*Result, error) {
	const op = "restore"
	if version < 1 {
		return nil, s.fail(op, notFoundErr(op, "Requested version not found."))
	}

	snapshot, err := s.store.ArchivedVersion(ctx, stableID, version)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.fail(op, notFoundErr(op, "Requested version not found."))
	}
	if err != nil {
		return nil, s.fail(op, unexpectedErr(op, err))
	}

	existing, err := s.store.ActiveByStableID(ctx, stableID)
	if errors.Is(err, repository.ErrNotFound) {
		existing, err = nil, nil
	}
	if err != nil {
		return nil, s.fail(op, unexpectedErr(op, err))
	}

	if existing != nil && sameContent(existing.Term, existing.Definition, snapshot.Term, snapshot.Definition) {
		if s.metrics != nil {
			s.metrics.IdenticalRestores.Inc()
		}
		return s.ok(op, &Result{
			Message:  "Identical version already active — no restore needed.",
			Restored: boolPtr(false),
			StableID: &stableID,
		}), nil
	}

	var changes repository.TermChanges
	autoArchived := 0
	if existing != nil {
		snap, err := s.snapshot(ctx, existing, caller, SummaryAutoArchived)
		if err != nil {
			return nil, s.fail(op, unexpectedErr(op, err))
		}
		changes.AddArchived = append(changes.AddArchived, snap)
		changes.RemoveActive = append(changes.RemoveActive, existing.ID)
		autoArchived = snap.Version
	}

	now := s.now()
	restored := &model.ActiveTerm{
		StableID:    snapshot.StableID,
		Term:        snapshot.Term,
		Definition:  snapshot.Definition,
		Version:     snapshot.Version,
		Status:      model.StatusPublished,
		CreatedAt:   now,
		CreatedByID: snapshot.CreatedByID,
	}
	actor := caller.actorID()
	snapshot.RestoredAt = &now
	snapshot.RestoredByID = &actor
	changes.AddActive = append(changes.AddActive, restored)
	changes.UpdateArchived = append(changes.UpdateArchived, snapshot)

	if res, err := s.save(ctx, op, changes, "Failed to restore term."); res != nil || err != nil {
		return res, err
	}

	s.emit(ctx, queue.EventTermRestored, caller, stableID, restored.ID, restored.Term, version, autoArchived)
	return s.ok(op, &Result{
		Message:  fmt.Sprintf("Version %d restored.", version),
		Restored: boolPtr(true),
		StableID: &stableID,
		Term:     restored,
		Applied:  true,
	}), nil
}

// Delete removes an active term permanently.  Archived snapshots of the
// same stable id are kept and remain visible through History.
func (s *Service) Delete(ctx context.Context, caller Caller, id int64) (*Result, error) {
	const op = "delete"
	t, err := s.activeByID(ctx, op, id, "Not found.")
	if err != nil {
		return nil, err
	}
	if res, err := s.save(ctx, op, repository.TermChanges{RemoveActive: []int64{t.ID}}, "Failed to delete term."); res != nil || err != nil {
		return res, err
	}

	s.emit(ctx, queue.EventTermDeleted, caller, t.StableID, t.ID, t.Term, t.Version, 0)
	return s.ok(op, &Result{Message: "Deleted.", Applied: true}), nil
}

// History returns every version of a logical term, newest first.
func (s *Service) History(ctx context.Context, caller Caller, stableID uuid.UUID) ([]AdminRow, error) {
	const op = "history"
	active, err := s.store.ActiveByStableID(ctx, stableID)
	if errors.Is(err, repository.ErrNotFound) {
		active, err = nil, nil
	}
	if err != nil {
		return nil, s.fail(op, unexpectedErr(op, err))
	}
	archived, err := s.store.ArchivedByStableID(ctx, stableID)
	if err != nil {
		return nil, s.fail(op, unexpectedErr(op, err))
	}
	if active == nil && len(archived) == 0 {
		return nil, s.fail(op, notFoundErr(op, "No history found."))
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, s.fail(op, unexpectedErr(op, err))
	}
	s.observe(op, "ok")
	return AggregateHistory(active, archived, users), nil
}

func (s *Service) activeByID(ctx context.Context, op string, id int64, notFoundMsg string) (*model.ActiveTerm, error) {
	if id < 1 {
		return nil, s.fail(op, notFoundErr(op, notFoundMsg))
	}
	t, err := s.store.ActiveByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.fail(op, notFoundErr(op, notFoundMsg))
	}
	if err != nil {
		return nil, s.fail(op, unexpectedErr(op, err))
	}
	return t, nil
}

// snapshot builds the archived copy of t under latest+1.
func (s *Service) snapshot(ctx context.Context, t *model.ActiveTerm, caller Caller, summary string) (*model.ArchivedTerm, error) {
	latest, err := s.store.LatestVersion(ctx, t.StableID)
	if err != nil {
		return nil, err
	}
	return &model.ArchivedTerm{
		OriginalTermID: t.ID,
		StableID:       t.StableID,
		Term:           t.Term,
		Definition:     t.Definition,
		Version:        latest + 1,
		ArchivedAt:     s.now(),
		ArchivedByID:   caller.actorID(),
		CreatedByID:    t.CreatedByID,
		ChangeSummary:  summary,
	}, nil
}

// save commits changes.  It returns a soft-failure result when nothing
// was persisted, an error on failure, and (nil, nil) on success.
func (s *Service) save(ctx context.Context, op string, changes repository.TermChanges, softMsg string) (*Result, error) {
	err := s.store.SaveChanges(ctx, changes)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.ArchivedVersions.Add(float64(len(changes.AddArchived)))
		}
		return nil, nil
	case errors.Is(err, repository.ErrNotPersisted):
		s.observe(op, "soft_fail")
		return &Result{Message: softMsg}, nil
	default:
		return nil, s.fail(op, unexpectedErr(op, err))
	}
}

func (s *Service) emit(ctx context.Context, typ string, caller Caller, stableID uuid.UUID, termID int64, term string, version, archivedVersion int) {
	if s.events == nil {
		return
	}
	ev := queue.GlossaryEvent{
		Type:            typ,
		StableID:        stableID.String(),
		TermID:          termID,
		Term:            term,
		Version:         version,
		ArchivedVersion: archivedVersion,
		ActorID:         caller.actorID(),
		OccurredAt:      s.now().Format(time.RFC3339),
	}
	if err := s.events.PublishGlossaryEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", typ).Str("stable_id", ev.StableID).Msg("publish glossary event failed")
		if s.metrics != nil {
			s.metrics.EventPublishErrors.Inc()
		}
	}
}

func (s *Service) ok(op string, r *Result) *Result {
	s.observe(op, "ok")
	return r
}

func (s *Service) fail(op string, err error) error {
	outcome := "unexpected"
	switch KindOf(err) {
	case KindValidation:
		outcome = "invalid"
	case KindNotFound:
		outcome = "not_found"
	}
	s.observe(op, outcome)
	return err
}

func (s *Service) observe(op, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveOp(op, outcome)
	}
}

func boolPtr(b bool) *bool { return &b }
