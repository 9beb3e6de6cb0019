package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/finiti-glossary/internal/model"
)

// TermRepo persists active glossary terms and their archived snapshots.
// It only stores what it is given: every decision about versions and
// archiving belongs to the glossary engine.  All timestamps are UTC.
type TermRepo struct {
	db *sql.DB
}

// NewTermRepo returns a new TermRepo bound to the given database.
func NewTermRepo(db *sql.DB) *TermRepo { return &TermRepo{db: db} }

// TermFilter restricts listings to what a caller may see.  When All is
// false only rows whose created_by_id equals CreatedByID are returned.
type TermFilter struct {
	CreatedByID string
	All         bool
}

// TermChanges is a unit of work applied atomically by SaveChanges.
// Statements run in a fixed order: removals, updates, archive inserts,
// active inserts.  Removing before inserting lets a restore replace the
// active row of a stable id inside one transaction.
type TermChanges struct {
	RemoveActive   []int64
	UpdateActive   []*model.ActiveTerm
	UpdateArchived []*model.ArchivedTerm
	AddArchived    []*model.ArchivedTerm
	AddActive      []*model.ActiveTerm
}

// Empty reports whether the change set has nothing to apply.
func (c TermChanges) Empty() bool {
	return len(c.RemoveActive) == 0 && len(c.UpdateActive) == 0 &&
		len(c.UpdateArchived) == 0 && len(c.AddArchived) == 0 && len(c.AddActive) == 0
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const activeCols = `id, stable_id, term, definition, version, status, created_at, created_by_id`

const archivedCols = `id, original_term_id, stable_id, term, definition, version, archived_at,
	archived_by_id, created_by_id, change_summary, restored_at, restored_by_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanActive(s scanner) (model.ActiveTerm, error) {
	var t model.ActiveTerm
	err := s.Scan(&t.ID, &t.StableID, &t.Term, &t.Definition, &t.Version, &t.Status, &t.CreatedAt, &t.CreatedByID)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, err
}

func scanArchived(s scanner) (model.ArchivedTerm, error) {
	var (
		a            model.ArchivedTerm
		restoredAt   sql.NullTime
		restoredByID sql.NullString
	)
	err := s.Scan(&a.ID, &a.OriginalTermID, &a.StableID, &a.Term, &a.Definition, &a.Version, &a.ArchivedAt,
		&a.ArchivedByID, &a.CreatedByID, &a.ChangeSummary, &restoredAt, &restoredByID)
	if err != nil {
		return a, err
	}
	a.ArchivedAt = a.ArchivedAt.UTC()
	if restoredAt.Valid {
		t := restoredAt.Time.UTC()
		a.RestoredAt = &t
	}
	if restoredByID.Valid {
		s := restoredByID.String
		a.RestoredByID = &s
	}
	return a, nil
}

// ActiveByID returns the active term with the given internal id or
// ErrNotFound.
func (r *TermRepo) ActiveByID(ctx context.Context, id int64) (*model.ActiveTerm, error) {
	t, err := scanActive(r.db.QueryRowContext(ctx,
		`SELECT `+activeCols+` FROM glossary_terms WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ActiveByStableID returns the single active term of a logical term or
// ErrNotFound when it is archived, deleted or never existed.
func (r *TermRepo) ActiveByStableID(ctx context.Context, stableID uuid.UUID) (*model.ActiveTerm, error) {
	t, err := scanActive(r.db.QueryRowContext(ctx,
		`SELECT `+activeCols+` FROM glossary_terms WHERE stable_id = ? LIMIT 1`, stableID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ArchivedByStableID returns every snapshot of a logical term, newest
// version first.
func (r *TermRepo) ArchivedByStableID(ctx context.Context, stableID uuid.UUID) ([]model.ArchivedTerm, error) {
	return r.listArchived(ctx,
		`SELECT `+archivedCols+` FROM archived_glossary_terms WHERE stable_id = ? ORDER BY version DESC`, stableID)
}

// ArchivedVersion returns one snapshot or ErrNotFound.
func (r *TermRepo) ArchivedVersion(ctx context.Context, stableID uuid.UUID, version int) (*model.ArchivedTerm, error) {
	a, err := scanArchived(r.db.QueryRowContext(ctx,
		`SELECT `+archivedCols+` FROM archived_glossary_terms WHERE stable_id = ? AND version = ?`, stableID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LatestVersion returns the highest version recorded for a stable id across
// both tables, or 0 when nothing is recorded.
func (r *TermRepo) LatestVersion(ctx context.Context, stableID uuid.UUID) (int, error) {
	var latest int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(v), 0) FROM (
			SELECT version AS v FROM glossary_terms WHERE stable_id = ?
			UNION ALL
			SELECT version AS v FROM archived_glossary_terms WHERE stable_id = ?
		) versions`, stableID, stableID).Scan(&latest)
	return latest, err
}

// ListActive returns the active terms visible under f.
func (r *TermRepo) ListActive(ctx context.Context, f TermFilter) ([]model.ActiveTerm, error) {
	q := `SELECT ` + activeCols + ` FROM glossary_terms`
	args := []any{}
	if !f.All {
		q += ` WHERE created_by_id = ?`
		args = append(args, f.CreatedByID)
	}
	q += ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ActiveTerm{}
	for rows.Next() {
		t, err := scanActive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListArchived returns the archived snapshots visible under f.
func (r *TermRepo) ListArchived(ctx context.Context, f TermFilter) ([]model.ArchivedTerm, error) {
	q := `SELECT ` + archivedCols + ` FROM archived_glossary_terms`
	args := []any{}
	if !f.All {
		q += ` WHERE created_by_id = ?`
		args = append(args, f.CreatedByID)
	}
	q += ` ORDER BY id`
	return r.listArchived(ctx, q, args...)
}

func (r *TermRepo) listArchived(ctx context.Context, q string, args ...any) ([]model.ArchivedTerm, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ArchivedTerm{}
	for rows.Next() {
		a, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateActive inserts a single active term and populates its ID.
func (r *TermRepo) CreateActive(ctx context.Context, t *model.ActiveTerm) error {
	n, err := insertActive(ctx, r.db, t)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotPersisted
	}
	return nil
}

// SaveChanges applies c inside one transaction.  Either every statement
// commits or none does.  Generated IDs are written back into the inserted
// records.  ErrNotPersisted is returned when no statement touched a row.
func (r *TermRepo) SaveChanges(ctx context.Context, c TermChanges) (err error) {
	if c.Empty() {
		return ErrNotPersisted
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var affected int64
	add := func(res sql.Result) error {
		n, err := res.RowsAffected()
		affected += n
		return err
	}

	for _, id := range c.RemoveActive {
		res, execErr := tx.ExecContext(ctx, `DELETE FROM glossary_terms WHERE id = ?`, id)
		if execErr != nil {
			return execErr
		}
		if err = add(res); err != nil {
			return err
		}
	}
	for _, t := range c.UpdateActive {
		res, execErr := tx.ExecContext(ctx,
			`UPDATE glossary_terms SET term = ?, definition = ?, version = ?, status = ? WHERE id = ?`,
			t.Term, t.Definition, t.Version, t.Status, t.ID)
		if execErr != nil {
			return mapWriteErr(execErr)
		}
		if err = add(res); err != nil {
			return err
		}
	}
	for _, a := range c.UpdateArchived {
		res, execErr := tx.ExecContext(ctx,
			`UPDATE archived_glossary_terms SET restored_at = ?, restored_by_id = ? WHERE id = ?`,
			nullTime(a.RestoredAt), nullString(a.RestoredByID), a.ID)
		if execErr != nil {
			return execErr
		}
		if err = add(res); err != nil {
			return err
		}
	}
	for _, a := range c.AddArchived {
		n, insErr := insertArchived(ctx, tx, a)
		if insErr != nil {
			return insErr
		}
		affected += n
	}
	for _, t := range c.AddActive {
		n, insErr := insertActive(ctx, tx, t)
		if insErr != nil {
			return insErr
		}
		affected += n
	}
	if affected == 0 {
		return ErrNotPersisted
	}
	return nil
}

func insertActive(ctx context.Context, q querier, t *model.ActiveTerm) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO glossary_terms (stable_id, term, definition, version, status, created_at, created_by_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.StableID, t.Term, t.Definition, t.Version, t.Status, t.CreatedAt.UTC(), t.CreatedByID)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	t.ID = id
	return res.RowsAffected()
}

func insertArchived(ctx context.Context, q querier, a *model.ArchivedTerm) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO archived_glossary_terms (original_term_id, stable_id, term, definition, version,
			archived_at, archived_by_id, created_by_id, change_summary, restored_at, restored_by_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.OriginalTermID, a.StableID, a.Term, a.Definition, a.Version, a.ArchivedAt.UTC(),
		a.ArchivedByID, a.CreatedByID, a.ChangeSummary, nullTime(a.RestoredAt), nullString(a.RestoredByID))
	if err != nil {
		return 0, mapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = id
	return res.RowsAffected()
}

func mapWriteErr(err error) error {
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
