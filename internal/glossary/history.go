package glossary

import (
	"sort"

	"github.com/iliyamo/finiti-glossary/internal/model"
)

// AggregateHistory lays out every version of one logical term, newest
// first.  The active record, when present, is shown as published and is
// never restorable.  An archived snapshot is restorable unless its content
// matches the active record.
func AggregateHistory(active *model.ActiveTerm, archived []model.ArchivedTerm, users []model.User) []AdminRow {
	names := newUserNames(users)
	rows := make([]AdminRow, 0, len(archived)+1)

	if active != nil {
		createdBy := active.CreatedByID
		rows = append(rows, AdminRow{
			ID:                  active.ID,
			StableID:            active.StableID,
			Term:                active.Term,
			Definition:          active.Definition,
			Version:             active.Version,
			Status:              model.StatusPublished,
			CreatedOrArchivedAt: active.CreatedAt,
			CreatedByID:         active.CreatedByID,
			CreatedByName:       names.resolve(&createdBy),
			HasHistory:          len(archived) > 0,
		})
	}

	for _, a := range archived {
		identical := active != nil && sameContent(active.Term, active.Definition, a.Term, a.Definition)
		createdBy, archivedBy := a.CreatedByID, a.ArchivedByID
		rows = append(rows, AdminRow{
			ID:                  a.ID,
			StableID:            a.StableID,
			Term:                a.Term,
			Definition:          a.Definition,
			Version:             a.Version,
			Status:              model.StatusArchived,
			CreatedOrArchivedAt: a.ArchivedAt,
			CreatedByID:         a.CreatedByID,
			CreatedByName:       names.resolve(&createdBy),
			ArchivedByName:      names.resolve(&archivedBy),
			RestoredAt:          a.RestoredAt,
			RestoredByName:      names.resolve(a.RestoredByID),
			HasHistory:          true,
			CanRestore:          !identical,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Version > rows[j].Version })
	return rows
}
