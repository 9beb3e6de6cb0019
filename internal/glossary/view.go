package glossary

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/finiti-glossary/internal/model"
)

// UnknownUser is shown when an id cannot be resolved to a username.
const UnknownUser = "Unknown"

// AdminRow is one display row in the admin listing or a history timeline.
// Status is the active record's own status (0 or 1) or 2 for an archived
// snapshot.
type AdminRow struct {
	ID                  int64            `json:"id"`
	StableID            uuid.UUID        `json:"stableId"`
	Term                string           `json:"term"`
	Definition          string           `json:"definition"`
	Version             int              `json:"version"`
	Status              model.TermStatus `json:"status"`
	CreatedOrArchivedAt time.Time        `json:"createdOrArchivedAt"`
	CreatedByID         string           `json:"createdById,omitempty"`
	CreatedByName       string           `json:"createdByName"`
	ArchivedByName      string           `json:"archivedByName,omitempty"`
	RestoredAt          *time.Time       `json:"restoredAt,omitempty"`
	RestoredByName      string           `json:"restoredByName,omitempty"`
	HasHistory          bool             `json:"hasHistory"`
	CanRestore          bool             `json:"canRestore"`
}

// flatRow is an active or archived record in a common shape.
type flatRow struct {
	id           int64
	stableID     uuid.UUID
	term         string
	definition   string
	version      int
	status       model.TermStatus
	at           time.Time
	createdByID  string
	archivedByID *string
	restoredAt   *time.Time
	restoredByID *string
}

// userNames maps user ids, as strings, to usernames.
type userNames map[string]string

func newUserNames(users []model.User) userNames {
	m := make(userNames, len(users))
	for _, u := range users {
		m[strconv.FormatUint(u.ID, 10)] = u.Username
	}
	return m
}

func (n userNames) resolve(id *string) string {
	if id == nil {
		return UnknownUser
	}
	if name, ok := n[*id]; ok && name != "" {
		return name
	}
	return UnknownUser
}

// AggregateAdminView produces the admin listing: per logical term, the
// active row and the most recent archived snapshot (by version).  Groups
// keep the order in which their first record appears, actives before
// archives.  Non-admin callers only get records they created.
func AggregateAdminView(active []model.ActiveTerm, archived []model.ArchivedTerm, users []model.User, caller Caller) []AdminRow {
	admin := caller.Admin()
	names := newUserNames(users)

	flat := make([]flatRow, 0, len(active)+len(archived))
	for _, t := range active {
		if !admin && t.CreatedByID != caller.ID {
			continue
		}
		flat = append(flat, flatRow{
			id:          t.ID,
			stableID:    t.StableID,
			term:        t.Term,
			definition:  t.Definition,
			version:     t.Version,
			status:      t.Status,
			at:          t.CreatedAt,
			createdByID: t.CreatedByID,
		})
	}
	for _, a := range archived {
		if !admin && a.CreatedByID != caller.ID {
			continue
		}
		archivedBy := a.ArchivedByID
		flat = append(flat, flatRow{
			id:           a.ID,
			stableID:     a.StableID,
			term:         a.Term,
			definition:   a.Definition,
			version:      a.Version,
			status:       model.StatusArchived,
			at:           a.ArchivedAt,
			createdByID:  a.CreatedByID,
			archivedByID: &archivedBy,
			restoredAt:   a.RestoredAt,
			restoredByID: a.RestoredByID,
		})
	}

	var order []uuid.UUID
	groups := make(map[uuid.UUID][]flatRow)
	for _, r := range flat {
		if _, seen := groups[r.stableID]; !seen {
			order = append(order, r.stableID)
		}
		groups[r.stableID] = append(groups[r.stableID], r)
	}

	rows := make([]AdminRow, 0, len(flat))
	for _, id := range order {
		g := groups[id]
		var current, latest *flatRow
		for i := range g {
			r := &g[i]
			if r.status != model.StatusArchived {
				if current == nil {
					current = r
				}
				continue
			}
			if latest == nil || r.version > latest.version {
				latest = r
			}
		}

		hasHistory := len(g) > 1
		if current != nil {
			rows = append(rows, names.row(current, hasHistory, false))
		}
		if latest != nil {
			identical := current != nil && sameContent(current.term, current.definition, latest.term, latest.definition)
			rows = append(rows, names.row(latest, hasHistory, !identical))
		}
	}
	return rows
}

func (n userNames) row(r *flatRow, hasHistory, canRestore bool) AdminRow {
	createdBy := r.createdByID
	return AdminRow{
		ID:                  r.id,
		StableID:            r.stableID,
		Term:                r.term,
		Definition:          r.definition,
		Version:             r.version,
		Status:              r.status,
		CreatedOrArchivedAt: r.at,
		CreatedByID:         r.createdByID,
		CreatedByName:       n.resolve(&createdBy),
		ArchivedByName:      n.resolve(r.archivedByID),
		RestoredAt:          r.restoredAt,
		RestoredByName:      n.resolve(r.restoredByID),
		HasHistory:          hasHistory,
		CanRestore:          canRestore,
	}
}
