package glossary

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/finiti-glossary/internal/model"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func activeTerm(id int64, sid uuid.UUID, term, def string, version int, status model.TermStatus, by string) model.ActiveTerm {
	return model.ActiveTerm{
		ID: id, StableID: sid, Term: term, Definition: def, Version: version,
		Status: status, CreatedAt: t0.Add(time.Duration(id) * time.Hour), CreatedByID: by,
	}
}

func archivedTerm(id int64, sid uuid.UUID, term, def string, version int, by, archivedBy string) model.ArchivedTerm {
	return model.ArchivedTerm{
		ID: id, StableID: sid, Term: term, Definition: def, Version: version,
		ArchivedAt: t0.Add(time.Duration(id) * time.Hour), ArchivedByID: archivedBy, CreatedByID: by,
	}
}

func TestAggregateAdminView_PicksActiveAndLatestArchived(t *testing.T) {
	sid := uuid.New()
	active := []model.ActiveTerm{activeTerm(1, sid, "A", "current", 1, model.StatusPublished, "1")}
	archived := []model.ArchivedTerm{
		archivedTerm(10, sid, "A", "old", 2, "1", "1"),
		archivedTerm(5, sid, "A", "older", 4, "1", "2"), // archived earlier but higher version
		archivedTerm(11, sid, "A", "oldest", 3, "1", "1"),
	}

	rows := AggregateAdminView(active, archived, testUsers, root)
	require.Len(t, rows, 2)

	cur, snap := rows[0], rows[1]
	assert.Equal(t, model.StatusPublished, cur.Status)
	assert.False(t, cur.CanRestore)
	assert.True(t, cur.HasHistory)
	assert.Equal(t, "alice", cur.CreatedByName)

	assert.Equal(t, model.StatusArchived, snap.Status)
	assert.Equal(t, 4, snap.Version)
	assert.Equal(t, "older", snap.Definition)
	assert.Equal(t, "bob", snap.ArchivedByName)
	assert.True(t, snap.CanRestore)
	assert.True(t, snap.HasHistory)
}

func TestAggregateAdminView_IdenticalSnapshotNotRestorable(t *testing.T) {
	sid := uuid.New()
	rows := AggregateAdminView(
		[]model.ActiveTerm{activeTerm(1, sid, "A", "same", 1, model.StatusDraft, "1")},
		[]model.ArchivedTerm{archivedTerm(2, sid, " A", "same ", 2, "1", "1")},
		testUsers, root)
	require.Len(t, rows, 2)
	assert.Equal(t, model.StatusDraft, rows[0].Status)
	assert.False(t, rows[1].CanRestore)
}

func TestAggregateAdminView_SingleRowGroups(t *testing.T) {
	onlyActive, onlyArchived := uuid.New(), uuid.New()
	rows := AggregateAdminView(
		[]model.ActiveTerm{activeTerm(1, onlyActive, "A", "x", 1, model.StatusDraft, "1")},
		[]model.ArchivedTerm{archivedTerm(2, onlyArchived, "B", "y", 2, "1", "1")},
		testUsers, root)
	require.Len(t, rows, 2)

	assert.Equal(t, onlyActive, rows[0].StableID)
	assert.False(t, rows[0].HasHistory)
	assert.False(t, rows[0].CanRestore)

	assert.Equal(t, onlyArchived, rows[1].StableID)
	assert.False(t, rows[1].HasHistory)
	assert.True(t, rows[1].CanRestore)
}

func TestAggregateAdminView_NonAdminSeesOnlyOwnRows(t *testing.T) {
	mine, theirs := uuid.New(), uuid.New()
	active := []model.ActiveTerm{
		activeTerm(1, mine, "A", "x", 1, model.StatusPublished, "1"),
		activeTerm(2, theirs, "B", "y", 1, model.StatusPublished, "2"),
	}
	archived := []model.ArchivedTerm{
		archivedTerm(3, theirs, "B", "old", 2, "2", "9"),
		archivedTerm(4, mine, "A", "old", 2, "1", "9"),
	}

	for _, c := range []Caller{alice, bob} {
		for _, r := range AggregateAdminView(active, archived, testUsers, c) {
			assert.Equal(t, c.ID, r.CreatedByID)
		}
	}
	assert.Len(t, AggregateAdminView(active, archived, testUsers, root), 4)
	assert.Len(t, AggregateAdminView(active, archived, testUsers, Caller{ID: "2", IsAdmin: true}), 4)
	assert.Len(t, AggregateAdminView(active, archived, testUsers, Caller{ID: "2", Role: "admin"}), 4)
}

func TestAggregateAdminView_UnknownUsers(t *testing.T) {
	sid := uuid.New()
	restorer := "77"
	a := archivedTerm(2, sid, "A", "x", 2, "", "abc")
	a.RestoredByID = &restorer

	rows := AggregateAdminView(nil, []model.ArchivedTerm{a}, testUsers, root)
	require.Len(t, rows, 1)
	assert.Equal(t, UnknownUser, rows[0].CreatedByName)
	assert.Equal(t, UnknownUser, rows[0].ArchivedByName)
	assert.Equal(t, UnknownUser, rows[0].RestoredByName)
}

func TestAggregateHistory(t *testing.T) {
	sid := uuid.New()
	active := activeTerm(7, sid, "A", "current", 2, model.StatusDraft, "1")
	archived := []model.ArchivedTerm{
		archivedTerm(3, sid, "A", "first", 2, "1", "1"),
		archivedTerm(5, sid, "A", " current", 4, "1", "2"),
		archivedTerm(4, sid, "A", "second", 3, "1", "9"),
	}

	rows := AggregateHistory(&active, archived, testUsers)
	require.Len(t, rows, 4)

	versions := []int{}
	for _, r := range rows {
		versions = append(versions, r.Version)
	}
	assert.Equal(t, []int{4, 3, 2, 2}, versions)

	// Stable sort keeps the active row ahead of the archived v2.
	cur := rows[2]
	assert.Equal(t, int64(7), cur.ID)
	assert.Equal(t, model.StatusPublished, cur.Status)
	assert.False(t, cur.CanRestore)
	assert.True(t, cur.HasHistory)
	assert.Empty(t, cur.ArchivedByName)

	assert.False(t, rows[0].CanRestore, "identical to active")
	assert.Equal(t, "bob", rows[0].ArchivedByName)
	assert.True(t, rows[1].CanRestore)
	assert.Equal(t, "root", rows[1].ArchivedByName)
	assert.True(t, rows[3].CanRestore)
	for _, r := range rows[:2] {
		assert.True(t, r.HasHistory)
		assert.Equal(t, model.StatusArchived, r.Status)
	}
}

func TestAggregateHistory_ActiveOnlyAndArchivedOnly(t *testing.T) {
	sid := uuid.New()
	active := activeTerm(1, sid, "A", "x", 1, model.StatusPublished, "1")
	rows := AggregateHistory(&active, nil, testUsers)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].HasHistory)

	rows = AggregateHistory(nil, []model.ArchivedTerm{archivedTerm(2, sid, "A", "x", 2, "1", "1")}, testUsers)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].CanRestore)
	assert.True(t, rows[0].HasHistory)
}
