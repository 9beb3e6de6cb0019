package glossary

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/finiti-glossary/internal/model"
	"github.com/iliyamo/finiti-glossary/internal/queue"
	"github.com/iliyamo/finiti-glossary/internal/repository"
)

// memStore is an in-memory Store.  Records are copied in and out so the
// engine cannot change stored state except through SaveChanges.
type memStore struct {
	mu       sync.Mutex
	active   map[int64]model.ActiveTerm
	archived map[int64]model.ArchivedTerm
	nextID   int64

	saveErr    error // returned by SaveChanges when set
	createErr  error // returned by CreateActive when set
	lookupErr  error // returned by every lookup when set
	saveCalls  int
	lastChange repository.TermChanges
}

func newMemStore() *memStore {
	return &memStore{
		active:   map[int64]model.ActiveTerm{},
		archived: map[int64]model.ArchivedTerm{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) ActiveByID(_ context.Context, id int64) (*model.ActiveTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	t, ok := m.active[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) ActiveByStableID(_ context.Context, stableID uuid.UUID) (*model.ActiveTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, t := range m.active {
		if t.StableID == stableID {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ArchivedByStableID(_ context.Context, stableID uuid.UUID) ([]model.ArchivedTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := []model.ArchivedTerm{}
	for _, a := range m.archived {
		if a.StableID == stableID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (m *memStore) ArchivedVersion(_ context.Context, stableID uuid.UUID, version int) (*model.ArchivedTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, a := range m.archived {
		if a.StableID == stableID && a.Version == version {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) LatestVersion(_ context.Context, stableID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := 0
	for _, t := range m.active {
		if t.StableID == stableID && t.Version > latest {
			latest = t.Version
		}
	}
	for _, a := range m.archived {
		if a.StableID == stableID && a.Version > latest {
			latest = a.Version
		}
	}
	return latest, nil
}

func (m *memStore) ListActive(_ context.Context, f repository.TermFilter) ([]model.ActiveTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := []model.ActiveTerm{}
	for _, t := range m.active {
		if f.All || t.CreatedByID == f.CreatedByID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListArchived(_ context.Context, f repository.TermFilter) ([]model.ArchivedTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := []model.ArchivedTerm{}
	for _, a := range m.archived {
		if f.All || a.CreatedByID == f.CreatedByID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateActive(_ context.Context, t *model.ActiveTerm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	t.ID = m.id()
	m.active[t.ID] = *t
	return nil
}

// SaveChanges stages every change on copies and only swaps them in when
// the unique constraints of the real schema still hold.
func (m *memStore) SaveChanges(_ context.Context, c repository.TermChanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	m.lastChange = c
	if m.saveErr != nil {
		return m.saveErr
	}
	if c.Empty() {
		return repository.ErrNotPersisted
	}

	active := make(map[int64]model.ActiveTerm, len(m.active))
	for k, v := range m.active {
		active[k] = v
	}
	archived := make(map[int64]model.ArchivedTerm, len(m.archived))
	for k, v := range m.archived {
		archived[k] = v
	}
	next := m.nextID

	for _, id := range c.RemoveActive {
		delete(active, id)
	}
	for _, t := range c.UpdateActive {
		if _, ok := active[t.ID]; ok {
			active[t.ID] = *t
		}
	}
	for _, a := range c.UpdateArchived {
		if cur, ok := archived[a.ID]; ok {
			cur.RestoredAt, cur.RestoredByID = a.RestoredAt, a.RestoredByID
			archived[a.ID] = cur
		}
	}
	for _, a := range c.AddArchived {
		for _, x := range archived {
			if x.StableID == a.StableID && x.Version == a.Version {
				return repository.ErrConflict
			}
		}
		next++
		a.ID = next
		archived[a.ID] = *a
	}
	for _, t := range c.AddActive {
		for _, x := range active {
			if x.StableID == t.StableID {
				return repository.ErrConflict
			}
		}
		next++
		t.ID = next
		active[t.ID] = *t
	}

	m.active, m.archived, m.nextID = active, archived, next
	return nil
}

func (m *memStore) archivedFor(stableID uuid.UUID) []model.ArchivedTerm {
	out, _ := m.ArchivedByStableID(context.Background(), stableID)
	return out
}

func (m *memStore) activeCount(stableID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.active {
		if t.StableID == stableID {
			n++
		}
	}
	return n
}

type memUsers struct {
	users []model.User
	err   error
}

func (u memUsers) List(context.Context) ([]model.User, error) { return u.users, u.err }

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.GlossaryEvent
	err    error
}

func (p *recordingPublisher) PublishGlossaryEvent(_ context.Context, ev queue.GlossaryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var errBoom = errors.New("boom")
