package glossary

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/finiti-glossary/internal/model"
)

// Listing defaults.
const (
	DefaultLimit = 50
	MaxLimit     = 200

	SortDateAsc  = "dateAsc"
	SortDateDesc = "dateDesc"
	SortAZ       = "az"
	SortZA       = "za"
)

// ListQuery holds the admin listing parameters.  A zero Limit means the
// default.
type ListQuery struct {
	Offset int
	Limit  int
	Sort   string
	Search string
	Tab    string
}

// PageMeta describes the returned page.
type PageMeta struct {
	Offset  int    `json:"offset"`
	Limit   int    `json:"limit"`
	Total   int    `json:"total"`
	HasMore bool   `json:"hasMore"`
	Sort    string `json:"sort"`
	Search  string `json:"search"`
	Tab     string `json:"tab"`
}

// Page is one slice of the admin listing.
type Page struct {
	Meta PageMeta   `json:"meta"`
	Data []AdminRow `json:"data"`
}

// StatusForTab maps a tab keyword to the status it shows.  ok is false
// for any other keyword, which means no status filter.
func StatusForTab(tab string) (status model.TermStatus, ok bool) {
	switch strings.ToLower(strings.TrimSpace(tab)) {
	case "draft":
		return model.StatusDraft, true
	case "published":
		return model.StatusPublished, true
	case "archived":
		return model.StatusArchived, true
	}
	return 0, false
}

// normalize applies defaults and validates bounds.
func (q ListQuery) normalize() (ListQuery, error) {
	if q.Offset < 0 {
		return q, validationErr("list", "Offset must not be negative.")
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 1 {
		return q, validationErr("list", "Limit must be at least 1.")
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	switch q.Sort {
	case SortDateAsc, SortDateDesc, SortAZ, SortZA:
	default:
		q.Sort = SortDateDesc
	}
	q.Search = strings.TrimSpace(q.Search)
	return q, nil
}

// ListForAdmin aggregates the caller's visible terms and returns the
// requested page.
func (s *Service) ListForAdmin(ctx context.Context, caller Caller, q ListQuery) (*Page, error) {
	const op = "list"
	q, err := q.normalize()
	if err != nil {
		return nil, s.fail(op, err)
	}

	var (
		active   []model.ActiveTerm
		archived []model.ArchivedTerm
		users    []model.User
	)
	f := caller.filter()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		active, err = s.store.ListActive(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		archived, err = s.store.ListArchived(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.users.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail(op, unexpectedErr(op, err))
	}

	rows := AggregateAdminView(active, archived, users, caller)
	s.observe(op, "ok")
	return Paginate(rows, q), nil
}

// Paginate filters, sorts and slices rows.  q must already be normalized.
func Paginate(rows []AdminRow, q ListQuery) *Page {
	rows = filterRows(rows, q.Tab, q.Search)
	sortRows(rows, q.Sort)

	total := len(rows)
	start := min(q.Offset, total)
	end := min(start+q.Limit, total)
	data := rows[start:end]
	if data == nil {
		data = []AdminRow{}
	}

	return &Page{
		Meta: PageMeta{
			Offset:  q.Offset,
			Limit:   q.Limit,
			Total:   total,
			HasMore: q.Offset < total && q.Limit < total-q.Offset,
			Sort:    q.Sort,
			Search:  q.Search,
			Tab:     q.Tab,
		},
		Data: data,
	}
}

func filterRows(rows []AdminRow, tab, search string) []AdminRow {
	status, byStatus := StatusForTab(tab)
	needle := strings.ToLower(search)
	out := make([]AdminRow, 0, len(rows))
	for _, r := range rows {
		if byStatus && r.Status != status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Term), needle) &&
			!strings.Contains(strings.ToLower(r.Definition), needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortRows(rows []AdminRow, key string) {
	var less func(a, b AdminRow) bool
	switch key {
	case SortDateAsc:
		less = func(a, b AdminRow) bool { return a.CreatedOrArchivedAt.Before(b.CreatedOrArchivedAt) }
	case SortAZ:
		less = func(a, b AdminRow) bool { return termLess(a.Term, b.Term) }
	case SortZA:
		less = func(a, b AdminRow) bool { return termLess(b.Term, a.Term) }
	default:
		less = func(a, b AdminRow) bool { return a.CreatedOrArchivedAt.After(b.CreatedOrArchivedAt) }
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}

func termLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
