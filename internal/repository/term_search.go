package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/finiti-glossary/internal/model"
)

// PublishedQuery defines filters & pagination for the public glossary.
type PublishedQuery struct {
	Search   string
	Page     int
	PageSize int
}

// PublicTermRow is a published term without authoring details.
type PublicTermRow struct {
	StableID   uuid.UUID `json:"stableId"`
	Term       string    `json:"term"`
	Definition string    `json:"definition"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SearchPublished returns one page of published terms ordered by term,
// plus the total number of matches.  Search matches term or definition,
// case-insensitively.
func (r *TermRepo) SearchPublished(ctx context.Context, q PublishedQuery) ([]PublicTermRow, int64, error) {
	where := []string{"status = ?"}
	args := []any{model.StatusPublished}

	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, "(LOWER(term) LIKE ? OR LOWER(definition) LIKE ?)")
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM glossary_terms WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := `SELECT stable_id, term, definition, version, created_at
		FROM glossary_terms
		WHERE ` + cond + `
		ORDER BY LOWER(term) ASC, id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]PublicTermRow, 0, limit)
	for rows.Next() {
		var d PublicTermRow
		if err := rows.Scan(&d.StableID, &d.Term, &d.Definition, &d.Version, &d.CreatedAt); err != nil {
			return nil, 0, err
		}
		d.CreatedAt = d.CreatedAt.UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
