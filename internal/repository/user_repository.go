package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/finiti-glossary/internal/model"
)

// UserRepo persists accounts in the 'users' table.  Passwords arrive
// already hashed; hashing belongs to the auth service.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `id, username, email, password_hash, role, is_admin, is_active, created_at, reset_token, reset_token_expires`

func scanUser(s scanner) (model.User, error) {
	var (
		u        model.User
		token    sql.NullString
		tokenExp sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsAdmin, &u.IsActive,
		&u.CreatedAt, &token, &tokenExp)
	if err != nil {
		return u, err
	}
	if token.Valid {
		t := token.String
		u.ResetToken = &t
	}
	if tokenExp.Valid {
		t := tokenExp.Time.UTC()
		u.ResetTokenExpires = &t
	}
	return u, nil
}

// Create inserts user and populates its ID.  Email is normalised to lower
// case; a duplicate email yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, is_admin, is_active, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		u.Username, u.Email, u.PasswordHash, u.Role, u.IsAdmin, u.IsActive, u.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// ExistsByEmail reports whether an account uses email.
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email=?",
		strings.ToLower(strings.TrimSpace(email))).Scan(&n)
	return n > 0, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE email=? LIMIT 1",
		strings.ToLower(strings.TrimSpace(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id)
}

// GetByResetToken fetches the user holding a pending reset token.
func (r *UserRepo) GetByResetToken(ctx context.Context, token string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE reset_token=? LIMIT 1", token)
}

func (r *UserRepo) getOne(ctx context.Context, q string, args ...any) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Update writes back the mutable account fields.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	var token sql.NullString
	if u.ResetToken != nil {
		token = sql.NullString{String: *u.ResetToken, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET username=?, password_hash=?, role=?, is_admin=?, is_active=?,
		 reset_token=?, reset_token_expires=? WHERE id=?`,
		u.Username, u.PasswordHash, u.Role, u.IsAdmin, u.IsActive, token, nullTime(u.ResetTokenExpires), u.ID)
	return err
}

// List returns every user; the admin listing resolves display names from it.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userCols+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
