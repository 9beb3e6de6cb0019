// Package auth implements account registration, login, refresh token
// rotation and password resets.
package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/finiti-glossary/internal/model"
	"github.com/iliyamo/finiti-glossary/internal/repository"
	"github.com/iliyamo/finiti-glossary/internal/utils"
)

// Errors returned by Service.  Message gives the text shown to clients.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidResetToken  = errors.New("invalid reset token")
	ErrResetTokenExpired  = errors.New("reset token expired")
)

var messages = map[error]string{
	ErrEmailTaken:         "User with this email already exists.",
	ErrInvalidCredentials: "Invalid email or password.",
	ErrInvalidRefresh:     "Invalid or expired refresh token.",
	ErrUserNotFound:       "No user found with that email.",
	ErrInvalidResetToken:  "Invalid or expired reset token.",
	ErrResetTokenExpired:  "Reset token has expired.",
}

// Message returns the client-facing text for one of the errors above.
// ok is false for any other error.
func Message(err error) (msg string, ok bool) {
	for target, m := range messages {
		if errors.Is(err, target) {
			return m, true
		}
	}
	return "", false
}

// TestTokenTTL is the lifetime of reset tokens issued without email.
const TestTokenTTL = 30 * time.Minute

// UserStore is the account persistence used by Service.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByResetToken(ctx context.Context, token string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
}

// RefreshStore keeps hashed refresh tokens.  GetValid returns
// repository.ErrNotFound for unknown, revoked or expired tokens; Revoke
// returns it when the token was already revoked.
type RefreshStore interface {
	Add(ctx context.Context, t *model.RefreshToken) error
	GetValid(ctx context.Context, tokenHash string, now time.Time) (*model.RefreshToken, error)
	Revoke(ctx context.Context, id uint64, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error
}

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// TokenIssuer signs short-lived access tokens.
type TokenIssuer interface {
	Create(u *model.User) (utils.AccessToken, error)
}

// Mailer delivers an HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Config holds the auth settings taken from config.Config.
type Config struct {
	RefreshTTLDays  int
	ResetTTL        time.Duration
	FrontendBaseURL string
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
	User           *model.User
}

// Service wires the auth collaborators together.
type Service struct {
	users  UserStore
	tokens RefreshStore
	hasher Hasher
	issuer TokenIssuer
	mailer Mailer
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time
}

// NewService returns an auth service.
func NewService(users UserStore, tokens RefreshStore, hasher Hasher, issuer TokenIssuer, mailer Mailer, cfg Config, log zerolog.Logger) *Service {
	if cfg.RefreshTTLDays <= 0 {
		cfg.RefreshTTLDays = 7
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		issuer: issuer,
		mailer: mailer,
		cfg:    cfg,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a regular user account.
func (s *Service) Register(ctx context.Context, username, email, password string) error {
	email = normalizeEmail(email)
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailTaken
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Username:     strings.TrimSpace(username),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return ErrEmailTaken
		}
		return err
	}
	s.log.Info().Uint64("user_id", u.ID).Msg("user registered")
	return nil
}

// Login checks credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented token is revoked and a
// new pair is issued.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidRefresh
	}
	now := s.now()
	stored, err := s.tokens.GetValid(ctx, utils.HashRefreshRaw(raw), now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}

	err = s.tokens.Revoke(ctx, stored.ID, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, stored.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidRefresh
	}
	return s.issue(ctx, u)
}

// Logout revokes one refresh token.  The access token stays valid until
// it expires.
func (s *Service) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrInvalidRefresh
	}
	now := s.now()
	stored, err := s.tokens.GetValid(ctx, utils.HashRefreshRaw(raw), now)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidRefresh
	}
	if err != nil {
		return err
	}
	err = s.tokens.Revoke(ctx, stored.ID, now)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidRefresh
	}
	return err
}

// RequestPasswordReset stores a reset token and emails the reset link.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	token, err := s.storeResetToken(ctx, u, s.cfg.ResetTTL)
	if err != nil {
		return err
	}

	link := ResetLink(s.cfg.FrontendBaseURL, token)
	if err := s.mailer.Send(ctx, u.Email, "Password Reset", resetEmailBody(link)); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	s.log.Info().Uint64("user_id", u.ID).Msg("password reset requested")
	return nil
}

// ConfirmPasswordReset sets a new password for the holder of token and
// signs the user out of every session.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidResetToken
	}
	u, err := s.users.GetByResetToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	now := s.now()
	if u.ResetTokenExpires == nil || u.ResetTokenExpires.Before(now) {
		return ErrResetTokenExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.ResetToken = nil
	u.ResetTokenExpires = nil
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID, now); err != nil {
		return err
	}
	s.log.Info().Uint64("user_id", u.ID).Msg("password reset")
	return nil
}

// IssueResetToken stores a short-lived reset token and returns it without
// sending email.  Used by operators and end-to-end tests.
func (s *Service) IssueResetToken(ctx context.Context, email string) (*model.User, string, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", ErrUserNotFound
	}
	if err != nil {
		return nil, "", err
	}
	token, err := s.storeResetToken(ctx, u, TestTokenTTL)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *Service) storeResetToken(ctx context.Context, u *model.User, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	exp := s.now().Add(ttl)
	u.ResetToken = &token
	u.ResetTokenExpires = &exp
	if err := s.users.Update(ctx, u); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) issue(ctx context.Context, u *model.User) (*TokenPair, error) {
	access, err := s.issuer.Create(u)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.tokens.Add(ctx, &model.RefreshToken{
		UserID:    u.ID,
		TokenHash: utils.HashRefreshRaw(refresh.Raw),
		ExpiresAt: refresh.Exp,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:    access.Token,
		AccessExpires:  access.Exp,
		RefreshToken:   refresh.Raw,
		RefreshExpires: refresh.Exp,
		User:           u,
	}, nil
}

// ResetLink builds the frontend URL a reset email points to.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password?token=" + token
}

func resetEmailBody(link string) string {
	l := html.EscapeString(link)
	return `<h2>Password Reset</h2>
<p>Click the link below to reset your password:</p>
<a href="` + l + `">` + l + `</a>`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
