package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/finiti-glossary/internal/auth"
	"github.com/iliyamo/finiti-glossary/internal/glossary"
	"github.com/iliyamo/finiti-glossary/internal/metrics"
	"github.com/iliyamo/finiti-glossary/internal/middleware"
	"github.com/iliyamo/finiti-glossary/internal/model"
)

type stubGlossary struct {
	result  *glossary.Result
	err     error
	page    *glossary.Page
	history []glossary.AdminRow

	caller   glossary.Caller
	query    glossary.ListQuery
	id       int64
	stableID uuid.UUID
	version  int
	term     string
}

func (s *stubGlossary) done(caller glossary.Caller) (*glossary.Result, error) {
	s.caller = caller
	return s.result, s.err
}

func (s *stubGlossary) Create(_ context.Context, c glossary.Caller, term, _ string) (*glossary.Result, error) {
	s.term = term
	return s.done(c)
}
func (s *stubGlossary) Publish(_ context.Context, c glossary.Caller, id int64) (*glossary.Result, error) {
	s.id = id
	return s.done(c)
}
func (s *stubGlossary) Update(_ context.Context, c glossary.Caller, id int64, term, _ string) (*glossary.Result, error) {
	s.id, s.term = id, term
	return s.done(c)
}
func (s *stubGlossary) Archive(_ context.Context, c glossary.Caller, id int64) (*glossary.Result, error) {
	s.id = id
	return s.done(c)
}
func (s *stubGlossary) Restore(_ context.Context, c glossary.Caller, stableID uuid.UUID, version int) (*glossary.Result, error) {
	s.stableID, s.version = stableID, version
	return s.done(c)
}
func (s *stubGlossary) Delete(_ context.Context, c glossary.Caller, id int64) (*glossary.Result, error) {
	s.id = id
	return s.done(c)
}
func (s *stubGlossary) History(_ context.Context, c glossary.Caller, stableID uuid.UUID) ([]glossary.AdminRow, error) {
	s.caller, s.stableID = c, stableID
	return s.history, s.err
}
func (s *stubGlossary) ListForAdmin(_ context.Context, c glossary.Caller, q glossary.ListQuery) (*glossary.Page, error) {
	s.caller, s.query = c, q
	return s.page, s.err
}

type countingPurger struct{ calls int }

func (p *countingPurger) Purge(context.Context) error { p.calls++; return nil }

// withCaller stands in for JWTAuth.
func withCaller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set(middleware.CtxUserID, "7")
		c.Set(middleware.CtxRole, model.RoleUser)
		return next(c)
	}
}

func glossaryServer(svc *stubGlossary, cache Purger) *echo.Echo {
	h := NewGlossaryHandler(svc, cache, zerolog.Nop())
	e := echo.New()
	e.Validator = NewValidator()
	g := e.Group("/admin", withCaller)
	g.GET("/all", h.List)
	g.POST("/create", h.Create)
	g.POST("/publish/:id", h.Publish)
	g.PUT("/update/:id", h.Update)
	g.POST("/archive/:id", h.Archive)
	g.POST("/restore/:stableId/:version", h.Restore)
	g.GET("/history/:stableId", h.History)
	g.DELETE("/delete/:id", h.Delete)
	return e
}

func call(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["message"].(string)
	return msg
}

func TestGlossaryHandler_ListQuery(t *testing.T) {
	svc := &stubGlossary{page: &glossary.Page{Data: []glossary.AdminRow{}}}
	e := glossaryServer(svc, nil)

	rec := call(e, http.MethodGet, "/admin/all?offset=10&limit=5&sort=az&search=bond&tab=draft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, glossary.ListQuery{Offset: 10, Limit: 5, Sort: "az", Search: "bond", Tab: "draft"}, svc.query)
	assert.Equal(t, "7", svc.caller.ID)

	rec = call(e, http.MethodGet, "/admin/all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.query.Limit, "engine applies the default")

	for _, q := range []string{"limit=0", "limit=-3", "limit=abc", "offset=x"} {
		rec = call(e, http.MethodGet, "/admin/all?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGlossaryHandler_Mutations(t *testing.T) {
	stable := uuid.New()
	svc := &stubGlossary{result: &glossary.Result{Message: "ok", Applied: true}}
	purger := &countingPurger{}
	e := glossaryServer(svc, purger)

	rec := call(e, http.MethodPost, "/admin/create", `{"term":"Bond","definition":"Debt"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bond", svc.term)
	assert.Equal(t, "ok", message(t, rec))

	rec = call(e, http.MethodPut, "/admin/update/12", `{"term":"Bond2","definition":"Debt","status":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(12), svc.id)

	call(e, http.MethodPost, "/admin/publish/3", "")
	assert.Equal(t, int64(3), svc.id)
	call(e, http.MethodPost, "/admin/archive/4", "")
	assert.Equal(t, int64(4), svc.id)
	call(e, http.MethodDelete, "/admin/delete/5", "")
	assert.Equal(t, int64(5), svc.id)

	rec = call(e, http.MethodPost, "/admin/restore/"+stable.String()+"/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stable, svc.stableID)
	assert.Equal(t, 2, svc.version)
	assert.Equal(t, 6, purger.calls)

	svc.result = &glossary.Result{Message: "Identical version already active — no restore needed.", Restored: new(bool)}
	rec = call(e, http.MethodPost, "/admin/restore/"+stable.String()+"/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Identical version already active — no restore needed.","restored":false}`, rec.Body.String())
	assert.Equal(t, 6, purger.calls, "no purge when nothing changed")
}

func TestGlossaryHandler_BadParams(t *testing.T) {
	e := glossaryServer(&stubGlossary{}, nil)

	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPost, "/admin/publish/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPost, "/admin/restore/not-a-uuid/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPost, "/admin/restore/"+uuid.NewString()+"/x", "").Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodGet, "/admin/history/zzz", "").Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPost, "/admin/create", `{"term":`).Code)
}

func TestGlossaryHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{&glossary.Error{Kind: glossary.KindValidation, Message: "Term and definition are required."}, http.StatusBadRequest, "Term and definition are required."},
		{&glossary.Error{Kind: glossary.KindNotFound, Message: "Term not found."}, http.StatusNotFound, "Term not found."},
		{&glossary.Error{Kind: glossary.KindUnexpected, Message: "An unexpected server error occurred during publishing.", Err: errors.New("db: boom")}, http.StatusInternalServerError, "An unexpected server error occurred during publishing."},
		{errors.New("raw driver error"), http.StatusInternalServerError, "An unexpected server error occurred."},
	}
	for _, tc := range cases {
		e := glossaryServer(&stubGlossary{err: tc.err}, nil)
		rec := call(e, http.MethodPost, "/admin/publish/1", "")
		assert.Equal(t, tc.code, rec.Code)
		assert.Equal(t, tc.msg, message(t, rec))
		assert.NotContains(t, rec.Body.String(), "boom")
	}
}

func TestGlossaryHandler_History(t *testing.T) {
	stable := uuid.New()
	svc := &stubGlossary{history: []glossary.AdminRow{{StableID: stable, Term: "Bond", Version: 2}}}
	e := glossaryServer(svc, nil)

	rec := call(e, http.MethodGet, "/admin/history/"+stable.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Bond", rows[0]["term"])
	assert.Equal(t, stable.String(), rows[0]["stableId"])
}

type stubAuth struct {
	err   error
	pair  *auth.TokenPair
	user  *model.User
	token string
	calls []string
}

func (s *stubAuth) Register(context.Context, string, string, string) error {
	s.calls = append(s.calls, "register")
	return s.err
}
func (s *stubAuth) Login(context.Context, string, string) (*auth.TokenPair, error) {
	s.calls = append(s.calls, "login")
	return s.pair, s.err
}
func (s *stubAuth) Refresh(context.Context, string) (*auth.TokenPair, error) {
	s.calls = append(s.calls, "refresh")
	return s.pair, s.err
}
func (s *stubAuth) Logout(context.Context, string) error {
	s.calls = append(s.calls, "logout")
	return s.err
}
func (s *stubAuth) RequestPasswordReset(context.Context, string) error {
	s.calls = append(s.calls, "reset-request")
	return s.err
}
func (s *stubAuth) ConfirmPasswordReset(context.Context, string, string) error {
	s.calls = append(s.calls, "reset-confirm")
	return s.err
}
func (s *stubAuth) IssueResetToken(context.Context, string) (*model.User, string, error) {
	s.calls = append(s.calls, "test-token")
	return s.user, s.token, s.err
}

func authServer(svc *stubAuth, m *metrics.Metrics) *echo.Echo {
	h := NewAuthHandler(svc, m, zerolog.Nop())
	e := echo.New()
	e.Validator = NewValidator()
	g := e.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	g.POST("/reset-password/request", h.ResetPasswordRequest)
	g.POST("/reset-password/confirm", h.ResetPasswordConfirm)
	g.POST("/reset-password/test-token", h.TestToken, withCaller)
	return e
}

func TestAuthHandler_Login(t *testing.T) {
	svc := &stubAuth{pair: &auth.TokenPair{AccessToken: "acc", RefreshToken: "ref"}}
	m := metrics.New()
	e := authServer(svc, m)

	rec := call(e, http.MethodPost, "/auth/login", `{"email":"a@x.io","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "acc", body["token"])
	assert.Equal(t, "ref", body["refreshToken"])
	assert.Equal(t, "Login successful.", body["message"])

	svc.err = auth.ErrInvalidCredentials
	rec = call(e, http.MethodPost, "/auth/login", `{"email":"a@x.io","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password.", message(t, rec))

	rec = call(e, http.MethodPost, "/auth/login", `{"email":"a@x.io"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password is required.", message(t, rec))

	svc.err = errors.New("db down")
	rec = call(e, http.MethodPost, "/auth/login", `{"email":"a@x.io","password":"pw"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error.", message(t, rec))
}

func TestAuthHandler_RegisterAndRefresh(t *testing.T) {
	svc := &stubAuth{pair: &auth.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"}}
	e := authServer(svc, nil)

	rec := call(e, http.MethodPost, "/auth/register", `{"username":"ann","email":"ann@x.io","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User registered successfully.", message(t, rec))

	rec = call(e, http.MethodPost, "/auth/register", `{"username":"ann","email":"not-an-email","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email must be a valid email address.", message(t, rec))

	rec = call(e, http.MethodPost, "/auth/refresh", `{"refreshToken":"old"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Token refreshed successfully.", message(t, rec))

	svc.err = auth.ErrEmailTaken
	rec = call(e, http.MethodPost, "/auth/register", `{"username":"ann","email":"ann@x.io","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User with this email already exists.", message(t, rec))

	svc.err = auth.ErrInvalidRefresh
	rec = call(e, http.MethodPost, "/auth/refresh", `{"refreshToken":"old"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = call(e, http.MethodPost, "/auth/logout", `{"refreshToken":"old"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	svc.err = nil
	rec = call(e, http.MethodPost, "/auth/logout", `{"refreshToken":"old"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	svc := &stubAuth{user: &model.User{ID: 1, Email: "ann@x.io"}, token: "tok"}
	e := authServer(svc, nil)

	rec := call(e, http.MethodPost, "/auth/reset-password/request", `{"email":"ann@x.io"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password reset email has been sent.", message(t, rec))

	rec = call(e, http.MethodPost, "/auth/reset-password/confirm", `{"token":"tok","newPassword":"another1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password has been reset successfully.", message(t, rec))

	rec = call(e, http.MethodPost, "/auth/reset-password/test-token", `{"email":"ann@x.io"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"ann@x.io","resetToken":"tok"}`, rec.Body.String())

	svc.err = auth.ErrResetTokenExpired
	rec = call(e, http.MethodPost, "/auth/reset-password/confirm", `{"token":"tok","newPassword":"another1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Reset token has expired.", message(t, rec))

	svc.err = auth.ErrUserNotFound
	rec = call(e, http.MethodPost, "/auth/reset-password/request", `{"email":"nobody@x.io"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No user found with that email.", message(t, rec))
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthAndReady(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health)
	e.GET("/up", Ready(pinger{}))
	e.GET("/down", Ready(pinger{err: errors.New("refused")}))

	rec := call(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/up", "").Code)
	rec = call(e, http.MethodGet, "/down", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}
