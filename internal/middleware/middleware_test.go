package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/finiti-glossary/internal/config"
	"github.com/iliyamo/finiti-glossary/internal/metrics"
	"github.com/iliyamo/finiti-glossary/internal/model"
	"github.com/iliyamo/finiti-glossary/internal/utils"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func do(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	iss := utils.NewTokenIssuer("secret", "glossary", "glossary", 5)
	e := echo.New()
	g := e.Group("", JWTAuth(iss))
	g.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, Identity(c))
	})
	g.GET("/admin-only", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRole(model.RoleAdmin))

	user, err := iss.Create(&model.User{ID: 3, Email: "u@x.io", Username: "u", Role: model.RoleUser})
	require.NoError(t, err)
	flagged, err := iss.Create(&model.User{ID: 4, Email: "f@x.io", Role: model.RoleUser, IsAdmin: true})
	require.NoError(t, err)
	admin, err := iss.Create(&model.User{ID: 5, Email: "a@x.io", Role: "admin"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "nope").Code)

	rec := do(e, http.MethodGet, "/me", user.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var caller map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caller))
	assert.Equal(t, "3", caller["ID"])
	assert.Equal(t, model.RoleUser, caller["Role"])

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/admin-only", user.Token).Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/admin-only", flagged.Token).Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/admin-only", admin.Token).Code)
}

func rateCfg() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "test:rl",
		Fallback:       true,
	}
}

func TestTokenBucket_Redis(t *testing.T) {
	mr, rdb := newRedis(t)
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(rateCfg(), rdb, zerolog.Nop()))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/auth/login", "").Code)
	rec := do(e, http.MethodPost, "/auth/login", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(e, http.MethodPost, "/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "test:rl:ip:"))
}

func TestTokenBucket_FallsBackWithoutRedis(t *testing.T) {
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(rateCfg(), nil, zerolog.Nop()))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/auth/login", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/auth/login", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/auth/login", "").Code)

	cfg := rateCfg()
	cfg.Fallback = false
	e = echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, nil, zerolog.Nop()))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/auth/login", "").Code)
	}
}

func TestTokenBucket_FallsBackOnRedisError(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(rateCfg(), rdb, zerolog.Nop()))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/auth/login", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/auth/login", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/auth/login", "").Code)
}

func TestLocalBuckets_Refill(t *testing.T) {
	cfg := rateCfg()
	cfg.RefillInterval = time.Second
	l := newLocalBuckets(cfg)
	now := time.Now()

	ok, _ := l.allow("k", now)
	assert.True(t, ok)
	ok, _ = l.allow("k", now)
	assert.True(t, ok)
	ok, retry := l.allow("k", now)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	ok, _ = l.allow("other", now)
	assert.True(t, ok, "keys are independent")

	ok, _ = l.allow("k", now.Add(1100*time.Millisecond))
	assert.True(t, ok)
}

func cacheCfg() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "user_route_query",
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 20,
	}
}

func TestRedisCache_HitMissAndPurge(t *testing.T) {
	_, rdb := newRedis(t)
	cache := NewRedisCache(cacheCfg(), rdb, zerolog.Nop())

	calls := 0
	e := echo.New()
	e.GET("/admin/all", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(CtxUserID, c.Request().Header.Get("X-User"))
			return next(c)
		}
	}, cache.Middleware())

	get := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/all?limit=5", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	first := get("1")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get("1")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get(echo.HeaderContentType), "application/json")
	assert.Equal(t, 1, calls)

	other := get("2")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"), "entries are per user")
	assert.Equal(t, 2, calls)

	require.NoError(t, cache.Purge(t.Context()))
	assert.Equal(t, "MISS", get("1").Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCache_SkipsErrorsAndDisabled(t *testing.T) {
	_, rdb := newRedis(t)
	cache := NewRedisCache(cacheCfg(), rdb, zerolog.Nop())
	e := echo.New()
	e.GET("/admin/history/:id", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "No history found."})
	}, cache.Middleware())

	assert.Equal(t, "MISS", do(e, http.MethodGet, "/admin/history/x", "").Header().Get("X-Cache"))
	assert.Equal(t, "MISS", do(e, http.MethodGet, "/admin/history/x", "").Header().Get("X-Cache"))

	var nilCache *RedisCache
	assert.NoError(t, nilCache.Purge(t.Context()))
	disabled := NewRedisCache(cacheCfg(), nil, zerolog.Nop())
	e = echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, disabled.Middleware())
	assert.Empty(t, do(e, http.MethodGet, "/x", "").Header().Get("X-Cache"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, gotHdr)
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}

func TestRequestLog(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New()
	e := echo.New()
	e.Use(RequestLog(zerolog.New(&buf), m))
	e.GET("/ok/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/ok/7", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "rid-1", rec.Header().Get(HeaderRequestID))

	rec = do(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "rid-1", first["request_id"])
	assert.Equal(t, "/ok/:id", first["route"])
	assert.EqualValues(t, 200, first["status"])
	assert.Contains(t, lines[1], `"level":"error"`)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ok/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/boom", "500")))
}
