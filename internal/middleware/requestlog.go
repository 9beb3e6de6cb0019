package middleware

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/finiti-glossary/internal/metrics"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestLog assigns a request id, logs one line per request and records
// HTTP metrics.  m may be nil.
func RequestLog(log zerolog.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			rid := req.Header.Get(HeaderRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, rid)
			reqLog := log.With().Str("request_id", rid).Logger()
			c.SetRequest(req.WithContext(reqLog.WithContext(req.Context())))

			err := next(c)
			if err != nil {
				c.Error(err) // let echo write the response so the status is known
			}

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			if m != nil {
				m.ObserveHTTP(req.Method, route, strconv.Itoa(status), elapsed)
			}

			ev := reqLog.Info()
			if status >= 500 {
				ev = reqLog.Error()
			} else if status >= 400 {
				ev = reqLog.Warn()
			}
			if uid, _ := c.Get(CtxUserID).(string); uid != "" {
				ev = ev.Str("user_id", uid)
			}
			ev.Str("method", req.Method).
				Str("route", route).
				Int("status", status).
				Dur("latency", elapsed).
				Str("ip", c.RealIP()).
				Msg("request")
			return nil
		}
	}
}
