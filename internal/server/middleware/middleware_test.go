package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasskit/glassbox/internal/console"
)

func testSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewSessionManager(ctx, "glassbox_session", time.Hour, console.Options{
		SlowCall:        10 * time.Millisecond,
		SlowQuery:       50 * time.Millisecond,
		HistoryCapacity: 20,
	})
}

func TestSessionMiddlewareIssuesCookie(t *testing.T) {
	m := testSessionManager(t)

	var got *Session
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		got = sess
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "glassbox_session", cookies[0].Name)
	assert.Equal(t, got.ID, cookies[0].Value)
	assert.Equal(t, 0, cookies[0].MaxAge)
	assert.True(t, cookies[0].Expires.IsZero())
}

func TestSessionMiddlewareReusesSession(t *testing.T) {
	m := testSessionManager(t)

	var sessions []*Session
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		sessions = append(sessions, sess)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, sessions, 2)
	assert.Same(t, sessions[0], sessions[1])
	assert.Equal(t, 1, m.Len())
}

func TestSessionMiddlewareUnknownCookieGetsFreshSession(t *testing.T) {
	m := testSessionManager(t)

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "glassbox_session", Value: "stale-id"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, "stale-id", cookies[0].Value)
}

func TestRateLimitByIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimitByIP(ctx, 1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	status := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, status("10.0.0.1"))
	assert.Equal(t, http.StatusOK, status("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, status("10.0.0.1"))
	assert.Equal(t, http.StatusOK, status("10.0.0.2"))
}
