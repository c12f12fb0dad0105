package track

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareInjectsIntoHTML(t *testing.T) {
	handler := Middleware(1000, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = Do(r.Context(), Invocation{Name: "User.get_all"}, func(context.Context) (any, error) {
			return []string{"alice"}, nil
		})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><h1>Users</h1></body></html>"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "window.__DEBUG__ = ")
	assert.Less(t, strings.Index(body, "window.__DEBUG__"), strings.Index(body, "</body>"),
		"script is injected before the closing body tag")

	// The injected payload is the envelope schema.
	start := strings.Index(body, "window.__DEBUG__ = ") + len("window.__DEBUG__ = ")
	end := strings.Index(body[start:], ";</script>")
	require.Greater(t, end, 0)

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(body[start:start+end]), &env))
	assert.NotEmpty(t, env.RequestID)
	require.Len(t, env.MethodCalls, 1)
	assert.Equal(t, "User.get_all", env.MethodCalls[0].Name)
	assert.Equal(t, http.StatusOK, env.RequestInfo.Status)
	assert.Equal(t, "GET", env.RequestInfo.Method)
}

func TestMiddlewareSplicesJSONSibling(t *testing.T) {
	handler := Middleware(1000, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":1}}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("name=Alice")))

	assert.Equal(t, http.StatusCreated, rec.Code)

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload, "success")
	assert.Contains(t, payload, "data")
	require.Contains(t, payload, "__DEBUG__")

	var env Envelope
	require.NoError(t, json.Unmarshal(payload["__DEBUG__"], &env))
	assert.Equal(t, http.StatusCreated, env.RequestInfo.Status)
	assert.NotNil(t, env.MethodCalls)
	assert.NotNil(t, env.DBQueries)
}

func TestMiddlewareLeavesNonObjectJSONAlone(t *testing.T) {
	handler := Middleware(1000, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raw", nil))

	assert.JSONEq(t, `[1,2,3]`, rec.Body.String())
}

func TestMiddlewareSkipsOtherContentTypes(t *testing.T) {
	handler := Middleware(1000, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "pong", rec.Body.String())
}

func TestMiddlewareCallsSinkWithFreshIDs(t *testing.T) {
	var seen []Envelope
	sink := func(_ *http.Request, env Envelope) { seen = append(seen, env) }

	handler := Middleware(1000, sink)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<body></body>"))
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}

	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0].RequestID, seen[1].RequestID, "every request gets a fresh id")
}

func TestMiddlewareCapturesRequestBody(t *testing.T) {
	var got string
	var env Envelope
	handler := Middleware(1000, func(_ *http.Request, e Envelope) { env = e })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The handler still sees the full body after capture.
		require.NoError(t, r.ParseForm())
		got = r.PostForm.Get("name")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<body></body>"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("name=Alice"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "Alice", got)
	assert.Equal(t, "name=Alice", env.RequestInfo.Body)
}

// countingReader tracks how many bytes have been consumed from the
// underlying reader.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestMiddlewareStreamsBodyBeyondCaptureLimit(t *testing.T) {
	payload := strings.Repeat("x", maxCapturedBody*3)
	src := &countingReader{r: strings.NewReader(payload)}

	var env Envelope
	var handlerSaw int
	handler := Middleware(maxCapturedBody*4, func(_ *http.Request, e Envelope) { env = e })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only the captured prefix may be consumed before the handler runs.
		assert.Equal(t, maxCapturedBody, src.n)

		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		handlerSaw = len(data)

		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload", src)
	req.Header.Set("Content-Type", "text/plain")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, len(payload), handlerSaw, "handler reads the full body")
	assert.Len(t, env.RequestInfo.Body, maxCapturedBody)
}
