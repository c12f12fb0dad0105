package track

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxCapturedBody bounds how much of a request body is captured for the
// network inspector.
const maxCapturedBody = 4096

// Sink receives the finished envelope before the response is written. The
// server uses it to push envelopes into the session console.
type Sink func(r *http.Request, env Envelope)

// Middleware creates a fresh RequestContext per request, assigns it a unique
// id, and at response time builds the envelope and attaches it to the
// outgoing response: injected as window.__DEBUG__ for HTML, spliced in as a
// __DEBUG__ sibling field for JSON objects, skipped for anything else.
// Failures here only affect what the console shows; the response itself is
// never broken.
func Middleware(truncateLimit int, sink Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := NewRequestContext(uuid.NewString(), truncateLimit)
			ctx := WithRequestContext(r.Context(), rc)

			body := captureRequestBody(r)

			bw := &bufferingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(bw, r.WithContext(ctx))

			contentType := w.Header().Get("Content-Type")
			if contentType == "" {
				contentType = "text/html"
			}

			rc.SetRequestInfo(RequestInfo{
				RequestID:   rc.RequestID(),
				Method:      r.Method,
				URL:         r.URL.RequestURI(),
				Status:      bw.status,
				ContentType: contentType,
				Headers:     flattenHeaders(r.Header),
				Body:        body,
				Timestamp:   float64(rc.Start().UnixNano()) / float64(time.Second),
			})

			env := BuildEnvelope(rc.Snapshot(), time.Now())
			if sink != nil {
				sink(r, env)
			}

			out := attachEnvelope(bw.buf.Bytes(), contentType, env)

			w.Header().Set("Content-Length", strconv.Itoa(len(out)))
			w.WriteHeader(bw.status)
			if _, err := w.Write(out); err != nil {
				log.Debug().Err(err).Msg("track: response write")
			}
		})
	}
}

// attachEnvelope splices env into the buffered response body. Any failure
// returns the body untouched.
func attachEnvelope(body []byte, contentType string, env Envelope) []byte {
	envJSON, err := json.Marshal(env)
	if err != nil {
		log.Warn().Err(err).Str("request_id", env.RequestID).Msg("track: envelope marshal failed")
		return body
	}

	switch {
	case strings.Contains(contentType, "text/html"):
		// encoding/json escapes <, > and & by default, so the payload is
		// safe inside a script element.
		script := fmt.Sprintf("<script>window.__DEBUG__ = %s;</script>", envJSON)
		if idx := bytes.LastIndex(body, []byte("</body>")); idx >= 0 {
			out := make([]byte, 0, len(body)+len(script))
			out = append(out, body[:idx]...)
			out = append(out, script...)
			out = append(out, body[idx:]...)
			return out
		}
		return append(body, script...)

	case strings.Contains(contentType, "application/json"):
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			// Not a JSON object; a sibling field has nowhere to go.
			return body
		}
		obj["__DEBUG__"] = envJSON
		out, err := json.Marshal(obj)
		if err != nil {
			return body
		}
		return out

	default:
		return body
	}
}

// captureRequestBody reads at most maxCapturedBody bytes for the network
// inspector. The unread remainder stays on the original body and is only
// pulled when the handler reads it, so large uploads are never buffered here.
func captureRequestBody(r *http.Request) string {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody))
	if err != nil {
		return ""
	}
	r.Body = replayBody{
		Reader: io.MultiReader(bytes.NewReader(data), r.Body),
		Closer: r.Body,
	}

	return string(data)
}

// replayBody replays the captured prefix before streaming the rest of the
// original body. Close still reaches the original body.
type replayBody struct {
	io.Reader
	io.Closer
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[k] = strings.Join(vs, ", ")
	}
	return out
}

// bufferingWriter captures status and body so the envelope can be attached
// before anything reaches the client.
type bufferingWriter struct {
	http.ResponseWriter
	buf         bytes.Buffer
	status      int
	wroteHeader bool
}

func (w *bufferingWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
}

func (w *bufferingWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.buf.Write(p)
}
