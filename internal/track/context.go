package track

import (
	"context"
	"sync"
	"time"
)

type contextKey string

const contextKeyRequest contextKey = "glassbox_request_context"

// RequestInfo is the request/response metadata carried by an envelope.
type RequestInfo struct {
	RequestID   string            `json:"requestId"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Status      int               `json:"status"`
	Controller  string            `json:"controller"`
	ContentType string            `json:"contentType"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
	Timestamp   float64           `json:"timestampEpochSeconds"`
}

// RequestContext accumulates everything recorded during one request. One
// instance exists per in-flight request and is reachable only through that
// request's context.Context; two concurrent requests never share one.
type RequestContext struct {
	mu        sync.Mutex
	requestID string
	start     time.Time
	limit     int
	callSeq   int
	querySeq  int
	calls     []CallRecord
	queries   []QueryRecord
	viewData  any
	info      RequestInfo
}

// NewRequestContext creates the accumulator for a request. limit is the
// capture truncation limit in bytes of JSON.
func NewRequestContext(requestID string, limit int) *RequestContext {
	return &RequestContext{
		requestID: requestID,
		start:     time.Now(),
		limit:     limit,
		calls:     []CallRecord{},
		queries:   []QueryRecord{},
	}
}

// WithRequestContext returns a context carrying rc.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKeyRequest, rc)
}

// FromContext returns the active RequestContext, if any. Recorders treat a
// missing context as "not in a request" and become no-ops.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(contextKeyRequest).(*RequestContext)
	return rc, ok
}

// RequestID returns the unique identifier assigned to this request.
func (rc *RequestContext) RequestID() string { return rc.requestID }

// Start returns when the request began.
func (rc *RequestContext) Start() time.Time { return rc.start }

func (rc *RequestContext) appendCall(name string, args []any, named map[string]any, ret any, exception string, d time.Duration) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rec := CallRecord{
		Name:       name,
		Args:       captureArgs(args, rc.limit),
		NamedArgs:  captureNamedArgs(named, rc.limit),
		DurationMs: float64(d) / float64(time.Millisecond),
		Sequence:   rc.callSeq,
	}
	if exception != "" {
		e := exception
		rec.Exception = &e
	} else {
		rec.ReturnValue = captureValue(ret, rc.limit)
	}

	rc.callSeq++
	rc.calls = append(rc.calls, rec)
}

func (rc *RequestContext) appendQuery(text string, params []any, resultCount int64, d time.Duration) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.queries = append(rc.queries, QueryRecord{
		Text:        text,
		Parameters:  captureArgs(params, rc.limit),
		ResultCount: resultCount,
		DurationMs:  float64(d) / float64(time.Millisecond),
		Sequence:    rc.querySeq,
	})
	rc.querySeq++
}

// SetViewData snapshots the data handed to the rendering step. Last write
// wins; handlers call it once, immediately before rendering.
func (rc *RequestContext) SetViewData(v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.viewData = captureValue(v, 0)
}

// SetController records the human-readable label of the handler that produced
// the response. The first non-empty write wins, so the route handler's label
// is not overwritten by nested instrumented calls.
func (rc *RequestContext) SetController(name string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.info.Controller == "" {
		rc.info.Controller = name
	}
}

// SetRequestInfo stores the ambient request metadata captured at request start.
func (rc *RequestContext) SetRequestInfo(info RequestInfo) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	controller := rc.info.Controller
	rc.info = info
	if controller != "" {
		rc.info.Controller = controller
	}
}

// Snapshot is an immutable copy of a finished RequestContext, the input to
// the envelope builder.
type Snapshot struct {
	RequestID string
	Start     time.Time
	Calls     []CallRecord
	Queries   []QueryRecord
	ViewData  any
	Info      RequestInfo
}

// Snapshot freezes the context for envelope assembly.
func (rc *RequestContext) Snapshot() Snapshot {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	calls := make([]CallRecord, len(rc.calls))
	copy(calls, rc.calls)
	queries := make([]QueryRecord, len(rc.queries))
	copy(queries, rc.queries)

	return Snapshot{
		RequestID: rc.requestID,
		Start:     rc.start,
		Calls:     calls,
		Queries:   queries,
		ViewData:  rc.viewData,
		Info:      rc.info,
	}
}

// SetController labels the response handler on the active context, if any.
func SetController(ctx context.Context, name string) {
	if rc, ok := FromContext(ctx); ok {
		rc.SetController(name)
	}
}

// SetViewData snapshots view data on the active context, if any.
func SetViewData(ctx context.Context, v any) {
	if rc, ok := FromContext(ctx); ok {
		rc.SetViewData(v)
	}
}
