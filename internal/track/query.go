package track

import (
	"context"
	"time"
)

// QuerySpan times one persistence operation. Obtain it with StartQuery just
// before executing the statement and finish it with End once the outcome
// metric is known. A nil span (no active request context) is a no-op.
type QuerySpan struct {
	rc     *RequestContext
	text   string
	params []any
	start  time.Time
}

// StartQuery begins recording a persistence operation. text must be the
// exact statement text; duplicate detection depends on it.
func StartQuery(ctx context.Context, text string, params ...any) *QuerySpan {
	rc, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return &QuerySpan{rc: rc, text: text, params: params, start: time.Now()}
}

// End finishes the span. resultCount is the single outcome metric: returned
// row count for reads, affected rows or the generated id for writes.
func (s *QuerySpan) End(resultCount int64) {
	if s == nil {
		return
	}
	s.rc.appendQuery(s.text, s.params, resultCount, time.Since(s.start))
}
