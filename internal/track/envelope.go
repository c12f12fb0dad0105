package track

import "time"

// Timing is the request's wall-clock window in epoch seconds.
type Timing struct {
	StartEpoch float64 `json:"startEpoch"`
	EndEpoch   float64 `json:"endEpoch"`
}

// DurationMs is the request duration derived from the timing window.
func (t Timing) DurationMs() float64 {
	return (t.EndEpoch - t.StartEpoch) * 1000
}

// Envelope is the single structured payload summarizing one request's
// recorded execution. It is immutable once built and schema-identical across
// both transports (HTML page global and JSON sibling field).
type Envelope struct {
	RequestID   string        `json:"requestId"`
	RequestInfo RequestInfo   `json:"requestInfo"`
	MethodCalls []CallRecord  `json:"methodCalls"`
	DBQueries   []QueryRecord `json:"dbQueries"`
	ViewData    any           `json:"viewData"`
	Timing      Timing        `json:"timing"`
}

// BuildEnvelope assembles the envelope from a frozen context snapshot. It is
// called exactly once per request, when the response is about to be sent. A
// snapshot with zero records yields empty lists, never null.
func BuildEnvelope(snap Snapshot, end time.Time) Envelope {
	calls := snap.Calls
	if calls == nil {
		calls = []CallRecord{}
	}
	queries := snap.Queries
	if queries == nil {
		queries = []QueryRecord{}
	}

	return Envelope{
		RequestID:   snap.RequestID,
		RequestInfo: snap.Info,
		MethodCalls: calls,
		DBQueries:   queries,
		ViewData:    snap.ViewData,
		Timing: Timing{
			StartEpoch: float64(snap.Start.UnixNano()) / float64(time.Second),
			EndEpoch:   float64(end.UnixNano()) / float64(time.Second),
		},
	}
}
