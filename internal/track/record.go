// Package track implements the request instrumentation pipeline: per-request
// accumulation of business-call and SQL records, envelope assembly, and the
// HTTP middleware that ships the envelope with the response.
package track

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// TruncationMarker is appended to any captured value whose JSON encoding
// exceeds the context's truncation limit. It is always present on a truncated
// value; values are never silently dropped.
const TruncationMarker = "[...TRUNCATED...]"

// CallRecord is one captured invocation of business logic.
type CallRecord struct {
	Name        string         `json:"name"`
	Args        []any          `json:"args"`
	NamedArgs   map[string]any `json:"namedArgs,omitempty"`
	ReturnValue any            `json:"returnValue,omitempty"`
	Exception   *string        `json:"exception"`
	DurationMs  float64        `json:"durationMs"`
	Sequence    int            `json:"sequence"`
}

// QueryRecord is one captured persistence operation. Text is the exact
// statement text; duplicate detection relies on it being verbatim.
type QueryRecord struct {
	Text        string  `json:"text"`
	Parameters  []any   `json:"parameters"`
	ResultCount int64   `json:"resultCount"`
	DurationMs  float64 `json:"durationMs"`
	Sequence    int     `json:"sequence"`
}

// captureValue snapshots v as a JSON-safe value, decoupled from the original
// so later mutation by the handler cannot change what the console shows.
// Values whose encoding exceeds limit bytes are replaced by a truncated string
// with the marker appended; values that cannot be serialized degrade to a
// placeholder instead of failing the capture.
func captureValue(v any, limit int) any {
	if v == nil {
		return nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("[unserializable %T]", v)
	}

	if limit > 0 && len(b) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}
		return string(b[:cut]) + TruncationMarker
	}

	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Sprintf("[unserializable %T]", v)
	}
	return out
}

func captureArgs(args []any, limit int) []any {
	out := make([]any, 0, len(args))
	for _, a := range args {
		out = append(out, captureValue(a, limit))
	}
	return out
}

func captureNamedArgs(named map[string]any, limit int) map[string]any {
	if len(named) == 0 {
		return nil
	}
	out := make(map[string]any, len(named))
	for k, v := range named {
		out[k] = captureValue(v, limit)
	}
	return out
}
