package console

import (
	"strings"
	"time"

	"github.com/glasskit/glassbox/internal/track"
)

// QueryFilter selects query-log rows. All set criteria must match.
type QueryFilter struct {
	Text     string
	SlowOnly bool
}

// QueryEntry is one query-log row. Occurrences counts how many queries in
// the whole request share the exact same text; values above 1 flag a
// likely N+1 pattern.
type QueryEntry struct {
	track.QueryRecord
	Slow        bool
	Occurrences int
}

// QueryView is the query-log view model, in recorded order.
type QueryView struct {
	Entries []QueryEntry
	Total   int // before filtering
}

// BuildQueryView filters queries and marks duplicates and slow entries.
// Duplicate detection runs over the full set before any filter applies,
// so a filtered view still reports true occurrence counts.
func BuildQueryView(queries []track.QueryRecord, f QueryFilter, slowThreshold time.Duration) QueryView {
	view := QueryView{Entries: []QueryEntry{}, Total: len(queries)}
	thresholdMs := float64(slowThreshold) / float64(time.Millisecond)
	needle := strings.ToLower(f.Text)

	counts := make(map[string]int, len(queries))
	for _, rec := range queries {
		counts[rec.Text]++
	}

	for _, rec := range queries {
		entry := QueryEntry{
			QueryRecord: rec,
			Slow:        rec.DurationMs > thresholdMs,
			Occurrences: counts[rec.Text],
		}

		if needle != "" && !strings.Contains(strings.ToLower(rec.Text), needle) {
			continue
		}
		if f.SlowOnly && !entry.Slow {
			continue
		}
		view.Entries = append(view.Entries, entry)
	}
	return view
}
