package console

import (
	"regexp"
	"strings"
	"time"

	"github.com/glasskit/glassbox/internal/track"
)

// CallBucket is the presentation class of a call, derived purely from the
// shape of its qualified name.
type CallBucket string

const (
	// BucketModel matches "Type.operation" names such as User.validate.
	BucketModel CallBucket = "model"
	// BucketController matches names containing common handler verbs,
	// such as tasks.index or users.create.
	BucketController CallBucket = "controller"
	BucketOther      CallBucket = "other"
)

var modelNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*\.[a-z_][a-z0-9_]*$`)

var handlerVerbs = []string{"index", "show", "create", "update", "delete", "edit", "list", "new"}

// ClassifyCall assigns a presentation bucket from the qualified name alone.
func ClassifyCall(name string) CallBucket {
	if modelNamePattern.MatchString(name) {
		return BucketModel
	}
	lower := strings.ToLower(name)
	for _, verb := range handlerVerbs {
		if strings.Contains(lower, verb) {
			return BucketController
		}
	}
	return BucketOther
}

// CallFilter selects timeline entries. All set criteria must match.
type CallFilter struct {
	Text     string
	Bucket   CallBucket // empty selects all buckets
	SlowOnly bool
}

// CallEntry is one timeline row.
type CallEntry struct {
	track.CallRecord
	Bucket CallBucket
	Slow   bool
}

// CallView is the call-timeline view model, in recorded order.
type CallView struct {
	Entries []CallEntry
	Total   int // before filtering
}

// BuildCallView classifies and filters calls. slowThreshold marks entries
// whose duration exceeds it and drives the SlowOnly filter.
func BuildCallView(calls []track.CallRecord, f CallFilter, slowThreshold time.Duration) CallView {
	view := CallView{Entries: []CallEntry{}, Total: len(calls)}
	thresholdMs := float64(slowThreshold) / float64(time.Millisecond)
	needle := strings.ToLower(f.Text)

	for _, rec := range calls {
		entry := CallEntry{
			CallRecord: rec,
			Bucket:     ClassifyCall(rec.Name),
			Slow:       rec.DurationMs > thresholdMs,
		}

		if needle != "" && !strings.Contains(strings.ToLower(rec.Name), needle) {
			continue
		}
		if f.Bucket != "" && entry.Bucket != f.Bucket {
			continue
		}
		if f.SlowOnly && !entry.Slow {
			continue
		}
		view.Entries = append(view.Entries, entry)
	}
	return view
}
