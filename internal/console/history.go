package console

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/glasskit/glassbox/internal/track"
)

const storageKeyHistory = "history"

// Summary is the per-entry digest shown in the history selector.
type Summary struct {
	CallCount  int     `json:"callCount"`
	QueryCount int     `json:"queryCount"`
	DurationMs float64 `json:"durationMs"`
	Status     int     `json:"status"`
}

// HistoryEntry pairs a retained envelope with its summary.
type HistoryEntry struct {
	Envelope track.Envelope `json:"envelope"`
	Summary  Summary        `json:"summary"`
}

// History retains the last N envelopes, most recent first. Persistence is
// best-effort: a failing storage backend degrades the history to memory-only
// for the rest of the session, never crashes the console.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  []HistoryEntry
	storage  Storage
}

// NewHistory creates a history of the given capacity backed by storage
// (nil for memory-only). Previously persisted entries are restored;
// malformed ones are skipped, not fatal.
func NewHistory(capacity int, storage Storage) *History {
	h := &History{capacity: capacity, storage: storage}
	h.load()
	return h
}

func summarize(env track.Envelope) Summary {
	return Summary{
		CallCount:  len(env.MethodCalls),
		QueryCount: len(env.DBQueries),
		DurationMs: env.Timing.DurationMs(),
		Status:     env.RequestInfo.Status,
	}
}

// Push prepends env, unless its requestId is already retained. The oldest
// entry is evicted once the capacity is exceeded. Returns whether the
// envelope was inserted.
func (h *History) Push(env track.Envelope) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.entries {
		if e.Envelope.RequestID == env.RequestID {
			return false
		}
	}

	h.entries = append([]HistoryEntry{{Envelope: env, Summary: summarize(env)}}, h.entries...)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}

	h.save()
	return true
}

// Entries returns a copy of the retained entries, newest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Get returns the entry for requestID, if retained.
func (h *History) Get(requestID string) (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.entries {
		if e.Envelope.RequestID == requestID {
			return e, true
		}
	}
	return HistoryEntry{}, false
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear empties the store. Callers gate this behind explicit confirmation.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
	if h.storage != nil {
		h.storage.Delete(storageKeyHistory)
	}
}

// save persists the list as an array of individually decodable messages so a
// single corrupted entry cannot poison the whole list on load.
func (h *History) save() {
	if h.storage == nil {
		return
	}

	raws := make([]json.RawMessage, 0, len(h.entries))
	for _, e := range h.entries {
		b, err := json.Marshal(e)
		if err != nil {
			log.Debug().Err(err).Str("request_id", e.Envelope.RequestID).Msg("console: history entry marshal")
			continue
		}
		raws = append(raws, b)
	}

	data, err := json.Marshal(raws)
	if err != nil {
		log.Debug().Err(err).Msg("console: history marshal")
		return
	}
	if err := h.storage.Set(storageKeyHistory, string(data)); err != nil {
		log.Warn().Err(err).Msg("console: history persistence failed, continuing in memory")
	}
}

func (h *History) load() {
	if h.storage == nil {
		return
	}
	data, ok := h.storage.Get(storageKeyHistory)
	if !ok {
		return
	}

	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(data), &raws); err != nil {
		log.Warn().Err(err).Msg("console: persisted history unreadable, starting empty")
		return
	}

	for _, raw := range raws {
		var e HistoryEntry
		if err := json.Unmarshal(raw, &e); err != nil || e.Envelope.RequestID == "" {
			log.Debug().Err(err).Msg("console: skipping malformed history entry")
			continue
		}
		if len(h.entries) < h.capacity {
			h.entries = append(h.entries, e)
		}
	}
}
