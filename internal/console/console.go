// Package console holds the view models behind the debug panel: the
// request history, the five inspectors, and the chrome state that
// survives across page loads within one browsing session.
package console

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glasskit/glassbox/internal/track"
)

// Tab names one of the five inspectors.
type Tab string

const (
	TabState   Tab = "state"
	TabCalls   Tab = "calls"
	TabQueries Tab = "queries"
	TabNetwork Tab = "network"
	TabFlow    Tab = "flow"
)

// ParseTab returns the tab for a request parameter, defaulting to state.
func ParseTab(s string) Tab {
	switch Tab(s) {
	case TabCalls, TabQueries, TabNetwork, TabFlow:
		return Tab(s)
	default:
		return TabState
	}
}

const (
	storageKeyOpen = "panel.open"
	storageKeyTab  = "panel.tab"
	storageKeyDims = "panel.dims"
)

// Dims is the persisted panel geometry in pixels.
type Dims struct {
	Width  int
	Height int
}

var defaultDims = Dims{Width: 480, Height: 360}

// Options carries the tunables the inspectors need.
type Options struct {
	SlowCall        time.Duration
	SlowQuery       time.Duration
	HistoryCapacity int
}

// Console is one session's debug panel. Chrome state (open, tab, size) is
// persisted through Storage so it survives page loads; inspector state
// like tree expansion lives in memory for the life of the session.
type Console struct {
	mu      sync.Mutex
	opts    Options
	storage Storage
	history *History

	current   *track.Envelope // latest ingested request
	selected  string          // requestId when viewing history, "" for current
	open      bool
	tab       Tab
	dims      Dims
	callFlt   CallFilter
	queryFlt  QueryFilter
	trees     map[string]*StateTree // per-envelope, keyed by requestId
	animators map[string]*Animator
}

// New restores a console from session storage, or starts a fresh one.
func New(opts Options, storage Storage) *Console {
	c := &Console{
		opts:      opts,
		storage:   storage,
		history:   NewHistory(opts.HistoryCapacity, storage),
		tab:       TabState,
		dims:      defaultDims,
		trees:     make(map[string]*StateTree),
		animators: make(map[string]*Animator),
	}
	if v, ok := storage.Get(storageKeyOpen); ok {
		c.open = v == "true"
	}
	if v, ok := storage.Get(storageKeyTab); ok {
		c.tab = ParseTab(v)
	}
	if v, ok := storage.Get(storageKeyDims); ok {
		if dims, err := parseDims(v); err == nil {
			c.dims = dims
		}
	}
	return c
}

// Ingest records a finished request. A request id not seen before is
// pushed into history and becomes the active envelope; re-delivery of the
// same id is a no-op. Viewing switches back to the live request.
func (c *Console) Ingest(env track.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if env.RequestID == "" {
		return
	}
	if c.current != nil && c.current.RequestID == env.RequestID {
		return
	}
	c.history.Push(env)
	c.current = &env
	c.selected = ""
	c.pruneCachesLocked()
}

// pruneCachesLocked drops cached trees and animators for requests no longer
// retained, so the per-request caches stay bounded by the history capacity.
func (c *Console) pruneCachesLocked() {
	retained := make(map[string]bool, c.history.Len()+1)
	if c.current != nil {
		retained[c.current.RequestID] = true
	}
	for _, entry := range c.history.Entries() {
		retained[entry.Envelope.RequestID] = true
	}
	for id := range c.trees {
		if !retained[id] {
			delete(c.trees, id)
		}
	}
	for id, a := range c.animators {
		if !retained[id] {
			a.Stop()
			delete(c.animators, id)
		}
	}
}

// Active returns the envelope the inspectors display: the selected history
// entry when viewing history, otherwise the latest ingested request.
func (c *Console) Active() *track.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *Console) activeLocked() *track.Envelope {
	if c.selected != "" {
		if entry, ok := c.history.Get(c.selected); ok {
			env := entry.Envelope
			return &env
		}
		c.selected = ""
	}
	return c.current
}

// ViewingHistory reports whether a past request is selected.
func (c *Console) ViewingHistory() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected != ""
}

// SelectHistory switches the inspectors to a past request. An unknown id
// is ignored.
func (c *Console) SelectHistory(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.history.Get(requestID); ok {
		c.selected = requestID
	}
}

// ViewCurrent returns the inspectors to the live request.
func (c *Console) ViewCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = ""
}

// History lists the retained requests, newest first.
func (c *Console) History() []HistoryEntry {
	return c.history.Entries()
}

// ClearHistory drops all retained requests and leaves the live view intact.
func (c *Console) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Clear()
	c.selected = ""
	c.pruneCachesLocked()
}

// Open reports whether the panel is expanded.
func (c *Console) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Toggle flips the panel between expanded and collapsed and persists the
// choice for the session.
func (c *Console) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = !c.open
	_ = c.storage.Set(storageKeyOpen, strconv.FormatBool(c.open))
	return c.open
}

// Tab returns the active inspector.
func (c *Console) Tab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

// SetTab switches inspectors and persists the choice. Inspector state such
// as tree expansion is untouched.
func (c *Console) SetTab(tab Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tab = ParseTab(string(tab))
	_ = c.storage.Set(storageKeyTab, string(c.tab))
}

// Dims returns the persisted panel size.
func (c *Console) Dims() Dims {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dims
}

// Resize stores a new panel size. Non-positive dimensions are ignored.
func (c *Console) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dims = Dims{Width: width, Height: height}
	_ = c.storage.Set(storageKeyDims, formatDims(c.dims))
}

// StateTree returns the view-data tree for the active envelope, building
// it on first access. Trees are cached per request id so expansion and
// filter state survive tab switches and history browsing.
func (c *Console) StateTree() *StateTree {
	c.mu.Lock()
	defer c.mu.Unlock()
	env := c.activeLocked()
	if env == nil {
		return NewStateTree(nil)
	}
	if tree, ok := c.trees[env.RequestID]; ok {
		return tree
	}
	tree := NewStateTree(env.ViewData)
	c.trees[env.RequestID] = tree
	return tree
}

// Calls builds the call timeline for the active envelope under the
// session's current filter.
func (c *Console) Calls() CallView {
	c.mu.Lock()
	env := c.activeLocked()
	f := c.callFlt
	c.mu.Unlock()
	if env == nil {
		return CallView{Entries: []CallEntry{}}
	}
	return BuildCallView(env.MethodCalls, f, c.opts.SlowCall)
}

// SetCallFilter updates the call timeline filter.
func (c *Console) SetCallFilter(f CallFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callFlt = f
}

// CallFilter returns the active call timeline filter.
func (c *Console) CallFilter() CallFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callFlt
}

// Queries builds the query log for the active envelope under the session's
// current filter.
func (c *Console) Queries() QueryView {
	c.mu.Lock()
	env := c.activeLocked()
	f := c.queryFlt
	c.mu.Unlock()
	if env == nil {
		return QueryView{Entries: []QueryEntry{}}
	}
	return BuildQueryView(env.DBQueries, f, c.opts.SlowQuery)
}

// SetQueryFilter updates the query log filter.
func (c *Console) SetQueryFilter(f QueryFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryFlt = f
}

// QueryFilter returns the active query log filter.
func (c *Console) QueryFilter() QueryFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryFlt
}

// Network builds the request inspector for the active envelope.
func (c *Console) Network() NetworkView {
	return BuildNetworkView(c.Active())
}

// Animator returns the flow animator for the active envelope, replacing
// any animator bound to a different request.
func (c *Console) Animator() *Animator {
	c.mu.Lock()
	defer c.mu.Unlock()
	env := c.activeLocked()
	if env == nil {
		return nil
	}
	if a, ok := c.animators[env.RequestID]; ok {
		return a
	}
	for id, a := range c.animators {
		a.Stop()
		delete(c.animators, id)
	}
	a := NewAnimator(env)
	c.animators[env.RequestID] = a
	return a
}

// Close stops background work owned by the console. Called when the
// session expires.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, a := range c.animators {
		a.Stop()
		delete(c.animators, id)
	}
}

func formatDims(d Dims) string {
	return strconv.Itoa(d.Width) + "x" + strconv.Itoa(d.Height)
}

func parseDims(s string) (Dims, error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Dims{}, strconv.ErrSyntax
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Dims{}, err
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Dims{}, err
	}
	if width <= 0 || height <= 0 {
		return Dims{}, strconv.ErrRange
	}
	return Dims{Width: width, Height: height}, nil
}
