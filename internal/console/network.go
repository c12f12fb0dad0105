package console

import (
	"sort"

	"github.com/glasskit/glassbox/internal/track"
)

// HeaderPair is one request header, kept sorted by name for stable display.
type HeaderPair struct {
	Name  string
	Value string
}

// NetworkView is the request-inspector view model.
type NetworkView struct {
	HasData     bool
	Method      string
	URL         string
	Status      int
	StatusClass string // success, redirect, client-error, server-error
	Controller  string
	ContentType string
	Headers     []HeaderPair
	Body        string
	DurationMs  float64
}

// BuildNetworkView flattens envelope request metadata for display.
func BuildNetworkView(env *track.Envelope) NetworkView {
	if env == nil {
		return NetworkView{}
	}
	info := env.RequestInfo
	view := NetworkView{
		HasData:     true,
		Method:      info.Method,
		URL:         info.URL,
		Status:      info.Status,
		StatusClass: statusClass(info.Status),
		Controller:  info.Controller,
		ContentType: info.ContentType,
		Headers:     make([]HeaderPair, 0, len(info.Headers)),
		Body:        info.Body,
		DurationMs:  env.Timing.DurationMs(),
	}
	for name, value := range info.Headers {
		view.Headers = append(view.Headers, HeaderPair{Name: name, Value: value})
	}
	sort.Slice(view.Headers, func(i, j int) bool {
		return view.Headers[i].Name < view.Headers[j].Name
	})
	return view
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "server-error"
	case status >= 400:
		return "client-error"
	case status >= 300:
		return "redirect"
	default:
		return "success"
	}
}
