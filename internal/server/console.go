package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/pretty"

	"github.com/glasskit/glassbox/internal/console"
	"github.com/glasskit/glassbox/internal/server/middleware"
)

func (s *Server) sessionConsole(w http.ResponseWriter, r *http.Request) *console.Console {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no session", http.StatusInternalServerError)
		return nil
	}
	return sess.Console
}

// consolePage is everything the panel template needs. All five inspectors
// are built against the same active envelope so tab switches are instant.
type consolePage struct {
	Open           bool
	Tabs           []console.Tab
	Tab            console.Tab
	Dims           console.Dims
	History        []console.HistoryEntry
	ViewingHistory bool
	ActiveID       string
	HasData        bool
	ConfirmClear   bool
	State          console.StateView
	Calls          console.CallView
	CallFilter     console.CallFilter
	Queries        console.QueryView
	QueryFilter    console.QueryFilter
	Network        console.NetworkView
	Phases         []console.Phase
}

func buildConsolePage(c *console.Console) consolePage {
	page := consolePage{
		Open:           c.Open(),
		Tabs:           []console.Tab{console.TabState, console.TabCalls, console.TabQueries, console.TabNetwork, console.TabFlow},
		Tab:            c.Tab(),
		Dims:           c.Dims(),
		History:        c.History(),
		ViewingHistory: c.ViewingHistory(),
		State:          c.StateTree().View(),
		Calls:          c.Calls(),
		CallFilter:     c.CallFilter(),
		Queries:        c.Queries(),
		QueryFilter:    c.QueryFilter(),
		Network:        c.Network(),
	}
	if env := c.Active(); env != nil {
		page.HasData = true
		page.ActiveID = env.RequestID
		page.Phases = console.DerivePhases(env)
	}
	return page
}

func (s *Server) handleConsolePanel(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	page := buildConsolePage(c)
	page.ConfirmClear = r.URL.Query().Get("confirm_clear") == "1"
	s.renderer.HTML(w, http.StatusOK, "console", newPageData("Debug Console", page))
}

func backToPanel(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/_glassbox", http.StatusSeeOther)
}

func (s *Server) handleConsoleToggle(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	c.Toggle()
	backToPanel(w, r)
}

func (s *Server) handleConsoleTab(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	c.SetTab(console.ParseTab(r.PostFormValue("tab")))
	backToPanel(w, r)
}

func (s *Server) handleConsoleResize(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	width, _ := strconv.Atoi(r.PostFormValue("width"))
	height, _ := strconv.Atoi(r.PostFormValue("height"))
	c.Resize(width, height)
	backToPanel(w, r)
}

func (s *Server) handleConsoleHistorySelect(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	c.SelectHistory(r.PostFormValue("requestId"))
	backToPanel(w, r)
}

func (s *Server) handleConsoleHistoryCurrent(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	c.ViewCurrent()
	backToPanel(w, r)
}

// handleConsoleHistoryClear drops the retained requests. The first submit
// has no confirm field and only redirects to the confirmation prompt; the
// history is cleared once the user confirms.
func (s *Server) handleConsoleHistoryClear(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	if r.PostFormValue("confirm") != "yes" {
		http.Redirect(w, r, "/_glassbox?confirm_clear=1", http.StatusSeeOther)
		return
	}
	c.ClearHistory()
	backToPanel(w, r)
}

func (s *Server) handleConsoleStateToggle(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	c.StateTree().Toggle(r.PostFormValue("path"))
	backToPanel(w, r)
}

func (s *Server) handleConsoleStateFilter(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	c.StateTree().SetFilter(r.PostFormValue("q"))
	backToPanel(w, r)
}

func (s *Server) handleConsoleCallFilter(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	c.SetCallFilter(console.CallFilter{
		Text:     r.PostFormValue("text"),
		Bucket:   console.CallBucket(r.PostFormValue("bucket")),
		SlowOnly: r.PostFormValue("slow") == "on",
	})
	backToPanel(w, r)
}

func (s *Server) handleConsoleQueryFilter(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	c.SetQueryFilter(console.QueryFilter{
		Text:     r.PostFormValue("text"),
		SlowOnly: r.PostFormValue("slow") == "on",
	})
	backToPanel(w, r)
}

// handleConsoleExport downloads the active request's view data as
// formatted JSON.
func (s *Server) handleConsoleExport(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="view-data.json"`)
	_, _ = w.Write([]byte(c.StateTree().Export()))
}

// handleConsoleEnvelope serves the active envelope as formatted JSON for
// copy-paste inspection.
func (s *Server) handleConsoleEnvelope(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	env := c.Active()
	if env == nil {
		http.Error(w, "no request recorded", http.StatusNotFound)
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(pretty.Pretty(raw))
}

func (s *Server) handleConsoleFlowControl(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.sessionConsole(w, r)
		if c == nil {
			return
		}
		a := c.Animator()
		if a == nil {
			backToPanel(w, r)
			return
		}
		switch action {
		case "play":
			a.Play()
		case "pause":
			a.Pause()
		case "reset":
			a.Reset()
		}
		backToPanel(w, r)
	}
}

func (s *Server) handleConsoleFlowSpeed(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	if a := c.Animator(); a != nil {
		if speed, err := strconv.ParseFloat(r.PostFormValue("speed"), 64); err == nil {
			a.SetSpeed(speed)
		}
	}
	backToPanel(w, r)
}

func (s *Server) handleConsoleFlowLoop(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	if a := c.Animator(); a != nil {
		a.SetLoop(r.PostFormValue("loop") == "on")
	}
	backToPanel(w, r)
}

// handleConsoleFlowSocket streams animation frames to the flow inspector.
// The animator is owned by the session; closing the socket stops the
// stream but leaves playback state intact.
func (s *Server) handleConsoleFlowSocket(w http.ResponseWriter, r *http.Request) {
	c := s.sessionConsole(w, r)
	if c == nil {
		return
	}
	a := c.Animator()
	if a == nil {
		http.Error(w, "no request recorded", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case frame, ok := <-a.Frames():
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "animation stopped")
				return
			}
			if writeErr := wsjson.Write(ctx, conn, frame); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
