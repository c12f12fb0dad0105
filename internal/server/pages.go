package server

import (
	"context"
	"net/http"

	"github.com/glasskit/glassbox/internal/track"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "pages.home")

	counts, err := track.Do(ctx, track.Invocation{Name: "pages.home"}, func(ctx context.Context) (map[string]any, error) {
		users, err := s.store.Users().GetAll(ctx)
		if err != nil {
			return nil, err
		}
		tasks, err := s.store.Tasks().GetAll(ctx, false)
		if err != nil {
			return nil, err
		}
		return map[string]any{"users": len(users), "tasks": len(tasks)}, nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": counts})
		return
	}
	track.SetViewData(ctx, map[string]any{"counts": counts})
	s.renderer.HTML(w, http.StatusOK, "home", newPageData("Glassbox", counts))
}
