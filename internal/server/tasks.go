package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/glasskit/glassbox/internal/domain"
	"github.com/glasskit/glassbox/internal/store/sqlite"
	"github.com/glasskit/glassbox/internal/track"
)

type taskPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	OwnerID     int64  `json:"ownerId"`
	AssigneeID  *int64 `json:"assigneeId"`
}

func (p taskPayload) input() sqlite.TaskInput {
	return sqlite.TaskInput{
		Title:       p.Title,
		Description: p.Description,
		Status:      domain.TaskStatus(p.Status),
		Priority:    domain.TaskPriority(p.Priority),
		OwnerID:     p.OwnerID,
		AssigneeID:  p.AssigneeID,
	}
}

func decodeTaskInput(r *http.Request) (taskPayload, error) {
	var p taskPayload
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return p, fmt.Errorf("%w: invalid JSON body", domain.ErrValidation)
		}
		return p, nil
	}
	if err := r.ParseForm(); err != nil {
		return p, fmt.Errorf("%w: invalid form body", domain.ErrValidation)
	}
	p.Title = r.PostFormValue("title")
	p.Description = r.PostFormValue("description")
	p.Status = r.PostFormValue("status")
	p.Priority = r.PostFormValue("priority")
	if v := r.PostFormValue("owner_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("%w: invalid owner_id", domain.ErrValidation)
		}
		p.OwnerID = id
	}
	if v := r.PostFormValue("assignee_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("%w: invalid assignee_id", domain.ErrValidation)
		}
		p.AssigneeID = &id
	}
	return p, nil
}

// handleTaskList serves the task listing. The relations parameter picks
// the loading strategy: "n1" or "naive" runs one extra query per task,
// anything else joins the user names in a single statement. The naive
// path exists so the query inspector has a real N+1 to flag.
func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "tasks.index")

	relations := r.URL.Query().Get("relations")
	naive := relations == "n1" || relations == "naive"

	tasks, err := track.Do(ctx, track.Invocation{Name: "tasks.index", NamedArgs: map[string]any{"relations": relations}}, func(ctx context.Context) ([]*domain.Task, error) {
		if naive {
			return s.store.Tasks().GetAllNaive(ctx)
		}
		return s.store.Tasks().GetAll(ctx, true)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": tasks})
		return
	}
	track.SetViewData(ctx, map[string]any{"tasks": tasks, "count": len(tasks), "naive": naive})
	s.renderer.HTML(w, http.StatusOK, "tasks_list", newPageData("Tasks", tasks))
}

func (s *Server) handleTaskShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "tasks.show")

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := track.Do(ctx, track.Invocation{Name: "tasks.show", Args: []any{id}}, func(ctx context.Context) (*domain.Task, error) {
		return s.store.Tasks().GetByID(ctx, id, true)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": task})
		return
	}
	track.SetViewData(ctx, map[string]any{"task": task})
	s.renderer.HTML(w, http.StatusOK, "task_detail", newPageData(task.Title, task))
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "tasks.create")

	p, err := decodeTaskInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := track.Do(ctx, track.Invocation{Name: "tasks.create", NamedArgs: map[string]any{"title": p.Title, "ownerId": p.OwnerID}}, func(ctx context.Context) (*domain.Task, error) {
		return s.store.Tasks().Create(ctx, p.input())
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": task})
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/tasks/%d", task.ID), http.StatusSeeOther)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "tasks.update")

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := decodeTaskInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := track.Do(ctx, track.Invocation{Name: "tasks.update", Args: []any{id}, NamedArgs: map[string]any{"title": p.Title, "status": p.Status}}, func(ctx context.Context) (*domain.Task, error) {
		return s.store.Tasks().Update(ctx, id, p.input())
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": task})
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/tasks/%d", task.ID), http.StatusSeeOther)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "tasks.delete")

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	err = track.DoVoid(ctx, track.Invocation{Name: "tasks.delete", Args: []any{id}}, func(ctx context.Context) error {
		return s.store.Tasks().Delete(ctx, id)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}
