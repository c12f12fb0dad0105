package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/glasskit/glassbox/internal/domain"
	"github.com/glasskit/glassbox/internal/track"
)

type userInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func decodeUserInput(r *http.Request) (userInput, error) {
	var in userInput
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return in, fmt.Errorf("%w: invalid JSON body", domain.ErrValidation)
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return in, fmt.Errorf("%w: invalid form body", domain.ErrValidation)
	}
	in.Name = r.PostFormValue("name")
	in.Email = r.PostFormValue("email")
	return in, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id", domain.ErrValidation)
	}
	return id, nil
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "users.index")

	users, err := track.Do(ctx, track.Invocation{Name: "users.index"}, func(ctx context.Context) ([]*domain.User, error) {
		return s.store.Users().GetAll(ctx)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": users})
		return
	}
	track.SetViewData(ctx, map[string]any{"users": users, "count": len(users)})
	s.renderer.HTML(w, http.StatusOK, "users_list", newPageData("Users", users))
}

func (s *Server) handleUserShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "users.show")

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := track.Do(ctx, track.Invocation{Name: "users.show", Args: []any{id}}, func(ctx context.Context) (*domain.User, error) {
		return s.store.Users().GetByID(ctx, id)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": user})
		return
	}
	track.SetViewData(ctx, map[string]any{"user": user})
	s.renderer.HTML(w, http.StatusOK, "user_detail", newPageData(user.Name, user))
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "users.create")

	in, err := decodeUserInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := track.Do(ctx, track.Invocation{Name: "users.create", NamedArgs: map[string]any{"name": in.Name, "email": in.Email}}, func(ctx context.Context) (*domain.User, error) {
		return s.store.Users().Create(ctx, in.Name, in.Email)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": user})
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/users/%d", user.ID), http.StatusSeeOther)
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "users.update")

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := decodeUserInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := track.Do(ctx, track.Invocation{Name: "users.update", Args: []any{id}, NamedArgs: map[string]any{"name": in.Name, "email": in.Email}}, func(ctx context.Context) (*domain.User, error) {
		return s.store.Users().Update(ctx, id, in.Name, in.Email)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": user})
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/users/%d", user.ID), http.StatusSeeOther)
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	track.SetController(ctx, "users.delete")

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	err = track.DoVoid(ctx, track.Invocation{Name: "users.delete", Args: []any{id}}, func(ctx context.Context) error {
		return s.store.Users().Delete(ctx, id)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}
